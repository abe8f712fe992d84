package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/message"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/metrics"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/participant"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/protocol"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/transport"
)

// sessionConn is what a session needs from its connection. Satisfied by
// transport.LineTransport; tests substitute a scripted fake.
type sessionConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	RemoteAddr() string
	SetReadDeadline(deadline time.Time)
	Close() error
}

// ConnectionHandler runs the per-connection command loop. One command is
// processed fully, side effects included, before the next line is read;
// concurrency exists only across connections.
//
// registeredID is the one record this connection owns; empty while the
// session is unregistered.
type ConnectionHandler struct {
	co           *Coordinator
	conn         sessionConn
	connID       string
	registeredID string
	limiter      *rate.Limiter
}

func newConnectionHandler(co *Coordinator, conn net.Conn) *ConnectionHandler {
	connID := uuid.NewString()[:8]
	c := &ConnectionHandler{
		co:     co,
		conn:   transport.NewLineTransport(conn, connID),
		connID: connID,
	}
	if co.commandRate > 0 {
		burst := co.commandBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(co.commandRate, burst)
	}
	return c
}

func (c *ConnectionHandler) handleConnection() {
	defer func() {
		c.teardown()
		logger.DebugF("[%s] Connection closed", c.connID)
		if err := c.conn.Close(); err != nil && !transport.IsNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", c.connID, err)
		}
	}()

	if err := c.conn.WriteLine(protocol.Ack("Connected to Coordinator")); err != nil {
		return
	}

	for {
		if c.co.readTimeout != 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.co.readTimeout))
		}

		line, err := c.conn.ReadLine()
		if err != nil {
			transport.HandleReadError(c.connID, err)
			return
		}

		if c.limiter != nil {
			_ = c.limiter.Wait(context.Background())
		}

		logger.DebugF("[%s] Received: %s", c.connID, line)

		if err := c.conn.WriteLine(c.handleCommand(line)); err != nil {
			return
		}
	}
}

// teardown leaves this connection's record offline with a fresh disconnect
// time so the id stays reclaimable by RECONNECT within the grace window. The
// record is never force-removed here.
func (c *ConnectionHandler) teardown() {
	if c.registeredID == "" {
		return
	}
	if c.co.directory.SetOfflineIfBound(c.registeredID, c.conn, time.Now()) {
		logger.InfoF("[%s] Participant %s marked offline after connection loss", c.connID, c.registeredID)
	}
}

// handleCommand maps one input line to exactly one response line.
func (c *ConnectionHandler) handleCommand(line string) string {
	cmd, err := protocol.ParseLine(line)
	switch {
	case errors.Is(err, protocol.ErrUnknownCommand):
		metrics.CommandErrors.WithLabelValues("unknown_command").Inc()
		return protocol.Error("Unknown command")
	case errors.Is(err, protocol.ErrMalformedCommand):
		metrics.CommandErrors.WithLabelValues("malformed_command").Inc()
		return protocol.Error("Malformed command")
	}

	metrics.CommandsProcessed.WithLabelValues(string(cmd.Verb)).Inc()

	switch cmd.Verb {
	case protocol.Register:
		return c.handleRegister(cmd.Arg)
	case protocol.Deregister:
		return c.handleDeregister()
	case protocol.Disconnect:
		return c.handleDisconnect()
	case protocol.Reconnect:
		return c.handleReconnect(cmd.Arg)
	case protocol.MSend:
		return c.handleMSend(cmd.Arg)
	}

	metrics.CommandErrors.WithLabelValues("unknown_command").Inc()
	return protocol.Error("Unknown command")
}

func (c *ConnectionHandler) handleRegister(id string) string {
	if c.registeredID != "" {
		metrics.CommandErrors.WithLabelValues("already_registered").Inc()
		return protocol.Error("Already registered as " + c.registeredID)
	}

	if _, err := c.co.directory.Register(id, c.conn.RemoteAddr(), c.conn); err != nil {
		metrics.CommandErrors.WithLabelValues("already_registered").Inc()
		return protocol.Error("Participant ID already registered")
	}

	c.registeredID = id
	metrics.RegisteredParticipants.Set(float64(c.co.directory.Size()))
	logger.InfoF("Participant Registered: %s", id)
	return protocol.Ack("Registered as " + id)
}

func (c *ConnectionHandler) handleDeregister() string {
	if c.registeredID == "" {
		metrics.CommandErrors.WithLabelValues("not_registered").Inc()
		return protocol.Error("You must REGISTER first")
	}

	id := c.registeredID
	_ = c.co.directory.Remove(id)
	if dropped := c.co.pendingStore.Discard(id); dropped > 0 {
		logger.DebugF("Discarded %d pending messages for deregistered participant %s", dropped, id)
	}
	c.registeredID = ""
	metrics.RegisteredParticipants.Set(float64(c.co.directory.Size()))
	logger.InfoF("Participant Deregistered: %s", id)
	return protocol.Ack("Deregistered " + id)
}

func (c *ConnectionHandler) handleDisconnect() string {
	if c.registeredID == "" {
		metrics.CommandErrors.WithLabelValues("not_registered").Inc()
		return protocol.Error("You must REGISTER first")
	}

	if err := c.co.directory.SetOffline(c.registeredID, time.Now()); err != nil {
		metrics.CommandErrors.WithLabelValues("not_registered").Inc()
		return protocol.Error("Participant ID not found")
	}
	logger.InfoF("Participant Disconnected: %s", c.registeredID)
	return protocol.Ack("Disconnected " + c.registeredID)
}

func (c *ConnectionHandler) handleReconnect(arg string) string {
	id := c.registeredID
	switch {
	case id == "":
		id = arg
	case arg != "" && arg != id:
		metrics.CommandErrors.WithLabelValues("already_registered").Inc()
		return protocol.Error("Already registered as " + id)
	}
	if id == "" {
		metrics.CommandErrors.WithLabelValues("malformed_command").Inc()
		return protocol.Error("RECONNECT requires <id>")
	}

	now := time.Now()
	err := c.co.directory.Reconnect(id, c.conn, c.co.graceWindow, now)
	switch {
	case errors.Is(err, participant.ErrNotRegistered):
		metrics.CommandErrors.WithLabelValues("not_registered").Inc()
		return protocol.Error("Participant ID not found. Please REGISTER again.")
	case errors.Is(err, participant.ErrReconnectExpired):
		if dropped := c.co.pendingStore.Discard(id); dropped > 0 {
			metrics.MessagesExpired.Add(float64(dropped))
		}
		c.registeredID = ""
		metrics.RegisteredParticipants.Set(float64(c.co.directory.Size()))
		metrics.CommandErrors.WithLabelValues("reconnect_expired").Inc()
		return protocol.Error("Reconnection time exceeded. Please REGISTER again.")
	}

	c.registeredID = id

	// Pending messages go out before the reconnect ack.
	c.co.engine.Drain(id, c.conn, c.co.graceWindow, now)
	logger.InfoF("Participant Reconnected: %s", id)
	return protocol.Ack("Reconnected as " + id)
}

func (c *ConnectionHandler) handleMSend(content string) string {
	if c.registeredID == "" {
		metrics.CommandErrors.WithLabelValues("not_registered").Inc()
		return protocol.Error("You must REGISTER first")
	}

	c.co.engine.Broadcast(message.New(c.registeredID, content))
	return protocol.Ack("Message Sent")
}
