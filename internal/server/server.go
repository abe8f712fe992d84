package server

import (
	"net"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/config"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/fanout"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/metrics"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/participant"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/pending"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/transport"
	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/utils"
)

const defaultGraceWindow = 30 * time.Second

// Coordinator accepts participant connections and spawns one session per
// connection. All sessions share a single directory, pending store and
// fan-out engine.
type Coordinator struct {
	directory    *participant.Directory
	pendingStore *pending.Store
	engine       *fanout.Engine

	graceWindow   time.Duration
	readTimeout   time.Duration
	pruneInterval time.Duration
	commandRate   rate.Limit
	commandBurst  int

	sem chan struct{}
}

func NewCoordinator(cfg config.Config, journal fanout.Journal) *Coordinator {
	directory := participant.NewDirectory()
	pendingStore := pending.NewStore()

	graceWindow := utils.ParseStringTime(cfg.GraceWindow)
	if graceWindow == 0 {
		logger.WarnF("Invalid grace window %q, falling back to %v", cfg.GraceWindow, defaultGraceWindow)
		graceWindow = defaultGraceWindow
	}

	return &Coordinator{
		directory:     directory,
		pendingStore:  pendingStore,
		engine:        fanout.NewEngine(directory, pendingStore, journal),
		graceWindow:   graceWindow,
		readTimeout:   utils.ParseStringTime(cfg.ReadTimeout),
		pruneInterval: utils.ParseStringTime(cfg.PruneInterval),
		commandRate:   rate.Limit(cfg.CommandRate),
		commandBurst:  cfg.CommandBurst,
		sem:           make(chan struct{}, cfg.MaxConnections),
	}
}

// Start listens on the given TCP port and serves until the listener fails.
func (co *Coordinator) Start(port int) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		logger.FatalF("Coordinator start error: %v", err)
		return err
	}
	return co.Serve(ln)
}

// Serve runs the accept loop on an existing listener.
func (co *Coordinator) Serve(ln net.Listener) error {
	logger.InfoF("Coordinator established at %s", ln.Addr().String())
	defer func() {
		if err := ln.Close(); err != nil && !transport.IsNetClosedError(err) {
			logger.ErrorF("Listener close error: %v", err)
		}
	}()

	co.startPruner()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if transport.IsNetClosedError(err) {
				return nil
			}
			logger.ErrorF("Accept connection error: %v", err)
			continue
		}

		logger.DebugF("New Participant Connected: %s", conn.RemoteAddr().String())
		metrics.TotalConnections.Inc()

		co.sem <- struct{}{}
		go func(c net.Conn) {
			metrics.ActiveConnections.Inc()
			newConnectionHandler(co, c).handleConnection()
			metrics.ActiveConnections.Dec()
			<-co.sem
		}(conn)
	}
}

// startPruner sweeps pending queues for messages past the grace window. The
// drain path applies the same predicate, so the sweep only reclaims memory.
func (co *Coordinator) startPruner() {
	if co.pruneInterval == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(co.pruneInterval)
		defer ticker.Stop()
		for range ticker.C {
			if dropped := co.pendingStore.PruneExpired(co.graceWindow, time.Now()); dropped > 0 {
				metrics.MessagesExpired.Add(float64(dropped))
				logger.DebugF("Pruned %d expired pending messages", dropped)
			}
		}
	}()
}
