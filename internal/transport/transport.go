// Package transport frames newline-delimited UTF-8 text over a net.Conn and
// centralizes the connection error handling helpers.
package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rendezvous-dev/rendezvous-go-coordinator/internal/logger"
)

// LineTransport owns one participant connection. Reads happen only from the
// connection's own session goroutine; writes are serialized with a mutex
// because fan-outs from other sessions write concurrently with the session's
// own responses.
type LineTransport struct {
	conn   net.Conn
	connID string
	reader *bufio.Reader

	wmu sync.Mutex
}

func NewLineTransport(conn net.Conn, connID string) *LineTransport {
	return &LineTransport{
		conn:   conn,
		connID: connID,
		reader: bufio.NewReader(conn),
	}
}

// ReadLine blocks until the next newline-terminated line and returns it
// without the terminator.
func (t *LineTransport) ReadLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLine sends one full response line, appending the terminator. Partial
// writes are retried until the line is out or the connection fails.
func (t *LineTransport) WriteLine(line string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	data := []byte(line + "\n")
	total := 0
	for total < len(data) {
		n, err := t.conn.Write(data[total:])
		if err != nil {
			logger.ErrorF("[%s] Fail to send data, details: %v", t.connID, err)
			return err
		}
		total += n
	}
	logger.DebugF("[%s] Send %d bytes to client", t.connID, total)
	return nil
}

func (t *LineTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *LineTransport) ConnID() string {
	return t.connID
}

func (t *LineTransport) SetReadDeadline(deadline time.Time) {
	_ = t.conn.SetReadDeadline(deadline)
}

func (t *LineTransport) Close() error {
	return t.conn.Close()
}

func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}

func HandleReadError(connID string, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.InfoF("[%s] Client close connection", connID)
	case os.IsTimeout(err):
		logger.WarnF("[%s] Reading timeout", connID)
	default:
		logger.ErrorF("[%s] Error occured while reading line, details: %v", connID, err)
	}
}
