// Package socket serves the line-oriented query protocol: one
// goroutine per accepted connection, newline-delimited commands in,
// line-delimited responses out.
package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/spudstack/tuber/internal/dispatch"
	"go.uber.org/zap"
)

// Server accepts socket clients and feeds their queries to the
// dispatcher. One slow query never blocks another connection: every
// connection runs on its own goroutine and shares no per-request state.
type Server struct {
	addr       string
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a socket server bound to addr on Start.
func New(addr string, d *dispatch.Dispatcher, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:       addr,
		dispatcher: d,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start binds the listening socket and begins accepting connections.
// A bind failure is returned to the caller; it is the one startup
// error treated as fatal.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.ln = ln
	s.logger.Info("query server listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", zap.Error(err))
			continue
		}
		s.logger.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn runs one client's command loop until EXIT or disconnect.
// Reads happen on a dedicated goroutine so a disconnect is noticed
// while a query is in flight; the connection context is cancelled the
// moment the read side fails, stopping that client's backend and tool
// work instead of letting it run to the query timeout.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	var readErr error
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				close(lines)
				return
			}
		}
		readErr = scanner.Err()
		close(lines)
		cancel()
	}()

	w := bufio.NewWriter(conn)
	for raw := range lines {
		line := strings.TrimSpace(raw)

		switch {
		case strings.EqualFold(line, "EXIT"):
			writeLine(w, "Goodbye!")
			w.Flush()
			return
		case strings.EqualFold(line, "STATS"):
			s.writeStats(w)
		case line == "":
			// Malformed input keeps the connection usable.
			writeLine(w, "ERROR:empty query")
			writeLine(w, "---")
		default:
			if !s.handleQuery(ctx, w, line) {
				return
			}
		}
		if err := w.Flush(); err != nil {
			return
		}
	}

	// An oversized line cannot be resynchronized; answer it before
	// closing instead of dropping the connection silently.
	if errors.Is(readErr, bufio.ErrTooLong) {
		writeLine(w, "ERROR:query too long")
		writeLine(w, "---")
		w.Flush()
		return
	}
	if readErr != nil && s.ctx.Err() == nil {
		s.logger.Debug("client read error", zap.Error(readErr))
	}
}

// queryReply is the JSON payload on the RESPONSE line.
type queryReply struct {
	Response string `json:"response"`
}

func (s *Server) handleQuery(ctx context.Context, w *bufio.Writer, query string) bool {
	resp, err := s.dispatcher.Handle(ctx, query)
	if err != nil {
		writeLine(w, "ERROR:"+err.Error())
		writeLine(w, "---")
		return true
	}

	payload, err := json.Marshal(queryReply{Response: resp.Answer})
	if err != nil {
		s.logger.Error("marshal reply failed", zap.Error(err))
		return false
	}
	writeLine(w, "RESPONSE:"+string(payload))
	writeLine(w, fmt.Sprintf("TIME:%dms", resp.ProcessingTimeMs))
	writeLine(w, "---")
	return true
}

func (s *Server) writeStats(w *bufio.Writer) {
	snap := s.dispatcher.Stats()
	writeLine(w, "STATS:")
	writeLine(w, fmt.Sprintf("Total queries: %d", snap.TotalQueries))
	writeLine(w, fmt.Sprintf("Average processing time: %.2fms", snap.AverageLatencyMs))
	writeLine(w, "---")
}

func writeLine(w *bufio.Writer, line string) {
	w.WriteString(line)
	w.WriteByte('\n')
}

// Stop closes the listener, then cancels every connection context and
// waits for the connection goroutines to drain.
func (s *Server) Stop() {
	s.cancel()
	if s.ln != nil {
		s.ln.Close()
	}
	s.wg.Wait()
	s.logger.Info("query server stopped")
}
