// Package tcpserver ingests newline-delimited JSON log entries over TCP,
// the streaming companion to the HTTP batch endpoint: backend and
// database emitters hold one connection open and write a line per entry.
package tcpserver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tracewatch/tracewatch/internal/ingest"
	"github.com/tracewatch/tracewatch/internal/model"
)

const (
	// DefaultQueueSize bounds the decoded entries waiting for the consumer.
	DefaultQueueSize = 100_000

	// DefaultMaxLineSize caps a single wire line at 1MB.
	DefaultMaxLineSize = 1024 * 1024
)

// Config holds tunable parameters for the TCP ingest server.
type Config struct {
	QueueSize   int
	MaxLineSize int
}

// Server accepts TCP connections, decodes every NDJSON line into a
// canonical log entry, and hands the entries to the consumer over a
// bounded channel. A malformed line is dropped and logged; the
// connection stays open for the lines after it.
type Server struct {
	addr        string
	listener    net.Listener
	entries     chan model.LogEntry
	maxLineSize int
	now         func() time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// NewServer creates a TCP ingest server. Default addr is "127.0.0.1:4040".
func NewServer(addr string, conf ...Config) *Server {
	if addr == "" {
		addr = "127.0.0.1:4040"
	}
	queueSize := DefaultQueueSize
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 {
		if conf[0].QueueSize > 0 {
			queueSize = conf[0].QueueSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		entries:     make(chan model.LogEntry, queueSize),
		maxLineSize: maxLineSize,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins accepting connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, s.maxLineSize), s.maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		entry, err := ingest.DecodeLine(line, s.now())
		if err != nil {
			log.Printf("tcpserver: dropped malformed line from %s: %v", conn.RemoteAddr(), err)
			continue
		}
		select {
		case s.entries <- entry:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			log.Printf("tcpserver: closed connection %s, line exceeded %d bytes", conn.RemoteAddr(), s.maxLineSize)
			return
		}
		log.Printf("tcpserver: read error from %s: %v", conn.RemoteAddr(), err)
	}
}

// Entries returns the channel of decoded log entries. Stop closes it
// after the last connection handler drains.
func (s *Server) Entries() <-chan model.LogEntry {
	return s.entries
}

// Stop closes the listener, waits for connection handlers to finish, and
// closes the entry channel.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		close(s.entries)
	})
	return nil
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
