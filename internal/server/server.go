// Package server exposes the action dispatcher over a newline-framed JSON
// message channel. Each connection is served by its own goroutine; responses
// to one connection are written in request order, and a send to a
// disconnected client is dropped silently.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"net"
	"sync"

	"asterix_server/internal/actions"
)

// Server accepts message-channel connections and feeds each line to the
// dispatcher. It also carries push events (data_loaded, data_cleared) to
// every connected client.
type Server struct {
	addr       string
	dispatcher *actions.Dispatcher

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// New creates a channel server listening on addr.
func New(addr string, dispatcher *actions.Dispatcher) *Server {
	return &Server{
		addr:       addr,
		dispatcher: dispatcher,
		conns:      make(map[*conn]struct{}),
	}
}

// ListenAndServe accepts connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	l, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	log.Printf("[channel] listening on %s", l.Addr())

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	for {
		c, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handle(c)
	}
}

// Serve accepts connections from an existing listener. Used by tests.
func (s *Server) Serve(l net.Listener) error {
	for {
		c, err := l.Accept()
		if err != nil {
			return err
		}
		go s.handle(c)
	}
}

// Broadcast sends an event Outcome to every connected client. Individual
// send failures only drop that client.
func (s *Server) Broadcast(out actions.Outcome) {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		c.send(out)
	}
}

func (s *Server) handle(nc net.Conn) {
	c := &conn{nc: nc}
	remote := nc.RemoteAddr()
	log.Printf("[channel] connected %s", remote)

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = nc.Close()
		log.Printf("[channel] disconnected %s", remote)
	}()

	s.HandleConn(nc, c.send)
}

// HandleConn runs the per-connection read loop: one JSON request per line,
// one Outcome per request via respond. Exposed so tests can drive a
// connection through net.Pipe.
func (s *Server) HandleConn(r net.Conn, respond func(actions.Outcome)) {
	scanner := bufio.NewScanner(r)
	// Filter payloads can be long; bump the line buffer (20MB).
	scanner.Buffer(make([]byte, 0, 64*1024), 20*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.dispatcher.Dispatch(line, respond)
	}
	// Read errors mean the peer went away; nothing to do.
}

// conn is one live client connection. The write mutex keeps a connection's
// responses in request order; closed is sticky after the first send failure.
type conn struct {
	nc     net.Conn
	mu     sync.Mutex
	closed bool
}

func (c *conn) send(out actions.Outcome) {
	payload, err := json.Marshal(out)
	if err != nil {
		log.Printf("[channel] marshal outcome: %v", err)
		return
	}
	payload = append(payload, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, err := c.nc.Write(payload); err != nil {
		// Client disconnected mid-response; drop silently.
		c.closed = true
	}
}
