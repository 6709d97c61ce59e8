// Package server implements the network frontend: a TCP listener whose
// connections each carry a sequence of framed requests, dispatched one at a
// time to the engine, with one framed response per request in order.
//
// Engine errors are converted to their string form inside the response and
// the connection keeps serving; socket or framing I/O errors end that
// connection's loop without affecting others. When a worker pool is
// configured, the accept loop enqueues each connection and the workers run
// the per-connection loop; otherwise connections are served sequentially,
// which is the contract for the single-writer engine.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/iamNilotpal/ember/internal/codec"
	"github.com/iamNilotpal/ember/internal/engine"
	"github.com/iamNilotpal/ember/internal/protocol"
	"github.com/iamNilotpal/ember/pkg/workerpool"
)

// Store is the engine surface the frontend dispatches to. Both engine
// forms satisfy it.
type Store interface {
	Set(key, value string) error
	Get(key string) (value string, found bool, err error)
	Remove(key string) error
}

// Config holds the parameters needed to build a Server.
type Config struct {
	Store  Store
	Logger *zap.SugaredLogger

	// PoolSize is the number of workers serving connections. Zero or
	// negative serves connections sequentially on the accept goroutine,
	// which is required when Store is the single-writer engine.
	PoolSize int
}

// Server accepts stream connections and serves the request/response loop
// over each.
type Server struct {
	store    Store
	log      *zap.SugaredLogger
	poolSize int
	pool     *workerpool.Pool

	mu   sync.Mutex
	ln   net.Listener
	quit chan struct{}
	wg   sync.WaitGroup
}

// New builds a Server. Call Start or Serve to begin accepting.
func New(config *Config) *Server {
	return &Server{
		store:    config.Store,
		log:      config.Logger,
		poolSize: config.PoolSize,
		quit:     make(chan struct{}),
	}
}

// Start listens on addr and serves until Stop is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln until Stop is called. It blocks for
// the lifetime of the listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	if s.poolSize > 0 {
		s.pool = workerpool.New(s.poolSize, s.log)
	}

	s.log.Infow("Server listening", "addr", ln.Addr().String(), "poolSize", s.poolSize)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				s.log.Errorw("Accept failed", "error", err)
				continue
			}
		}

		if s.pool != nil {
			s.wg.Add(1)
			c := conn
			if !s.pool.Execute(func() {
				defer s.wg.Done()
				s.handleConnection(c)
			}) {
				s.wg.Done()
				closeErr := c.Close()
				_ = closeErr
			}
		} else {
			s.wg.Add(1)
			s.handleConnection(conn)
		}
	}
}

// Stop closes the listener, waits for in-flight connections to finish and
// shuts the worker pool down.
func (s *Server) Stop() {
	close(s.quit)

	s.mu.Lock()
	if s.ln != nil {
		closeErr := s.ln.Close()
		_ = closeErr
	}
	s.mu.Unlock()

	s.wg.Wait()
	if s.pool != nil {
		s.pool.Shutdown()
	}
	s.log.Infow("Server stopped")
}

// handleConnection runs the decode → dispatch → respond loop until the
// peer disconnects or the stream turns unreadable.
func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		s.wg.Done()
		closeErr := conn.Close()
		_ = closeErr
	}()

	// A shared engine gets a per-connection clone so this goroutine owns a
	// private read-handle cache.
	store := s.store
	if shared, ok := s.store.(*engine.SharedEngine); ok {
		clone := shared.Clone()
		defer func() {
			releaseErr := clone.Release()
			_ = releaseErr
		}()
		store = clone
	}

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req protocol.Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warnw("Connection closed", "peer", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		resp := dispatch(store, req.Command)
		if err := enc.Encode(resp); err != nil {
			s.log.Warnw("Failed to write response", "peer", conn.RemoteAddr().String(), "error", err)
			return
		}
	}
}

// dispatch invokes one engine operation and maps its outcome to a response.
func dispatch(store Store, cmd codec.Command) protocol.Response {
	switch cmd.Type {
	case codec.CommandSet:
		if err := store.Set(cmd.Key, cmd.Value); err != nil {
			return protocol.Err(err)
		}
		return protocol.OkValue("ok")

	case codec.CommandGet:
		value, found, err := store.Get(cmd.Key)
		if err != nil {
			return protocol.Err(err)
		}
		if !found {
			return protocol.OkNone()
		}
		return protocol.OkValue(value)

	case codec.CommandRemove:
		if err := store.Remove(cmd.Key); err != nil {
			return protocol.Err(err)
		}
		return protocol.OkValue("ok")

	default:
		return protocol.Response{Result: protocol.Result{Error: "unknown command type: " + string(cmd.Type)}}
	}
}
