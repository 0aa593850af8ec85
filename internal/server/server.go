// Package server implements the loopback HTTP API (component M): a
// custom non-blocking accept loop — not net/http.Server's own — so the
// idle timeout in component O can watch for elapsed time between accepts
// the same way a single-threaded event loop would. The teacher's go-chi
// router is kept as the mux for route registration readability; each
// accepted connection is served by a short-lived net/http.Server over a
// single-connection listener, with the chi router as its handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/flock"

	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/planner"
	"github.com/rtk-mem/rtk-mem/internal/reranker"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

// Server is the rtk-mem loopback API: a chi mux served over a
// hand-rolled accept loop with an idle-timeout shutdown.
type Server struct {
	cfg   *config.Config
	st    *store.Store
	rr    reranker.Reranker
	router chi.Router

	mu              sync.Mutex
	lastRequestTime time.Time

	pidPath string
}

// New builds a Server bound to st, with rr as the Stage-2 reranker
// backend used by /v1/plan-context when ml_mode=full.
func New(cfg *config.Config, st *store.Store, rr reranker.Reranker) *Server {
	s := &Server{cfg: cfg, st: st, rr: rr, lastRequestTime: time.Time{}}
	s.router = s.buildRouter()
	return s
}

// Router exposes the chi mux, primarily for tests exercising handlers
// directly via httptest without going through the accept loop.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.cfg.Server.ReadTimeoutSecs) * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://127.0.0.1:*", "http://localhost:*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.trackLastRequest)
	r.Use(closeConnectionHeader)

	registerAllRoutes(r, s.st, s.cfg, s.rr)
	return r
}

func registerAllRoutes(r chi.Router, st *store.Store, cfg *config.Config, rr reranker.Reranker) {
	RegisterRoutes(r, st, cfg, rr)
}

func (s *Server) trackLastRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.lastRequestTime = time.Now()
		s.mu.Unlock()
		next.ServeHTTP(w, req)
	})
}

// closeConnectionHeader sets Connection: close on every response, per the
// one-request-per-connection contract: each accepted socket is handed to
// its own short-lived net/http.Server instance and torn down afterward.
func closeConnectionHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Connection", "close")
		next.ServeHTTP(w, req)
	})
}

func (s *Server) idleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRequestTime.IsZero() {
		return 0
	}
	return time.Since(s.lastRequestTime)
}

// pidFilePath returns <data_local>/rtk/mem-server-<port>.pid. Go has no
// exact equivalent of the Rust distillation's data_local_dir; the OS
// per-user cache directory is the closest stdlib analogue for ephemeral
// runtime state like a PID file.
func pidFilePath(port int) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("server: resolve data-local dir: %w", err)
	}
	return filepath.Join(base, "rtk", fmt.Sprintf("mem-server-%d.pid", port)), nil
}

func (s *Server) writePIDFile() error {
	path, err := pidFilePath(s.cfg.Server.Port)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("server: create pid dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("server: write pid file: %w", err)
	}
	s.pidPath = path
	return nil
}

func (s *Server) removePIDFile() {
	if s.pidPath == "" {
		return
	}
	os.Remove(s.pidPath)
}

// bindLock guards against two rtk-mem servers racing to bind the same
// port: flock on a sibling "<pid file>.lock" file, released automatically
// on process exit even if Serve panics.
func (s *Server) bindLock() (*flock.Flock, error) {
	path, err := pidFilePath(s.cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("server: create lock dir: %w", err)
	}
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("server: acquire bind lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("server: another rtk-mem server already bound to port %d", s.cfg.Server.Port)
	}
	return fl, nil
}

// Serve runs the accept loop until ctx is canceled or the idle timeout
// (cfg.Server.IdleTimeoutSecs, 0 = disabled) elapses with no requests
// served. It is single-threaded at the accept level: each connection is
// handled by a short-lived goroutine bounded by a 10s read deadline, but
// only one Accept is outstanding at a time.
func (s *Server) Serve(ctx context.Context) error {
	lock, err := s.bindLock()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := s.writePIDFile(); err != nil {
		return err
	}
	defer s.removePIDFile()

	addr := net.JoinHostPort(s.cfg.Server.Addr, strconv.Itoa(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	defer ln.Close()

	log.Printf("rtk-mem server listening on %s", addr)

	var wg sync.WaitGroup
	defer wg.Wait()

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("server: expected *net.TCPListener, got %T", ln)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tcpLn.SetDeadline(time.Now().Add(500 * time.Millisecond))
		conn, err := tcpLn.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if idle := s.idleSince(); s.cfg.Server.IdleTimeoutSecs > 0 &&
					idle > time.Duration(s.cfg.Server.IdleTimeoutSecs)*time.Second {
					log.Printf("rtk-mem server idle for %s, shutting down", idle)
					return nil
				}
				continue
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			s.serveConn(c)
		}(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	one := &singleConnListener{conn: conn, done: make(chan struct{})}
	srv := &http.Server{Handler: s.router}
	go func() {
		srv.Serve(one)
	}()
	<-one.done
}

// singleConnListener adapts a single already-accepted net.Conn into a
// net.Listener that yields it exactly once, so net/http's HTTP/1.1
// request parser can be reused as the per-connection handler without
// net/http.Server owning the accept loop itself.
type singleConnListener struct {
	conn net.Conn
	once sync.Once
	done chan struct{}
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	var c net.Conn
	l.once.Do(func() { c = l.conn })
	if c == nil {
		<-l.done
		return nil, errListenerClosed
	}
	return &closeSignalConn{Conn: c, done: l.done}, nil
}

func (l *singleConnListener) Close() error   { return nil }
func (l *singleConnListener) Addr() net.Addr { return l.conn.LocalAddr() }

var errListenerClosed = errors.New("server: single-connection listener closed")

type closeSignalConn struct {
	net.Conn
	closeOnce sync.Once
	done      chan struct{}
}

func (c *closeSignalConn) Close() error {
	err := c.Conn.Close()
	c.closeOnce.Do(func() { close(c.done) })
	return err
}
