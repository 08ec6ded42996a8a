// Package server accepts seat protocol connections, runs one session per
// connection and coordinates shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-seat-server/internal/ratelimit"
	"github.com/iliyamo/cinema-seat-server/internal/repository"
	"github.com/iliyamo/cinema-seat-server/internal/service"
	"github.com/iliyamo/cinema-seat-server/internal/session"
)

const defaultFlushWait = 5 * time.Second

// Options configure a Server.
type Options struct {
	RecvTimeout   time.Duration
	SendTimeout   time.Duration
	ShutdownGrace time.Duration
	// Limiter admits connections per remote IP; nil admits everything.
	Limiter    *ratelimit.Bucket
	Log        *log.Logger
	SessionLog *log.Logger
}

// Server is the connection dispatcher and termination coordinator.
type Server struct {
	svc   *service.Booking
	store repository.Store
	opts  Options
	log   *log.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
	wg       sync.WaitGroup

	syncMu    sync.Mutex
	flushOnce sync.Once
	flushErr  error
}

// New returns a server over shared state svc, persisting to store.
func New(svc *service.Booking, store repository.Store, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = log.New("server")
	}
	if opts.SessionLog == nil {
		opts.SessionLog = log.New("session")
	}
	return &Server{
		svc:      svc,
		store:    store,
		opts:     opts,
		log:      opts.Log,
		sessions: map[string]*session.Session{},
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down: the
// listener is closed, every live session is cancelled and given
// ShutdownGrace to unwind, and the state is flushed once.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Infof("listening on %s", ln.Addr())
	sessCtx, cancelSessions := context.WithCancel(context.Background())
	defer cancelSessions()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var acceptErr error
	backoff := 5 * time.Millisecond
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warnf("accept: %v; retrying in %s", err, backoff)
				time.Sleep(backoff)
				if backoff < time.Second {
					backoff *= 2
				}
				continue
			}
			acceptErr = fmt.Errorf("accept: %w", err)
			break
		}
		backoff = 5 * time.Millisecond
		if !s.admit(ctx, conn) {
			_ = conn.Close()
			continue
		}
		s.start(sessCtx, conn)
	}

	_ = ln.Close()
	s.log.Infof("stopped accepting; cancelling %d sessions", s.Len())
	cancelSessions()
	s.wait(s.opts.ShutdownGrace)
	if err := s.Flush(context.Background()); err != nil {
		s.log.Errorf("final flush: %v", err)
		if acceptErr == nil {
			acceptErr = err
		}
	}
	return acceptErr
}

func (s *Server) admit(ctx context.Context, conn net.Conn) bool {
	if !s.opts.Limiter.Active() {
		return true
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	d, err := s.opts.Limiter.Take(ctx, s.opts.Limiter.Key("ip", host))
	if err != nil {
		s.log.Warnf("%v", err)
		return true
	}
	if !d.Allowed {
		s.log.Infof("rejecting connection from %s; retry in %s", host, d.RetryAfter)
	}
	return d.Allowed
}

func (s *Server) start(ctx context.Context, conn net.Conn) {
	sess := session.New(conn, s.svc, session.Options{
		RecvTimeout: s.opts.RecvTimeout,
		SendTimeout: s.opts.SendTimeout,
		Log:         s.opts.SessionLog,
	})
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.wg.Add(1)
	s.log.Debugf("session %s from %s", sess.ID, conn.RemoteAddr())

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.ID)
			s.mu.Unlock()
		}()
		if err := sess.Serve(ctx); err != nil {
			s.log.Warnf("session %s ended: %v", sess.ID, err)
		}
	}()
}

func (s *Server) wait(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	if grace <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(grace):
		s.log.Warnf("%d sessions still running after %s", s.Len(), grace)
	}
}

// Len returns the number of live sessions.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sessions lists live sessions ordered by start time.
func (s *Server) Sessions() []session.Info {
	s.mu.Lock()
	list := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()
	out := make([]session.Info, 0, len(list))
	for _, sess := range list {
		out = append(out, sess.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Sync persists a consistent snapshot while sessions keep running.
func (s *Server) Sync(ctx context.Context) error {
	var snap repository.Snapshot
	if err := s.svc.Quiesce(ctx, func() {
		snap = repository.Capture(s.svc.Hall(), s.svc.Accounts())
	}); err != nil {
		return fmt.Errorf("quiesce: %w", err)
	}
	return s.save(ctx, snap)
}

// Flush persists the state once at shutdown.  The snapshot is taken
// quiesced; if a straggling session keeps the booking lock past
// ShutdownGrace the state is captured as is.  Later calls return the first
// result.
func (s *Server) Flush(ctx context.Context) error {
	s.flushOnce.Do(func() {
		grace := s.opts.ShutdownGrace
		if grace <= 0 {
			grace = defaultFlushWait
		}
		qctx, cancel := context.WithTimeout(ctx, grace)
		var snap repository.Snapshot
		err := s.svc.Quiesce(qctx, func() {
			snap = repository.Capture(s.svc.Hall(), s.svc.Accounts())
		})
		cancel()
		if err != nil {
			s.log.Warnf("flushing without quiescing: %v", err)
			snap = repository.Capture(s.svc.Hall(), s.svc.Accounts())
		}
		s.flushErr = s.save(ctx, snap)
		if s.flushErr == nil {
			s.log.Infof("state flushed")
		}
	})
	return s.flushErr
}

func (s *Server) save(ctx context.Context, snap repository.Snapshot) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	return s.store.Save(ctx, snap)
}
