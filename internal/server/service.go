package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/newswire/internal/observability"
	"github.com/danmuck/newswire/internal/protocol/frame"
	"github.com/danmuck/newswire/internal/session"
	"github.com/danmuck/newswire/internal/store"
	"github.com/danmuck/newswire/internal/validate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNoGateway = errors.New("server: gateway required")

// Session endpoint configuration.
type ServiceConfig struct {
	ListenAddr       string
	AdminListenAddr  string
	MaxLineBytes     int
	HandshakeTimeout time.Duration
	CORSOrigins      []string
	AdminToken       string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:       "127.0.0.1:12345",
		AdminListenAddr:  "",
		MaxLineBytes:     frame.DefaultLimits().MaxLineBytes,
		HandshakeTimeout: 30 * time.Second,
		CORSOrigins:      nil,
	}
}

// Dependencies are shared by every session the service spawns.
type Dependencies struct {
	Gateway    session.Gateway
	Rules      validate.Rules
	Store      store.Persister
	MaxResults int
	Logger     *zerolog.Logger
}

// Service runs the accept loop for news sessions.
type Service struct {
	cfg    ServiceConfig
	deps   Dependencies
	logger zerolog.Logger

	activeClients   atomic.Int64
	acceptedClients atomic.Uint64
	started         time.Time
}

func NewService(cfg ServiceConfig, deps Dependencies) (*Service, error) {
	if deps.Gateway == nil {
		return nil, ErrNoGateway
	}
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = def.MaxLineBytes
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	logger := log.Logger
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	return &Service{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With().Str("component", "server").Logger(),
		started: time.Now(),
	}, nil
}

func (s *Service) Config() ServiceConfig { return s.cfg }

// ActiveClients is the number of connections currently being served.
func (s *Service) ActiveClients() int64 { return s.activeClients.Load() }

// Status is the live counter snapshot served on /health.
func (s *Service) Status() map[string]any {
	return map[string]any{
		"listen_addr":      s.cfg.ListenAddr,
		"active_clients":   s.activeClients.Load(),
		"accepted_clients": s.acceptedClients.Load(),
		"started_at":       s.started.UTC().Format(time.RFC3339),
	}
}

// Run listens on the configured address and blocks until ctx is done or
// SIGINT/SIGTERM arrives.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		adminLn, err := net.Listen("tcp", addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("server: admin listen %s: %w", addr, err)
		}
		s.logger.Info().Str("addr", adminLn.Addr().String()).Msg("admin endpoint listening")
		opts := observability.AdminOptions{
			CORSOrigins: s.cfg.CORSOrigins,
			Token:       s.cfg.AdminToken,
		}
		if loader, ok := s.deps.Store.(store.Loader); ok {
			opts.Responses = loader
		}
		router := observability.AdminRouter(s.logger, opts, s.Status)
		go func() {
			adminErr <- observability.ServeAdmin(ctx, adminLn, router)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			stop()
			<-serveErr
			return fmt.Errorf("server: admin endpoint: %w", err)
		}
		return <-serveErr
	}
}

// Serve accepts connections on ln until ctx is done. Sessions already in
// flight are not interrupted.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	observability.RegisterMetrics()
	defer ln.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-done:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info().Msg("accept loop stopped")
				return nil
			}
			return err
		}
		s.acceptedClients.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	active := s.activeClients.Add(1)
	observability.SessionOpened()
	s.logger.Info().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		remaining := s.activeClients.Add(-1)
		observability.SessionClosed()
		s.logger.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	logger := s.logger.With().Str("remote", remote).Logger()
	sess, err := session.New(session.Dependencies{
		Gateway:    s.deps.Gateway,
		Rules:      s.deps.Rules,
		Store:      s.deps.Store,
		MaxResults: s.deps.MaxResults,
		Logger:     &logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("build session")
		return
	}
	ch := frame.NewChannel(conn, frame.Limits{MaxLineBytes: s.cfg.MaxLineBytes})

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	if err := sess.Handshake(ch); err != nil {
		logger.Warn().Err(err).Msg("username handshake failed")
		return
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		logger.Warn().Err(err).Msg("clear handshake deadline")
	}

	if err := sess.Run(context.WithoutCancel(ctx), ch); err != nil {
		logger.Warn().Err(err).Str("username", sess.Username()).Msg("session ended with error")
		return
	}
	logger.Debug().Str("username", sess.Username()).Msg("session finished")
}
