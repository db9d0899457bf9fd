package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/danmuck/newswire/internal/newsapi"
	"github.com/danmuck/newswire/internal/observability"
	"github.com/danmuck/newswire/internal/protocol"
	"github.com/danmuck/newswire/internal/protocol/frame"
	"github.com/danmuck/newswire/internal/store"
	"github.com/danmuck/newswire/internal/validate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MaxResults caps every cached list.
	MaxResults = 15

	DefaultUsername = "Guest"
)

var (
	ErrNotAwaitingUsername = errors.New("session: username already set")
	ErrNotReady            = errors.New("session: not ready")
	ErrNoGateway           = errors.New("session: gateway required")
)

// State is the session lifecycle phase.
type State string

const (
	StateAwaitingUsername State = "awaiting_username"
	StateReady            State = "ready"
	StateClosed           State = "closed"
)

// Gateway is the upstream news source a session queries.
type Gateway interface {
	FetchHeadlines(ctx context.Context, params map[string]string) (newsapi.HeadlinesResult, error)
	FetchSources(ctx context.Context, params map[string]string) (newsapi.SourcesResult, error)
}

// Dependencies are shared, read-only collaborators handed to every session.
type Dependencies struct {
	Gateway    Gateway
	Rules      validate.Rules
	Store      store.Persister
	MaxResults int
	Logger     *zerolog.Logger
}

type Session struct {
	id       string
	username string
	state    State

	gateway    Gateway
	rules      validate.Rules
	persister  store.Persister
	maxResults int

	headlines []newsapi.Article
	sources   []newsapi.Source

	base   zerolog.Logger
	logger zerolog.Logger
}

// New returns a session awaiting its username line.
func New(deps Dependencies) (*Session, error) {
	if deps.Gateway == nil {
		return nil, ErrNoGateway
	}
	if deps.Store == nil {
		deps.Store = store.Nop{}
	}
	if deps.Rules.Empty() {
		deps.Rules = validate.DefaultRules()
	}
	if deps.MaxResults <= 0 {
		deps.MaxResults = MaxResults
	}
	base := log.Logger
	if deps.Logger != nil {
		base = *deps.Logger
	}
	id := uuid.NewString()
	base = base.With().Str("session_id", id).Logger()
	return &Session{
		id:         id,
		state:      StateAwaitingUsername,
		gateway:    deps.Gateway,
		rules:      deps.Rules,
		persister:  deps.Store,
		maxResults: deps.MaxResults,
		base:       base,
		logger:     base,
	}, nil
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Username() string { return s.username }
func (s *Session) State() State     { return s.state }

// NormalizeUsername trims raw and substitutes DefaultUsername when empty.
func NormalizeUsername(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return DefaultUsername
	}
	return name
}

// SetUsername completes the handshake and moves the session to Ready.
func (s *Session) SetUsername(raw string) error {
	if s.state != StateAwaitingUsername {
		return fmt.Errorf("%w: state=%s", ErrNotAwaitingUsername, s.state)
	}
	s.username = NormalizeUsername(raw)
	s.logger = s.base.With().Str("username", s.username).Logger()
	s.state = StateReady
	return nil
}

// Handshake reads the username line from ch.
func (s *Session) Handshake(ch *frame.Channel) error {
	if s.state != StateAwaitingUsername {
		return fmt.Errorf("%w: state=%s", ErrNotAwaitingUsername, s.state)
	}
	line, err := ch.ReadLine()
	if err != nil {
		s.close()
		return err
	}
	return s.SetUsername(line)
}

// Run serves requests until quit, end of stream, or a framing/I/O failure.
// End of stream and quit return nil.
func (s *Session) Run(ctx context.Context, ch *frame.Channel) error {
	if s.state != StateReady {
		return fmt.Errorf("%w: state=%s", ErrNotReady, s.state)
	}
	defer s.close()
	s.logger.Info().Msg("session ready")

	for {
		var req protocol.Request
		if err := ch.Receive(&req); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info().Msg("peer closed connection")
				return nil
			}
			return err
		}
		resp := s.Handle(ctx, req)
		if err := ch.Send(resp); err != nil {
			return err
		}
		if s.state == StateClosed {
			return nil
		}
	}
}

// Handle processes one request. It never returns a failure other than as an
// error response.
func (s *Session) Handle(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("action", string(req.Action)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("action handler panicked")
			resp = protocol.ErrorResponse(protocol.MsgInternal)
		}
		observability.RecordAction(actionLabel(req.Action), resp.Status)
	}()

	if s.state != StateReady {
		return protocol.ErrorResponse(protocol.MsgInternal)
	}

	if req.Action == protocol.ActionQuit {
		s.logger.Info().Msg("client quit")
		s.state = StateClosed
		return protocol.ClosedResponse()
	}
	if err := req.Err(); err != nil {
		s.logger.Warn().Err(err).Str("action", string(req.Action)).Msg("rejected request")
		var reqErr *protocol.RequestError
		if errors.As(err, &reqErr) && reqErr.Param != "" {
			return protocol.Errorf(protocol.MsgInvalidParamType, reqErr.Param)
		}
		return protocol.ErrorResponse(protocol.MsgInvalidRequest)
	}

	switch {
	case req.Action.IsHeadlines():
		return s.handleHeadlines(ctx, req)
	case req.Action.IsSources():
		return s.handleSources(ctx, req)
	default:
		s.logger.Warn().Str("action", string(req.Action)).Msg("unknown action")
		return protocol.ErrorResponse(protocol.MsgUnknownAction)
	}
}

func (s *Session) close() {
	s.state = StateClosed
	s.headlines = nil
	s.sources = nil
}

func (s *Session) persist(ctx context.Context, action protocol.ActionName, raw []byte) {
	key := store.Key{Username: s.username, Action: string(action)}
	if err := s.persister.Persist(ctx, key, raw); err != nil {
		backend := "unknown"
		if b, ok := s.persister.(interface{ Backend() string }); ok {
			backend = b.Backend()
		}
		observability.RecordPersistFailure(backend)
		s.logger.Warn().Err(err).Str("action", string(action)).Msg("persist raw response failed")
	}
}

func (s *Session) upstreamFailure(action protocol.ActionName, err error) protocol.Response {
	s.logger.Error().Err(err).Str("action", string(action)).Msg("upstream fetch failed")
	return protocol.ErrorResponse(protocol.MsgUpstreamFailed)
}

// parseIndex resolves a 1-based index param against a cache of length n.
func parseIndex(req protocol.Request, n int) (int, *protocol.Response) {
	raw, _ := req.Param(protocol.ParamIndex)
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		resp := protocol.ErrorResponse(protocol.MsgInvalidIndexFormat)
		return 0, &resp
	}
	if idx < 1 || idx > n {
		resp := protocol.ErrorResponse(protocol.MsgIndexOutOfRange)
		return 0, &resp
	}
	return idx - 1, nil
}

func actionLabel(a protocol.ActionName) string {
	for _, known := range protocol.Actions {
		if a == known {
			return string(a)
		}
	}
	switch {
	case a.IsHeadlines():
		return "headlines_other"
	case a.IsSources():
		return "sources_other"
	default:
		return "unknown"
	}
}
