// Package streamservice implements the Streaming Service (spec section
// 4.6): the Schedule bidirectional RPC and HealthProbe, bearer-token
// authentication, best-effort usage counting, and per-subject rate
// limiting.
package streamservice

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fieldz/scheduler-engine/internal/engine"
	"github.com/fieldz/scheduler-engine/pkg/auth"
	schederrors "github.com/fieldz/scheduler-engine/pkg/errors"
	"github.com/fieldz/scheduler-engine/pkg/logging"
	"github.com/fieldz/scheduler-engine/pkg/streaming"
)

// MinRequestInterval is the minimum gap a subject must observe between
// schedule requests (spec section 4.6).
const MinRequestInterval = 30 * time.Second

// HealthState mirrors the three-valued HealthProbe result.
type HealthState string

const (
	HealthServing    HealthState = "SERVING"
	HealthNotServing HealthState = "NOT_SERVING"
	HealthUnknown    HealthState = "UNKNOWN"
)

// UsageHook is the opaque usage-metering sink the service increments on
// first successful call validation (spec section 4.6; treated as an
// external collaborator per spec section 1).
type UsageHook interface {
	Increment(ctx context.Context, subject string) error
}

// NoOpUsageHook discards usage increments; useful for local/dev servers.
type NoOpUsageHook struct{}

func (NoOpUsageHook) Increment(ctx context.Context, subject string) error { return nil }

// Service implements the Schedule stream handler and health probe.
type Service struct {
	validator *auth.Validator
	usage     UsageHook
	logger    logging.Logger

	mu       sync.Mutex
	lastCall map[string]time.Time

	healthy func() HealthState
}

// NewService wires a validator and usage hook. healthFn, when non-nil, is
// consulted by HealthProbe; nil means always Serving.
func NewService(validator *auth.Validator, usage UsageHook, logger logging.Logger, healthFn func() HealthState) *Service {
	if usage == nil {
		usage = NoOpUsageHook{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Service{
		validator: validator,
		usage:     usage,
		logger:    logger,
		lastCall:  make(map[string]time.Time),
		healthy:   healthFn,
	}
}

// HealthProbe reports this instance's serving state (spec section 4.6,
// 2-second timeout is the caller's responsibility via ctx).
func (s *Service) HealthProbe(ctx context.Context) HealthState {
	if s.healthy == nil {
		return HealthServing
	}
	return s.healthy()
}

// HandleSchedule services one upgraded websocket connection as the
// Schedule RPC: validates the bearer token once, then loops reading
// ScheduledInput messages and writing ScheduledOutput (or error)
// messages until the peer closes the stream.
func (s *Service) HandleSchedule(ctx context.Context, conn *streaming.Conn, bearerToken string) error {
	claims, err := s.validator.Validate(ctx, bearerToken)
	if err != nil {
		return conn.WriteError(schederrors.WrapError(err).Error())
	}

	if err := s.checkRateLimit(claims.Subject); err != nil {
		return conn.WriteError(err.Error())
	}

	if err := s.usage.Increment(ctx, claims.Subject); err != nil {
		s.logger.Warn("usage hook increment failed", "subject", claims.Subject, "error", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, streaming.StreamDeadline)
	defer cancel()
	go conn.KeepAlive(streamCtx)

	for {
		select {
		case <-streamCtx.Done():
			return conn.WriteError(schederrors.DeadlineExceeded().Error())
		default:
		}

		msg, err := conn.ReadMessage()
		if err != nil {
			return nil // peer closed the stream
		}
		if msg.Type != streaming.MessageTypeInput || msg.Input == nil {
			continue
		}

		result := engine.Run(*msg.Input)
		if result.Err != nil {
			if werr := conn.WriteError(result.Err.Error()); werr != nil {
				return werr
			}
			continue
		}

		for _, d := range result.Diagnostics {
			if d.Warning == nil {
				continue
			}
			s.logger.Warn("unplaced pairs", "unique_id", d.Warning.UniqueID, "count", d.Warning.Count)
			if err := conn.WriteDiagnostic(d.Warning.UniqueID, d.Warning.Count); err != nil {
				return err
			}
		}

		if err := conn.WriteOutput(result.Output); err != nil {
			return err
		}
	}
}

// checkRateLimit enforces MinRequestInterval per subject.
func (s *Service) checkRateLimit(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if last, ok := s.lastCall[subject]; ok && now.Sub(last) < MinRequestInterval {
		return schederrors.ResourceExhausted(subject)
	}
	s.lastCall[subject] = now
	return nil
}

// ServeHTTP upgrades the request to a websocket and dispatches to
// HandleSchedule, extracting the bearer token from the Authorization
// header (spec section 4.6: "every call carries a bearer token in
// request metadata").
func (s *Service) ServeHTTP(upgrader *streaming.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerFromHeader(r.Header.Get("Authorization"))
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		ws, err := upgrader.Upgrade(w, r)
		if err != nil {
			s.logger.Error("websocket upgrade failed", "error", err)
			return
		}
		conn := streaming.NewConn(ws, s.logger)
		defer conn.Close()

		if err := s.HandleSchedule(r.Context(), conn, token); err != nil {
			s.logger.Warn("schedule stream ended with error", "error", err)
		}
	}
}

func bearerFromHeader(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
