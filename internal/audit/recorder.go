// Package audit records authentication attempts. Recording never fails
// from the caller's point of view: every sink error is logged and counted.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/metrics"
)

const RoutingKeyAttempt = "auth.attempt.recorded"

// Store is the append-only persistent trail.
type Store interface {
	Insert(ctx context.Context, a domain.AuthAttempt) error
}

// Publisher ships attempt events to the broker.
type Publisher interface {
	PublishAttempt(ctx context.Context, evt AttemptEvent) error
}

// AttemptEvent is the broker payload. It carries no evidence and no
// identifier, only what downstream risk scoring needs.
type AttemptEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId,omitempty"`
	Method     string    `json:"method"`
	Modality   string    `json:"modality,omitempty"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	Score      *float64  `json:"score,omitempty"`
	Threshold  *float64  `json:"threshold,omitempty"`
	LatencyMS  int64     `json:"latencyMs"`
	IP         string    `json:"ip,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func EventOf(a domain.AuthAttempt) AttemptEvent {
	return AttemptEvent{
		ID:         a.ID,
		UserID:     a.UserID,
		Method:     string(a.Method),
		Modality:   string(a.Modality),
		Outcome:    string(a.Outcome),
		Reason:     a.Reason,
		Score:      a.Score,
		Threshold:  a.Threshold,
		LatencyMS:  a.Latency.Milliseconds(),
		IP:         a.IP,
		RequestID:  a.RequestID,
		OccurredAt: a.CreatedAt,
	}
}

type Recorder struct {
	store   Store
	pub     Publisher
	log     *Logger
	errLog  zerolog.Logger
	timeout time.Duration

	now   func() time.Time
	newID func() string
}

// NewRecorder wires the sinks. store and pub may be nil.
func NewRecorder(store Store, pub Publisher, lg zerolog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		pub:     pub,
		log:     New(lg),
		errLog:  lg,
		timeout: 2 * time.Second,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (r *Recorder) Logger() *Logger { return r.log }

// Record persists, logs, publishes and counts one attempt.
func (r *Recorder) Record(ctx context.Context, a domain.AuthAttempt) {
	if a.ID == "" {
		a.ID = r.newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}

	// Sinks outlive a cancelled request; the attempt already happened.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.Insert(sinkCtx, a); err != nil {
			r.fail(ctx, "store", a, err)
		}
	}
	r.log.Attempt(ctx, a)
	metrics.ObserveAttempt(a)

	if r.pub != nil {
		if err := r.pub.PublishAttempt(sinkCtx, EventOf(a)); err != nil {
			r.fail(ctx, "broker", a, err)
		}
	}
}

func (r *Recorder) fail(ctx context.Context, sink string, a domain.AuthAttempt, err error) {
	metrics.AuditFailure(sink)
	r.errLog.Error().
		Err(err).
		Str("sink", sink).
		Str("attempt_id", a.ID).
		Str("request_id", requestID(ctx, a)).
		Msg("audit sink failed")
}
