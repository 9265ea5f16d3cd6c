package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/TGFaceSwapBot/internal/faceswap"
	"github.com/digkill/TGFaceSwapBot/internal/metrics"
	"github.com/digkill/TGFaceSwapBot/internal/models"
	"github.com/digkill/TGFaceSwapBot/internal/session"
)

type OutcomeKind string

const (
	OutcomeAwaitSecond  OutcomeKind = "await_second"
	OutcomeLimitReached OutcomeKind = "limit_reached"
	OutcomeSwapSuccess  OutcomeKind = "success"
	OutcomeSwapNoFace   OutcomeKind = "no_face"
	OutcomeSwapFailed   OutcomeKind = "failed"
)

// Outcome is what the transport should tell the user. Image is set only for OutcomeSwapSuccess.
type Outcome struct {
	Kind      OutcomeKind
	Image     []byte
	RequestID string
}

type QuotaLimiter interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

type Swapper interface {
	Swap(ctx context.Context, donor, recipient image.Image) (image.Image, error)
}

type SwapLogger interface {
	Log(ctx context.Context, requestID string, telegramID int64, outcome models.SwapOutcome) error
}

// SwapService turns incoming images into swap outcomes: quota check, pairing, swap.
type SwapService struct {
	log         *slog.Logger
	limiter     QuotaLimiter
	sessions    *session.Tracker
	swapper     Swapper
	swaps       SwapLogger
	jpegQuality int
	maxPixels   int64
	locks       *userLocks
}

func NewSwapService(log *slog.Logger, limiter QuotaLimiter, sessions *session.Tracker, swapper Swapper, swaps SwapLogger, jpegQuality int, maxPixels int64) *SwapService {
	return &SwapService{
		log:         log,
		limiter:     limiter,
		sessions:    sessions,
		swapper:     swapper,
		swaps:       swaps,
		jpegQuality: jpegQuality,
		maxPixels:   maxPixels,
		locks:       newUserLocks(),
	}
}

// OnImageReceived handles one image from a user. Events from the same user are serialized.
// A non-nil error means the usage ledger could not be consulted; everything else is
// reported through the outcome.
func (s *SwapService) OnImageReceived(ctx context.Context, userID int64, data []byte) (Outcome, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	allowed, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("check quota: %w", err)
	}
	if !allowed {
		// A half-collected pair is not kept waiting for tomorrow's quota.
		s.sessions.Discard(userID)
		s.record(OutcomeLimitReached)
		return Outcome{Kind: OutcomeLimitReached}, nil
	}

	state := s.sessions.AddImage(userID, data)
	if !state.Complete {
		s.record(OutcomeAwaitSecond)
		return Outcome{Kind: OutcomeAwaitSecond}, nil
	}

	requestID := uuid.NewString()
	start := time.Now()
	result, err := s.swap(ctx, state.Donor, state.Recipient)
	metrics.SwapDuration.Observe(time.Since(start).Seconds())

	outcome := Outcome{Kind: OutcomeSwapSuccess, Image: result, RequestID: requestID}
	switch {
	case err == nil:
	case errors.Is(err, faceswap.ErrNoFaceDetected):
		outcome = Outcome{Kind: OutcomeSwapNoFace, RequestID: requestID}
	default:
		s.log.Error("face swap failed", "user", userID, "request_id", requestID, "err", err)
		outcome = Outcome{Kind: OutcomeSwapFailed, RequestID: requestID}
	}

	s.record(outcome.Kind)
	s.logSwap(ctx, requestID, userID, outcome.Kind)
	return outcome, nil
}

// Pending reports whether the user has a first image waiting for its pair.
func (s *SwapService) Pending(userID int64) bool {
	return s.sessions.Pending(userID) > 0
}

// SweepSessions drops expired pending images.
func (s *SwapService) SweepSessions() int {
	removed := s.sessions.Sweep()
	metrics.PendingSessions.Set(float64(s.sessions.Active()))
	return removed
}

func (s *SwapService) swap(ctx context.Context, donorData, recipientData []byte) ([]byte, error) {
	donor, _, err := faceswap.DecodeLimited(donorData, s.maxPixels)
	if err != nil {
		return nil, fmt.Errorf("donor: %w", err)
	}
	recipient, _, err := faceswap.DecodeLimited(recipientData, s.maxPixels)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	composite, err := s.swapper.Swap(ctx, donor, recipient)
	if err != nil {
		return nil, err
	}
	return faceswap.EncodeJPEG(composite, s.jpegQuality)
}

func (s *SwapService) record(kind OutcomeKind) {
	metrics.SubmissionsTotal.WithLabelValues(string(kind)).Inc()
	metrics.PendingSessions.Set(float64(s.sessions.Active()))
}

func (s *SwapService) logSwap(ctx context.Context, requestID string, userID int64, kind OutcomeKind) {
	if s.swaps == nil {
		return
	}
	var outcome models.SwapOutcome
	switch kind {
	case OutcomeSwapSuccess:
		outcome = models.SwapOutcomeSuccess
	case OutcomeSwapNoFace:
		outcome = models.SwapOutcomeNoFace
	default:
		outcome = models.SwapOutcomeFailed
	}
	if err := s.swaps.Log(ctx, requestID, userID, outcome); err != nil {
		s.log.Error("failed to log swap", "request_id", requestID, "err", err)
	}
}

// userLocks hands out one mutex per user and forgets it once nobody holds or waits on it.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
