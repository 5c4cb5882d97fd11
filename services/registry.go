package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"orchidaquiz/models"

	"github.com/google/uuid"
)

// QuizLoader provides quiz definitions to the registry. In production it
// is the TTL cache in front of the store; tests plug in a static loader.
type QuizLoader interface {
	GetQuiz(ctx context.Context, quizID uint) (*models.Quiz, error)
}

// SessionOptions are host-chosen settings for one run.
type SessionOptions struct {
	// TimeLimitOverride, when set, replaces every question's own timer
	// (seconds).
	TimeLimitOverride *int `json:"time_limit_override,omitempty"`
}

// Registry creates live sessions and resolves PINs to them. A PIN is
// unique among sessions that have not finished; it returns to the pool
// the moment its session reaches the terminal status. The PIN map is the
// only process-wide mutable state, and every mutation is atomic with
// respect to lookups.
type Registry struct {
	mu       sync.RWMutex
	byPin    map[string]*Session
	quizzes  QuizLoader
	store    Store
	cfg      RegistryConfig
	randomID func() (string, error)
}

type RegistryConfig struct {
	Publisher   Publisher
	Snapshots   SnapshotSaver
	AnswerGrace time.Duration
	PinAttempts int
	Now         func() time.Time
}

func NewRegistry(store Store, quizzes QuizLoader, cfg RegistryConfig) *Registry {
	if cfg.PinAttempts <= 0 {
		cfg.PinAttempts = 100
	}
	if cfg.AnswerGrace <= 0 {
		cfg.AnswerGrace = 500 * time.Millisecond
	}
	return &Registry{
		byPin:    make(map[string]*Session),
		quizzes:  quizzes,
		store:    store,
		cfg:      cfg,
		randomID: randomPin,
	}
}

// Create validates the quiz, allocates a free PIN and registers a new
// waiting session owned by the host.
func (r *Registry) Create(ctx context.Context, hostID, quizID uint, opts SessionOptions) (*Session, error) {
	quiz, err := r.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("quiz %d has no questions: %w", quizID, ErrInvalidState)
	}

	// Bind a PIN under the map lock so a racing Create can never pick
	// the same one.
	r.mu.Lock()
	pin, err := r.allocatePinLocked()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	session := newSession(uuid.NewString(), pin, hostID, quiz, sessionConfig{
		store:         r.store,
		publisher:     r.cfg.Publisher,
		snapshots:     r.cfg.Snapshots,
		grace:         r.cfg.AnswerGrace,
		now:           r.cfg.Now,
		onFinish:      r.release,
		limitOverride: opts.TimeLimitOverride,
	})
	r.byPin[pin] = session
	r.mu.Unlock()

	session.mu.Lock()
	row := session.rowLocked()
	session.mu.Unlock()
	if err := r.store.CreateSession(ctx, &row); err != nil {
		r.mu.Lock()
		delete(r.byPin, pin)
		r.mu.Unlock()
		return nil, fmt.Errorf("create session: %w", err)
	}
	if r.cfg.Snapshots != nil {
		r.cfg.Snapshots.Save(session.Status())
	}
	return session, nil
}

func (r *Registry) allocatePinLocked() (string, error) {
	for attempt := 0; attempt < r.cfg.PinAttempts; attempt++ {
		pin, err := r.randomID()
		if err != nil {
			return "", fmt.Errorf("generate pin: %w", err)
		}
		if _, taken := r.byPin[pin]; !taken {
			return pin, nil
		}
	}
	return "", ErrPinExhausted
}

// LookupByPIN resolves a PIN to its live session.
func (r *Registry) LookupByPIN(pin string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.byPin[pin]
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

// release frees a finished session's PIN for reuse.
func (r *Registry) release(session *Session) {
	r.mu.Lock()
	if current, ok := r.byPin[session.pin]; ok && current == session {
		delete(r.byPin, session.pin)
	}
	r.mu.Unlock()
	log.Printf("Session %s finished, PIN released", session.pin)
}

// randomPin draws a uniformly random 6-digit numeric PIN.
func randomPin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
