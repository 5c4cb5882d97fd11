package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"orchidaquiz/models"
)

// memStore is a thread-safe in-memory Store for tests.
type memStore struct {
	mu           sync.Mutex
	quizzes      map[uint]*models.Quiz
	sessions     map[string]models.QuizSession
	participants map[string]models.Participant
	responses    map[string]models.Response
}

func newMemStore(quizzes ...*models.Quiz) *memStore {
	s := &memStore{
		quizzes:      make(map[uint]*models.Quiz),
		sessions:     make(map[string]models.QuizSession),
		participants: make(map[string]models.Participant),
		responses:    make(map[string]models.Response),
	}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q
	}
	return s
}

func (s *memStore) LoadQuiz(_ context.Context, quizID uint) (*models.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, ErrNotFound
	}
	return quiz, nil
}

func (s *memStore) CreateSession(_ context.Context, session *models.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *memStore) SaveSession(_ context.Context, session *models.QuizSession) error {
	return s.CreateSession(context.Background(), session)
}

func (s *memStore) CreateParticipant(_ context.Context, participant *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[participant.ID] = *participant
	return nil
}

func (s *memStore) SaveParticipant(_ context.Context, participant *models.Participant) error {
	return s.CreateParticipant(context.Background(), participant)
}

func (s *memStore) CreateResponse(_ context.Context, response *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[response.ID] = *response
	return nil
}

func (s *memStore) SaveResponse(_ context.Context, response *models.Response) error {
	return s.CreateResponse(context.Background(), response)
}

// chanPublisher exposes published events on a channel so tests can
// assert on delivery order.
type chanPublisher struct {
	ch chan Event
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{ch: make(chan Event, 64)}
}

func (p *chanPublisher) Publish(_ string, eventType string, payload interface{}) {
	p.ch <- Event{Type: eventType, Payload: payload}
}

func (p *chanPublisher) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-p.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func (p *chanPublisher) expect(t *testing.T, eventType string) Event {
	t.Helper()
	ev := p.next(t)
	if ev.Type != eventType {
		t.Fatalf("expected event %s, got %s", eventType, ev.Type)
	}
	return ev
}

// fakeClock is a manually advanced clock for deterministic elapsed-time
// measurements.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func sampleQuiz() *models.Quiz {
	return &models.Quiz{
		ID:    1,
		Title: "Capitals",
		Questions: []models.Question{
			{
				ID: 10, QuizID: 1, Type: "single_choice", Text: "Capital of France?", TimeLimit: 30, Order: 1,
				Options: []models.Option{
					{ID: 101, QuestionID: 10, Text: "Paris", IsCorrect: true, Order: 1},
					{ID: 102, QuestionID: 10, Text: "Lyon", Order: 2},
				},
			},
			{
				ID: 20, QuizID: 1, Type: "single_choice", Text: "Capital of Egypt?", TimeLimit: 20, Order: 2,
				Options: []models.Option{
					{ID: 201, QuestionID: 20, Text: "Cairo", IsCorrect: true, Order: 1},
					{ID: 202, QuestionID: 20, Text: "Giza", Order: 2},
				},
			},
			{
				ID: 30, QuizID: 1, Type: "multi_choice", Text: "Nile countries?", TimeLimit: 30, Order: 3,
				Options: []models.Option{
					{ID: 301, QuestionID: 30, Text: "Egypt", IsCorrect: true, Order: 1},
					{ID: 302, QuestionID: 30, Text: "Sudan", IsCorrect: true, Order: 2},
					{ID: 303, QuestionID: 30, Text: "Morocco", Order: 3},
				},
			},
		},
	}
}

type testSessionEnv struct {
	session *Session
	store   *memStore
	pub     *chanPublisher
	clock   *fakeClock
}

func newTestSession(t *testing.T) *testSessionEnv {
	t.Helper()
	store := newMemStore(sampleQuiz())
	pub := newChanPublisher()
	clock := newFakeClock()
	session := newSession("sess-1", "123456", 1, sampleQuiz(), sessionConfig{
		store:     store,
		publisher: pub,
		grace:     500 * time.Millisecond,
		now:       clock.Now,
	})
	return &testSessionEnv{session: session, store: store, pub: pub, clock: clock}
}

func (e *testSessionEnv) host() Identity { return Identity{UserID: 1, Role: "host"} }

func (e *testSessionEnv) mustJoin(t *testing.T, nickname string) *models.Participant {
	t.Helper()
	participant, err := e.session.Join(context.Background(), nickname, nil)
	if err != nil {
		t.Fatalf("join %s: %v", nickname, err)
	}
	e.pub.expect(t, EventPlayerJoined)
	return participant
}

func (e *testSessionEnv) mustCommand(t *testing.T, command string) {
	t.Helper()
	if err := e.session.Command(context.Background(), e.host(), command); err != nil {
		t.Fatalf("command %s: %v", command, err)
	}
}
