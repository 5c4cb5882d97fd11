package services

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"orchidaquiz/models"

	"github.com/google/uuid"
)

// Host commands accepted by Session.Command.
const (
	CommandStart           = "start"
	CommandAdvance         = "advance"
	CommandCloseQuestion   = "close-question"
	CommandShowLeaderboard = "show-leaderboard"
	CommandFinish          = "finish"
)

// Identity is the caller as established by the auth layer. The engine
// only ever asks one question of it: is this the session host (or an
// admin)?
type Identity struct {
	UserID uint
	Role   string
}

// Session is one live run of a quiz. All mutable state - status,
// sub-phase, roster, response set - lives behind one mutex, so a join
// racing a question transition or a submission racing a close are
// serialized. Event payloads are built under the lock and published from
// a per-session goroutine, which keeps subscriber-observed order equal
// to commit order without doing network I/O inside the critical section.
type Session struct {
	id            string
	pin           string
	hostID        uint
	quiz          *models.Quiz
	limitOverride *int

	mu        sync.Mutex
	status    string
	phase     string
	current   int // index into quiz.Questions, -1 before the first open
	openedAt  time.Time
	startedAt *time.Time
	endedAt   *time.Time

	participants map[string]*models.Participant
	nicknames    map[string]string // lowercased nickname -> participant id
	joinSeq      int

	responses map[uint]map[string]*models.Response // question id -> participant id

	timerGen   int
	closeTimer *time.Timer

	store     Store
	publisher Publisher
	snapshots SnapshotSaver
	grace     time.Duration
	now       func() time.Time
	onFinish  func(*Session)

	events chan Event
	done   chan struct{}
}

// SnapshotSaver receives read-only status snapshots after each committed
// transition so clients can reconcile once the live session is gone.
type SnapshotSaver interface {
	Save(status SessionStatus)
}

type sessionConfig struct {
	store         Store
	publisher     Publisher
	snapshots     SnapshotSaver
	grace         time.Duration
	now           func() time.Time
	onFinish      func(*Session)
	limitOverride *int
}

func newSession(id, pin string, hostID uint, quiz *models.Quiz, cfg sessionConfig) *Session {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	s := &Session{
		id:            id,
		pin:           pin,
		hostID:        hostID,
		quiz:          quiz,
		limitOverride: cfg.limitOverride,
		status:        models.StatusWaiting,
		current:       -1,
		participants:  make(map[string]*models.Participant),
		nicknames:     make(map[string]string),
		responses:     make(map[uint]map[string]*models.Response),
		store:         cfg.store,
		publisher:     cfg.publisher,
		snapshots:     cfg.snapshots,
		grace:         cfg.grace,
		now:           cfg.now,
		onFinish:      cfg.onFinish,
		events:        make(chan Event, 64),
		done:          make(chan struct{}),
	}
	go s.publishLoop()
	return s
}

func (s *Session) ID() string   { return s.id }
func (s *Session) PIN() string  { return s.pin }
func (s *Session) HostID() uint { return s.hostID }

func (s *Session) publishLoop() {
	for ev := range s.events {
		if s.publisher != nil {
			s.publisher.Publish(s.pin, ev.Type, ev.Payload)
		}
	}
	close(s.done)
}

// emitLocked queues an event for publishing. Dropping on a full queue is
// acceptable: delivery is best-effort and clients reconcile by polling
// status, but order of what is delivered always matches commit order.
func (s *Session) emitLocked(eventType string, payload interface{}) {
	select {
	case s.events <- Event{Type: eventType, Payload: payload}:
	default:
		log.Printf("Session %s: event queue full, dropping %s", s.pin, eventType)
	}
}

// Join adds a participant. Allowed while waiting or in progress; a late
// joiner starts at zero score and catches up from the current question.
func (s *Session) Join(ctx context.Context, nickname string, userID *uint) (*models.Participant, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrBadSelection
	}

	s.mu.Lock()
	if s.status != models.StatusWaiting && s.status != models.StatusInProgress {
		s.mu.Unlock()
		return nil, ErrInvalidState
	}
	key := strings.ToLower(nickname)
	if _, taken := s.nicknames[key]; taken {
		s.mu.Unlock()
		return nil, ErrNicknameTaken
	}
	s.joinSeq++
	participant := &models.Participant{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Nickname:  nickname,
		UserID:    userID,
		Score:     0,
		JoinOrder: s.joinSeq,
		Connected: true,
		JoinedAt:  s.now(),
	}
	s.participants[participant.ID] = participant
	s.nicknames[key] = participant.ID
	joined := *participant
	s.emitLocked(EventPlayerJoined, map[string]interface{}{
		"participant_id": participant.ID,
		"nickname":       participant.Nickname,
		"player_count":   len(s.participants),
	})
	s.mu.Unlock()

	if err := s.store.CreateParticipant(ctx, &joined); err != nil {
		log.Printf("Session %s: failed to persist participant %s: %v", s.pin, joined.ID, err)
	}
	return &joined, nil
}

// MarkDisconnected flags a participant as disconnected. Idempotent;
// score and history stay intact.
func (s *Session) MarkDisconnected(participantID string) {
	s.setConnected(participantID, false)
}

// MarkReconnected is the idempotent inverse of MarkDisconnected.
func (s *Session) MarkReconnected(participantID string) {
	s.setConnected(participantID, true)
}

func (s *Session) setConnected(participantID string, connected bool) {
	s.mu.Lock()
	participant, ok := s.participants[participantID]
	if !ok || participant.Connected == connected {
		s.mu.Unlock()
		return
	}
	participant.Connected = connected
	row := *participant
	s.mu.Unlock()

	if err := s.store.SaveParticipant(context.Background(), &row); err != nil {
		log.Printf("Session %s: failed to persist connection state for %s: %v", s.pin, participantID, err)
	}
}

// Participants returns the roster ordered by join time.
func (s *Session) Participants() []*models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

func (s *Session) rosterLocked() []*models.Participant {
	roster := make([]*models.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		clone := *p
		roster = append(roster, &clone)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].JoinOrder < roster[j].JoinOrder })
	return roster
}

// Leaderboard is derived from current participant state; it never
// mutates scores and can be computed at any time.
func (s *Session) Leaderboard() []LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderboardLocked()
}

func (s *Session) leaderboardLocked() []LeaderboardEntry {
	roster := make([]*models.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		roster = append(roster, p)
	}
	return rankParticipants(roster)
}

// Submit records an answer for the currently open question. The elapsed
// time is measured server-side from the question-open timestamp read
// under the same lock as the current-question identity; the client's own
// clock is never trusted. Acceptance does not award points - scoring
// runs once, at question close, over the full response set.
func (s *Session) Submit(ctx context.Context, participantID string, questionID uint, optionIDs []uint) (*models.Response, error) {
	s.mu.Lock()
	if s.status != models.StatusInProgress {
		s.mu.Unlock()
		return nil, ErrInvalidState
	}
	participant, ok := s.participants[participantID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	question := s.findQuestionLocked(questionID)
	if question == nil {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if s.current < 0 || s.quiz.Questions[s.current].ID != questionID {
		s.mu.Unlock()
		return nil, ErrWrongQuestion
	}
	if s.phase != models.PhaseQuestionOpen {
		s.mu.Unlock()
		return nil, ErrTooLate
	}
	elapsed := s.now().Sub(s.openedAt)
	limit := s.questionLimit(question)
	if elapsed > limit+s.grace {
		s.mu.Unlock()
		return nil, ErrTooLate
	}
	if _, dup := s.responses[questionID][participantID]; dup {
		s.mu.Unlock()
		return nil, ErrAlreadyAnswered
	}
	if err := validateSelection(question, optionIDs); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	response := &models.Response{
		ID:            uuid.NewString(),
		SessionID:     s.id,
		ParticipantID: participant.ID,
		QuestionID:    questionID,
		OptionIDs:     append(models.UintSlice{}, optionIDs...),
		ElapsedMs:     elapsed.Milliseconds(),
		CreatedAt:     s.now(),
	}
	if s.responses[questionID] == nil {
		s.responses[questionID] = make(map[string]*models.Response)
	}
	s.responses[questionID][participantID] = response
	accepted := *response
	s.mu.Unlock()

	if err := s.store.CreateResponse(ctx, &accepted); err != nil {
		log.Printf("Session %s: failed to persist response %s: %v", s.pin, accepted.ID, err)
	}
	return &accepted, nil
}

func validateSelection(question *models.Question, optionIDs []uint) error {
	if len(optionIDs) == 0 {
		return ErrBadSelection
	}
	if question.Type == "single_choice" && len(optionIDs) != 1 {
		return ErrBadSelection
	}
	valid := make(map[uint]bool, len(question.Options))
	for _, opt := range question.Options {
		valid[opt.ID] = true
	}
	seen := make(map[uint]bool, len(optionIDs))
	for _, id := range optionIDs {
		if !valid[id] || seen[id] {
			return ErrBadSelection
		}
		seen[id] = true
	}
	return nil
}

// Command dispatches a host command through the authorization gate and
// the transition table. A command illegal for the current state is
// rejected with ErrInvalidState and has no effect.
func (s *Session) Command(ctx context.Context, caller Identity, command string) error {
	s.mu.Lock()
	if caller.UserID != s.hostID && caller.Role != "admin" {
		s.mu.Unlock()
		return ErrForbidden
	}

	var err error
	switch command {
	case CommandStart:
		err = s.startLocked()
	case CommandAdvance:
		err = s.advanceLocked()
	case CommandCloseQuestion:
		if s.status != models.StatusInProgress || s.phase != models.PhaseQuestionOpen {
			err = ErrInvalidState
		} else {
			s.closeQuestionLocked()
		}
	case CommandShowLeaderboard:
		err = s.showLeaderboardLocked()
	case CommandFinish:
		err = s.finishLocked()
	default:
		err = ErrInvalidState
	}
	row := s.rowLocked()
	snapshot := s.statusLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.persistState(ctx, row, snapshot)
	return nil
}

func (s *Session) persistState(ctx context.Context, row models.QuizSession, snapshot SessionStatus) {
	if err := s.store.SaveSession(ctx, &row); err != nil {
		log.Printf("Session %s: failed to persist state: %v", s.pin, err)
	}
	if s.snapshots != nil {
		s.snapshots.Save(snapshot)
	}
	if row.Status == models.StatusFinished && s.onFinish != nil {
		s.onFinish(s)
		s.onFinish = nil
	}
}

func (s *Session) startLocked() error {
	if s.status != models.StatusWaiting {
		return ErrInvalidState
	}
	now := s.now()
	s.status = models.StatusInProgress
	s.startedAt = &now
	s.emitLocked(EventGameStarted, map[string]interface{}{
		"session_id":      s.id,
		"total_questions": len(s.quiz.Questions),
	})
	s.openQuestionLocked(0)
	return nil
}

func (s *Session) advanceLocked() error {
	if s.status != models.StatusInProgress {
		return ErrInvalidState
	}
	if s.phase != models.PhaseQuestionClosed && s.phase != models.PhaseLeaderboardShown {
		return ErrInvalidState
	}
	next := s.current + 1
	if next >= len(s.quiz.Questions) {
		return s.finishLocked()
	}
	s.openQuestionLocked(next)
	return nil
}

// openQuestionLocked updates the current-question pointer, the open
// timestamp and the sub-phase in one step, so no observer can see an
// open question paired with a stale timestamp.
func (s *Session) openQuestionLocked(index int) {
	question := &s.quiz.Questions[index]
	s.current = index
	s.phase = models.PhaseQuestionOpen
	s.openedAt = s.now()
	limit := s.questionLimit(question)

	s.timerGen++
	gen := s.timerGen
	if s.closeTimer != nil {
		s.closeTimer.Stop()
	}
	s.closeTimer = time.AfterFunc(limit, func() { s.autoClose(gen) })

	s.emitLocked(EventQuestionOpened, map[string]interface{}{
		"question_index":  index,
		"total_questions": len(s.quiz.Questions),
		"question":        questionView(question, int(limit.Seconds())),
		"ends_at":         s.openedAt.Add(limit),
	})
}

// autoClose fires on timer expiry. The generation check makes a callback
// that lost the race to a manual close (or to the next question opening)
// a no-op.
func (s *Session) autoClose(gen int) {
	s.mu.Lock()
	if s.timerGen != gen || s.status != models.StatusInProgress || s.phase != models.PhaseQuestionOpen {
		s.mu.Unlock()
		return
	}
	s.closeQuestionLocked()
	row := s.rowLocked()
	snapshot := s.statusLocked()
	s.mu.Unlock()

	s.persistState(context.Background(), row, snapshot)
}

// closeQuestionLocked stops accepting responses for the current question
// and runs scoring finalization over every accepted response. Closing
// with zero submissions is valid. Each participant's cumulative score is
// incremented exactly once per question.
func (s *Session) closeQuestionLocked() {
	s.timerGen++ // invalidate any pending auto-close
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
	s.phase = models.PhaseQuestionClosed

	question := &s.quiz.Questions[s.current]
	limitMs := s.questionLimit(question).Milliseconds()

	results := make([]map[string]interface{}, 0, len(s.responses[question.ID]))
	var scored []scoredRow
	for _, response := range s.responses[question.ID] {
		response.IsCorrect = selectionIsCorrect(question, response.OptionIDs)
		response.Points = calculatePoints(response.IsCorrect, response.ElapsedMs, limitMs)
		participant := s.participants[response.ParticipantID]
		participant.Score += response.Points
		participant.TotalElapsedMs += response.ElapsedMs

		scored = append(scored, scoredRow{response: *response, participant: *participant})
		results = append(results, map[string]interface{}{
			"participant_id": participant.ID,
			"nickname":       participant.Nickname,
			"option_ids":     response.OptionIDs,
			"is_correct":     response.IsCorrect,
			"points":         response.Points,
			"elapsed_ms":     response.ElapsedMs,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i]["participant_id"].(string) < results[j]["participant_id"].(string)
	})

	s.emitLocked(EventQuestionClosed, map[string]interface{}{
		"question_index": s.current,
		"question_id":    question.ID,
		"answer_count":   len(s.responses[question.ID]),
	})
	s.emitLocked(EventShowResults, map[string]interface{}{
		"question_index":     s.current,
		"question_id":        question.ID,
		"correct_option_ids": question.CorrectOptionIDs(),
		"results":            results,
	})

	go s.persistScores(scored)
}

type scoredRow struct {
	response    models.Response
	participant models.Participant
}

func (s *Session) persistScores(rows []scoredRow) {
	ctx := context.Background()
	for i := range rows {
		if err := s.store.SaveResponse(ctx, &rows[i].response); err != nil {
			log.Printf("Session %s: failed to persist scored response %s: %v", s.pin, rows[i].response.ID, err)
		}
		if err := s.store.SaveParticipant(ctx, &rows[i].participant); err != nil {
			log.Printf("Session %s: failed to persist score for %s: %v", s.pin, rows[i].participant.ID, err)
		}
	}
}

func (s *Session) showLeaderboardLocked() error {
	if s.status != models.StatusInProgress || s.phase != models.PhaseQuestionClosed {
		return ErrInvalidState
	}
	s.phase = models.PhaseLeaderboardShown
	s.emitLocked(EventShowLeaderboard, map[string]interface{}{
		"leaderboard": s.leaderboardLocked(),
	})
	return nil
}

// finishLocked moves the session to its terminal status. The current
// question is cleared and the session becomes immutable; the PIN is
// freed for reuse via the registry hook.
func (s *Session) finishLocked() error {
	if s.status != models.StatusInProgress {
		return ErrInvalidState
	}
	s.timerGen++
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
	now := s.now()
	s.status = models.StatusFinished
	s.phase = ""
	s.current = -1
	s.endedAt = &now
	s.emitLocked(EventGameFinished, map[string]interface{}{
		"final_leaderboard": s.leaderboardLocked(),
		"total_questions":   len(s.quiz.Questions),
	})
	close(s.events)
	return nil
}

func (s *Session) findQuestionLocked(questionID uint) *models.Question {
	for i := range s.quiz.Questions {
		if s.quiz.Questions[i].ID == questionID {
			return &s.quiz.Questions[i]
		}
	}
	return nil
}

func (s *Session) questionLimit(question *models.Question) time.Duration {
	seconds := question.TimeLimit
	if s.limitOverride != nil {
		seconds = *s.limitOverride
	}
	if seconds <= 0 {
		seconds = defaultTimeSec
	}
	return time.Duration(seconds) * time.Second
}

// rowLocked builds the persistence row for the current state.
func (s *Session) rowLocked() models.QuizSession {
	row := models.QuizSession{
		ID:                s.id,
		QuizID:            s.quiz.ID,
		HostID:            s.hostID,
		Pin:               s.pin,
		Status:            s.status,
		Phase:             s.phase,
		TimeLimitOverride: s.limitOverride,
		StartedAt:         s.startedAt,
		EndedAt:           s.endedAt,
	}
	if s.current >= 0 {
		id := s.quiz.Questions[s.current].ID
		row.CurrentQuestionID = &id
		opened := s.openedAt
		row.QuestionOpenedAt = &opened
	}
	return row
}
