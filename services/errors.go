package services

import "errors"

// Expected, recoverable conditions. Handlers map these to HTTP statuses;
// nothing in this package turns them into panics or retries.
var (
	// ErrNotFound is returned for an unknown PIN, session, participant,
	// question or quiz.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState rejects a command that is illegal for the session's
	// current status or sub-phase. The command has no effect.
	ErrInvalidState = errors.New("invalid session state for this action")
	// ErrForbidden rejects a host-only command from a non-host identity.
	ErrForbidden = errors.New("only the session host may do this")
	// ErrNicknameTaken rejects a join whose nickname is already used
	// (case-insensitively) in the session.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrAlreadyAnswered rejects a second submission for the same question.
	ErrAlreadyAnswered = errors.New("answer already submitted for this question")
	// ErrTooLate rejects a submission past the question deadline.
	ErrTooLate = errors.New("submission arrived after the question closed")
	// ErrWrongQuestion rejects a submission targeting a question that is
	// not the currently open one.
	ErrWrongQuestion = errors.New("submission targets a question that is not open")
	// ErrPinExhausted means PIN generation could not find a free PIN
	// within its retry budget.
	ErrPinExhausted = errors.New("no free session PIN available")
	// ErrBadSelection rejects a malformed option selection.
	ErrBadSelection = errors.New("invalid option selection")
)
