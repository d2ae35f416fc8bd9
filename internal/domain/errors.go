package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrState        = errors.New("invalid state")
)

var (
	// ErrGameNotFound is returned when no live session has the requested code.
	ErrGameNotFound = fmt.Errorf("%w: game not found", ErrNotFound)
	// ErrParticipantNotFound is returned when a participant id is unknown to the game.
	ErrParticipantNotFound = fmt.Errorf("%w: participant not found", ErrNotFound)
	// ErrQuestionNotFound indicates a submitted question id is not part of the game.
	ErrQuestionNotFound = fmt.Errorf("%w: question not found", ErrNotFound)

	ErrNameTaken       = fmt.Errorf("%w: name already taken in this game", ErrConflict)
	ErrAlreadyAnswered = fmt.Errorf("%w: question already answered", ErrConflict)
	ErrAlreadyStarted  = fmt.Errorf("%w: game already started", ErrConflict)
	ErrDuplicateOrder  = fmt.Errorf("%w: question order already used", ErrConflict)
	ErrCodeExhausted   = fmt.Errorf("%w: could not allocate a free game code", ErrConflict)

	ErrNotOwner = fmt.Errorf("%w: only the organizer who created the game may do this", ErrUnauthorized)

	ErrJoinClosed         = fmt.Errorf("%w: game is no longer accepting participants", ErrState)
	ErrQuestionsLocked    = fmt.Errorf("%w: questions cannot change once the game has started", ErrState)
	ErrNotInProgress      = fmt.Errorf("%w: game is not in progress", ErrState)
	ErrNotCurrentQuestion = fmt.Errorf("%w: question is not the current question", ErrState)

	ErrNoQuestions = fmt.Errorf("%w: game has no questions", ErrValidation)
)

// Validationf builds a validation error with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// KindOf reports the machine-readable kind of err, or "internal" when it carries none.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrState):
		return "state_error"
	default:
		return "internal"
	}
}
