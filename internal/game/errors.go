package game

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by this package wraps exactly one of
// them, so callers classify failures with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrCapacity      = errors.New("capacity error")
	ErrState         = errors.New("state error")
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
)

var (
	ErrInvalidName        = fmt.Errorf("%w: invalid player name", ErrValidation)
	ErrInvalidSessionCode = fmt.Errorf("%w: invalid session code", ErrValidation)
	ErrInvalidRules       = fmt.Errorf("%w: invalid rules", ErrValidation)

	ErrSessionFull = fmt.Errorf("%w: session is full", ErrCapacity)

	ErrWrongPhase       = fmt.Errorf("%w: invalid phase for action", ErrState)
	ErrGameOver         = fmt.Errorf("%w: game is over", ErrState)
	ErrAlreadyStarted   = fmt.Errorf("%w: game already in progress", ErrState)
	ErrNotEnoughPlayers = fmt.Errorf("%w: not enough players", ErrState)

	ErrNotJudge          = fmt.Errorf("%w: only the judge can do that", ErrAuthorization)
	ErrJudgeCannotAnswer = fmt.Errorf("%w: the judge cannot submit an answer", ErrAuthorization)

	ErrSessionNotFound    = fmt.Errorf("%w: session not found", ErrNotFound)
	ErrPlayerNotFound     = fmt.Errorf("%w: player not found", ErrNotFound)
	ErrCardNotFound       = fmt.Errorf("%w: card not in hand", ErrNotFound)
	ErrSubmissionNotFound = fmt.Errorf("%w: no submission for that player", ErrNotFound)
)
