package lobby

import (
	"errors"
	"fmt"

	"github.com/mushi-tcg/mushi-server-go/internal/catalog"
	"github.com/mushi-tcg/mushi-server-go/internal/deck"
	"github.com/mushi-tcg/mushi-server-go/internal/game"
	"github.com/mushi-tcg/mushi-server-go/internal/repository"
)

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchStarted   = errors.New("match already started")
	ErrMatchFull      = errors.New("match is full")
	ErrMatchEnded     = errors.New("match already ended")
	ErrNotInMatch     = errors.New("not a player in this match")
	ErrAlreadyInMatch = errors.New("already playing in another match")
	ErrNoDeckStore    = errors.New("saved decks are not available")
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Error codes sent to clients besides the game.ErrorCode values.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeGameNotFound   = "GAME_NOT_FOUND"
	CodeGameStarted    = "GAME_ALREADY_STARTED"
	CodeGameFull       = "GAME_FULL"
	CodeGameEnded      = "GAME_ENDED"
	CodeNotInGame      = "NOT_IN_GAME"
	CodeAlreadyInGame  = "ALREADY_IN_GAME"
	CodeDeckNotFound   = "DECK_NOT_FOUND"
	CodeInternal       = "INTERNAL"
)

var actionMessages = map[game.ErrorCode]string{
	game.ErrInvalidAction:    "invalid action",
	game.ErrNotYourTurn:      "it is not your turn",
	game.ErrInsufficientFood: "not enough food",
	game.ErrCardNotFound:     "card not found",
	game.ErrInvalidTarget:    "invalid target",
}

// ErrorFor turns a service error into the payload sent to the client.
func ErrorFor(err error) ErrorPayload {
	var (
		actionErr *game.ActionError
		deckErr   *catalog.InvalidDeckError
		valErr    *ValidationError
	)
	switch {
	case errors.As(err, &actionErr):
		return ErrorPayload{Code: string(actionErr.Code), Message: actionMessages[actionErr.Code]}
	case errors.As(err, &deckErr):
		return ErrorPayload{Code: string(game.ErrInvalidDeck), Message: deckErr.Reason}
	case errors.As(err, &valErr):
		return ErrorPayload{Code: CodeInvalidRequest, Message: valErr.Error()}
	case errors.Is(err, ErrMatchNotFound):
		return ErrorPayload{Code: CodeGameNotFound, Message: err.Error()}
	case errors.Is(err, ErrMatchStarted):
		return ErrorPayload{Code: CodeGameStarted, Message: err.Error()}
	case errors.Is(err, ErrMatchFull):
		return ErrorPayload{Code: CodeGameFull, Message: err.Error()}
	case errors.Is(err, ErrMatchEnded):
		return ErrorPayload{Code: CodeGameEnded, Message: err.Error()}
	case errors.Is(err, ErrNotInMatch):
		return ErrorPayload{Code: CodeNotInGame, Message: err.Error()}
	case errors.Is(err, ErrAlreadyInMatch):
		return ErrorPayload{Code: CodeAlreadyInGame, Message: err.Error()}
	case errors.Is(err, repository.ErrDeckNotFound):
		return ErrorPayload{Code: CodeDeckNotFound, Message: err.Error()}
	case errors.Is(err, deck.ErrInvalidName), errors.Is(err, ErrNoDeckStore):
		return ErrorPayload{Code: CodeInvalidRequest, Message: err.Error()}
	default:
		return ErrorPayload{Code: CodeInternal, Message: "internal error"}
	}
}
