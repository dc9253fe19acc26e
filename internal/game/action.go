package game

import (
	"errors"
	"fmt"
	"strings"
)

// ActionType is the kind of move a player submits.
type ActionType string

const (
	ActionPlayCard     ActionType = "PLAY_CARD"
	ActionAttack       ActionType = "ATTACK"
	ActionSetFood      ActionType = "SET_FOOD"
	ActionSkipSetPhase ActionType = "SKIP_SET_PHASE"
	ActionUseTechnique ActionType = "USE_TECHNIQUE"
	ActionEndTurn      ActionType = "END_TURN"
	ActionSurrender    ActionType = "SURRENDER"
)

var knownActions = map[ActionType]bool{
	ActionPlayCard:     true,
	ActionAttack:       true,
	ActionSetFood:      true,
	ActionSkipSetPhase: true,
	ActionUseTechnique: true,
	ActionEndTurn:      true,
	ActionSurrender:    true,
}

// ParseActionType normalizes an action name; unknown names are returned as-is
// and rejected later by ProcessAction.
func ParseActionType(s string) ActionType {
	return ActionType(strings.ToUpper(strings.TrimSpace(s)))
}

// Known reports whether t is a recognized action kind.
func (t ActionType) Known() bool {
	return knownActions[t]
}

// Action is a move request from a player.
type Action struct {
	PlayerID       string     `json:"playerId"`
	Type           ActionType `json:"type"`
	CardID         string     `json:"cardId,omitempty"`
	TargetID       string     `json:"targetId,omitempty"`
	TechniqueIndex *int       `json:"techniqueIndex,omitempty"`
}

// Technique returns the requested technique index, defaulting to 0.
func (a Action) Technique() int {
	if a.TechniqueIndex == nil {
		return 0
	}
	return *a.TechniqueIndex
}

func (a Action) clone() *Action {
	c := a
	if a.TechniqueIndex != nil {
		idx := *a.TechniqueIndex
		c.TechniqueIndex = &idx
	}
	return &c
}

// ErrorCode is the symbolic reason an action was rejected.
type ErrorCode string

const (
	ErrInvalidAction    ErrorCode = "INVALID_ACTION"
	ErrNotYourTurn      ErrorCode = "NOT_YOUR_TURN"
	ErrInsufficientFood ErrorCode = "INSUFFICIENT_FOOD"
	ErrCardNotFound     ErrorCode = "CARD_NOT_FOUND"
	ErrInvalidTarget    ErrorCode = "INVALID_TARGET"
	ErrInvalidDeck      ErrorCode = "INVALID_DECK"
)

// ActionError is returned by ProcessAction for a rejected move. The match is
// left untouched.
type ActionError struct {
	Code   ErrorCode
	Action ActionType
}

func (e *ActionError) Error() string {
	if e.Action == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Code)
}

func reject(code ErrorCode, action ActionType) error {
	return &ActionError{Code: code, Action: action}
}

// Code extracts the error code from err, or "" when err is not an ActionError.
func Code(err error) ErrorCode {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Code
	}
	return ""
}
