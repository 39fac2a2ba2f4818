package game

import (
	"fmt"
	"time"
)

// Rules are the externally supplied constants of a session. A zero phase
// duration disables the timer for that phase.
type Rules struct {
	MinPlayers       int           `json:"minPlayers"`
	MaxPlayers       int           `json:"maxPlayers"`
	HandSize         int           `json:"handSize"`
	WinPoints        int           `json:"winPoints"`
	JudgePickTime    time.Duration `json:"judgePickTime"`
	PlayersPickTime  time.Duration `json:"playersPickTime"`
	JudgeSelectTime  time.Duration `json:"judgeSelectTime"`
	RoundOverTime    time.Duration `json:"roundOverTime"`
	AnonymousJudging bool          `json:"anonymousJudging"`
}

func DefaultRules() Rules {
	return Rules{
		MinPlayers:      3,
		MaxPlayers:      8,
		HandSize:        5,
		WinPoints:       5,
		JudgePickTime:   20 * time.Second,
		PlayersPickTime: 60 * time.Second,
		JudgeSelectTime: 60 * time.Second,
	}
}

func (r Rules) Validate() error {
	switch {
	case r.MinPlayers < 2:
		return fmt.Errorf("%w: at least 2 players are needed, got %d", ErrInvalidRules, r.MinPlayers)
	case r.MaxPlayers < r.MinPlayers:
		return fmt.Errorf("%w: max players %d below min players %d", ErrInvalidRules, r.MaxPlayers, r.MinPlayers)
	case r.HandSize < 1:
		return fmt.Errorf("%w: hand size must be positive", ErrInvalidRules)
	case r.WinPoints < 1:
		return fmt.Errorf("%w: win points must be positive", ErrInvalidRules)
	case r.JudgePickTime < 0 || r.PlayersPickTime < 0 || r.JudgeSelectTime < 0 || r.RoundOverTime < 0:
		return fmt.Errorf("%w: negative phase duration", ErrInvalidRules)
	}
	return nil
}

// timeout returns the timer duration for phase p, 0 meaning no timer.
func (r Rules) timeout(p Phase) time.Duration {
	switch p {
	case PhaseJudgePick:
		return r.JudgePickTime
	case PhasePlayersPick:
		return r.PlayersPickTime
	case PhaseJudgeSelect:
		return r.JudgeSelectTime
	case PhaseRoundOver:
		return r.RoundOverTime
	}
	return 0
}
