package game

import (
	"time"

	"github.com/kiliankoe/promptparty/internal/cards"
)

type Phase string

const (
	PhaseLobby       Phase = "LOBBY"
	PhaseJudgePick   Phase = "JUDGE_PICK"
	PhasePlayersPick Phase = "PLAYERS_PICK"
	PhaseJudgeSelect Phase = "JUDGE_SELECT"
	PhaseRoundOver   Phase = "ROUND_OVER"
	PhaseGameEnd     Phase = "GAME_END"
)

type Role string

const (
	RoleJudge  Role = "JUDGE"
	RolePlayer Role = "PLAYER"
)

// Reasons a session reaches GAME_END.
const (
	ReasonWinThreshold        = "win threshold reached"
	ReasonInsufficientPlayers = "insufficient players"
	ReasonJudgeLeft           = "judge left"
)

// PublicPlayer is what every member of a session may see about a player.
type PublicPlayer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Points       int    `json:"points"`
	HasSubmitted bool   `json:"hasSubmitted"`
}

// PlayerView is a player's own record, hand included.
type PlayerView struct {
	PublicPlayer
	Hand []cards.Card `json:"hand"`
}

type SubmissionView struct {
	PlayerID string     `json:"playerId,omitempty"`
	Card     cards.Card `json:"card"`
}

type RoundView struct {
	Number         int              `json:"number"`
	JudgeID        string           `json:"judgeId"`
	Phase          Phase            `json:"phase"`
	PhaseStartedAt time.Time        `json:"phaseStartedAt"`
	Prompt         *cards.Card      `json:"prompt,omitempty"`
	Submissions    []SubmissionView `json:"submissions"`
	WinnerID       string           `json:"winnerId,omitempty"`
}

// State is the projection of a session for one player. Version grows with
// every change to the session, so clients can drop stale projections.
type State struct {
	SessionCode string         `json:"sessionCode"`
	Version     uint64         `json:"version"`
	Phase       Phase          `json:"phase"`
	RoundNumber int            `json:"roundNumber"`
	You         PlayerView     `json:"you"`
	Players     []PublicPlayer `json:"players"`
	Round       *RoundView     `json:"round,omitempty"`
	Deadline    *time.Time     `json:"deadline,omitempty"`
	EndReason   string         `json:"endReason,omitempty"`
}

type Standing struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type RoundSummary struct {
	Round      int        `json:"round"`
	WinnerID   string     `json:"winnerId"`
	WinnerName string     `json:"winnerName"`
	WinnerCard cards.Card `json:"winnerCard"`
	Prompt     cards.Card `json:"prompt"`
	Players    []Standing `json:"players"`
	Auto       bool       `json:"auto"`
}

type GameSummary struct {
	Reason  string     `json:"reason"`
	Winner  *Standing  `json:"winner,omitempty"`
	Players []Standing `json:"players"`
}

// Update describes the outcome of one mutating operation so the transport
// can broadcast it. States holds one projection per remaining member. Seq is
// the session version the update produced; a higher Seq is always newer.
type Update struct {
	SessionCode         string
	Seq                 uint64
	Phase               Phase
	PhaseChanged        bool
	SubmissionsComplete bool
	Auto                bool
	RoundOver           *RoundSummary
	GameOver            *GameSummary
	States              map[string]State
}
