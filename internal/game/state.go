package game

import (
	"time"

	"github.com/kiliankoe/promptparty/internal/cards"
)

// Info is the public description of a session shown before joining.
type Info struct {
	Code       string    `json:"sessionCode"`
	Phase      Phase     `json:"phase"`
	Players    int       `json:"players"`
	MaxPlayers int       `json:"maxPlayers"`
	Round      int       `json:"round"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Code:       s.Code,
		Phase:      s.phase,
		Players:    s.players.len(),
		MaxPlayers: s.Rules.MaxPlayers,
		Round:      s.roundNumber,
		CreatedAt:  s.CreatedAt,
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// StateFor projects the session for one player. It never mutates.
func (s *Session) StateFor(playerID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.players.get(playerID)
	if p == nil {
		return State{}, ErrPlayerNotFound
	}
	return s.stateFor(p), nil
}

// States projects the session for every member.
func (s *Session) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statesLocked()
}

// Final returns the end-of-game summary, nil while the game is running.
func (s *Session) Final() *GameSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

func (s *Session) statesLocked() map[string]State {
	out := make(map[string]State, s.players.len())
	for _, p := range s.players.all() {
		out[p.ID] = s.stateFor(p)
	}
	return out
}

func (s *Session) stateFor(p *Player) State {
	st := State{
		SessionCode: s.Code,
		Version:     s.version,
		Phase:       s.phase,
		RoundNumber: s.roundNumber,
		Players:     make([]PublicPlayer, 0, s.players.len()),
		EndReason:   s.endReason,
	}
	for _, other := range s.players.all() {
		st.Players = append(st.Players, other.public(s.hasSubmitted(other.ID)))
	}
	hand := make([]cards.Card, len(p.Hand))
	copy(hand, p.Hand)
	st.You = PlayerView{PublicPlayer: p.public(s.hasSubmitted(p.ID)), Hand: hand}
	if s.round != nil {
		st.Round = s.round.view(s.Rules.AnonymousJudging)
	}
	if !s.deadline.IsZero() {
		d := s.deadline
		st.Deadline = &d
	}
	return st
}

func (s *Session) hasSubmitted(playerID string) bool {
	return s.round != nil && s.round.submitted(playerID)
}

func (s *Session) standings() []Standing {
	out := make([]Standing, 0, s.players.len())
	for _, p := range s.players.all() {
		out = append(out, standingOf(p))
	}
	return out
}

func standingOf(p *Player) Standing {
	return Standing{ID: p.ID, Name: p.Name, Points: p.Points}
}
