package game

import (
	"time"

	"github.com/kiliankoe/promptparty/internal/cards"
)

type TimeoutKind int

const (
	TimeoutNone TimeoutKind = iota
	// TimeoutAutoPrompt: the judge did not pick a prompt in time.
	TimeoutAutoPrompt
	// TimeoutCloseSubmissions: stop collecting answers, keep what arrived.
	TimeoutCloseSubmissions
	// TimeoutAutoWinner: the judge did not pick; WinnerID was drawn at random.
	TimeoutAutoWinner
	// TimeoutSkipRound: judging timed out with nothing to judge.
	TimeoutSkipRound
	// TimeoutNextRound: the round-over pause elapsed.
	TimeoutNextRound
)

func (k TimeoutKind) String() string {
	switch k {
	case TimeoutAutoPrompt:
		return "auto_prompt"
	case TimeoutCloseSubmissions:
		return "close_submissions"
	case TimeoutAutoWinner:
		return "auto_winner"
	case TimeoutSkipRound:
		return "skip_round"
	case TimeoutNextRound:
		return "next_round"
	}
	return "none"
}

type TimeoutAction struct {
	Kind     TimeoutKind
	WinnerID string
}

// Round holds the state of one judge-pick, answer, judge-select cycle. It
// never schedules timers itself.
type Round struct {
	Number         int
	JudgeID        string
	Phase          Phase
	Prompt         *cards.Card
	WinnerID       string
	PhaseStartedAt time.Time

	submissions map[string]cards.Card // playerID -> card
	order       []string              // playerIDs by first submission
	display     []string              // playerIDs in reveal order
}

func newRound(number int, judgeID string, now time.Time) *Round {
	return &Round{
		Number:         number,
		JudgeID:        judgeID,
		Phase:          PhaseJudgePick,
		PhaseStartedAt: now,
		submissions:    make(map[string]cards.Card),
	}
}

func (r *Round) setPrompt(c cards.Card, now time.Time) {
	r.Prompt = &c
	r.Phase = PhasePlayersPick
	r.PhaseStartedAt = now
}

// recordSubmission stores c as playerID's answer. A second submission in the
// same phase replaces the first, which is handed back as prev.
func (r *Round) recordSubmission(playerID string, c cards.Card) (prev *cards.Card, err error) {
	if r.Phase != PhasePlayersPick {
		return nil, ErrWrongPhase
	}
	if old, ok := r.submissions[playerID]; ok {
		prev = &old
	} else {
		r.order = append(r.order, playerID)
	}
	r.submissions[playerID] = c
	return prev, nil
}

// withdraw drops playerID's submission unless the round is already decided.
func (r *Round) withdraw(playerID string) (cards.Card, bool) {
	c, ok := r.submissions[playerID]
	if !ok || r.Phase == PhaseRoundOver {
		return cards.Card{}, false
	}
	delete(r.submissions, playerID)
	r.order = without(r.order, playerID)
	r.display = without(r.display, playerID)
	return c, true
}

// openJudging closes submissions. With shuffle set the reveal order is a
// random permutation instead of submission order.
func (r *Round) openJudging(now time.Time, rng cards.Rand, shuffle bool) {
	r.Phase = PhaseJudgeSelect
	r.PhaseStartedAt = now
	r.display = append([]string(nil), r.order...)
	if shuffle {
		cards.Shuffle(rng, r.display)
	}
}

func (r *Round) setWinner(playerID string, now time.Time) error {
	if r.Phase != PhaseJudgeSelect {
		return ErrWrongPhase
	}
	if _, ok := r.submissions[playerID]; !ok {
		return ErrSubmissionNotFound
	}
	r.WinnerID = playerID
	r.Phase = PhaseRoundOver
	r.PhaseStartedAt = now
	return nil
}

func (r *Round) count() int { return len(r.submissions) }

func (r *Round) submitted(playerID string) bool {
	_, ok := r.submissions[playerID]
	return ok
}

func (r *Round) submission(playerID string) (cards.Card, bool) {
	c, ok := r.submissions[playerID]
	return c, ok
}

// resolveSubmitter accepts either a submitting player's id or the id of a
// submitted card and returns the player id.
func (r *Round) resolveSubmitter(id string) (string, bool) {
	if _, ok := r.submissions[id]; ok {
		return id, true
	}
	for pid, c := range r.submissions {
		if c.ID == id {
			return pid, true
		}
	}
	return "", false
}

// resolveTimeout decides what the session does when the phase timer fires.
func (r *Round) resolveTimeout(rng cards.Rand) TimeoutAction {
	switch r.Phase {
	case PhaseJudgePick:
		return TimeoutAction{Kind: TimeoutAutoPrompt}
	case PhasePlayersPick:
		return TimeoutAction{Kind: TimeoutCloseSubmissions}
	case PhaseJudgeSelect:
		if len(r.order) == 0 {
			return TimeoutAction{Kind: TimeoutSkipRound}
		}
		return TimeoutAction{Kind: TimeoutAutoWinner, WinnerID: r.order[rng.Intn(len(r.order))]}
	case PhaseRoundOver:
		return TimeoutAction{Kind: TimeoutNextRound}
	}
	return TimeoutAction{Kind: TimeoutNone}
}

func (r *Round) revealed() bool {
	return r.Phase == PhaseJudgeSelect || r.Phase == PhaseRoundOver
}

// tableCards returns the cards in play: the prompt and every submission.
func (r *Round) tableCards() (prompts, answers []cards.Card) {
	if r.Prompt != nil {
		prompts = append(prompts, *r.Prompt)
	}
	for _, pid := range r.order {
		answers = append(answers, r.submissions[pid])
	}
	return prompts, answers
}

func (r *Round) view(anonymous bool) *RoundView {
	v := &RoundView{
		Number:         r.Number,
		JudgeID:        r.JudgeID,
		Phase:          r.Phase,
		PhaseStartedAt: r.PhaseStartedAt,
		WinnerID:       r.WinnerID,
		Submissions:    []SubmissionView{},
	}
	if r.Prompt != nil {
		p := *r.Prompt
		v.Prompt = &p
	}
	if !r.revealed() {
		return v
	}
	hide := anonymous && r.Phase == PhaseJudgeSelect
	for _, pid := range r.display {
		sv := SubmissionView{Card: r.submissions[pid]}
		if !hide {
			sv.PlayerID = pid
		}
		v.Submissions = append(v.Submissions, sv)
	}
	return v
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
