package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/promptparty/internal/cards"
)

// topRand answers n-1: shuffles keep catalog order and random picks take the
// last candidate.
type topRand struct{}

func (topRand) Intn(n int) int { return n - 1 }

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeClock never fires on its own; tests fire timers explicitly.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns the timers that were not stopped.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the single pending timer.
func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	p := c.pending()
	require.Len(t, p, 1, "expected exactly one pending timer")
	c.mu.Lock()
	p[0].stopped = true
	c.now = c.now.Add(p[0].d)
	c.mu.Unlock()
	p[0].f()
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

func testCatalog(prompts, answers int) cards.Catalog {
	c := cards.Catalog{}
	for i := 0; i < prompts; i++ {
		c.Prompts = append(c.Prompts, cards.Entry{Text: fmt.Sprintf("prompt %d", i)})
	}
	for i := 0; i < answers; i++ {
		c.Answers = append(c.Answers, cards.Entry{Text: fmt.Sprintf("answer %d", i)})
	}
	return c
}

func testRules() Rules {
	r := DefaultRules()
	r.WinPoints = 5
	return r
}

type harness struct {
	s     *Session
	clock *fakeClock
	auto  []*Update
	mu    sync.Mutex

	prompts, answers int
}

func newHarness(t *testing.T, rules Rules, names ...string) (*harness, []string) {
	t.Helper()
	h := &harness{clock: newFakeClock(), prompts: 20, answers: 60}
	n := 0
	nop := zerolog.Nop()
	s, err := NewSession("ABC123", rules, testCatalog(h.prompts, h.answers), Options{
		Clock:  h.clock,
		Rand:   topRand{},
		NewID:  func() string { n++; return fmt.Sprintf("p%d", n) },
		Logger: &nop,
		OnAuto: func(u *Update) {
			h.mu.Lock()
			h.auto = append(h.auto, u)
			h.mu.Unlock()
		},
	})
	require.NoError(t, err)
	h.s = s

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, _, err := s.AddPlayer(name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return h, ids
}

func (h *harness) lastAuto(t *testing.T) *Update {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.auto)
	return h.auto[len(h.auto)-1]
}

func (h *harness) state(t *testing.T, id string) State {
	t.Helper()
	st, err := h.s.StateFor(id)
	require.NoError(t, err)
	return st
}

func (h *harness) judge(t *testing.T, ids []string) string {
	t.Helper()
	for _, id := range ids {
		if st, err := h.s.StateFor(id); err == nil && st.You.Role == RoleJudge {
			return id
		}
	}
	t.Fatal("no judge")
	return ""
}

// checkInvariants asserts card conservation and the single-judge rule.
func (h *harness) checkInvariants(t *testing.T) {
	t.Helper()
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	count := map[cards.Kind]int{
		cards.KindPrompt: s.supply.Prompts.Remaining() + s.supply.Prompts.Discarded(),
		cards.KindAnswer: s.supply.Answers.Remaining() + s.supply.Answers.Discarded(),
	}
	seen := map[string]bool{}
	for _, p := range s.players.all() {
		for _, c := range p.Hand {
			require.False(t, seen[c.ID], "card %s held twice", c.ID)
			seen[c.ID] = true
			count[c.Kind]++
			require.Equal(t, p.deckKind(), c.Kind, "player %s holds a %s card as %s", p.Name, c.Kind, p.Role)
		}
	}
	if s.round != nil {
		prompts, answers := s.round.tableCards()
		for _, c := range append(prompts, answers...) {
			require.False(t, seen[c.ID], "card %s both held and on the table", c.ID)
			seen[c.ID] = true
			count[c.Kind]++
		}
	}
	require.Equal(t, h.prompts, count[cards.KindPrompt], "prompt cards not conserved")
	require.Equal(t, h.answers, count[cards.KindAnswer], "answer cards not conserved")

	if s.phase != PhaseLobby && s.phase != PhaseGameEnd {
		require.Equal(t, 1, s.players.countRole(RoleJudge))
	}
}

// playRound drives one full round by hand: the judge plays their first
// prompt, everyone answers with their first card and the judge picks want
// (or the first submitter when want is the judge).
func (h *harness) playRound(t *testing.T, ids []string, want string) *Update {
	t.Helper()
	judge := h.judge(t, ids)
	_, err := h.s.SubmitPrompt(judge, h.state(t, judge).You.Hand[0].ID)
	require.NoError(t, err)

	var first string
	for _, id := range ids {
		if id == judge {
			continue
		}
		if first == "" {
			first = id
		}
		ok, _, err := h.s.SubmitAnswer(id, h.state(t, id).You.Hand[0].ID)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, PhaseJudgeSelect, h.s.Phase())

	if want == judge {
		want = first
	}
	u, err := h.s.SelectWinner(judge, want)
	require.NoError(t, err)
	h.checkInvariants(t)
	return u
}
