package game

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/kiliankoe/promptparty/internal/cards"
	"github.com/kiliankoe/promptparty/internal/validate"
)

type staticCatalog struct {
	catalog cards.Catalog
	err     error
}

func (c staticCatalog) Load(context.Context) (cards.Catalog, error) {
	return c.catalog, c.err
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SessionUpdated(code string, u *Update) {
	m.Called(code, u)
}

func newTestManager(clock Clock) *RoomManager {
	return NewRoomManager(testRules(), staticCatalog{catalog: testCatalog(20, 60)},
		WithClock(clock),
		WithRandSource(func() cards.Rand { return topRand{} }),
		WithLogger(zerolog.Nop()),
	)
}

func TestNewRoomManager(t *testing.T) {
	rm := newTestManager(newFakeClock())
	if rm.sessions == nil {
		t.Fatal("sessions map should be initialized")
	}
	if rm.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", rm.Len())
	}
}

func TestCreateSession(t *testing.T) {
	rm := newTestManager(newFakeClock())

	code, hostID, u, err := rm.CreateSession(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("should be able to create session: %v", err)
	}
	if !validate.SessionCode(code) {
		t.Fatalf("session code %q is not well formed", code)
	}
	if hostID == "" {
		t.Fatal("host id should not be empty")
	}
	if u == nil || u.States[hostID].You.Role != RoleJudge {
		t.Fatal("host should be seated as judge")
	}

	session, err := rm.Get(code)
	if err != nil {
		t.Fatalf("should be able to retrieve created session: %v", err)
	}
	if session.Code != code {
		t.Fatalf("expected code %s, got %s", code, session.Code)
	}
	if session.Phase() != PhaseLobby {
		t.Fatalf("expected phase %s, got %s", PhaseLobby, session.Phase())
	}
	if info := session.Info(); info.Players != 1 || info.MaxPlayers != 8 {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestCreateSessionRejectsBadHost(t *testing.T) {
	rm := newTestManager(newFakeClock())

	if _, _, _, err := rm.CreateSession(context.Background(), "Al1ce"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if rm.Len() != 0 {
		t.Fatal("a rejected host must not leave a session behind")
	}
}

func TestCreateSessionCatalogFailure(t *testing.T) {
	rm := NewRoomManager(testRules(), staticCatalog{err: cards.ErrInvalidCatalog}, WithLogger(zerolog.Nop()))

	_, _, _, err := rm.CreateSession(context.Background(), "Alice")
	if !errors.Is(err, cards.ErrInvalidCatalog) {
		t.Fatalf("expected catalog error, got %v", err)
	}
	if len(rm.sessions) != 0 {
		t.Fatal("no code should stay reserved")
	}
}

func TestCreateSessionUniqueCodes(t *testing.T) {
	rm := newTestManager(newFakeClock())
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, _, _, err := rm.CreateSession(context.Background(), "Alice")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if seen[code] {
			t.Fatalf("code %s handed out twice", code)
		}
		seen[code] = true
	}
	if rm.Len() != 50 {
		t.Fatalf("expected 50 sessions, got %d", rm.Len())
	}
}

func TestGet(t *testing.T) {
	rm := newTestManager(newFakeClock())

	if _, err := rm.Get("abc"); !errors.Is(err, ErrInvalidSessionCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if _, err := rm.Get("ZZZZZZ"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveAndSweep(t *testing.T) {
	clock := newFakeClock()
	rm := newTestManager(clock)

	running, _, _, err := rm.CreateSession(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	done, _, _, err := rm.CreateSession(context.Background(), "Bob")
	if err != nil {
		t.Fatal(err)
	}
	s, _ := rm.Get(done)
	if _, _, err := s.AddPlayer("Carol"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.AddPlayer("Dave"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Start(); err != nil {
		t.Fatal(err)
	}
	// host leaves mid-round: the game ends
	for id, st := range s.States() {
		if st.You.Role == RoleJudge {
			if ended, _ := s.RemovePlayer(id); !ended {
				t.Fatal("removing the judge should end the game")
			}
		}
	}

	removed := rm.Sweep()
	if len(removed) != 1 || removed[0] != done {
		t.Fatalf("expected %s to be swept, got %v", done, removed)
	}
	if _, err := rm.Get(running); err != nil {
		t.Fatalf("running session should survive the sweep: %v", err)
	}
	if !rm.Remove(running) {
		t.Fatal("remove should report an existing session")
	}
	if rm.Remove(running) {
		t.Fatal("second remove should be a no-op")
	}
	if rm.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", rm.Len())
	}
}

func TestTimeoutNotifiesNotifier(t *testing.T) {
	clock := newFakeClock()
	rm := newTestManager(clock)
	n := &mockNotifier{}
	rm.SetNotifier(n)

	code, _, _, err := rm.CreateSession(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	s, _ := rm.Get(code)
	for _, name := range []string{"Bob", "Carol"} {
		if _, _, err := s.AddPlayer(name); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Start(); err != nil {
		t.Fatal(err)
	}

	n.On("SessionUpdated", code, mock.MatchedBy(func(u *Update) bool {
		return u.Auto && u.Phase == PhasePlayersPick
	})).Once()

	clock.fire(t)

	n.AssertExpectations(t)
}
