package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/promptparty/internal/cards"
	"github.com/kiliankoe/promptparty/internal/validate"
)

// Notifier receives updates produced by timer-driven actions.
type Notifier interface {
	SessionUpdated(code string, u *Update)
}

type ManagerOption func(*RoomManager)

func WithClock(c Clock) ManagerOption {
	return func(rm *RoomManager) { rm.clock = c }
}

// WithRandSource sets the factory for each new session's random source.
func WithRandSource(f func() cards.Rand) ManagerOption {
	return func(rm *RoomManager) { rm.newRand = f }
}

func WithNameValidator(f func(string) bool) ManagerOption {
	return func(rm *RoomManager) { rm.validName = f }
}

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(rm *RoomManager) { rm.log = l }
}

// RoomManager maps session codes to live sessions.
type RoomManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	notifier Notifier

	rules     Rules
	catalog   cards.Provider
	clock     Clock
	newRand   func() cards.Rand
	validName func(string) bool
	log       zerolog.Logger
	codeRand  *rand.Rand
}

func NewRoomManager(rules Rules, catalog cards.Provider, opts ...ManagerOption) *RoomManager {
	rm := &RoomManager{
		sessions:  make(map[string]*Session),
		rules:     rules,
		catalog:   catalog,
		clock:     systemClock{},
		validName: validate.PlayerName,
		log:       log.Logger,
		codeRand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	rm.newRand = func() cards.Rand {
		rm.mu.Lock()
		defer rm.mu.Unlock()
		return rand.New(rand.NewSource(rm.codeRand.Int63()))
	}
	for _, o := range opts {
		o(rm)
	}
	return rm
}

func (rm *RoomManager) SetNotifier(n Notifier) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.notifier = n
}

// CreateSession loads the catalog, builds a session and seats the host. The
// session is only registered once the host was accepted.
func (rm *RoomManager) CreateSession(ctx context.Context, hostName string) (code, hostID string, u *Update, err error) {
	if !rm.validName(hostName) {
		return "", "", nil, ErrInvalidName
	}
	catalog, err := rm.catalog.Load(ctx)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to load cards: %w", err)
	}

	rng := rm.newRand()
	rm.mu.Lock()
	code = randomCode(rm.codeRand, validate.SessionCodeLength)
	for rm.sessions[code] != nil {
		code = randomCode(rm.codeRand, validate.SessionCodeLength)
	}
	// reserve the code while the session is built
	rm.sessions[code] = nil
	rm.mu.Unlock()

	logger := rm.log
	s, err := NewSession(code, rm.rules, catalog, Options{
		Clock:         rm.clock,
		Rand:          rng,
		NameValidator: rm.validName,
		Logger:        &logger,
		OnAuto:        func(u *Update) { rm.notify(code, u) },
	})
	if err == nil {
		hostID, u, err = s.AddPlayer(hostName)
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if err != nil {
		delete(rm.sessions, code)
		return "", "", nil, err
	}
	rm.sessions[code] = s
	return code, hostID, u, nil
}

func (rm *RoomManager) Get(code string) (*Session, error) {
	if !validate.SessionCode(code) {
		return nil, ErrInvalidSessionCode
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	s := rm.sessions[code]
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove unregisters a session and cancels its timer.
func (rm *RoomManager) Remove(code string) bool {
	rm.mu.Lock()
	s := rm.sessions[code]
	if s != nil {
		delete(rm.sessions, code)
	}
	rm.mu.Unlock()
	if s == nil {
		return false
	}
	s.Close()
	return true
}

// Sweep removes every session that reached GAME_END and returns their codes.
func (rm *RoomManager) Sweep() []string {
	rm.mu.RLock()
	var done []string
	for code, s := range rm.sessions {
		if s != nil && s.Phase() == PhaseGameEnd {
			done = append(done, code)
		}
	}
	rm.mu.RUnlock()

	removed := done[:0]
	for _, code := range done {
		if rm.Remove(code) {
			removed = append(removed, code)
		}
	}
	return removed
}

func (rm *RoomManager) Len() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	n := 0
	for _, s := range rm.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

func (rm *RoomManager) notify(code string, u *Update) {
	rm.mu.RLock()
	n := rm.notifier
	rm.mu.RUnlock()
	if n != nil {
		n.SessionUpdated(code, u)
	}
}

func randomCode(rng *rand.Rand, n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}
