package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/promptparty/internal/cards"
	"github.com/kiliankoe/promptparty/internal/validate"
)

// Options carries the collaborators of a Session. Zero values fall back to
// the system clock, a time-seeded random source, validate.PlayerName,
// uuid.NewString and the global logger.
type Options struct {
	Clock         Clock
	Rand          cards.Rand
	NameValidator func(string) bool
	NewID         func() string
	Logger        *zerolog.Logger
	// OnAuto receives the update produced by a timer-driven action. It is
	// called after the session lock is released.
	OnAuto func(*Update)
}

// Session is one game. Every exported method takes the session lock, so
// player actions and timer firings are applied one at a time.
type Session struct {
	Code      string
	CreatedAt time.Time
	Rules     Rules

	mu          sync.Mutex
	phase       Phase
	players     *registry
	supply      *cards.Supply
	roundNumber int
	judgeIndex  int
	round       *Round
	endReason   string
	final       *GameSummary
	version     uint64

	timer    Timer
	timerSeq uint64
	deadline time.Time

	clock     Clock
	rng       cards.Rand
	validName func(string) bool
	newID     func() string
	onAuto    func(*Update)
	log       zerolog.Logger

	// per-operation change record, see begin/finish
	out    *Update
	before Phase
}

func NewSession(code string, rules Rules, catalog cards.Catalog, opts Options) (*Session, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.NameValidator == nil {
		opts.NameValidator = validate.PlayerName
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Session{
		Code:       code,
		CreatedAt:  opts.Clock.Now(),
		Rules:      rules,
		phase:      PhaseLobby,
		players:    newRegistry(),
		supply:     cards.NewSupply(catalog, opts.Rand),
		judgeIndex: -1,
		clock:      opts.Clock,
		rng:        opts.Rand,
		validName:  opts.NameValidator,
		newID:      opts.NewID,
		onAuto:     opts.OnAuto,
		log:        logger.With().Str("code", code).Logger(),
	}, nil
}

// AddPlayer appends a player to the rotation. The first player becomes the
// judge.
func (s *Session) AddPlayer(name string) (string, *Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validName(name) {
		return "", nil, ErrInvalidName
	}
	if s.players.len() >= s.Rules.MaxPlayers {
		return "", nil, ErrSessionFull
	}
	switch s.phase {
	case PhaseLobby:
	case PhaseGameEnd:
		return "", nil, ErrGameOver
	default:
		return "", nil, ErrAlreadyStarted
	}

	s.begin()
	role := RolePlayer
	if s.players.len() == 0 {
		role = RoleJudge
	}
	p := &Player{ID: s.newID(), Name: name, Role: role}
	s.players.add(p)
	s.log.Info().Str("playerId", p.ID).Str("name", name).Str("role", string(role)).Msg("player joined")
	return p.ID, s.finish(), nil
}

// RemovePlayer drops a player and reports whether that ended the game.
// An unknown id is a no-op with a nil update.
func (s *Session) RemovePlayer(id string) (ended bool, u *Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players.get(id)
	if p == nil {
		return false, nil
	}
	s.begin()
	ended = s.removePlayer(p)
	return ended, s.finish()
}

// Start deals every player a hand and begins round 1.
func (s *Session) Start() (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(func() error {
		switch s.phase {
		case PhaseLobby:
		case PhaseGameEnd:
			return ErrGameOver
		default:
			return ErrAlreadyStarted
		}
		if s.players.len() < s.Rules.MinPlayers {
			return ErrNotEnoughPlayers
		}
		for _, p := range s.players.all() {
			p.Hand = s.supply.For(p.deckKind()).Draw(s.Rules.HandSize)
		}
		s.log.Info().Int("players", s.players.len()).Msg("game started")
		s.startNewRound()
		return nil
	})
}

// AdvanceRound moves a finished round on to the next one.
func (s *Session) AdvanceRound() (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(func() error {
		switch s.phase {
		case PhaseRoundOver:
		case PhaseGameEnd:
			return ErrGameOver
		default:
			return ErrWrongPhase
		}
		s.startNewRound()
		return nil
	})
}

func (s *Session) SubmitPrompt(judgeID, cardID string) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(func() error { return s.submitPrompt(judgeID, cardID) })
}

// SubmitAnswer plays a card from the caller's hand. A card the player does
// not hold is rejected silently: accepted is false and nothing changes.
func (s *Session) SubmitAnswer(playerID, cardID string) (accepted bool, u *Update, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.begin()
	accepted, err = s.submitAnswer(playerID, cardID)
	if err != nil || !accepted {
		s.out = nil
		return false, nil, err
	}
	return true, s.finish(), nil
}

// SelectWinner credits the round to the player behind winnerID, which may be
// a player id or the id of the submitted card.
func (s *Session) SelectWinner(judgeID, winnerID string) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(func() error { return s.selectWinner(judgeID, winnerID, false) })
}

// Close cancels the pending phase timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer()
}

func (s *Session) apply(op func() error) (*Update, error) {
	s.begin()
	if err := op(); err != nil {
		s.out = nil
		return nil, err
	}
	return s.finish(), nil
}

func (s *Session) begin() {
	s.out = &Update{}
	s.before = s.phase
}

func (s *Session) finish() *Update {
	u := s.out
	s.out = nil
	s.version++
	u.SessionCode = s.Code
	u.Seq = s.version
	u.Phase = s.phase
	u.PhaseChanged = s.phase != s.before
	u.States = s.statesLocked()
	return u
}

func (s *Session) removePlayer(p *Player) bool {
	wasJudge := p.Role == RoleJudge
	s.supply.For(p.deckKind()).Discard(p.Hand...)
	p.Hand = nil
	if s.round != nil {
		if c, ok := s.round.withdraw(p.ID); ok {
			s.supply.Answers.Discard(c)
		}
	}
	s.players.remove(p.ID)
	if s.round != nil {
		s.judgeIndex = s.players.indexOf(s.round.JudgeID)
	}
	s.log.Info().Str("playerId", p.ID).Str("name", p.Name).Msg("player left")

	if s.phase == PhaseGameEnd {
		return false
	}
	if s.players.len() < s.Rules.MinPlayers {
		s.endGame(ReasonInsufficientPlayers)
		return true
	}
	if wasJudge {
		if s.phase != PhaseLobby {
			s.endGame(ReasonJudgeLeft)
			return true
		}
		s.players.at(0).Role = RoleJudge
	}
	if s.phase == PhasePlayersPick && s.round.count() > 0 && s.round.count() >= s.players.countRole(RolePlayer) {
		s.closeSubmissions()
		s.out.SubmissionsComplete = true
	}
	return false
}

// startNewRound ends the game if someone reached the win threshold, otherwise
// rotates the judge one seat forward and opens the next round.
func (s *Session) startNewRound() {
	if s.round != nil {
		prompts, answers := s.round.tableCards()
		s.supply.Prompts.Discard(prompts...)
		s.supply.Answers.Discard(answers...)
		s.round = nil
	}
	if s.thresholdWinner() != nil {
		s.endGame(ReasonWinThreshold)
		return
	}

	s.roundNumber++
	next := (s.judgeIndex + 1) % s.players.len()
	for i, p := range s.players.all() {
		role := RolePlayer
		if i == next {
			role = RoleJudge
		}
		switch {
		case p.Role != role:
			s.supply.For(p.deckKind()).Discard(p.Hand...)
			p.Role = role
			p.Hand = s.supply.For(p.deckKind()).Draw(s.Rules.HandSize)
		case role == RolePlayer && len(p.Hand) < s.Rules.HandSize:
			p.Hand = append(p.Hand, s.supply.Answers.Draw(s.Rules.HandSize-len(p.Hand))...)
		}
		if len(p.Hand) < s.Rules.HandSize {
			s.log.Warn().Str("playerId", p.ID).Int("hand", len(p.Hand)).Msg("deck exhausted, player is short-handed")
		}
	}
	s.judgeIndex = next
	judge := s.players.at(next)
	s.round = newRound(s.roundNumber, judge.ID, s.clock.Now())
	s.phase = PhaseJudgePick
	s.schedule()
	s.log.Info().Int("round", s.roundNumber).Str("judge", judge.Name).Msg("round started")
}

func (s *Session) submitPrompt(judgeID, cardID string) error {
	if s.phase == PhaseGameEnd {
		return ErrGameOver
	}
	judge, err := s.requireJudge(judgeID)
	if err != nil {
		return err
	}
	if s.phase != PhaseJudgePick {
		return ErrWrongPhase
	}
	card, ok := judge.takeCard(cardID)
	if !ok {
		return ErrCardNotFound
	}
	s.round.setPrompt(card, s.clock.Now())
	if len(judge.Hand) < s.Rules.HandSize {
		if c, ok := s.supply.Prompts.DrawOne(); ok {
			judge.Hand = append(judge.Hand, c)
		}
	}
	s.phase = PhasePlayersPick
	s.schedule()
	return nil
}

func (s *Session) submitAnswer(playerID, cardID string) (bool, error) {
	if s.phase == PhaseGameEnd {
		return false, ErrGameOver
	}
	p := s.players.get(playerID)
	if p == nil {
		return false, ErrPlayerNotFound
	}
	if p.Role == RoleJudge {
		return false, ErrJudgeCannotAnswer
	}
	if s.phase != PhasePlayersPick {
		return false, ErrWrongPhase
	}
	card, ok := p.takeCard(cardID)
	if !ok {
		return false, nil
	}
	prev, err := s.round.recordSubmission(p.ID, card)
	if err != nil {
		p.Hand = append(p.Hand, card)
		return false, err
	}
	if prev != nil {
		p.Hand = append(p.Hand, *prev)
	}
	if s.round.count() >= s.players.countRole(RolePlayer) {
		s.closeSubmissions()
		s.out.SubmissionsComplete = true
	}
	return true, nil
}

func (s *Session) closeSubmissions() {
	s.round.openJudging(s.clock.Now(), s.rng, s.Rules.AnonymousJudging)
	s.phase = PhaseJudgeSelect
	s.schedule()
}

func (s *Session) selectWinner(judgeID, winnerID string, auto bool) error {
	if s.phase == PhaseGameEnd {
		return ErrGameOver
	}
	if _, err := s.requireJudge(judgeID); err != nil {
		return err
	}
	if s.phase != PhaseJudgeSelect {
		return ErrWrongPhase
	}
	pid, ok := s.round.resolveSubmitter(winnerID)
	if !ok {
		return ErrSubmissionNotFound
	}
	winner := s.players.get(pid)
	if winner == nil {
		return ErrPlayerNotFound
	}
	card, _ := s.round.submission(pid)
	if err := s.round.setWinner(pid, s.clock.Now()); err != nil {
		return err
	}
	winner.Points++
	s.phase = PhaseRoundOver
	s.out.RoundOver = &RoundSummary{
		Round:      s.round.Number,
		WinnerID:   winner.ID,
		WinnerName: winner.Name,
		WinnerCard: card,
		Prompt:     *s.round.Prompt,
		Players:    s.standings(),
		Auto:       auto,
	}
	s.log.Info().Int("round", s.round.Number).Str("winner", winner.Name).Int("points", winner.Points).Bool("auto", auto).Msg("round won")
	if winner.Points >= s.Rules.WinPoints {
		s.endGame(ReasonWinThreshold)
		return nil
	}
	s.schedule()
	return nil
}

func (s *Session) requireJudge(id string) (*Player, error) {
	p := s.players.get(id)
	if p == nil || p.Role != RoleJudge {
		return nil, ErrNotJudge
	}
	return p, nil
}

func (s *Session) endGame(reason string) {
	s.stopTimer()
	s.phase = PhaseGameEnd
	s.endReason = reason
	summary := &GameSummary{Reason: reason, Players: s.standings()}
	if w := s.thresholdWinner(); w != nil {
		st := standingOf(w)
		summary.Winner = &st
	}
	s.final = summary
	s.out.GameOver = summary
	s.log.Info().Str("reason", reason).Msg("game ended")
}

// thresholdWinner is the highest scorer at or above the win threshold, the
// earliest in rotation order on a tie.
func (s *Session) thresholdWinner() *Player {
	var best *Player
	for _, p := range s.players.all() {
		if p.Points >= s.Rules.WinPoints && (best == nil || p.Points > best.Points) {
			best = p
		}
	}
	return best
}

// handleTimeout runs the automatic action for the current round phase. It
// reuses the same paths as player actions.
func (s *Session) handleTimeout() {
	if s.round == nil {
		return
	}
	action := s.round.resolveTimeout(s.rng)
	s.out.Auto = true
	s.log.Info().Int("round", s.round.Number).Str("action", action.Kind.String()).Msg("phase timed out")

	switch action.Kind {
	case TimeoutAutoPrompt:
		judge := s.players.get(s.round.JudgeID)
		if judge == nil || len(judge.Hand) == 0 {
			s.log.Warn().Int("round", s.round.Number).Msg("judge has no prompt to play, skipping round")
			s.startNewRound()
			return
		}
		card := judge.Hand[s.rng.Intn(len(judge.Hand))]
		if err := s.submitPrompt(judge.ID, card.ID); err != nil {
			s.log.Error().Err(err).Msg("automatic prompt failed")
		}
	case TimeoutCloseSubmissions:
		s.closeSubmissions()
	case TimeoutAutoWinner:
		if err := s.selectWinner(s.round.JudgeID, action.WinnerID, true); err != nil {
			s.log.Error().Err(err).Msg("automatic winner failed, skipping round")
			s.startNewRound()
		}
	case TimeoutSkipRound, TimeoutNextRound:
		s.startNewRound()
	}
}

// schedule replaces any pending timer with one for the current phase.
func (s *Session) schedule() {
	s.stopTimer()
	d := s.Rules.timeout(s.phase)
	if d <= 0 {
		return
	}
	seq, round, phase := s.timerSeq, s.roundNumber, s.phase
	s.deadline = s.clock.Now().Add(d)
	s.timer = s.clock.AfterFunc(d, func() { s.fire(seq, round, phase) })
}

// stopTimer cancels the pending timer. Bumping the sequence also disarms a
// callback that already started and is waiting for the lock.
func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
	s.deadline = time.Time{}
}

func (s *Session) fire(seq uint64, round int, phase Phase) {
	s.mu.Lock()
	if seq != s.timerSeq || round != s.roundNumber || phase != s.phase {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.begin()
	s.handleTimeout()
	u := s.finish()
	notify := s.onAuto
	s.mu.Unlock()

	if notify != nil {
		notify(u)
	}
}
