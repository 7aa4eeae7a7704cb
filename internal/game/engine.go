package game

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"picmatch/pkg/realtime"
)

const (
	// CoverTiles is the number of tiles hiding the reward image, and the
	// number of correct answers that completes a session.
	CoverTiles = 9
	// OptionCount is the number of images offered per round.
	OptionCount = 3
	// DefaultAdvanceDelay is the pause between a correct answer and the next round.
	DefaultAdvanceDelay = time.Second

	maxOptionDraws = 1000
)

// Phase is the engine's position in the session state machine.
type Phase string

const (
	PhaseAwaiting  Phase = "awaiting_answer"
	PhaseAdvancing Phase = "advancing"
	PhaseComplete  Phase = "complete"
)

var (
	ErrNotAwaitingAnswer = errors.New("not awaiting an answer")
	ErrUnknownOption     = errors.New("option not offered this round")
	ErrOptionDisabled    = errors.New("option already tried this round")
	ErrOptionGeneration  = errors.New("could not draw distinct options")
	ErrSessionComplete   = errors.New("session complete")
)

// Round is the word being guessed and the options offered for it.
type Round struct {
	Number   int
	Target   Word
	Options  []Word
	Failed   bool
	disabled map[WordID]bool
}

// Disabled reports whether id was already picked wrongly this round.
func (r Round) Disabled(id WordID) bool {
	return r.disabled[id]
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source. Tests pass a seeded one.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithAdvanceDelay sets the pause after a correct answer.
func WithAdvanceDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithAfterFunc replaces the timer used for scheduled transitions.
func WithAfterFunc(after realtime.AfterFunc) Option {
	return func(e *Engine) { e.after = after }
}

// WithListener registers l for engine events.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

// WithLanguage sets the starting language mode.
func WithLanguage(lang Language) Option {
	return func(e *Engine) { e.lang = lang }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine runs one quiz session: up to CoverTiles rounds plus the scoring
// and review-list bookkeeping.
type Engine struct {
	mu     sync.Mutex
	emitMu sync.Mutex

	words     []Word
	rewards   []string
	rng       *rand.Rand
	delay     time.Duration
	after     realtime.AfterFunc
	deferred  *realtime.Deferred
	listeners []Listener
	logger    *zap.Logger
	outbox    []Event

	lang       Language
	phase      Phase
	round      Round
	roundSeq   int
	correct    int
	remaining  []int
	learned    []LearnedItem
	learnedIDs map[WordID]struct{}
	reward     string
	revealed   bool

	pending    bool
	advanceSeq uint64
}

// NewEngine validates ds and starts the first round. The dataset is not
// copied and must not be modified afterwards.
func NewEngine(ds *Dataset, opts ...Option) (*Engine, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		words:   ds.Words,
		rewards: ds.RewardImages,
		delay:   DefaultAdvanceDelay,
		lang:    LangFrench,
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := ParseLanguage(string(e.lang)); err != nil {
		return nil, err
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.deferred = realtime.NewDeferred(e.after)

	e.lock()
	e.resetProgressLocked()
	err := e.startRoundLocked()
	e.unlockAndEmit()
	if err != nil {
		return nil, err
	}
	return e, nil
}

// StartRound discards the current round and draws a new one.
func (e *Engine) StartRound() error {
	e.lock()
	if e.phase == PhaseComplete {
		e.unlock()
		return ErrSessionComplete
	}
	e.cancelPendingLocked()
	err := e.startRoundLocked()
	e.unlockAndEmit()
	return err
}

// SubmitAnswer checks the selected option against the target word. Invalid
// selections return an error and leave the state untouched.
func (e *Engine) SubmitAnswer(id WordID) (Result, error) {
	e.lock()
	res := Result{RevealedTile: -1}
	if e.phase != PhaseAwaiting {
		e.unlock()
		return res, ErrNotAwaitingAnswer
	}
	if !e.offeredLocked(id) {
		e.unlock()
		return res, ErrUnknownOption
	}
	if e.round.disabled[id] {
		e.unlock()
		return res, ErrOptionDisabled
	}

	if id != e.round.Target.ID {
		e.round.Failed = true
		e.round.disabled[id] = true
		e.emitLocked(Event{Kind: EventAnswerResult, Result: &res})
		e.logger.Debug("wrong answer",
			zap.String("target", string(e.round.Target.ID)),
			zap.String("selected", string(id)),
		)
		e.unlockAndEmit()
		return res, nil
	}

	res.Correct = true
	if e.correct < CoverTiles {
		e.correct++
	}
	res.RevealedTile = e.revealTileLocked()
	var item *LearnedItem
	if e.round.Failed {
		item = e.learnLocked(e.round.Target)
		res.Learned = item != nil
	}
	if e.correct >= CoverTiles {
		e.phase = PhaseComplete
		res.Complete = true
	} else {
		e.phase = PhaseAdvancing
	}

	e.emitLocked(Event{Kind: EventAnswerResult, Result: &res})
	e.emitLocked(Event{Kind: EventProgressChanged, Correct: e.correct, Tile: res.RevealedTile})
	if item != nil {
		e.emitLocked(Event{Kind: EventLearnedItemAdded, Item: item})
	}
	e.scheduleLocked()
	e.unlockAndEmit()
	return res, nil
}

// Advance runs the pending scheduled transition now. It reports whether one was pending.
func (e *Engine) Advance() (bool, error) {
	e.lock()
	if !e.pending {
		e.unlock()
		return false, nil
	}
	e.deferred.Stop()
	err := e.runPendingLocked()
	e.unlockAndEmit()
	return true, err
}

// Restart clears all session progress, picks a new reward image, and starts a new round.
func (e *Engine) Restart() error {
	e.lock()
	e.cancelPendingLocked()
	e.resetProgressLocked()
	e.emitLocked(Event{Kind: EventSessionRestarted})
	err := e.startRoundLocked()
	e.unlockAndEmit()
	return err
}

// SwitchLanguage sets the language mode and starts a fresh round. The
// abandoned round does not count as a failure. Once the session is complete
// only the mode changes.
func (e *Engine) SwitchLanguage(lang Language) error {
	if _, err := ParseLanguage(string(lang)); err != nil {
		return err
	}
	e.lock()
	e.lang = lang
	e.emitLocked(Event{Kind: EventLanguageChanged, Language: lang})
	if e.phase == PhaseComplete {
		e.unlockAndEmit()
		return nil
	}
	e.cancelPendingLocked()
	err := e.startRoundLocked()
	e.unlockAndEmit()
	return err
}

// Close cancels any pending transition. The engine stays readable.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPendingLocked()
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Language returns the active language mode.
func (e *Engine) Language() Language {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lang
}

// Correct returns the number of correct answers this session.
func (e *Engine) Correct() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.correct
}

// RemainingTiles returns a copy of the still-covered tile indices.
func (e *Engine) RemainingTiles() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.remaining...)
}

// Learned returns a copy of the review list in the order words were learned.
func (e *Engine) Learned() []LearnedItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LearnedItem(nil), e.learned...)
}

// CurrentRound returns a copy of the round in play, including its target.
func (e *Engine) CurrentRound() Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.round
	r.Options = append([]Word(nil), e.round.Options...)
	r.disabled = make(map[WordID]bool, len(e.round.disabled))
	for id, v := range e.round.disabled {
		r.disabled[id] = v
	}
	return r
}

// Pending reports whether a scheduled transition is waiting to run.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

func (e *Engine) resetProgressLocked() {
	e.correct = 0
	e.remaining = make([]int, CoverTiles)
	for i := range e.remaining {
		e.remaining[i] = i
	}
	e.learned = nil
	e.learnedIDs = make(map[WordID]struct{})
	e.round.Failed = false
	e.revealed = false
	e.phase = PhaseAwaiting
	e.reward = ""
	if len(e.rewards) > 0 {
		e.reward = e.rewards[e.rng.Intn(len(e.rewards))]
	}
}

func (e *Engine) startRoundLocked() error {
	target := e.words[e.rng.Intn(len(e.words))]
	options, err := e.drawOptionsLocked(target)
	if err != nil {
		e.logger.Error("start round", zap.Error(err))
		return err
	}
	e.roundSeq++
	e.round = Round{
		Number:   e.roundSeq,
		Target:   target,
		Options:  options,
		disabled: make(map[WordID]bool),
	}
	e.phase = PhaseAwaiting
	view := e.roundViewLocked()
	e.emitLocked(Event{Kind: EventRoundStarted, Round: &view})
	return nil
}

// drawOptionsLocked samples distractors uniformly, rejecting duplicates.
func (e *Engine) drawOptionsLocked(target Word) ([]Word, error) {
	options := make([]Word, 1, OptionCount)
	options[0] = target
	seen := map[WordID]struct{}{target.ID: {}}
	for draws := 0; len(options) < OptionCount; draws++ {
		if draws >= maxOptionDraws {
			return nil, ErrOptionGeneration
		}
		w := e.words[e.rng.Intn(len(e.words))]
		if _, dup := seen[w.ID]; dup {
			continue
		}
		seen[w.ID] = struct{}{}
		options = append(options, w)
	}
	e.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options, nil
}

func (e *Engine) offeredLocked(id WordID) bool {
	for _, o := range e.round.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// revealTileLocked removes a random covered tile and returns it, or -1 if none remain.
func (e *Engine) revealTileLocked() int {
	if len(e.remaining) == 0 {
		return -1
	}
	i := e.rng.Intn(len(e.remaining))
	tile := e.remaining[i]
	e.remaining = append(e.remaining[:i], e.remaining[i+1:]...)
	return tile
}

func (e *Engine) learnLocked(w Word) *LearnedItem {
	if _, ok := e.learnedIDs[w.ID]; ok {
		return nil
	}
	e.learnedIDs[w.ID] = struct{}{}
	item := LearnedItem{Word: w, Label: w.Text(e.lang)}
	e.learned = append(e.learned, item)
	return &item
}

func (e *Engine) scheduleLocked() {
	e.advanceSeq++
	seq := e.advanceSeq
	e.pending = true
	e.deferred.Schedule(e.delay, func() { e.fireAdvance(seq) })
}

func (e *Engine) cancelPendingLocked() {
	e.advanceSeq++
	e.pending = false
	e.deferred.Stop()
}

// fireAdvance is the timer callback. A token from a superseded schedule is ignored.
func (e *Engine) fireAdvance(seq uint64) {
	e.lock()
	if seq != e.advanceSeq || !e.pending {
		e.unlock()
		return
	}
	if err := e.runPendingLocked(); err != nil {
		e.logger.Error("scheduled advance failed", zap.Error(err))
	}
	e.unlockAndEmit()
}

func (e *Engine) runPendingLocked() error {
	e.pending = false
	e.advanceSeq++
	switch e.phase {
	case PhaseAdvancing:
		return e.startRoundLocked()
	case PhaseComplete:
		e.revealed = true
		e.emitLocked(Event{Kind: EventSessionCompleted, RewardImage: e.reward})
	}
	return nil
}

func (e *Engine) roundViewLocked() RoundView {
	view := RoundView{
		Number:  e.round.Number,
		Prompt:  e.round.Target.Text(e.lang),
		Options: make([]OptionView, 0, len(e.round.Options)),
	}
	locked := e.phase != PhaseAwaiting
	for _, o := range e.round.Options {
		view.Options = append(view.Options, OptionView{
			ID:       o.ID,
			Image:    o.Image,
			Alt:      o.Alt(e.lang),
			Disabled: locked || e.round.disabled[o.ID],
		})
	}
	return view
}

func (e *Engine) emitLocked(ev Event) {
	e.outbox = append(e.outbox, ev)
}

// lock serialises a command. emitMu is always taken before mu and held
// until the command's events are delivered, so deliveries never interleave
// and a listener reading Snapshot only waits on mu.
func (e *Engine) lock() {
	e.emitMu.Lock()
	e.mu.Lock()
}

// unlock releases a command that queued no events.
func (e *Engine) unlock() {
	e.mu.Unlock()
	e.emitMu.Unlock()
}

// unlockAndEmit releases mu, delivers queued events, then releases emitMu.
func (e *Engine) unlockAndEmit() {
	events := e.outbox
	e.outbox = nil
	e.mu.Unlock()
	defer e.emitMu.Unlock()
	for _, ev := range events {
		for _, l := range e.listeners {
			l(ev)
		}
	}
}
