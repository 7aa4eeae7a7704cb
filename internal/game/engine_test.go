package game

import (
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picmatch/pkg/realtime"
)

type manualTimer struct {
	mu      sync.Mutex
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// manualClock records scheduled callbacks without running them.
type manualClock struct {
	mu  sync.Mutex
	fns []func()
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) realtime.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, f)
	return &manualTimer{}
}

// fire runs the i-th scheduled callback regardless of whether it was stopped,
// the way a runtime timer can race with Stop.
func (c *manualClock) fire(i int) {
	c.mu.Lock()
	f := c.fns[i]
	c.mu.Unlock()
	f()
}

func (c *manualClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

func testDataset() *Dataset {
	return &Dataset{
		Words: []Word{
			{ID: "A", French: "chat", English: "cat", Image: "a.png"},
			{ID: "B", French: "chien", English: "dog", Image: "b.png"},
			{ID: "C", French: "pomme", English: "apple", Image: "c.png"},
			{ID: "D", French: "maison", English: "house", Image: "d.png"},
		},
		RewardImages: []string{"r1.jpg", "r2.jpg"},
	}
}

func newTestEngine(t *testing.T, seed int64, opts ...Option) (*Engine, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	base := []Option{
		WithRand(rand.New(rand.NewSource(seed))),
		WithAfterFunc(clock.AfterFunc),
	}
	e, err := NewEngine(testDataset(), append(base, opts...)...)
	require.NoError(t, err)
	return e, clock
}

func wrongOption(t *testing.T, r Round) WordID {
	t.Helper()
	for _, o := range r.Options {
		if o.ID != r.Target.ID && !r.Disabled(o.ID) {
			return o.ID
		}
	}
	t.Fatal("no wrong option left")
	return ""
}

func answerCorrect(t *testing.T, e *Engine) Result {
	t.Helper()
	res, err := e.SubmitAnswer(e.CurrentRound().Target.ID)
	require.NoError(t, err)
	require.True(t, res.Correct)
	return res
}

func assertTileInvariant(t *testing.T, e *Engine) {
	t.Helper()
	assert.Equal(t, CoverTiles-len(e.RemainingTiles()), e.Correct())
}

func TestNewEngine_InvalidDataset(t *testing.T) {
	tests := []struct {
		name    string
		dataset *Dataset
		wantErr error
	}{
		{name: "nil dataset", dataset: nil, wantErr: ErrEmptyDataset},
		{name: "no words", dataset: &Dataset{}, wantErr: ErrEmptyDataset},
		{
			name: "two words",
			dataset: &Dataset{Words: []Word{
				{ID: "1", French: "un"}, {ID: "2", French: "deux"},
			}},
			wantErr: ErrTooFewWords,
		},
		{
			name: "duplicate ids",
			dataset: &Dataset{Words: []Word{
				{ID: "1"}, {ID: "1"}, {ID: "2"}, {ID: "2"},
			}},
			wantErr: ErrTooFewWords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEngine(tt.dataset)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, e)
		})
	}
}

func TestNewEngine_UnknownLanguage(t *testing.T) {
	_, err := NewEngine(testDataset(), WithLanguage("klingon"))
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestNewEngine_InitialState(t *testing.T) {
	e, _ := newTestEngine(t, 1)

	assert.Equal(t, PhaseAwaiting, e.Phase())
	assert.Equal(t, LangFrench, e.Language())
	assert.Equal(t, 0, e.Correct())
	assert.Len(t, e.RemainingTiles(), CoverTiles)
	assert.Empty(t, e.Learned())
	assert.Equal(t, 1, e.CurrentRound().Number)
	assert.Contains(t, []string{"r1.jpg", "r2.jpg"}, e.Snapshot().RewardImage)
}

func TestStartRound_OptionsDistinctAndContainTarget(t *testing.T) {
	e, _ := newTestEngine(t, 42)

	for i := 0; i < 200; i++ {
		require.NoError(t, e.StartRound())
		r := e.CurrentRound()
		require.Len(t, r.Options, OptionCount)

		seen := make(map[WordID]bool)
		targets := 0
		for _, o := range r.Options {
			assert.False(t, seen[o.ID], "duplicate option %s", o.ID)
			seen[o.ID] = true
			if o.ID == r.Target.ID {
				targets++
			}
		}
		assert.Equal(t, 1, targets)
		assert.False(t, r.Failed)
	}
}

func TestStartRound_MinimalVocabulary(t *testing.T) {
	ds := &Dataset{Words: []Word{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	e, err := NewEngine(ds, WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, e.StartRound())
		assert.Len(t, e.CurrentRound().Options, OptionCount)
	}
}

func TestSubmitAnswer_WrongTwiceThenCorrect(t *testing.T) {
	e, _ := newTestEngine(t, 3)
	round := e.CurrentRound()

	for i := 0; i < 2; i++ {
		res, err := e.SubmitAnswer(wrongOption(t, e.CurrentRound()))
		require.NoError(t, err)
		assert.False(t, res.Correct)
		assert.Equal(t, -1, res.RevealedTile)
		assert.Equal(t, PhaseAwaiting, e.Phase())
	}
	assert.Equal(t, round.Target.ID, e.CurrentRound().Target.ID, "target must not change on a miss")
	assert.True(t, e.CurrentRound().Failed)
	assert.Equal(t, 0, e.Correct())

	res := answerCorrect(t, e)
	assert.True(t, res.Learned)
	assert.False(t, res.Complete)
	assert.GreaterOrEqual(t, res.RevealedTile, 0)

	learned := e.Learned()
	require.Len(t, learned, 1)
	assert.Equal(t, round.Target.ID, learned[0].Word.ID)
	assert.Equal(t, round.Target.French, learned[0].Label)
	assert.Equal(t, 1, e.Correct())
	assert.Len(t, e.RemainingTiles(), CoverTiles-1)
	assert.NotContains(t, e.RemainingTiles(), res.RevealedTile)
	assert.Equal(t, PhaseAdvancing, e.Phase())
}

func TestSubmitAnswer_InvalidCommandsLeaveStateUntouched(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	before := e.Snapshot()

	_, err := e.SubmitAnswer("nope")
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.Equal(t, before, e.Snapshot())

	wrong := wrongOption(t, e.CurrentRound())
	_, err = e.SubmitAnswer(wrong)
	require.NoError(t, err)
	afterMiss := e.Snapshot()

	_, err = e.SubmitAnswer(wrong)
	assert.ErrorIs(t, err, ErrOptionDisabled)
	assert.Equal(t, afterMiss, e.Snapshot())

	answerCorrect(t, e)
	advancing := e.Snapshot()
	_, err = e.SubmitAnswer(e.CurrentRound().Target.ID)
	assert.ErrorIs(t, err, ErrNotAwaitingAnswer)
	assert.Equal(t, advancing, e.Snapshot())
}

func TestSession_NineCorrectWithoutFailing(t *testing.T) {
	var got []EventKind
	e, clock := newTestEngine(t, 9, WithListener(func(ev Event) {
		if ev.Kind == EventSessionCompleted {
			got = append(got, ev.Kind)
		}
	}))

	for i := 1; i <= CoverTiles; i++ {
		res := answerCorrect(t, e)
		assertTileInvariant(t, e)
		assert.Equal(t, i, e.Correct())
		assert.Equal(t, i == CoverTiles, res.Complete)
		if i < CoverTiles {
			clock.fire(clock.count() - 1)
			assert.Equal(t, PhaseAwaiting, e.Phase())
			assert.Equal(t, i+1, e.CurrentRound().Number)
		}
	}

	assert.Equal(t, PhaseComplete, e.Phase())
	assert.Empty(t, e.Learned())
	assert.Empty(t, e.RemainingTiles())
	assert.False(t, e.Snapshot().Revealed)

	assert.ErrorIs(t, e.StartRound(), ErrSessionComplete)
	_, err := e.SubmitAnswer(e.CurrentRound().Target.ID)
	assert.ErrorIs(t, err, ErrNotAwaitingAnswer)

	clock.fire(clock.count() - 1)
	snap := e.Snapshot()
	assert.True(t, snap.Revealed)
	assert.Equal(t, EndMessage, snap.Prompt)
	assert.Empty(t, snap.Round.Options)
	assert.Equal(t, []EventKind{EventSessionCompleted}, got)
	for _, covered := range snap.Covered {
		assert.False(t, covered)
	}
}

func TestSwitchLanguage_MidRound(t *testing.T) {
	e, clock := newTestEngine(t, 11)

	_, err := e.SubmitAnswer(wrongOption(t, e.CurrentRound()))
	require.NoError(t, err)
	answerCorrect(t, e)
	clock.fire(clock.count() - 1)
	_, err = e.SubmitAnswer(wrongOption(t, e.CurrentRound()))
	require.NoError(t, err)

	correct := e.Correct()
	learned := e.Learned()
	number := e.CurrentRound().Number

	require.NoError(t, e.SwitchLanguage(LangEnglish))

	assert.Equal(t, LangEnglish, e.Language())
	assert.Equal(t, correct, e.Correct())
	assert.Equal(t, learned, e.Learned())
	r := e.CurrentRound()
	assert.Equal(t, number+1, r.Number)
	assert.False(t, r.Failed, "abandoned round must not count as a failure")
	assert.Equal(t, r.Target.English, e.Snapshot().Prompt)
	assert.Equal(t, "Restart", e.Snapshot().RestartLabel)
}

func TestSwitchLanguage_Unknown(t *testing.T) {
	e, _ := newTestEngine(t, 12)
	number := e.CurrentRound().Number
	assert.ErrorIs(t, e.SwitchLanguage("german"), ErrUnknownLanguage)
	assert.Equal(t, number, e.CurrentRound().Number)
	assert.Equal(t, LangFrench, e.Language())
}

func TestSwitchLanguage_SupersedesPendingAdvance(t *testing.T) {
	e, clock := newTestEngine(t, 13)
	answerCorrect(t, e)
	stale := clock.count() - 1

	require.NoError(t, e.SwitchLanguage(LangBoth))
	number := e.CurrentRound().Number
	assert.False(t, e.Pending())

	clock.fire(stale)
	assert.Equal(t, number, e.CurrentRound().Number)
	assert.Equal(t, PhaseAwaiting, e.Phase())
	assert.Equal(t, 1, e.Correct())

	r := e.CurrentRound()
	assert.Equal(t, r.Target.French+" / "+r.Target.English, e.Snapshot().Prompt)
}

func TestSwitchLanguage_AfterComplete(t *testing.T) {
	e, clock := newTestEngine(t, 14)
	for i := 0; i < CoverTiles; i++ {
		answerCorrect(t, e)
		if i < CoverTiles-1 {
			clock.fire(clock.count() - 1)
		}
	}
	require.Equal(t, PhaseComplete, e.Phase())

	require.NoError(t, e.SwitchLanguage(LangEnglish))
	assert.Equal(t, PhaseComplete, e.Phase())
	assert.Equal(t, "Words to review", e.Snapshot().ReviewTitle)
	assert.True(t, e.Pending(), "reward reveal stays scheduled")
}

func TestRestart_MidSession(t *testing.T) {
	e, clock := newTestEngine(t, 21)

	_, err := e.SubmitAnswer(wrongOption(t, e.CurrentRound()))
	require.NoError(t, err)
	answerCorrect(t, e)
	clock.fire(clock.count() - 1)
	for e.Correct() < 5 {
		answerCorrect(t, e)
		clock.fire(clock.count() - 1)
	}
	require.Equal(t, 5, e.Correct())
	require.Len(t, e.Learned(), 1)
	_, err = e.SubmitAnswer(wrongOption(t, e.CurrentRound()))
	require.NoError(t, err)
	number := e.CurrentRound().Number

	require.NoError(t, e.Restart())

	assert.Equal(t, 0, e.Correct())
	assert.Len(t, e.RemainingTiles(), CoverTiles)
	assert.Empty(t, e.Learned())
	assert.Equal(t, PhaseAwaiting, e.Phase())
	r := e.CurrentRound()
	assert.Equal(t, number+1, r.Number)
	assert.False(t, r.Failed)
	assert.False(t, e.Snapshot().Revealed)
}

func TestRestart_AfterComplete(t *testing.T) {
	e, clock := newTestEngine(t, 22)
	for i := 0; i < CoverTiles; i++ {
		answerCorrect(t, e)
		clock.fire(clock.count() - 1)
	}
	require.True(t, e.Snapshot().Revealed)

	require.NoError(t, e.Restart())
	snap := e.Snapshot()
	assert.Equal(t, PhaseAwaiting, snap.Phase)
	assert.False(t, snap.Revealed)
	assert.Equal(t, 0, snap.Correct)
	assert.Len(t, snap.Remaining, CoverTiles)
	assert.Len(t, snap.Round.Options, OptionCount)
}

func TestRestart_SupersedesPendingAdvance(t *testing.T) {
	e, clock := newTestEngine(t, 23)
	answerCorrect(t, e)
	stale := clock.count() - 1

	require.NoError(t, e.Restart())
	number := e.CurrentRound().Number

	clock.fire(stale)
	assert.Equal(t, number, e.CurrentRound().Number, "stale advance must not start a round")
	assert.Equal(t, 0, e.Correct())
	assert.Equal(t, PhaseAwaiting, e.Phase())
}

func TestAdvance(t *testing.T) {
	e, clock := newTestEngine(t, 31)

	ok, err := e.Advance()
	require.NoError(t, err)
	assert.False(t, ok, "nothing pending")

	answerCorrect(t, e)
	ok, err = e.Advance()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, e.CurrentRound().Number)

	// The timer for the advance that already ran is now stale.
	clock.fire(clock.count() - 1)
	assert.Equal(t, 2, e.CurrentRound().Number)
}

func TestLearned_DistinctAcrossRounds(t *testing.T) {
	ds := &Dataset{Words: []Word{{ID: "1", French: "un"}, {ID: "2", French: "deux"}, {ID: "3", French: "trois"}}}
	e, err := NewEngine(ds,
		WithRand(rand.New(rand.NewSource(99))),
		WithAfterFunc((&manualClock{}).AfterFunc),
	)
	require.NoError(t, err)

	for i := 0; i < CoverTiles; i++ {
		_, err := e.SubmitAnswer(wrongOption(t, e.CurrentRound()))
		require.NoError(t, err)
		answerCorrect(t, e)
		assertTileInvariant(t, e)
		_, err = e.Advance()
		require.NoError(t, err)
	}

	learned := e.Learned()
	assert.LessOrEqual(t, len(learned), 3)
	seen := make(map[WordID]bool)
	for _, item := range learned {
		assert.False(t, seen[item.Word.ID], "word %s learned twice", item.Word.ID)
		seen[item.Word.ID] = true
	}
}

func TestLearned_OnlyAfterFailure(t *testing.T) {
	e, _ := newTestEngine(t, 41)
	for i := 0; i < CoverTiles; i++ {
		fail := i%2 == 0
		target := e.CurrentRound().Target.ID
		if fail {
			_, err := e.SubmitAnswer(wrongOption(t, e.CurrentRound()))
			require.NoError(t, err)
		}
		res := answerCorrect(t, e)
		if !fail {
			assert.False(t, res.Learned)
		}
		if res.Learned {
			assert.Equal(t, target, e.Learned()[len(e.Learned())-1].Word.ID)
		}
		_, err := e.Advance()
		require.NoError(t, err)
	}
	assert.NotEmpty(t, e.Learned())
}

func TestInvariant_RandomPlay(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	e, _ := newTestEngine(t, 2024)

	for step := 0; step < 500; step++ {
		switch p := e.Phase(); {
		case p == PhaseAwaiting && rng.Intn(10) == 0:
			require.NoError(t, e.SwitchLanguage(SupportedLanguages()[rng.Intn(3)]))
		case p == PhaseAwaiting:
			r := e.CurrentRound()
			pick := r.Options[rng.Intn(len(r.Options))].ID
			_, err := e.SubmitAnswer(pick)
			if err != nil {
				assert.ErrorIs(t, err, ErrOptionDisabled)
			}
		case p == PhaseAdvancing:
			_, err := e.Advance()
			require.NoError(t, err)
		default:
			require.NoError(t, e.Restart())
		}
		assertTileInvariant(t, e)
		assert.LessOrEqual(t, e.Correct(), CoverTiles)
	}
}

func TestEvents_Order(t *testing.T) {
	var kinds []EventKind
	var progress []Event
	e, clock := newTestEngine(t, 51, WithListener(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventProgressChanged {
			progress = append(progress, ev)
		}
	}))
	require.Equal(t, []EventKind{EventRoundStarted}, kinds)
	kinds = nil

	_, err := e.SubmitAnswer(wrongOption(t, e.CurrentRound()))
	require.NoError(t, err)
	res := answerCorrect(t, e)
	clock.fire(clock.count() - 1)
	require.NoError(t, e.Restart())

	assert.Equal(t, []EventKind{
		EventAnswerResult,
		EventAnswerResult,
		EventProgressChanged,
		EventLearnedItemAdded,
		EventRoundStarted,
		EventSessionRestarted,
		EventRoundStarted,
	}, kinds)
	require.Len(t, progress, 1)
	assert.Equal(t, 1, progress[0].Correct)
	assert.Equal(t, res.RevealedTile, progress[0].Tile)
}

func TestEvents_ListenerMaySnapshot(t *testing.T) {
	var e *Engine
	var prompts []string
	listener := func(ev Event) {
		if ev.Kind == EventRoundStarted && e != nil {
			prompts = append(prompts, e.Snapshot().Prompt)
		}
	}
	e, _ = newTestEngine(t, 52, WithListener(listener))
	require.NoError(t, e.StartRound())
	require.Len(t, prompts, 1)
	assert.Equal(t, e.CurrentRound().Target.French, prompts[0])
}

func TestEvents_ListenerSnapshotsUnderConcurrentCommands(t *testing.T) {
	var e *Engine
	listener := func(Event) {
		if e != nil {
			e.Snapshot()
			runtime.Gosched()
		}
	}
	var err error
	e, err = NewEngine(testDataset(),
		WithRand(rand.New(rand.NewSource(53))),
		WithAdvanceDelay(time.Microsecond),
		WithListener(listener),
	)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 2000; i++ {
					if g == 0 {
						_ = e.SwitchLanguage(LangEnglish)
					} else {
						_ = e.SwitchLanguage(LangFrench)
						_, _ = e.SubmitAnswer(e.CurrentRound().Target.ID)
					}
				}
			}(g)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("commands blocked while a listener read the snapshot")
	}
	e.Close()
	assertTileInvariant(t, e)
}

func TestSnapshot_OptionsLockedWhileAdvancing(t *testing.T) {
	e, _ := newTestEngine(t, 61)
	for _, o := range e.Snapshot().Round.Options {
		assert.False(t, o.Disabled)
	}
	answerCorrect(t, e)
	for _, o := range e.Snapshot().Round.Options {
		assert.True(t, o.Disabled)
	}
}

func TestSystemTimerAdvances(t *testing.T) {
	e, err := NewEngine(testDataset(), WithAdvanceDelay(time.Millisecond))
	require.NoError(t, err)
	answerCorrect(t, e)
	require.Eventually(t, func() bool {
		return e.Phase() == PhaseAwaiting && e.CurrentRound().Number == 2
	}, 2*time.Second, 5*time.Millisecond)
}
