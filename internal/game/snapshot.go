package game

// Snapshot captures the state needed for rendering UI fragments.
type Snapshot struct {
	Phase        Phase
	Language     Language
	Round        RoundView
	Failed       bool
	Correct      int
	Total        int
	Remaining    []int
	Covered      [CoverTiles]bool
	Learned      []LearnedItem
	RewardImage  string
	Revealed     bool
	Prompt       string
	RestartLabel string
	ReviewTitle  string
}

// Complete reports whether all tiles have been cleared.
func (s Snapshot) Complete() bool {
	return s.Phase == PhaseComplete
}

// Snapshot returns a consistent view of the current session.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Phase:        e.phase,
		Language:     e.lang,
		Round:        e.roundViewLocked(),
		Failed:       e.round.Failed,
		Correct:      e.correct,
		Total:        CoverTiles,
		Remaining:    append([]int(nil), e.remaining...),
		Learned:      append([]LearnedItem(nil), e.learned...),
		RewardImage:  e.reward,
		Revealed:     e.revealed,
		RestartLabel: e.lang.RestartLabel(),
		ReviewTitle:  e.lang.ReviewTitle(),
	}
	for _, tile := range e.remaining {
		snap.Covered[tile] = true
	}
	snap.Prompt = snap.Round.Prompt
	if e.revealed {
		snap.Prompt = EndMessage
		snap.Round.Options = nil
	}
	return snap
}
