package game

// EventKind names a notification emitted by the engine.
type EventKind string

const (
	EventRoundStarted     EventKind = "round_started"
	EventAnswerResult     EventKind = "answer_result"
	EventProgressChanged  EventKind = "progress_changed"
	EventLearnedItemAdded EventKind = "learned_item_added"
	EventSessionRestarted EventKind = "session_restarted"
	EventLanguageChanged  EventKind = "language_changed"
	EventSessionCompleted EventKind = "session_completed"
)

// Event carries the payload for one notification. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind EventKind

	// EventRoundStarted
	Round *RoundView
	// EventAnswerResult
	Result *Result
	// EventProgressChanged
	Correct int
	Tile    int
	// EventLearnedItemAdded
	Item *LearnedItem
	// EventLanguageChanged
	Language Language
	// EventSessionCompleted
	RewardImage string
}

// Listener receives engine events in the order they happened. Listeners run
// outside the engine lock and may call Snapshot, but must not issue commands.
type Listener func(Event)

// RoundView is the part of a round that is safe to show the player.
type RoundView struct {
	Number  int
	Prompt  string
	Options []OptionView
}

// OptionView is one answer choice as rendered.
type OptionView struct {
	ID       WordID
	Image    string
	Alt      string
	Disabled bool
}

// Result is the outcome of SubmitAnswer.
type Result struct {
	Correct  bool
	Complete bool
	// RevealedTile is the cover tile cleared by this answer, or -1.
	RevealedTile int
	// Learned is set when the word was added to the review list by this answer.
	Learned bool
}

// LearnedItem is a word on the review list. Label is the text shown when it was learned.
type LearnedItem struct {
	Word  Word
	Label string
}
