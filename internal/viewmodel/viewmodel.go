package viewmodel

// LanguageOption is a language choice for the selector.
type LanguageOption struct {
	Code     string
	Label    string
	Selected bool
}

// HomePage holds data for the landing page.
type HomePage struct {
	Title     string
	Languages []LanguageOption
}

// PlayPage holds data for the main quiz page template.
type PlayPage struct {
	Title     string
	SessionID string
	Languages []LanguageOption
	Board     BoardFragment
	Cover     CoverFragment
	Review    ReviewFragment
}

// BoardFragment holds the prompt and the answer buttons.
type BoardFragment struct {
	SessionID string
	Round     int
	Prompt    string
	Options   []OptionButton
	Failed    bool
	Advancing bool
	Complete  bool
	Revealed  bool
	RoundKey  string
}

// OptionButton is one clickable image.
type OptionButton struct {
	ID       string
	Image    string
	Alt      string
	Disabled bool
}

// CoverFragment holds the reward image, its cover tiles and the restart control.
type CoverFragment struct {
	SessionID    string
	RewardImage  string
	Covered      []bool
	Correct      int
	Total        int
	Revealed     bool
	RestartLabel string
}

// ReviewItem is one word on the review list.
type ReviewItem struct {
	Label string
	Image string
}

// ReviewFragment holds the words to review.
type ReviewFragment struct {
	Title string
	Items []ReviewItem
}
