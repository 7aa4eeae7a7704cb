package game

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed data/game_data.json
var dataFS embed.FS

// MinWords is the smallest vocabulary that can fill one round of options.
const MinWords = OptionCount

var (
	// ErrEmptyDataset means the dataset has no words at all.
	ErrEmptyDataset = errors.New("dataset has no words")
	// ErrTooFewWords means fewer distinct words than options per round.
	ErrTooFewWords = errors.New("dataset has too few distinct words")
)

// WordID is a stable word identifier. The JSON form may be a number or a string.
type WordID string

// UnmarshalJSON accepts both `7` and `"7"`.
func (id *WordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = WordID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("word id must be a string or number: %w", err)
	}
	*id = WordID(n.String())
	return nil
}

// Word is one vocabulary entry with its text per language and its image.
type Word struct {
	ID      WordID `json:"id"`
	French  string `json:"french"`
	English string `json:"english"`
	Image   string `json:"image"`
}

// Text returns the word's display text in lang.
func (w Word) Text(lang Language) string {
	switch lang {
	case LangEnglish:
		return w.English
	case LangBoth:
		return w.French + " / " + w.English
	default:
		return w.French
	}
}

// Alt returns image alt text in lang. Both-languages mode uses the French text.
func (w Word) Alt(lang Language) string {
	if lang == LangEnglish {
		return w.English
	}
	return w.French
}

// Dataset is the vocabulary and reward images loaded at startup.
type Dataset struct {
	Words        []Word   `json:"words"`
	RewardImages []string `json:"rewardImages"`
}

// Validate reports whether the dataset can drive a session.
func (d *Dataset) Validate() error {
	if d == nil || len(d.Words) == 0 {
		return ErrEmptyDataset
	}
	distinct := make(map[WordID]struct{}, len(d.Words))
	for i, w := range d.Words {
		if w.ID == "" {
			return fmt.Errorf("word %d: missing id", i)
		}
		distinct[w.ID] = struct{}{}
	}
	if len(distinct) < MinWords {
		return fmt.Errorf("%w: have %d, need %d", ErrTooFewWords, len(distinct), MinWords)
	}
	return nil
}

// LoadDataset decodes and validates a JSON dataset.
func LoadDataset(r io.Reader) (*Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// LoadDatasetFile reads the dataset at path.
func LoadDatasetFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f)
}

// DefaultDataset returns the dataset embedded in the binary.
func DefaultDataset() (*Dataset, error) {
	b, err := dataFS.ReadFile("data/game_data.json")
	if err != nil {
		return nil, err
	}
	return LoadDataset(bytes.NewReader(b))
}
