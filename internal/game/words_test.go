package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDataset(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   error
		wantWords int
	}{
		{
			name: "numeric and string ids",
			input: `{"words":[
				{"id":1,"french":"chat","english":"cat","image":"cat.png"},
				{"id":"2","french":"chien","english":"dog","image":"dog.png"},
				{"id":3,"french":"pomme","english":"apple","image":"apple.png"}
			],"rewardImages":["r.jpg"]}`,
			wantWords: 3,
		},
		{
			name:    "empty words",
			input:   `{"words":[],"rewardImages":["r.jpg"]}`,
			wantErr: ErrEmptyDataset,
		},
		{
			name:    "missing words",
			input:   `{"rewardImages":[]}`,
			wantErr: ErrEmptyDataset,
		},
		{
			name:    "too few distinct words",
			input:   `{"words":[{"id":1},{"id":"1"},{"id":2}]}`,
			wantErr: ErrTooFewWords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := LoadDataset(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ds)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ds.Words, tt.wantWords)
		})
	}
}

func TestLoadDataset_Malformed(t *testing.T) {
	_, err := LoadDataset(strings.NewReader(`{"words":`))
	assert.Error(t, err)

	_, err = LoadDataset(strings.NewReader(`{"words":[{"id":true}]}`))
	assert.Error(t, err)
}

func TestLoadDataset_MissingID(t *testing.T) {
	_, err := LoadDataset(strings.NewReader(`{"words":[{"french":"a"},{"id":2},{"id":3}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestWordID_Normalised(t *testing.T) {
	ds, err := LoadDataset(strings.NewReader(`{"words":[{"id":10},{"id":" 11 "},{"id":12.5}]}`))
	require.NoError(t, err)
	assert.Equal(t, WordID("10"), ds.Words[0].ID)
	assert.Equal(t, WordID("11"), ds.Words[1].ID)
	assert.Equal(t, WordID("12.5"), ds.Words[2].ID)
}

func TestLoadDatasetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game_data.json")
	body := `{"words":[{"id":1},{"id":2},{"id":3}],"rewardImages":["a.jpg","b.jpg"]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	ds, err := LoadDatasetFile(path)
	require.NoError(t, err)
	assert.Len(t, ds.Words, 3)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, ds.RewardImages)

	_, err = LoadDatasetFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultDataset(t *testing.T) {
	ds, err := DefaultDataset()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(ds.Words), MinWords)
	assert.NotEmpty(t, ds.RewardImages)
}

func TestWord_Text(t *testing.T) {
	w := Word{ID: "1", French: "chat", English: "cat"}
	assert.Equal(t, "chat", w.Text(LangFrench))
	assert.Equal(t, "cat", w.Text(LangEnglish))
	assert.Equal(t, "chat / cat", w.Text(LangBoth))
	assert.Equal(t, "chat", w.Alt(LangBoth))
	assert.Equal(t, "cat", w.Alt(LangEnglish))
}

func TestLanguage(t *testing.T) {
	for _, lang := range SupportedLanguages() {
		got, err := ParseLanguage(string(lang))
		require.NoError(t, err)
		assert.Equal(t, lang, got)
		assert.NotEmpty(t, lang.Label())
	}
	_, err := ParseLanguage("")
	assert.ErrorIs(t, err, ErrUnknownLanguage)

	assert.Equal(t, "Rejouer", LangFrench.RestartLabel())
	assert.Equal(t, "Rejouer / Restart", LangBoth.RestartLabel())
	assert.Equal(t, "Mots à réviser", LangFrench.ReviewTitle())
	assert.Equal(t, "Mots à réviser / Words to review", LangBoth.ReviewTitle())
}
