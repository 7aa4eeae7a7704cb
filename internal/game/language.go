package game

import (
	"errors"
	"fmt"
)

// Language selects which text is shown for each word.
type Language string

const (
	LangFrench  Language = "french"
	LangEnglish Language = "english"
	LangBoth    Language = "french+english"
)

// ErrUnknownLanguage is returned for a mode outside SupportedLanguages.
var ErrUnknownLanguage = errors.New("unknown language")

// EndMessage is shown in place of the prompt once the reward is revealed.
const EndMessage = "Bravo !"

// SupportedLanguages returns the selectable modes in display order.
func SupportedLanguages() []Language {
	return []Language{LangFrench, LangEnglish, LangBoth}
}

// ParseLanguage validates s as a Language.
func ParseLanguage(s string) (Language, error) {
	for _, lang := range SupportedLanguages() {
		if string(lang) == s {
			return lang, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
}

// Label is the language selector caption.
func (l Language) Label() string {
	switch l {
	case LangEnglish:
		return "English"
	case LangBoth:
		return "Français + English"
	default:
		return "Français"
	}
}

// RestartLabel is the text of the restart button.
func (l Language) RestartLabel() string {
	switch l {
	case LangEnglish:
		return "Restart"
	case LangBoth:
		return "Rejouer / Restart"
	default:
		return "Rejouer"
	}
}

// ReviewTitle heads the list of words to review.
func (l Language) ReviewTitle() string {
	switch l {
	case LangEnglish:
		return "Words to review"
	case LangBoth:
		return "Mots à réviser / Words to review"
	default:
		return "Mots à réviser"
	}
}
