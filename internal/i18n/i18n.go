// Package i18n provides localized user-facing messages
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
)

const (
	// DefaultLanguage is the fallback language when no translation is available
	DefaultLanguage = "en"
	// GermanMessages is the German translation
	GermanMessages = "de"
)

var matcher = language.NewMatcher([]language.Tag{language.English, language.German})

// Localizer provides translation functionality
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer creates a new localizer for the specified language
func NewLocalizer(language string) *Localizer {
	return &Localizer{
		language: language,
		messages: getMessages(language),
	}
}

// T translates a message key, with optional parameters for formatting
func (l *Localizer) T(key string, args ...interface{}) string {
	if message, exists := l.messages[key]; exists {
		if len(args) > 0 {
			return fmt.Sprintf(message, args...)
		}
		return message
	}

	// Fallback to English if key not found in current language
	if l.language != DefaultLanguage {
		if fallbackMessage, exists := getMessages(DefaultLanguage)[key]; exists {
			if len(args) > 0 {
				return fmt.Sprintf(fallbackMessage, args...)
			}
			return fallbackMessage
		}
	}

	// Ultimate fallback: return the key itself
	return key
}

// GetSupportedLanguages returns list of supported language codes
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, GermanMessages}
}

// IsSupported reports whether lang has a message table
func IsSupported(lang string) bool {
	for _, supported := range GetSupportedLanguages() {
		if supported == lang {
			return true
		}
	}
	return false
}

// MatchAcceptLanguage picks the supported language closest to an
// Accept-Language header, or fallback when nothing matches.
func MatchAcceptLanguage(header, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return GetSupportedLanguages()[index]
}

// getMessages returns the message map for a given language
func getMessages(language string) map[string]string {
	switch language {
	case DefaultLanguage:
		return englishMessages
	case GermanMessages:
		return germanMessages
	default:
		return englishMessages // Default to English
	}
}
