// Package lang describes the supported languages, their speech tags and scripts.
package lang

import (
	"fmt"
	"strings"
)

// Language is a supported input language.
type Language struct {
	Name      string
	SpeechTag string
	Script    string
	Native    string
	// First and Last bound the script's Unicode block.
	First rune
	Last  rune
}

var languages = []Language{
	{Name: "hindi", SpeechTag: "hi-IN", Script: "Devanagari", Native: "हिंदी", First: 0x0900, Last: 0x097F},
	{Name: "tamil", SpeechTag: "ta-IN", Script: "Tamil", Native: "தமிழ்", First: 0x0B80, Last: 0x0BFF},
	{Name: "telugu", SpeechTag: "te-IN", Script: "Telugu", Native: "తెలుగు", First: 0x0C00, Last: 0x0C7F},
	{Name: "kannada", SpeechTag: "kn-IN", Script: "Kannada", Native: "ಕನ್ನಡ", First: 0x0C80, Last: 0x0CFF},
}

// All returns the supported languages in display order.
func All() []Language {
	return append([]Language(nil), languages...)
}

// Names returns the supported language names in display order.
func Names() []string {
	out := make([]string, len(languages))
	for i, l := range languages {
		out[i] = l.Name
	}
	return out
}

// ByName looks up a language by name, case-insensitively.
func ByName(name string) (Language, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, l := range languages {
		if l.Name == name {
			return l, true
		}
	}
	return Language{}, false
}

// BySpeechTag looks up a language by its BCP-47 speech tag, case-insensitively.
func BySpeechTag(tag string) (Language, bool) {
	tag = strings.TrimSpace(tag)
	for _, l := range languages {
		if strings.EqualFold(l.SpeechTag, tag) {
			return l, true
		}
	}
	return Language{}, false
}

// Resolve accepts either a name or a speech tag.
func Resolve(value string) (Language, error) {
	if l, ok := ByName(value); ok {
		return l, nil
	}
	if l, ok := BySpeechTag(value); ok {
		return l, nil
	}
	return Language{}, fmt.Errorf("unsupported language %q (available: %s)", value, strings.Join(Names(), ", "))
}

// Contains reports whether r belongs to the language's script block.
func (l Language) Contains(r rune) bool {
	return r >= l.First && r <= l.Last
}

// Detect returns the first language whose script appears in text.
func Detect(text string) (Language, bool) {
	for _, r := range text {
		for _, l := range languages {
			if l.Contains(r) {
				return l, true
			}
		}
	}
	return Language{}, false
}
