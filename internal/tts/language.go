package tts

import (
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used for every locale outside Languages.
const DefaultLanguage = "en"

// Languages is the fixed set of synthesis languages, DefaultLanguage first.
var Languages = []string{"en", "es"}

var supportedTags = []language.Tag{language.English, language.Spanish}

var matcher = language.NewMatcher(supportedTags)

// IsSupported reports whether code names a synthesis language exactly.
func IsSupported(code string) bool {
	return slices.Contains(Languages, strings.ToLower(strings.TrimSpace(code)))
}

// ResolveLanguage maps an interface locale to a synthesis language. Regional
// variants resolve to their base language ("es-MX" is "es"); anything
// unparsable or unsupported resolves to DefaultLanguage.
func ResolveLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return DefaultLanguage
	}

	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}

	base, confidence := tag.Base()
	if confidence != language.Exact {
		return DefaultLanguage
	}
	if slices.Contains(Languages, base.String()) {
		return base.String()
	}
	return DefaultLanguage
}

// MatchAcceptLanguage returns the best supported language for an
// Accept-Language header, or false when nothing in it matches.
func MatchAcceptLanguage(header string) (string, bool) {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}

	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return "", false
	}
	return Languages[index], true
}
