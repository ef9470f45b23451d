package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// wordForms maps full language names to BCP 47 codes, covering the spoken
// names speech-to-text tools sometimes emit instead of codes.
var wordForms = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

func parse(code string) (language.Tag, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return language.Und, false
	}
	if mapped, ok := wordForms[code]; ok {
		code = mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// ToISO2 converts any recognized language identifier (ISO code, BCP 47 tag,
// or full English name) to ISO 639-1. Returns empty string for unrecognized
// input, except that unknown 2-letter codes pass through.
func ToISO2(code string) string {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return ""
	}
	if tag, ok := parse(trimmed); ok {
		base, conf := tag.Base()
		if conf != language.No {
			if s := base.String(); len(s) == 2 {
				return s
			}
		}
	}
	if len(trimmed) == 2 {
		return trimmed
	}
	return ""
}

// ToISO3 converts any recognized language identifier to ISO 639-3. Returns
// "und" for unrecognized input, passing through unknown 3-letter codes.
func ToISO3(code string) string {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return "und"
	}
	if tag, ok := parse(trimmed); ok {
		base, conf := tag.Base()
		if conf != language.No {
			if iso3 := base.ISO3(); iso3 != "" {
				return iso3
			}
		}
	}
	if len(trimmed) == 3 {
		return trimmed
	}
	return "und"
}

// DisplayName returns a human-readable English name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized
// input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if tag, ok := parse(trimmed); ok {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}

// NormalizeList deduplicates and normalizes a list of language codes to ISO 639-1.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		trimmed := strings.ToLower(strings.TrimSpace(code))
		if trimmed == "" {
			continue
		}
		if mapped := ToISO2(trimmed); mapped != "" {
			trimmed = mapped
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
