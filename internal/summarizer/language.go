package summarizer

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// DefaultLanguage is used whenever detection is impossible or unsupported
const DefaultLanguage = "en"

var supportedLanguages = map[string]string{
	"te": "Telugu",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ar": "Arabic",
	"hi": "Hindi",
	"nl": "Dutch",
	"sv": "Swedish",
	"da": "Danish",
	"no": "Norwegian",
	"fi": "Finnish",
}

// detector codes that are folded into a supported language
var languageAliases = map[string]string{
	"ca":    "es",
	"zh-cn": "zh",
	"zh-tw": "zh",
	"nb":    "no",
	"nn":    "no",
}

// Languages returns a copy of the supported language map (code -> English name)
func Languages() map[string]string {
	out := make(map[string]string, len(supportedLanguages))
	for code, name := range supportedLanguages {
		out[code] = name
	}
	return out
}

// IsSupported reports whether code is a supported language code
func IsSupported(code string) bool {
	_, ok := supportedLanguages[code]
	return ok
}

// LanguageName returns the English name of a language code, or "Unknown"
func LanguageName(code string) string {
	if name, ok := supportedLanguages[code]; ok {
		return name
	}
	return "Unknown"
}

// DetectLanguage returns the ISO 639-1 code of text, falling back to English
// for short, undetectable or unsupported input.
func DetectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 10 {
		return DefaultLanguage
	}

	info := whatlanggo.Detect(text)
	code := strings.ToLower(info.Lang.Iso6391())
	if alias, ok := languageAliases[code]; ok {
		code = alias
	}

	if IsSupported(code) {
		return code
	}
	return DefaultLanguage
}
