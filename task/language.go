package task

import "strings"

// Canonical language names.
const (
	LanguagePython     = "python"
	LanguageJavaScript = "javascript"
	LanguageCPP        = "cpp"
)

// defaultAliases maps the tags clients send to canonical names. The numeric
// tags are the language ids sent by the web client.
var defaultAliases = map[string]string{
	"python":     LanguagePython,
	"py":         LanguagePython,
	"python3":    LanguagePython,
	"71":         LanguagePython,
	"javascript": LanguageJavaScript,
	"js":         LanguageJavaScript,
	"nodejs":     LanguageJavaScript,
	"node":       LanguageJavaScript,
	"63":         LanguageJavaScript,
	"cpp":        LanguageCPP,
	"c++":        LanguageCPP,
	"54":         LanguageCPP,
}

// CanonicalLanguage resolves a language tag to its canonical name. The second
// return value is false when the tag is unknown.
func CanonicalLanguage(tag string) (string, bool) {
	name, ok := defaultAliases[strings.ToLower(strings.TrimSpace(tag))]
	return name, ok
}
