package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/01cheese/OnlineCompiler/task"
)

// ErrUnsupportedLanguage is returned by New for languages without an analyzer.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Verdict is the outcome of screening one source text.
type Verdict struct {
	Passed bool
	Reason string
	Kind   task.Kind
}

// Analyzer screens source text for one language.
type Analyzer interface {
	Analyze(ctx context.Context, source string) Verdict
}

// New returns the analyzer for a canonical language name.
func New(language string, policies *Policies) (Analyzer, error) {
	if policies == nil {
		return nil, fmt.Errorf("policies are required")
	}

	switch language {
	case task.LanguagePython:
		return NewPythonAnalyzer(policies.Python), nil
	case task.LanguageJavaScript:
		return NewJavaScriptAnalyzer(policies.JavaScript), nil
	case task.LanguageCPP:
		return NewCPPAnalyzer(policies.CPP), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
}

func pass() Verdict {
	return Verdict{Passed: true}
}

func reject(kind task.Kind, format string, args ...any) Verdict {
	return Verdict{
		Passed: false,
		Reason: fmt.Sprintf(format, args...),
		Kind:   kind,
	}
}
