package analyzer

import (
	"context"
	"strings"

	"github.com/01cheese/OnlineCompiler/task"
)

// JavaScriptAnalyzer rejects JavaScript source containing a denylisted token
// anywhere in its text, comments and string literals included.
type JavaScriptAnalyzer struct {
	policy JavaScriptPolicy
}

// NewJavaScriptAnalyzer creates a JavaScriptAnalyzer from a policy.
func NewJavaScriptAnalyzer(policy JavaScriptPolicy) *JavaScriptAnalyzer {
	return &JavaScriptAnalyzer{policy: policy}
}

// Analyze checks module names first, then loader tokens, then dynamic calls.
func (a *JavaScriptAnalyzer) Analyze(_ context.Context, source string) Verdict {
	for _, module := range a.policy.Modules {
		if strings.Contains(source, module) {
			return reject(task.KindSafetyViolation, "Error: Using prohibited module %s!", module)
		}
	}

	for _, loader := range a.policy.Loaders {
		if strings.Contains(source, loader) {
			return reject(task.KindSafetyViolation, "Error: Use of `require()` and `import` is not allowed!")
		}
	}

	for _, call := range a.policy.Calls {
		if strings.Contains(source, call) {
			return reject(task.KindSafetyViolation, "Error: Use of `%s()` is prohibited!", strings.TrimSuffix(call, "("))
		}
	}

	return pass()
}

// CPPAnalyzer rejects C++ source that includes a denylisted header or
// contains a denylisted call token.
type CPPAnalyzer struct {
	policy CPPPolicy
}

// NewCPPAnalyzer creates a CPPAnalyzer from a policy.
func NewCPPAnalyzer(policy CPPPolicy) *CPPAnalyzer {
	return &CPPAnalyzer{policy: policy}
}

func (a *CPPAnalyzer) Analyze(_ context.Context, source string) Verdict {
	includes := includeDirectives(source)
	for _, header := range a.policy.Headers {
		if strings.Contains(source, "#include <"+header+">") {
			return reject(task.KindSafetyViolation, "Error: Use of forbidden library %s!", header)
		}
		if _, ok := includes[header]; ok {
			return reject(task.KindSafetyViolation, "Error: Use of forbidden library %s!", header)
		}
	}

	for _, call := range a.policy.Calls {
		if strings.Contains(source, call) {
			return reject(task.KindSafetyViolation, "Error: Use of prohibited function %s!", call)
		}
	}

	return pass()
}

// includeDirectives collects the targets of every #include line, tolerating
// whitespace anywhere in the directive and either delimiter style.
func includeDirectives(source string) map[string]struct{} {
	found := make(map[string]struct{})
	for _, line := range strings.Split(source, "\n") {
		directive := compact(line)
		rest, ok := strings.CutPrefix(directive, "#include")
		if !ok || len(rest) < 2 {
			continue
		}

		var closing byte
		switch rest[0] {
		case '<':
			closing = '>'
		case '"':
			closing = '"'
		default:
			continue
		}

		if end := strings.IndexByte(rest[1:], closing); end >= 0 {
			found[rest[1:1+end]] = struct{}{}
		}
	}
	return found
}
