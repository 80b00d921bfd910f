package analyzer

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/01cheese/OnlineCompiler/task"
)

// PythonAnalyzer rejects Python source by inspecting its syntax tree.
type PythonAnalyzer struct {
	modules map[string]struct{}
	calls   map[string]struct{}
}

// NewPythonAnalyzer creates a PythonAnalyzer from a policy.
func NewPythonAnalyzer(policy PythonPolicy) *PythonAnalyzer {
	return &PythonAnalyzer{
		modules: toSet(policy.Modules),
		calls:   toSet(policy.Calls),
	}
}

// Analyze parses the source and walks every node. Source that does not parse
// is rejected.
func (a *PythonAnalyzer) Analyze(ctx context.Context, source string) Verdict {
	src := []byte(source)

	// Parsers are not safe for concurrent use, so each call gets its own.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return reject(task.KindMalformedSource, "Error parsing code: %v", err)
	}

	root := tree.RootNode()
	if bad := firstErrorNode(root); bad != nil || root.HasError() {
		return reject(task.KindMalformedSource, "Error parsing code: %s", describeSyntaxError(bad))
	}

	// Level order, so the shallowest violation is the one reported.
	queue := []*sitter.Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if v, found := a.check(n, src); found {
			return v
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			queue = append(queue, n.NamedChild(i))
		}
	}
	return pass()
}

// check inspects a single node.
func (a *PythonAnalyzer) check(n *sitter.Node, src []byte) (Verdict, bool) {
	switch n.Type() {
	case "import_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			name := importedName(n.NamedChild(i), src)
			if a.forbiddenModule(name) {
				return reject(task.KindSafetyViolation, "Forbidden module: %s", name), true
			}
		}
	case "import_from_statement":
		if m := n.ChildByFieldName("module_name"); m != nil {
			module := strings.TrimLeft(compact(m.Content(src)), ".")
			if module != "" && a.forbiddenModule(module) {
				return reject(task.KindSafetyViolation, "Prohibited import from module: %s", module), true
			}
		}
	case "call":
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
			name := fn.Content(src)
			if _, ok := a.calls[name]; ok {
				return reject(task.KindSafetyViolation, "Forbidden function: %s()", name), true
			}
		}
	}
	return Verdict{}, false
}

func (a *PythonAnalyzer) forbiddenModule(name string) bool {
	top, _, _ := strings.Cut(name, ".")
	_, ok := a.modules[top]
	return ok
}

// importedName returns the dotted module name of an import clause, without
// its alias.
func importedName(n *sitter.Node, src []byte) string {
	if n.Type() == "aliased_import" {
		if name := n.ChildByFieldName("name"); name != nil {
			return compact(name.Content(src))
		}
	}
	return compact(n.Content(src))
}

// python2Statements parse with the grammar but are not valid Python 3.
var python2Statements = map[string]struct{}{
	"print_statement": {},
	"exec_statement":  {},
}

func describeSyntaxError(bad *sitter.Node) string {
	if bad == nil {
		return "invalid syntax"
	}
	return fmt.Sprintf("invalid syntax (line %d)", bad.StartPoint().Row+1)
}

// firstErrorNode returns the first error, missing or Python 2 only node.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if _, ok := python2Statements[n.Type()]; ok {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstErrorNode(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
