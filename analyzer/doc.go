// Package analyzer screens submitted source before it is executed.
//
// Python source is parsed into a syntax tree with tree-sitter and rejected
// when it imports a denylisted module or calls a dynamic-execution builtin.
// JavaScript and C++ source is scanned lexically for denylisted tokens.
//
// Screening is a fast pre-filter layered in front of the container sandbox,
// which is the actual isolation boundary. The lexical scanners over-reject
// (any substring match counts) and none of the analyzers see through
// obfuscation such as string concatenation or encoded payloads.
//
// Usage:
//
//	policies, err := analyzer.LoadPolicies()
//	a, err := analyzer.New(task.LanguagePython, policies)
//	verdict := a.Analyze(ctx, "import os")
//	// verdict.Reason == "Forbidden module: os"
package analyzer
