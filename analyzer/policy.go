package analyzer

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed denylist.yaml
var denylistYAML []byte

// Policies holds the denylists of every language. It is loaded once at
// start-up and never modified afterwards.
type Policies struct {
	Python     PythonPolicy     `yaml:"python"`
	JavaScript JavaScriptPolicy `yaml:"javascript"`
	CPP        CPPPolicy        `yaml:"cpp"`
}

// PythonPolicy lists top-level modules that may not be imported and
// builtins that may not be called.
type PythonPolicy struct {
	Modules []string `yaml:"modules"`
	Calls   []string `yaml:"calls"`
}

// JavaScriptPolicy lists raw tokens rejected in JavaScript source.
type JavaScriptPolicy struct {
	Modules []string `yaml:"modules"`
	Loaders []string `yaml:"loaders"`
	Calls   []string `yaml:"calls"`
}

// CPPPolicy lists headers that may not be included and call tokens that may
// not appear in C++ source.
type CPPPolicy struct {
	Headers []string `yaml:"headers"`
	Calls   []string `yaml:"calls"`
}

// LoadPolicies parses the embedded denylist tables.
func LoadPolicies() (*Policies, error) {
	return ParsePolicies(denylistYAML)
}

// ParsePolicies parses denylist tables from YAML.
func ParsePolicies(data []byte) (*Policies, error) {
	var p Policies
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("error parsing denylist: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("denylist validation error: %w", err)
	}
	return &p, nil
}

func (p *Policies) validate() error {
	if len(p.Python.Modules) == 0 {
		return fmt.Errorf("python.modules must not be empty")
	}
	if len(p.Python.Calls) == 0 {
		return fmt.Errorf("python.calls must not be empty")
	}
	if len(p.JavaScript.Modules) == 0 {
		return fmt.Errorf("javascript.modules must not be empty")
	}
	if len(p.CPP.Headers) == 0 {
		return fmt.Errorf("cpp.headers must not be empty")
	}

	for _, tables := range [][]string{
		p.Python.Modules, p.Python.Calls,
		p.JavaScript.Modules, p.JavaScript.Loaders, p.JavaScript.Calls,
		p.CPP.Headers, p.CPP.Calls,
	} {
		for _, entry := range tables {
			if entry == "" {
				return fmt.Errorf("denylist entries must not be empty")
			}
		}
	}

	return nil
}
