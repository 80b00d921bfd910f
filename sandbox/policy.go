package sandbox

import (
	"time"

	"github.com/01cheese/OnlineCompiler/task"
)

// Default resource policy.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMemoryBytes = 128 * 1024 * 1024
	DefaultNanoCPUs    = 500_000_000
	DefaultPidsLimit   = 64
	DefaultOutputLimit = 150_000
	DefaultUser        = "nobody"

	// DefaultLaunchTimeout bounds image pulls, container creation and log
	// retrieval, none of which count towards the execution deadline.
	DefaultLaunchTimeout = 2 * time.Minute
)

// File permission constants. The workspace must be readable by the
// unprivileged container user.
const (
	DirPermission  = 0o755
	FilePermission = 0o644
)

// MountPoint is where the workspace appears inside the container.
const MountPoint = "/sandbox"

// Policy is the resource envelope applied to every execution. It is fixed at
// start-up and never varies per request.
type Policy struct {
	Timeout     time.Duration
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
	// OutputLimit is the number of characters kept from combined output.
	OutputLimit int
	User        string
	// LaunchTimeout bounds the daemon calls made outside the execution
	// deadline. Zero means DefaultLaunchTimeout.
	LaunchTimeout time.Duration
}

// DefaultPolicy returns the stock resource envelope.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:       DefaultTimeout,
		MemoryBytes:   DefaultMemoryBytes,
		NanoCPUs:      DefaultNanoCPUs,
		PidsLimit:     DefaultPidsLimit,
		OutputLimit:   DefaultOutputLimit,
		User:          DefaultUser,
		LaunchTimeout: DefaultLaunchTimeout,
	}
}

func (p Policy) launchTimeout() time.Duration {
	if p.LaunchTimeout <= 0 {
		return DefaultLaunchTimeout
	}
	return p.LaunchTimeout
}

// captureLimit is the byte budget for raw output. A UTF-8 rune is at most
// four bytes, so keeping 4*(limit+1) bytes is always enough to decide
// whether truncation applies.
func (p Policy) captureLimit() int {
	if p.OutputLimit <= 0 {
		return 0
	}
	return 4 * (p.OutputLimit + 1)
}

// Language describes how one language runs inside the sandbox.
type Language struct {
	Name     string
	Image    string
	FileName string
	Command  []string
}

// DefaultLanguages returns the runtimes keyed by canonical language name.
func DefaultLanguages() map[string]Language {
	return map[string]Language{
		task.LanguagePython: {
			Name:     task.LanguagePython,
			Image:    "python:3.11-slim",
			FileName: "run.py",
			Command:  []string{"python3", "-u", MountPoint + "/run.py"},
		},
		task.LanguageJavaScript: {
			Name:     task.LanguageJavaScript,
			Image:    "node:20-alpine",
			FileName: "script.js",
			Command:  []string{"node", MountPoint + "/script.js"},
		},
		task.LanguageCPP: {
			Name:     task.LanguageCPP,
			Image:    "gcc:13",
			FileName: "main.cpp",
			Command:  []string{"sh", "-c", "g++ -O2 -o /tmp/a.out " + MountPoint + "/main.cpp && /tmp/a.out"},
		},
	}
}
