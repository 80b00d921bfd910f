package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const maxWorkspaceTag = 36

// workspace is a host directory private to one execution.
type workspace struct {
	fs  FileSystem
	dir string
}

// prepareWorkspace creates a fresh directory under root (the system temp dir
// when empty) and writes the source into it under the language's file name.
// Concurrent executions never share a directory.
func prepareWorkspace(fs FileSystem, root, taskID string, lang Language, source string) (*workspace, error) {
	dir, err := fs.MkdirTemp(root, "task-"+workspaceTag(taskID)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	ws := &workspace{fs: fs, dir: dir}

	if err := fs.Chmod(dir, DirPermission); err != nil {
		_ = fs.RemoveAll(dir)
		return nil, fmt.Errorf("failed to set workspace permissions: %w", err)
	}

	if err := fs.WriteFile(ws.sourcePath(lang), []byte(source), FilePermission); err != nil {
		_ = fs.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write source: %w", err)
	}

	return ws, nil
}

func (w *workspace) sourcePath(lang Language) string {
	return filepath.Join(w.dir, lang.FileName)
}

func (w *workspace) release(logger *zap.Logger) {
	if err := w.fs.RemoveAll(w.dir); err != nil {
		logger.Error("failed to remove workspace", zap.String("path", w.dir), zap.Error(err))
	}
}

// workspaceTag reduces a task id to characters safe in a directory or
// container name.
func workspaceTag(taskID string) string {
	var b strings.Builder
	for _, r := range taskID {
		if b.Len() == maxWorkspaceTag {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "anon"
	}
	return b.String()
}
