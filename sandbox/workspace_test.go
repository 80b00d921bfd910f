package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/01cheese/OnlineCompiler/task"
)

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	mu             sync.Mutex
	mkdirTempErr   error
	chmodErr       error
	writeFileErr   error
	removeAllErr   error
	writeFileData  map[string][]byte
	removed        []string
	mkdirTempCalls int
}

func (m *MockFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mkdirTempErr != nil {
		return "", m.mkdirTempErr
	}
	m.mkdirTempCalls++
	return filepath.Join(dir, pattern), nil
}

func (m *MockFileSystem) Chmod(string, os.FileMode) error {
	return m.chmodErr
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeFileErr != nil {
		return m.writeFileErr
	}
	if m.writeFileData == nil {
		m.writeFileData = make(map[string][]byte)
	}
	m.writeFileData[filename] = data
	return nil
}

func (m *MockFileSystem) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, path)
	return m.removeAllErr
}

func TestWorkspaceTag(t *testing.T) {
	tests := []struct {
		taskID   string
		expected string
	}{
		{"abc-123", "abc-123"},
		{"../../etc/passwd", "etcpasswd"},
		{"", "anon"},
		{"///", "anon"},
		{"0123456789012345678901234567890123456789", "012345678901234567890123456789012345"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, workspaceTag(tt.taskID))
		})
	}
}

func TestPrepareWorkspace(t *testing.T) {
	lang := DefaultLanguages()[task.LanguagePython]

	t.Run("WritesSourceUnderFixedName", func(t *testing.T) {
		root := t.TempDir()
		ws, err := prepareWorkspace(RealFileSystem{}, root, "t1", lang, `print("hi")`)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(ws.dir, "run.py"))
		require.NoError(t, err)
		assert.Equal(t, `print("hi")`, string(data))

		info, err := os.Stat(ws.dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(DirPermission), info.Mode().Perm())

		ws.release(zaptest.NewLogger(t))
		_, err = os.Stat(ws.dir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("ConcurrentTasksNeverShare", func(t *testing.T) {
		root := t.TempDir()
		const n = 20

		workspaces := make([]*workspace, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ws, err := prepareWorkspace(RealFileSystem{}, root, "same-id", lang, fmt.Sprintf("print(%d)", i))
				assert.NoError(t, err)
				workspaces[i] = ws
			}(i)
		}
		wg.Wait()

		seen := make(map[string]struct{}, n)
		for i, ws := range workspaces {
			require.NotNil(t, ws)
			_, dup := seen[ws.dir]
			assert.False(t, dup, "workspace %s allocated twice", ws.dir)
			seen[ws.dir] = struct{}{}

			data, err := os.ReadFile(filepath.Join(ws.dir, "run.py"))
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("print(%d)", i), string(data))
		}

		for _, ws := range workspaces {
			ws.release(zaptest.NewLogger(t))
		}
	})

	t.Run("MkdirTempError", func(t *testing.T) {
		fs := &MockFileSystem{mkdirTempErr: errors.New("disk full")}
		_, err := prepareWorkspace(fs, "", "t1", lang, "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create workspace")
	})

	t.Run("WriteErrorRemovesDirectory", func(t *testing.T) {
		fs := &MockFileSystem{writeFileErr: errors.New("read-only")}
		_, err := prepareWorkspace(fs, "/work", "t1", lang, "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to write source")
		assert.Equal(t, []string{"/work/task-t1-*"}, fs.removed)
	})
}
