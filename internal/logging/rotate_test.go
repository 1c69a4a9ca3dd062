package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chunk = 700 << 10

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func backups(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "app-*.log"))
	require.NoError(t, err)
	return matches
}

func TestRotatingFileWriter_Rotates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	w := NewRotatingFileWriter(path, 1, 1)
	t.Cleanup(func() { _ = w.Close() })

	for _, c := range []string{"a", "b", "c"} {
		line := strings.Repeat(c, chunk-1) + "\n"
		n, err := w.Write([]byte(line))
		require.NoError(t, err)
		require.Equal(t, len(line), n)
	}

	current := readFile(t, path)
	require.Len(t, current, chunk)
	require.True(t, strings.HasPrefix(current, "c"))
	require.Eventually(t, func() bool { return len(backups(t, dir)) == 1 },
		5*time.Second, 10*time.Millisecond, "only the newest backup is kept")
}

func TestRotatingFileWriter_OversizedWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	w := NewRotatingFileWriter(path, 0, 0)
	t.Cleanup(func() { _ = w.Close() })

	_, err := w.Write([]byte(strings.Repeat("x", 2<<20)))
	require.Error(t, err, "a single record is never split")
	_, err = w.Write([]byte("small\n"))
	require.NoError(t, err)
	require.Equal(t, "small\n", readFile(t, path))
}

func TestRotatingFileWriter_AppendsToExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))
	w := NewRotatingFileWriter(path, 1, 5)
	_, err := w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	require.Equal(t, "old\nnew\n", readFile(t, path))
}

func TestRotatingFileWriter_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "app.log")
	w := NewRotatingFileWriter(path, 1, 1)
	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.Equal(t, "hello\n", readFile(t, path))
}

func TestRotatingFileWriter_Concurrent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	w := NewRotatingFileWriter(path, 1, 1)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := w.Write([]byte("line\n"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())
	require.Equal(t, 8*50, strings.Count(readFile(t, path), "line\n"))
}
