package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/btcore/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `
main_tree: main
blackboard:
  count: 1
trees:
  - id: main
    root:
      type: ReactiveSequence
      children:
        - type: Script
          ports: {expression: "count * 2", output: "{doubled}"}
        - type: Log
          ports: {message: done}
  - id: failing
    root: {type: AlwaysFailure}
  - id: slow
    root: {type: Sleep, ports: {duration: 1h}}
`

type testEnv struct {
	dir    string
	config string
	doc    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "config"),
		doc:    filepath.Join(dir, "trees.yaml"),
	}
	require.NoError(t, os.WriteFile(env.doc, []byte(testDocument), 0o644))
	return env
}

func (e *testEnv) execute(args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	err = newApp(&out, &errOut).execute(context.Background(), append([]string{"--config", e.config}, args...))
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, _, err := newTestEnv(t).execute("version")
	require.NoError(t, err)
	require.Equal(t, "btrun version "+version+"\n", out)
}

func TestRun_MainTree(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	out, logs, err := env.execute("run", env.doc, "--interval", "1ms", "--dump-blackboard", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "main: success (completed after 1 ticks, 1 episodes)")
	assert.Contains(t, out, "doubled: 2")
	assert.Contains(t, logs, "[BT] done")
	assert.Contains(t, logs, "[BT] status")
	assert.Contains(t, logs, "[Runner] tree stopped")
}

func TestRun_FailingTree(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	out, _, err := env.execute("run", env.doc, "--tree", "failing", "--interval", "1ms")
	require.ErrorContains(t, err, "tree failing failed")
	assert.Contains(t, out, "failing: failure (completed after 1 ticks, 1 episodes)")
}

func TestRun_FailureClosesLogFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	logFile := filepath.Join(env.dir, "btrun.log")
	require.NoError(t, os.WriteFile(env.config, []byte("log.file "+logFile+"\n"), 0o644))

	var out bytes.Buffer
	a := newApp(&out, io.Discard)
	err := a.execute(context.Background(), []string{"--config", env.config,
		"run", env.doc, "--tree", "failing", "--interval", "1ms", "--log-level", "debug"})
	require.ErrorContains(t, err, "tree failing failed")
	require.Nil(t, a.closer)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[BT] status")
}

func TestRun_SeveralTreesWithTickLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	out, _, err := env.execute("run", env.doc, "--tree", "main", "--tree", "slow",
		"--interval", "1ms", "--max-ticks", "3", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "main: success (completed after 1 ticks, 1 episodes)")
	assert.Contains(t, out, "slow: running (max-ticks after 3 ticks, 0 episodes)")
}

func TestRun_TreeSectionOfConfig(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.config, []byte("tick-interval 1ms\n[failing]\nrepeat true\nmax-ticks 4\n"), 0o644))
	out, _, err := env.execute("run", env.doc, "--tree", "failing", "--log-level", "error")
	require.ErrorContains(t, err, "tree failing failed")
	assert.Contains(t, out, "failing: failure (max-ticks after 4 ticks, 4 episodes)")
}

func TestRun_Metrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, _, err := env.execute("run", env.doc, "--interval", "1ms", "--metrics-addr", "127.0.0.1:0", "--log-level", "error")
	require.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, _, err := env.execute("run", filepath.Join(env.dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = env.execute("run", env.doc, "--tree", "nope", "--interval", "1ms")
	require.ErrorContains(t, err, "unknown tree")

	_, _, err = env.execute("run", env.doc, "--interval", "0s")
	require.ErrorContains(t, err, "interval must be positive")

	_, _, err = env.execute("run", env.doc, "--all", "--tree", "main")
	require.Error(t, err)

	_, _, err = env.execute("run", env.doc, "--log-format", "xml")
	require.ErrorContains(t, err, "xml")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	out, _, err := env.execute("validate", env.doc)
	require.NoError(t, err)
	require.Equal(t, env.doc+": 3 tree(s) valid\n  main\n  failing\n  slow\n", out)

	bad := filepath.Join(env.dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("trees:\n  - id: a\n    root: {type: Teleport}\n"), 0o644))
	_, _, err = env.execute("validate", bad)
	require.ErrorContains(t, err, "unknown node type")
}

func TestConfig(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	out, _, err := env.execute("config", "set", "max-ticks", "7")
	require.NoError(t, err)
	require.Equal(t, "Set configuration: max-ticks = 7\n", out)

	out, _, err = env.execute("config", "get", "max-ticks")
	require.NoError(t, err)
	require.Equal(t, "max-ticks: 7\n", out)

	_, _, err = env.execute("config", "set", "colour", "blue")
	require.ErrorContains(t, err, "unknown option")
	_, _, err = env.execute("config", "get", "colour")
	require.ErrorContains(t, err, "unknown option")

	out, _, err = env.execute("config", "validate")
	require.NoError(t, err)
	require.Equal(t, "Configuration is valid.\n", out)

	require.NoError(t, os.WriteFile(env.config, []byte("max-ticks lots\n"), 0o644))
	out, _, err = env.execute("config", "validate")
	require.NoError(t, err)
	require.Contains(t, out, "Configuration has 1 issue(s):")

	out, _, err = env.execute("config", "schema")
	require.NoError(t, err)
	require.Contains(t, out, "tick-interval")
	require.Contains(t, out, "per-tree")
}

func TestServeMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "btrun_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	addr, stop, err := serveMetrics("127.0.0.1:0", reg, logging.NewNop())
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "btrun_test_total 1")
}
