package jobfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livinlefevreloca/cronexec/internal/job"
	"github.com/livinlefevreloca/cronexec/internal/testutil"
)

var backup = job.Spec{Name: "backup", Schedule: "0 30 2 * * *", Process: "/usr/bin/rsync", Command: "-a /src /dst"}
var report = job.Spec{Name: "report", Schedule: "@hourly", Process: "/bin/report"}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json list",
			file: "jobconfig.json",
			content: `[
				{"name": "backup", "schedule": "0 30 2 * * *", "process": "/usr/bin/rsync", "command": "-a /src /dst"},
				{"name": "report", "schedule": "@hourly", "process": "/bin/report", "command": ""}
			]`,
		},
		{
			name: "jsonc with comments and trailing commas",
			file: "jobs.jsonc",
			content: `{
				// nightly copy
				"jobs": [
					{"name": "backup", "schedule": "0 30 2 * * *", "process": "/usr/bin/rsync", "command": "-a /src /dst",},
					/* hourly */
					{"name": "report", "schedule": "@hourly", "process": "/bin/report"},
				],
			}`,
		},
		{
			name: "yaml list",
			file: "jobs.yaml",
			content: `
- name: backup
  schedule: "0 30 2 * * *"
  process: /usr/bin/rsync
  command: -a /src /dst
- name: report
  schedule: "@hourly"
  process: /bin/report
`,
		},
		{
			name: "yaml document",
			file: "jobs.yml",
			content: `
jobs:
  - name: backup
    schedule: "0 30 2 * * *"
    process: /usr/bin/rsync
    command: -a /src /dst
  - name: report
    schedule: "@hourly"
    process: /bin/report
`,
		},
		{
			name: "toml",
			file: "jobs.toml",
			content: `
[[job]]
name = "backup"
schedule = "0 30 2 * * *"
process = "/usr/bin/rsync"
command = "-a /src /dst"

[[job]]
name = "report"
schedule = "@hourly"
process = "/bin/report"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)

			specs, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, []job.Spec{backup, report}, specs)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.json", "b.yaml", "c.toml"} {
		specs, err := Load(writeFile(t, dir, name, ""))
		require.NoError(t, err, name)
		assert.NotNil(t, specs, name)
		assert.Empty(t, specs, name)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "jobs.ini", "[jobs]"))
	assert.True(t, errors.Is(err, ErrFormat), "got %v", err)

	_, err = Load(writeFile(t, dir, "bad.json", `[{"name": }]`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "bad.yaml", "- name: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "typo.toml", "[[jobs]]\nname = \"x\"\n"))
	assert.Error(t, err, "unknown TOML keys must be rejected")
}

func TestLoad_DoesNotValidate(t *testing.T) {
	path := writeFile(t, t.TempDir(), "jobs.json", `[{"name": "half"}]`)

	specs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Error(t, specs[0].Validate())
}

type changes struct {
	mu    sync.Mutex
	lists [][]job.Spec
}

func (c *changes) record(specs []job.Spec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = append(c.lists, specs)
}

func (c *changes) get() [][]job.Spec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]job.Spec(nil), c.lists...)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "jobconfig.json", `[]`)
	logger := testutil.NewTestLogger()

	w := NewWatcher(path, []job.Spec{}, logger.Logger())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got changes
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, got.record) }()

	testutil.WaitFor(t, func() bool { return logger.CountMessage("watching job file") == 1 }, 2*time.Second, "watcher start")

	// Unrelated files in the same directory are ignored
	writeFile(t, dir, "other.json", `[{"name": "x"}]`)

	writeFile(t, dir, "jobconfig.json", `[{"name": "report", "schedule": "@hourly", "process": "/bin/report"}]`)
	testutil.WaitFor(t, func() bool { return len(got.get()) == 1 }, 2*time.Second, "reload")
	assert.Equal(t, []job.Spec{report}, got.get()[0])

	// A broken file keeps the previous list
	writeFile(t, dir, "jobconfig.json", `[{"name": `)
	testutil.WaitFor(t, func() bool { return logger.HasError() }, 2*time.Second, "parse error")
	assert.Len(t, got.get(), 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "nope", "jobs.json"), nil, testutil.NewTestLogger().Logger())
	err := w.Watch(context.Background(), func([]job.Spec) {})
	assert.Error(t, err)
}
