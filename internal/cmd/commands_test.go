package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ttgen/pkg/job"
	"github.com/3leaps/ttgen/pkg/report"
)

// batchFixture writes two jobs (a and b) and a JSON spec naming them.
func batchFixture(t *testing.T, dir string) string {
	t.Helper()
	writeFile(t, filepath.Join(dir, "data.json"), `{"who":"world"}`)
	writeFile(t, filepath.Join(dir, "page.tmpl"), `Hello {{.root.who}}`)

	jobs := []*job.Job{
		{Name: "a", Data: "data.json", Template: "page.tmpl", Output: "out/a.txt"},
		{Name: "b", Data: "data.json", Template: "page.tmpl", Output: "out/b.txt"},
	}
	raw, err := json.Marshal(jobs)
	require.NoError(t, err)

	spec := filepath.Join(dir, "ttgen.json")
	writeFile(t, spec, string(raw))
	return spec
}

func lines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestGenerate_Stdout(t *testing.T) {
	dir := workspace(t)
	writeFile(t, filepath.Join(dir, "data.json"), `{"who":"world"}`)
	writeFile(t, filepath.Join(dir, "page.tmpl"), `Hello {{.root.who}} from {{.name}}`)

	stdout, _, err := executeCommand(t, "generate", "page.tmpl", "data.json")
	require.NoError(t, err)
	assert.Equal(t, "Hello world from ttgen", stdout)

	stdout, _, err = executeCommand(t, "generate", "page.tmpl", "data.json", "-")
	require.NoError(t, err)
	assert.Equal(t, "Hello world from ttgen", stdout)
}

func TestGenerate_File(t *testing.T) {
	dir := workspace(t)
	writeFile(t, filepath.Join(dir, "data.json"), `{"who":"file"}`)
	writeFile(t, filepath.Join(dir, "page.tmpl"), `Hello {{.root.who}}`)

	stdout, _, err := executeCommand(t, "generate", "page.tmpl", "data.json", "nested/out.txt")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	content, err := os.ReadFile(filepath.Join(dir, "nested", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Hello file", string(content))
}

func TestGenerate_MissingInputs(t *testing.T) {
	workspace(t)

	_, _, err := executeCommand(t, "generate", "nope.tmpl", "nope.json")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileNotFound, exitCode(err))
	assert.Contains(t, err.Error(), "missing file: data file: nope.json")
	assert.Contains(t, err.Error(), "missing file: template file: nope.tmpl")
}

func TestGenerate_RenderError(t *testing.T) {
	dir := workspace(t)
	writeFile(t, filepath.Join(dir, "data.json"), `{}`)
	writeFile(t, filepath.Join(dir, "page.tmpl"), `{{.root.missing.deeper}}`)

	_, _, err := executeCommand(t, "generate", "page.tmpl", "data.json")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, exitCode(err))
}

func TestGenerate_Args(t *testing.T) {
	workspace(t)

	_, _, err := executeCommand(t, "generate", "only-one")
	assert.Error(t, err)
}

func TestMultigen_BuildsThenSkips(t *testing.T) {
	dir := workspace(t)
	spec := batchFixture(t, dir)

	stdout, stderr, err := executeCommand(t, "multigen", spec, "-j", "2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"success: a", "success: b"}, lines(stdout))
	assert.Contains(t, stderr, "generate: 2 jobs, 2 succeeded")

	content, err := os.ReadFile(filepath.Join(dir, "out", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", string(content))

	// Make the outputs unambiguously newer than the inputs.
	later := time.Now().Add(time.Hour)
	for _, name := range []string{"a", "b"} {
		require.NoError(t, os.Chtimes(filepath.Join(dir, "out", name+".txt"), later, later))
	}

	stdout, _, err = executeCommand(t, "multigen", spec)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"skipped: a (up to date)", "skipped: b (up to date)"}, lines(stdout))

	stdout, _, err = executeCommand(t, "multigen", spec, "--force", "--only", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"success: a"}, lines(stdout))
}

func TestMultigen_FailureIsReportedNotFatal(t *testing.T) {
	dir := workspace(t)
	spec := batchFixture(t, dir)
	writeFile(t, filepath.Join(dir, "bad.tmpl"), `{{.root.nope.deeper}}`)
	writeFile(t, spec, `[
		{"name":"a","data":"data.json","template":"page.tmpl","output":"out/a.txt"},
		{"name":"bad","data":"data.json","template":"bad.tmpl","output":"out/bad.txt"}
	]`)

	stdout, stderr, err := executeCommand(t, "multigen", spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"success: a"}, lines(stdout))
	assert.Contains(t, stderr, "error: bad:")

	_, _, err = executeCommand(t, "multigen", spec, "--strict", "--force")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileWriteError, exitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 jobs failed")
}

func TestMultigen_BadSpec(t *testing.T) {
	dir := workspace(t)
	spec := filepath.Join(dir, "ttgen.json")
	writeFile(t, spec, `[{"name":"a"}]`)

	_, _, err := executeCommand(t, "multigen", spec)
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, exitCode(err))

	_, _, err = executeCommand(t, "multigen", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileNotFound, exitCode(err))
}

func TestClean(t *testing.T) {
	dir := workspace(t)
	spec := batchFixture(t, dir)
	writeFile(t, filepath.Join(dir, "out", "a.txt"), "old")

	stdout, _, err := executeCommand(t, "clean", spec)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"removed: a", "skipped: b (output absent)"}, lines(stdout))
	assert.NoFileExists(t, filepath.Join(dir, "out", "a.txt"))
}

func TestReport(t *testing.T) {
	dir := workspace(t)
	spec := batchFixture(t, dir)
	writeFile(t, filepath.Join(dir, "out", "a.txt"), "old")
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "out", "a.txt"), later, later))

	stdout, _, err := executeCommand(t, "report", "multigen", spec)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"would skip: a (up to date)", "would build: b (file missing)"}, lines(stdout))
	assert.NoFileExists(t, filepath.Join(dir, "out", "b.txt"))

	stdout, _, err = executeCommand(t, "dry-run", "clean", spec)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"would remove: a", "nothing to remove: b"}, lines(stdout))
	assert.FileExists(t, filepath.Join(dir, "out", "a.txt"))

	stdout, _, err = executeCommand(t, "report", "count", spec)
	require.NoError(t, err)
	assert.Equal(t, "count: 2\n", stdout)

	_, _, err = executeCommand(t, "report", "explode", spec)
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, exitCode(err))
}

func TestReport_JSONL(t *testing.T) {
	dir := workspace(t)
	spec := batchFixture(t, dir)

	stdout, _, err := executeCommand(t, "report", "multigen", spec, "--format", "jsonl")
	require.NoError(t, err)

	records := lines(stdout)
	require.Len(t, records, 3)

	var runID string
	types := map[string]int{}
	for _, line := range records {
		var rec report.Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		types[rec.Type]++
		if runID == "" {
			runID = rec.RunID
		}
		assert.Equal(t, runID, rec.RunID)
	}
	assert.NotEmpty(t, runID)
	assert.Equal(t, 2, types[report.TypeOutcome])
	assert.Equal(t, 1, types[report.TypeSummary])
}

func TestMultigen_MetricsTextfile(t *testing.T) {
	dir := workspace(t)
	spec := batchFixture(t, dir)
	promFile := filepath.Join(dir, "ttgen.prom")
	writeFile(t, filepath.Join(dir, "ttgen.yaml"), "metrics:\n  textfile: "+promFile+"\n")

	_, _, err := executeCommand(t, "multigen", spec)
	require.NoError(t, err)

	content, err := os.ReadFile(promFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `ttgen_job_results_total{action="generate",outcome="success"} 2`)
}

func TestValidate(t *testing.T) {
	dir := workspace(t)
	spec := batchFixture(t, dir)

	stdout, _, err := executeCommand(t, "validate", spec)
	require.NoError(t, err)
	assert.Equal(t, "ok: 2 jobs\n", stdout)

	writeFile(t, spec, `[
		{"name":"a","data":"data.json","template":"page.tmpl","output":"out/a.txt"},
		{"name":"ghost","data":"ghost.json","template":"ghost.tmpl","output":"out/ghost.txt"}
	]`)
	stdout, _, err = executeCommand(t, "validate", spec)
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileNotFound, exitCode(err))
	assert.Equal(t, []string{
		"ghost: missing data file: ghost.json",
		"ghost: missing template file: ghost.tmpl",
	}, lines(stdout))
}

func TestWatchedPaths(t *testing.T) {
	jobs := []*job.Job{
		{Name: "a", Data: "a.json", Template: "a.tmpl"},
		{Name: "b", Data: "b.json", Template: "b.tmpl"},
	}
	assert.Equal(t, []string{"spec.json", "a.json", "a.tmpl", "b.json", "b.tmpl"}, watchedPaths("spec.json", jobs))
}

func TestWatch_InterruptExitsWithSignalCode(t *testing.T) {
	dir := workspace(t)
	spec := batchFixture(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// Wait for the initial build so the cancel lands inside the watch loop.
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(filepath.Join(dir, "out", "b.txt")); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err := executeCommandContext(t, ctx, "watch", spec, "--debounce", "10ms")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitSignalInt, exitCode(err))
	assert.FileExists(t, filepath.Join(dir, "out", "a.txt"))
}

func TestWatchExit(t *testing.T) {
	assert.NoError(t, watchExit(context.Background(), nil))
	assert.ErrorIs(t, watchExit(context.Background(), assert.AnError), assert.AnError)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := watchExit(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, foundry.ExitSignalInt, exitCode(err))
	assert.ErrorIs(t, err, context.Canceled)
}
