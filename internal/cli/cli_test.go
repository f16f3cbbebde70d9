package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/accord/internal/record"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// runCommand executes the CLI against a temp database and returns its
// stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupTestDB(t *testing.T) {
	t.Helper()
	t.Setenv("ACCORD_DB_PATH", filepath.Join(t.TempDir(), "accord.db"))
	t.Setenv("ACCORD_PEER_ID", "test-peer")
}

func TestPutAndGet(t *testing.T) {
	setupTestDB(t)

	out, err := runCommand(t, "put", "task-1", "name=Alice", "age=30", "active=true")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 field(s)")

	out, err = runCommand(t, "get", "task-1")
	require.NoError(t, err)
	assert.Contains(t, out, `name = "Alice"`)
	assert.Contains(t, out, "age = 30")
	assert.Contains(t, out, "active = true")
	assert.Contains(t, out, `writer=test-peer`)
}

func TestPut_JSONOutput(t *testing.T) {
	setupTestDB(t)

	out, err := runCommand(t, "--format", "json", "put", "task-1", "name=Alice")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestPut_TypedValues(t *testing.T) {
	setupTestDB(t)

	_, err := runCommand(t, "put", "task-1", `tags=["a","b"]`, `meta={"k":1}`, "note=not json {")
	require.NoError(t, err)

	out, err := runCommand(t, "get", "task-1")
	require.NoError(t, err)
	assert.Contains(t, out, `tags = ["a","b"]`)
	assert.Contains(t, out, `note = "not json {"`)
}

func TestPut_FloatRejected(t *testing.T) {
	setupTestDB(t)

	_, err := runCommand(t, "put", "task-1", "score=1.5")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGet_MissingRecord(t *testing.T) {
	setupTestDB(t)

	out, err := runCommand(t, "get", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, string(record.CodeNotFound))
}

func TestDelete_HidesField(t *testing.T) {
	setupTestDB(t)

	_, err := runCommand(t, "put", "task-1", "name=Alice", "age=30")
	require.NoError(t, err)

	_, err = runCommand(t, "del", "task-1", "age")
	require.NoError(t, err)

	out, err := runCommand(t, "get", "task-1")
	require.NoError(t, err)
	assert.Contains(t, out, "name")
	assert.NotContains(t, out, "age = 30")
}

func TestExportApplyRoundTrip(t *testing.T) {
	setupTestDB(t)

	_, err := runCommand(t, "put", "task-1", "name=Alice")
	require.NoError(t, err)

	exported, err := runCommand(t, "export", "task-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(exported, `{"clock":`), "canonical JSON sorts keys")

	// Applying a replica's own exported state is a no-op merge.
	path := filepath.Join(t.TempDir(), "rec.json")
	require.NoError(t, writeFile(path, exported))
	out, err := runCommand(t, "apply", path)
	require.NoError(t, err)
	assert.Contains(t, out, "task-1")

	history, err := runCommand(t, "history", "task-1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(history), "\n"), 1, "no-op apply leaves history alone")
}

func TestHistoryAndDiff(t *testing.T) {
	setupTestDB(t)

	_, err := runCommand(t, "put", "task-1", "status=open")
	require.NoError(t, err)
	_, err = runCommand(t, "put", "task-1", "status=closed")
	require.NoError(t, err)

	out, err := runCommand(t, "--format", "json", "history", "task-1")
	require.NoError(t, err)

	var resp struct {
		Status string                `json:"status"`
		Data   []record.HistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	t1 := resp.Data[1].Timestamp
	t2 := resp.Data[0].Timestamp

	diff, err := runCommand(t, "diff", "task-1", formatInt(t1), formatInt(t2))
	require.NoError(t, err)
	assert.Contains(t, diff, `status: "open" -> "closed"`)
}

func TestRestore(t *testing.T) {
	setupTestDB(t)

	_, err := runCommand(t, "put", "task-1", "status=open")
	require.NoError(t, err)
	_, err = runCommand(t, "put", "task-1", "status=closed", "assignee=bob")
	require.NoError(t, err)

	out, err := runCommand(t, "--format", "json", "history", "task-1")
	require.NoError(t, err)
	var resp struct {
		Data []record.HistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	target := resp.Data[1].Timestamp

	restored, err := runCommand(t, "restore", "task-1", formatInt(target))
	require.NoError(t, err)
	assert.Contains(t, restored, `status = "open"`)
	assert.NotContains(t, restored, "assignee")
}

func TestRestore_UnknownVersion(t *testing.T) {
	setupTestDB(t)

	_, err := runCommand(t, "put", "task-1", "status=open")
	require.NoError(t, err)

	out, err := runCommand(t, "restore", "task-1", "999999")
	require.Error(t, err)
	assert.Contains(t, out, string(record.CodeVersionNotFound))
}

func TestInvalidFormatFlag(t *testing.T) {
	_, err := runCommand(t, "--format", "xml", "get", "task-1")
	assert.Error(t, err)
}

func TestPut_NewGeneratesID(t *testing.T) {
	setupTestDB(t)

	out, err := runCommand(t, "--format", "json", "put", "--new", "name=Alice")
	require.NoError(t, err)

	var resp struct {
		Data record.NodeRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.ID, 36, "uuid record id")
}
