package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMirrorWritesIndentedJSON(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)

	require.NoError(t, sink.Mirror("account.json", []map[string]any{{"email": "user@test.local"}}))

	data, err := os.ReadFile(filepath.Join(dir, "account.json"))
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	require.Contains(t, string(data), "\n  ")
}

func TestMirrorOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)

	require.NoError(t, sink.Mirror("codes.json", []string{"first"}))
	require.NoError(t, sink.Mirror("codes.json", []string{"second"}))

	data, err := os.ReadFile(filepath.Join(dir, "codes.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "second")
	require.NotContains(t, string(data), "first")
}

func TestMirrorCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	sink := NewSink(dir)

	require.NoError(t, sink.Mirror("account.json", map[string]int{"count": 0}))
	_, err := os.Stat(filepath.Join(dir, "account.json"))
	require.NoError(t, err)
}

func TestMirrorLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)

	require.NoError(t, sink.Mirror("account.json", []string{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "account.json", entries[0].Name())
}
