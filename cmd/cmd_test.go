package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/offgrid-dt/core/control"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestControllersCommand(t *testing.T) {
	out := execute(t, "controllers")
	assert.Equal(t, strings.Join(control.Names(), "\n")+"\n", out)
}

func TestPlanCommand(t *testing.T) {
	out := execute(t, "plan")
	assert.Contains(t, out, "nominal 24h energy:")
	assert.Contains(t, out, "simulated day:")
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "simulation:\n  out_dir: "+dir+"\n  start: \"2026-06-01\"\nlogging:\n  backend: memory\n")

	out := execute(t, "compare", "-c", path)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+len(control.Names()))
	assert.Equal(t, "controller", rows[0][0])
	for i, name := range control.Names() {
		assert.Equal(t, name, rows[i+1][0])
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*_summary.json"))
	require.NoError(t, err)
	assert.Len(t, matches, len(control.Names()))
}

func writeConfig(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
