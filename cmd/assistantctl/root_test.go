package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crm_assistant_backend/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(func() (*config.Config, error) { return cfg, nil })
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func ledgerDir(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	line := "155|1|a|b|C-1|FERRETERIA X|900|p|q|||r|s|t|100|0|0|5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cartera.txt"), []byte(line), 0o600))
	return &config.Config{
		Env:          "test",
		DatasetDir:   dir,
		DatasetPaths: map[string]string{"ledger": "cartera.txt"},
		FetchTimeout: time.Second,
	}
}

func TestAccountCommand(t *testing.T) {
	out, err := run(t, ledgerDir(t), "account", "900", "C-1")
	require.NoError(t, err)
	assert.Contains(t, out, "FERRETERIA X")
	assert.Contains(t, out, "$100")
}

func TestAccountCommandRejectsWrongCode(t *testing.T) {
	out, err := run(t, ledgerDir(t), "account", "900", "C-2")
	require.NoError(t, err)
	assert.NotContains(t, out, "$100")
}

func TestStockCommandWithoutInventory(t *testing.T) {
	out, err := run(t, ledgerDir(t), "stock", "vinilo", "blanco")
	require.NoError(t, err)
	assert.Contains(t, out, "no puedo acceder a la información de inventario")
}

func TestStatsCommandPrintsJSON(t *testing.T) {
	out, err := run(t, ledgerDir(t), "stats")
	require.NoError(t, err)

	var stats []struct {
		Name   string `json:"name"`
		Rows   int    `json:"rows"`
		Loaded bool   `json:"loaded"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))

	rows := map[string]int{}
	for _, st := range stats {
		rows[st.Name] = st.Rows
	}
	assert.Equal(t, 1, rows["ledger"])
}

func TestDirFlagOverridesSource(t *testing.T) {
	cfg := ledgerDir(t)
	dir := cfg.DatasetDir
	cfg.DatasetDir = ""

	_, err := run(t, cfg, "verify", "900")
	assert.Error(t, err, "no source configured")

	out, err := run(t, cfg, "--dir", dir, "warm")
	require.NoError(t, err)
	assert.Contains(t, out, "ledger")
}
