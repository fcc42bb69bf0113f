package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonomen/domain/core"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATA_SOURCE", "synthetic")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STEGO_KEY", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("EVOLUTION_LIMIT_PER_DOMAIN", "80")

	var out bytes.Buffer
	cmd := newRootCmd(&out, strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDomainsCmd(t *testing.T) {
	out, err := run(t, "domains")
	require.NoError(t, err)

	var body struct {
		Domains []core.DomainID `json:"domains"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Contains(t, body.Domains, core.DomainID("crypto"))
}

func TestTransformCmd(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := run(t, "transform", "Bitcoin", "--formula", "phonetic")
		require.NoError(t, err)
		var view struct {
			Name      string                     `json:"name"`
			Encodings map[string]json.RawMessage `json:"encodings"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.Equal(t, "Bitcoin", view.Name)
		assert.Contains(t, view.Encodings, "phonetic")
	})

	t.Run("markdown", func(t *testing.T) {
		out, err := run(t, "transform", "Bitcoin", "--format", "markdown")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "# Bitcoin"))
		assert.Contains(t, out, "| feature | value |")
		assert.Contains(t, out, "hybrid")
	})

	t.Run("html", func(t *testing.T) {
		out, err := run(t, "transform", "Bitcoin", "--format", "html")
		require.NoError(t, err)
		assert.Contains(t, out, "<title>Bitcoin</title>")
		assert.Contains(t, out, "<table>")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, "transform", "Bitcoin", "--format", "pdf")
		assert.True(t, core.IsInputValidationError(err))
	})

	t.Run("unknown theory", func(t *testing.T) {
		_, err := run(t, "transform", "Bitcoin", "--formula", "astrology")
		assert.ErrorIs(t, err, core.ErrUnknownFormula)
	})
}

func TestValidateCmd(t *testing.T) {
	out, err := run(t, "validate", "--formula", "structural", "--domains", "crypto,bands", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Validation: structural")
	assert.Contains(t, out, "| crypto |")
}

func TestCipherCmd(t *testing.T) {
	dir := t.TempDir()
	names := filepath.Join(dir, "names.txt")
	require.NoError(t, os.WriteFile(names, []byte("Bitcoin\nEthereum\n\nSolana\nCardano\nRipple\nPolkadot\n"), 0o644))

	out, err := run(t, "cipher", "--file", names, "--formula", "numerological")
	require.NoError(t, err)
	var profile struct {
		Names      int    `json:"names"`
		Disclaimer string `json:"disclaimer"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &profile))
	assert.Equal(t, 6, profile.Names)
	assert.NotEmpty(t, profile.Disclaimer)
}

func TestStegoCmd(t *testing.T) {
	_, err := run(t, "stego", "inject", "Bitcoin")
	assert.ErrorIs(t, err, core.ErrInvalidConfig, "no key configured")

	out, err := run(t, "--stego-key", "cli-key", "stego", "inject", "Bitcoin", "--type", "text", "--data", "hi", "--method", "lsb")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "enc.json")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))
	var injected struct {
		AuthCode string `json:"auth_code"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &injected))

	out, err = run(t, "--stego-key", "cli-key", "stego", "extract", path)
	require.NoError(t, err)
	var extraction struct {
		Found  bool   `json:"found"`
		Method string `json:"method"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &extraction))
	assert.True(t, extraction.Found)
	assert.Equal(t, "lsb", extraction.Method)

	out, err = run(t, "--stego-key", "cli-key", "stego", "verify", path, injected.AuthCode)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true}`, out)

	out, err = run(t, "--stego-key", "other-key", "stego", "extract", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"found":false}`, out)
}

func TestEvolveConvergeReproduce(t *testing.T) {
	save := filepath.Join(t.TempDir(), "runs.json")

	out, err := run(t, "evolve", "--formula", "structural", "--domains", "crypto",
		"--population", "6", "--generations", "2", "--runs", "2", "--save", save)
	require.NoError(t, err)
	var sig struct {
		Signature struct {
			Histories []core.HistoryID `json:"histories"`
		} `json:"signature"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sig))
	assert.Len(t, sig.Signature.Histories, 2)

	out, err = run(t, "converge", save, "--validate", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Convergence: structural")
	assert.Contains(t, out, "2 runs")

	out, err = run(t, "reproduce", save)
	require.NoError(t, err)
	var repro struct {
		Results []struct {
			Reproduced bool `json:"reproduced"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &repro))
	require.Len(t, repro.Results, 2)
	for _, r := range repro.Results {
		assert.True(t, r.Reproduced)
	}
}

func TestImportCmd_RequiresDatabase(t *testing.T) {
	_, err := run(t, "import", t.TempDir())
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
