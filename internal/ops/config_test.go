package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"source": {"mode": "replay", "replayDir": "testdata/journal"},
		"instruments": [
			{"symbol": "BTC-USD", "kind": "spot", "base": "BTC", "quote": "USD"}
		]
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "paper", loaded.File.Exchange)
	require.Equal(t, "10000", loaded.File.StartCash.String())
	require.Equal(t, "median_cross", loaded.File.Strategy.Name)
	require.Equal(t, LedgerMemory, loaded.File.Ledger.Backend)

	inst, ok := loaded.Registry.Instrument("BTC-USD")
	require.True(t, ok)
	// Instrument exchange falls back to the top-level exchange.
	require.Equal(t, "paper", inst.Exchange)
	require.Equal(t, schema.InstrumentSpot, inst.Kind)
}

func TestLoadRejectsReplayWithoutDir(t *testing.T) {
	path := writeConfig(t, `{"source": {"mode": "replay"}}`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "replayDir")
}

func TestLoadRejectsUnknownLedgerBackend(t *testing.T) {
	path := writeConfig(t, `{
		"source": {"mode": "replay", "replayDir": "x"},
		"ledger": {"backend": "tape"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ledger backend")
}

func TestLoadLiveNeedsSymbols(t *testing.T) {
	path := writeConfig(t, `{"source": {"mode": "live"}}`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "symbols")
}

func TestLoadRemoteValidation(t *testing.T) {
	path := writeConfig(t, `{
		"source": {"mode": "replay", "replayDir": "x"},
		"remote": {"enabled": true}
	}`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "remote.socket")
}

func TestLoadDuplicateInstrument(t *testing.T) {
	path := writeConfig(t, `{
		"source": {"mode": "replay", "replayDir": "x"},
		"instruments": [
			{"symbol": "BTC-USD", "kind": "spot", "base": "BTC", "quote": "USD"},
			{"symbol": "BTC-USD", "kind": "spot", "base": "BTC", "quote": "USD"}
		]
	}`)
	_, err := Load(path)
	require.Error(t, err)
}
