package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleConfig = `global:
  current_LLM: local
  user_content: Answer in English.
  temperature: 0.3
  stream_output_mode: true
supported_LLMs:
  local:
    model: llama3
    api_url: http://localhost:11434/v1
    api_key: sk-local-1234567
  empty:
    model: ""
    api_url: ""
    api_key: ""
logging:
  file_enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AISHELL_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Path)
	assert.Equal(t, DefaultLLM, cfg.Global.CurrentLLM)
	assert.InDelta(t, 0.7, cfg.Global.Temperature, 1e-9)
	assert.InDelta(t, 0.01, cfg.Global.SleepTime, 1e-9)
	assert.False(t, cfg.Global.StreamOutputMode)
	assert.False(t, cfg.Global.JSONMode)
	assert.Equal(t, "critical", cfg.Logging.ConsoleLevel)

	_, _, err = cfg.CurrentLLM()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadReadsFile(t *testing.T) {
	isolateEnv(t)

	path := writeConfig(t, sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "Answer in English.", cfg.Global.UserContent)
	assert.True(t, cfg.Global.StreamOutputMode)
	assert.InDelta(t, 0.3, cfg.Global.Temperature, 1e-9)

	name, llm, err := cfg.CurrentLLM()
	require.NoError(t, err)
	assert.Equal(t, "local", name)
	assert.Equal(t, "llama3", llm.Model)
	assert.Equal(t, "http://localhost:11434/v1", llm.APIURL)
	assert.Contains(t, cfg.LLMNames(), "empty")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("AISHELL_GLOBAL_JSON_MODE", "true")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Global.JSONMode)
	assert.Equal(t, "sk-local-1234567", cfg.SupportedLLMs["local"].APIKey, "configured keys win")
	assert.Equal(t, "sk-from-env", cfg.SupportedLLMs["empty"].APIKey)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolateEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	isolateEnv(t)

	_, err := Load(writeConfig(t, "global: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestCurrentLLMErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg     Config
		wantErr string
	}{
		"none selected": {cfg: Config{}, wantErr: "no current LLM"},
		"unknown": {
			cfg:     Config{Global: GlobalConfig{CurrentLLM: "ghost"}, SupportedLLMs: map[string]LLMConfig{"a": {}}},
			wantErr: `"ghost" is not in supported_llms (available: a)`,
		},
		"incomplete": {
			cfg:     Config{Global: GlobalConfig{CurrentLLM: "a"}, SupportedLLMs: map[string]LLMConfig{"a": {APIURL: "http://x"}}},
			wantErr: "missing api_key, model",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, _, err := tt.cfg.CurrentLLM()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsIssues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Global: GlobalConfig{CurrentLLM: "a", Temperature: 3, SleepTime: -1},
		SupportedLLMs: map[string]LLMConfig{
			"a": {Model: "m", APIURL: "http://x", APIKey: "k"},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature")
	assert.Contains(t, err.Error(), "sleep_time")

	cfg.Global.Temperature = 1
	cfg.Global.SleepTime = 0
	assert.NoError(t, cfg.Validate())
}

func TestMaskKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(not set)", MaskKey(""))
	assert.Equal(t, "***", MaskKey("abc"))
	assert.Equal(t, "*******4567", MaskKey("sk-xxx-4567"))
}

func TestRenderMasksKeys(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Global: GlobalConfig{CurrentLLM: "a", Temperature: 0.7},
		SupportedLLMs: map[string]LLMConfig{
			"a": {Model: "m", APIURL: "http://x", APIKey: "sk-secret-9876"},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, cfg))

	out := buf.String()
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "9876")
	assert.Contains(t, out, "# source: (defaults)")

	var decoded Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "m", decoded.SupportedLLMs["a"].Model)
	assert.Equal(t, "sk-secret-9876", cfg.SupportedLLMs["a"].APIKey, "input untouched")
}
