// Package config loads the client settings from YAML, environment variables
// and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

const (
	appName   = "aishell"
	envPrefix = "AISHELL"

	// DefaultLLM names the entry used when nothing else is configured.
	DefaultLLM = "openai"
)

// ErrNoLLM is returned when no current LLM has been selected.
var ErrNoLLM = errors.New("config: no current LLM selected")

// Config holds application configuration.
type Config struct {
	Global        GlobalConfig         `mapstructure:"global" yaml:"global"`
	SupportedLLMs map[string]LLMConfig `mapstructure:"supported_llms" yaml:"supported_llms"`
	Logging       LoggingConfig        `mapstructure:"logging" yaml:"logging"`

	// Path is the file the configuration was read from, empty when only
	// defaults and the environment contributed.
	Path string `mapstructure:"-" yaml:"-"`
}

// GlobalConfig holds the conversation settings.
type GlobalConfig struct {
	CurrentLLM       string  `mapstructure:"current_llm" yaml:"current_llm"`
	UserContent      string  `mapstructure:"user_content" yaml:"user_content"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`
	StreamOutputMode bool    `mapstructure:"stream_output_mode" yaml:"stream_output_mode"`
	JSONMode         bool    `mapstructure:"json_mode" yaml:"json_mode"`
	// SleepTime is the pause between live redraws, in seconds.
	SleepTime float64 `mapstructure:"sleep_time" yaml:"sleep_time"`
}

// LLMConfig describes one OpenAI-compatible endpoint.
type LLMConfig struct {
	Model  string `mapstructure:"model" yaml:"model"`
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	ConsoleLevel string `mapstructure:"console_level" yaml:"console_level"`
	FileEnabled  bool   `mapstructure:"file_enabled" yaml:"file_enabled"`
	FileLevel    string `mapstructure:"file_level" yaml:"file_level"`
	File         string `mapstructure:"file" yaml:"file"`
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, appName)
}

// Load reads configuration from path, or from the default location when path
// is empty. A missing default file is not an error; a missing explicit file
// is. Env var overrides use prefix AISHELL_, e.g. AISHELL_GLOBAL_JSON_MODE.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDir())
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s: %w", path, err)
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Path = v.ConfigFileUsed()

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for name, llm := range c.SupportedLLMs {
			if llm.APIKey == "" {
				llm.APIKey = key
				c.SupportedLLMs[name] = llm
			}
		}
	}
	if c.Logging.FileEnabled && c.Logging.File == "" {
		c.Logging.File = filepath.Join(DefaultDir(), appName+".log")
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("global.current_llm", DefaultLLM)
	v.SetDefault("global.user_content", "")
	v.SetDefault("global.temperature", 0.7)
	v.SetDefault("global.stream_output_mode", false)
	v.SetDefault("global.json_mode", false)
	v.SetDefault("global.sleep_time", 0.01)

	v.SetDefault("supported_llms."+DefaultLLM+".model", "gpt-4o-mini")
	v.SetDefault("supported_llms."+DefaultLLM+".api_url", "https://api.openai.com/v1")
	v.SetDefault("supported_llms."+DefaultLLM+".api_key", "")

	v.SetDefault("logging.console_level", "critical")
	v.SetDefault("logging.file_enabled", false)
	v.SetDefault("logging.file_level", "debug")
	v.SetDefault("logging.file", "")
}

// LLMNames returns the configured LLM names in sorted order.
func (c Config) LLMNames() []string {
	names := make([]string, 0, len(c.SupportedLLMs))
	for name := range c.SupportedLLMs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveLLM returns the supported_llms key matching name. viper lower-cases
// keys read from files, so the match falls back to the lower-cased name.
func (c Config) ResolveLLM(name string) (string, bool) {
	if _, ok := c.SupportedLLMs[name]; ok {
		return name, true
	}
	lower := strings.ToLower(name)
	if _, ok := c.SupportedLLMs[lower]; ok {
		return lower, true
	}
	return name, false
}

// CurrentLLM resolves the selected LLM and checks that it can be called.
func (c Config) CurrentLLM() (string, LLMConfig, error) {
	name := strings.TrimSpace(c.Global.CurrentLLM)
	if name == "" {
		return "", LLMConfig{}, ErrNoLLM
	}
	key, ok := c.ResolveLLM(name)
	llm := c.SupportedLLMs[key]
	if !ok {
		return name, LLMConfig{}, fmt.Errorf("config: LLM %q is not in supported_llms (available: %s)", name, strings.Join(c.LLMNames(), ", "))
	}

	var missing []string
	if strings.TrimSpace(llm.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(llm.APIURL) == "" {
		missing = append(missing, "api_url")
	}
	if strings.TrimSpace(llm.Model) == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return name, llm, fmt.Errorf("config: LLM %q is missing %s", name, strings.Join(missing, ", "))
	}
	return name, llm, nil
}

// Validate reports every problem found in the configuration.
func (c Config) Validate() error {
	var errs []error
	if t := c.Global.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("config: temperature %.2f outside [0, 2]", t))
	}
	if c.Global.SleepTime < 0 {
		errs = append(errs, fmt.Errorf("config: sleep_time %.3f is negative", c.Global.SleepTime))
	}
	if _, _, err := c.CurrentLLM(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
