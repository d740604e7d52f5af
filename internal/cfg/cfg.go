package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ml-wrappers/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	FeatureNames []string // column names used when promoting unlabeled arrays
	TimeLayouts  []string // empty means loader.DefaultLayouts
	DataPath     string
	MetricsPort  int
	ServerPort   int
	LogLevel     string
	TestFraction float64
	SplitSeed    int64
	Model        ModelSettings
}

// ModelSettings selects the model backend served by the serve command.
type ModelSettings struct {
	Kind    string // process or remote
	Task    string // classification, regression or auto
	Command string
	Args    []string
	URL     string
	Timeout time.Duration
	Retries int
}

type ConfigFile struct {
	Features struct {
		Names       []string `yaml:"names"`
		TimeLayouts []string `yaml:"timeLayouts"`
	} `yaml:"features"`

	Model struct {
		Kind    string   `yaml:"kind"`
		Task    string   `yaml:"task"`
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
		URL     string   `yaml:"url"`
		Timeout string   `yaml:"timeout"`
		Retries *int     `yaml:"retries"`
	} `yaml:"model"`

	Data struct {
		Path         string   `yaml:"path"`
		TestFraction *float64 `yaml:"testFraction"`
		SplitSeed    int64    `yaml:"splitSeed"`
	} `yaml:"data"`

	System struct {
		MetricsPort int    `yaml:"metricsPort"`
		ServerPort  int    `yaml:"serverPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, with
// environment overrides, or from the environment alone. When ENV_FILE is set
// that file is loaded into the environment first; variables that are already
// set win.
func Load() (Settings, error) {
	if envFile := os.Getenv(common.EnvEnvFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Settings{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout := common.DefaultModelTimeout
	if config.Model.Timeout != "" {
		if timeout, err = time.ParseDuration(config.Model.Timeout); err != nil {
			return Settings{}, fmt.Errorf("invalid model timeout %q: %w", config.Model.Timeout, err)
		}
	}
	retries := common.DefaultModelRetries
	if config.Model.Retries != nil {
		retries = *config.Model.Retries
	}
	testFraction := common.DefaultTestFraction
	if config.Data.TestFraction != nil {
		testFraction = *config.Data.TestFraction
	}

	settings := Settings{
		FeatureNames: getListFromEnvOrConfig(common.EnvFeatureNames, config.Features.Names),
		TimeLayouts:  getListFromEnvOrConfig(common.EnvTimeLayouts, config.Features.TimeLayouts),
		DataPath:     getEnvOrDefault(common.EnvDataPath, orDefault(config.Data.Path, common.DefaultDataPath)),
		MetricsPort:  getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		ServerPort:   getIntFromEnvOrConfig(common.EnvServerPort, config.System.ServerPort, common.DefaultServerPort),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		TestFraction: getFloatOrDefault(common.EnvTestFraction, testFraction),
		SplitSeed:    int64(getIntFromEnvOrConfig(common.EnvSplitSeed, int(config.Data.SplitSeed), common.DefaultSplitSeed)),
		Model: ModelSettings{
			Kind:    getEnvOrDefault(common.EnvModelKind, orDefault(config.Model.Kind, common.DefaultModelKind)),
			Task:    getEnvOrDefault(common.EnvModelTask, config.Model.Task),
			Command: getEnvOrDefault(common.EnvModelCommand, config.Model.Command),
			Args:    getListFromEnvOrConfig(common.EnvModelArgs, config.Model.Args),
			URL:     getEnvOrDefault(common.EnvModelURL, config.Model.URL),
			Timeout: getDurationOrDefault(common.EnvModelTimeout, timeout),
			Retries: getIntOrDefault(common.EnvModelRetries, retries),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		FeatureNames: splitOrDefault(os.Getenv(common.EnvFeatureNames), nil),
		TimeLayouts:  splitOrDefault(os.Getenv(common.EnvTimeLayouts), nil),
		DataPath:     getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		MetricsPort:  getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		ServerPort:   getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		TestFraction: getFloatOrDefault(common.EnvTestFraction, common.DefaultTestFraction),
		SplitSeed:    int64(getIntOrDefault(common.EnvSplitSeed, common.DefaultSplitSeed)),
		Model: ModelSettings{
			Kind:    getEnvOrDefault(common.EnvModelKind, common.DefaultModelKind),
			Task:    os.Getenv(common.EnvModelTask),
			Command: os.Getenv(common.EnvModelCommand),
			Args:    splitOrDefault(os.Getenv(common.EnvModelArgs), nil),
			URL:     os.Getenv(common.EnvModelURL),
			Timeout: getDurationOrDefault(common.EnvModelTimeout, common.DefaultModelTimeout),
			Retries: getIntOrDefault(common.EnvModelRetries, common.DefaultModelRetries),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getListFromEnvOrConfig(key string, configValue []string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, nil)
	}
	return configValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getIntOrDefault(key, defaultValue)
}

// validateSettings checks ranges and the model backend description.
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}

	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.ServerPort < common.MinPort || settings.ServerPort > common.MaxPort {
		return fmt.Errorf("server port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ServerPort)
	}
	if settings.ServerPort == settings.MetricsPort {
		return fmt.Errorf("server and metrics ports must differ, both are %d", settings.ServerPort)
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	if settings.TestFraction <= common.MinTestFraction || settings.TestFraction >= common.MaxTestFraction {
		return fmt.Errorf("test fraction must be between 0 and 1 exclusive, got %f", settings.TestFraction)
	}

	seen := make(map[string]bool, len(settings.FeatureNames))
	for _, name := range settings.FeatureNames {
		if name == "" {
			return fmt.Errorf("feature names cannot be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate feature name %q", name)
		}
		seen[name] = true
	}

	m := settings.Model
	switch m.Task {
	case "", "auto", "classification", "regression":
	default:
		return fmt.Errorf("unknown model task %q", m.Task)
	}
	switch m.Kind {
	case common.ModelKindProcess:
		// The command is only needed by serve; other subcommands run without a model.
	case common.ModelKindRemote:
		if m.URL == "" {
			return fmt.Errorf("model URL is required for the remote backend")
		}
	default:
		return fmt.Errorf("model kind must be %q or %q, got %q", common.ModelKindProcess, common.ModelKindRemote, m.Kind)
	}
	if m.Timeout <= 0 || m.Timeout > common.MaxModelTimeout {
		return fmt.Errorf("model timeout must be between 0 and %v, got %v", common.MaxModelTimeout, m.Timeout)
	}
	if m.Retries < 0 || m.Retries > common.MaxModelRetries {
		return fmt.Errorf("model retries must be between 0 and %d, got %d", common.MaxModelRetries, m.Retries)
	}

	return nil
}
