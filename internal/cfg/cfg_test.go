package cfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ml-wrappers/internal/common"

	"github.com/google/go-cmp/cmp"
)

var configKeys = []string{
	common.EnvConfigFile, common.EnvEnvFile, common.EnvFeatureNames, common.EnvTimeLayouts,
	common.EnvDataPath, common.EnvMetricsPort, common.EnvServerPort, common.EnvLogLevel,
	common.EnvModelKind, common.EnvModelTask, common.EnvModelCommand, common.EnvModelArgs,
	common.EnvModelURL, common.EnvModelTimeout, common.EnvModelRetries,
	common.EnvTestFraction, common.EnvSplitSeed,
}

// clearEnv blanks every configuration variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != common.DefaultDataPath {
					t.Errorf("expected default DataPath, got %s", settings.DataPath)
				}
				if settings.MetricsPort != common.DefaultMetricsPort {
					t.Errorf("expected default MetricsPort, got %d", settings.MetricsPort)
				}
				if settings.Model.Kind != common.ModelKindProcess {
					t.Errorf("expected process backend by default, got %s", settings.Model.Kind)
				}
				if settings.Model.Timeout != common.DefaultModelTimeout {
					t.Errorf("expected default timeout, got %v", settings.Model.Timeout)
				}
				if settings.FeatureNames != nil {
					t.Errorf("expected no feature names, got %v", settings.FeatureNames)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				common.EnvFeatureNames: "age, signup ,score",
				common.EnvTimeLayouts:  "02/01/2006",
				common.EnvMetricsPort:  "9090",
				common.EnvModelKind:    "remote",
				common.EnvModelURL:     "http://localhost:9000/score",
				common.EnvModelTask:    "classification",
				common.EnvModelTimeout: "250ms",
				common.EnvModelRetries: "0",
				common.EnvLogLevel:     "debug",
			},
			validate: func(t *testing.T, settings Settings) {
				if diff := cmp.Diff([]string{"age", "signup", "score"}, settings.FeatureNames); diff != "" {
					t.Errorf("feature names mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{"02/01/2006"}, settings.TimeLayouts); diff != "" {
					t.Errorf("time layouts mismatch (-want +got):\n%s", diff)
				}
				want := ModelSettings{
					Kind:    "remote",
					Task:    "classification",
					URL:     "http://localhost:9000/score",
					Timeout: 250 * time.Millisecond,
					Retries: 0,
				}
				if diff := cmp.Diff(want, settings.Model); diff != "" {
					t.Errorf("model settings mismatch (-want +got):\n%s", diff)
				}
				if settings.MetricsPort != 9090 {
					t.Errorf("expected MetricsPort 9090, got %d", settings.MetricsPort)
				}
			},
		},
		{
			name:    "remote backend without URL",
			envVars: map[string]string{common.EnvModelKind: "remote"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			envVars: map[string]string{common.EnvModelKind: "onnx"},
			wantErr: true,
		},
		{
			name:    "invalid values fall back to defaults",
			envVars: map[string]string{common.EnvMetricsPort: "not-a-port", common.EnvModelTimeout: "soon"},
			validate: func(t *testing.T, settings Settings) {
				if settings.MetricsPort != common.DefaultMetricsPort {
					t.Errorf("expected default MetricsPort, got %d", settings.MetricsPort)
				}
				if settings.Model.Timeout != common.DefaultModelTimeout {
					t.Errorf("expected default timeout, got %v", settings.Model.Timeout)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)

	configYAML := `
features:
  names: [age, signup, score]
  timeLayouts: ["2006-01-02"]
model:
  kind: process
  task: regression
  command: python3
  args: [score.py, --quiet]
  timeout: 2s
  retries: 0
data:
  path: /tmp/ml-data
  testFraction: 0.25
  splitSeed: 7
system:
  metricsPort: 9100
  serverPort: 9200
  logLevel: warn
`
	t.Setenv(common.EnvConfigFile, writeFile(t, "config.yaml", configYAML))
	t.Setenv(common.EnvServerPort, "9300")

	settings, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	want := Settings{
		FeatureNames: []string{"age", "signup", "score"},
		TimeLayouts:  []string{"2006-01-02"},
		DataPath:     "/tmp/ml-data",
		MetricsPort:  9100,
		ServerPort:   9300, // environment overrides the file
		LogLevel:     "warn",
		TestFraction: 0.25,
		SplitSeed:    7,
		Model: ModelSettings{
			Kind:    "process",
			Task:    "regression",
			Command: "python3",
			Args:    []string{"score.py", "--quiet"},
			Timeout: 2 * time.Second,
			Retries: 0,
		},
	}
	if diff := cmp.Diff(want, settings); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromYAML_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(common.EnvConfigFile, writeFile(t, "config.yaml", "features:\n  names: [x]\n"))

	settings, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if settings.Model.Retries != common.DefaultModelRetries {
		t.Errorf("expected default retries, got %d", settings.Model.Retries)
	}
	if settings.TestFraction != common.DefaultTestFraction {
		t.Errorf("expected default test fraction, got %f", settings.TestFraction)
	}
	if settings.ServerPort != common.DefaultServerPort {
		t.Errorf("expected default server port, got %d", settings.ServerPort)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(common.EnvConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := Load(); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Setenv(common.EnvConfigFile, writeFile(t, "bad.yaml", "features: [unclosed"))
		if _, err := Load(); err == nil {
			t.Error("expected error for malformed config file")
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv(common.EnvConfigFile, writeFile(t, "bad.yaml", "data:\n  testFraction: 1.5\n"))
		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "test fraction") {
			t.Errorf("expected test fraction error, got %v", err)
		}
	})

	t.Run("invalid timeout", func(t *testing.T) {
		t.Setenv(common.EnvConfigFile, writeFile(t, "bad.yaml", "model:\n  timeout: soon\n"))
		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "invalid model timeout") {
			t.Errorf("expected timeout parse error, got %v", err)
		}
	})

	t.Run("explicit zero test fraction", func(t *testing.T) {
		t.Setenv(common.EnvConfigFile, writeFile(t, "bad.yaml", "data:\n  testFraction: 0\n"))
		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "test fraction") {
			t.Errorf("expected zero test fraction to be rejected, got %v", err)
		}
	})
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, so unset them.
	for _, k := range []string{common.EnvLogLevel, common.EnvModelKind, common.EnvModelURL} {
		os.Unsetenv(k)
	}

	t.Setenv(common.EnvEnvFile, writeFile(t, ".env", "LOG_LEVEL=error\nMODEL_KIND=remote\nMODEL_URL=http://scorer:8000/v1\n"))
	t.Cleanup(func() {
		for _, k := range []string{common.EnvLogLevel, common.EnvModelKind, common.EnvModelURL} {
			os.Unsetenv(k)
		}
	})

	settings, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if settings.LogLevel != "error" {
		t.Errorf("expected log level from env file, got %s", settings.LogLevel)
	}
	if settings.Model.URL != "http://scorer:8000/v1" {
		t.Errorf("expected model URL from env file, got %s", settings.Model.URL)
	}

	t.Setenv(common.EnvEnvFile, filepath.Join(t.TempDir(), "missing.env"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing env file")
	}
}
