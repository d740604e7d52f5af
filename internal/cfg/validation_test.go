package cfg

import (
	"strings"
	"testing"
	"time"

	"ml-wrappers/internal/common"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		FeatureNames: []string{"age", "signup"},
		DataPath:     "data",
		MetricsPort:  8080,
		ServerPort:   8081,
		LogLevel:     "info",
		TestFraction: 0.2,
		SplitSeed:    1,
		Model: ModelSettings{
			Kind:    common.ModelKindProcess,
			Command: "python3",
			Timeout: time.Second,
			Retries: 1,
		},
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	if err := validateSettings(createValidSettings()); err != nil {
		t.Errorf("expected valid settings, got %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"empty data path", func(s *Settings) { s.DataPath = "" }, "data path"},
		{"metrics port too low", func(s *Settings) { s.MetricsPort = 0 }, "metrics port"},
		{"server port too high", func(s *Settings) { s.ServerPort = 70000 }, "server port"},
		{"same ports", func(s *Settings) { s.ServerPort = s.MetricsPort }, "must differ"},
		{"unknown log level", func(s *Settings) { s.LogLevel = "verbose" }, "log level"},
		{"zero test fraction", func(s *Settings) { s.TestFraction = 0 }, "test fraction"},
		{"full test fraction", func(s *Settings) { s.TestFraction = 1 }, "test fraction"},
		{"empty feature name", func(s *Settings) { s.FeatureNames = []string{"a", ""} }, "feature names"},
		{"duplicate feature name", func(s *Settings) { s.FeatureNames = []string{"a", "a"} }, "duplicate"},
		{"unknown task", func(s *Settings) { s.Model.Task = "ranking" }, "task"},
		{"unknown kind", func(s *Settings) { s.Model.Kind = "grpc" }, "model kind"},
		{"remote without url", func(s *Settings) { s.Model.Kind = common.ModelKindRemote }, "URL"},
		{"zero timeout", func(s *Settings) { s.Model.Timeout = 0 }, "timeout"},
		{"huge timeout", func(s *Settings) { s.Model.Timeout = time.Hour }, "timeout"},
		{"negative retries", func(s *Settings) { s.Model.Retries = -1 }, "retries"},
		{"too many retries", func(s *Settings) { s.Model.Retries = common.MaxModelRetries + 1 }, "retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createValidSettings()
			tt.mutate(s)
			err := validateSettings(s)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSettings_TaskValues(t *testing.T) {
	for _, task := range []string{"", "auto", "classification", "regression"} {
		s := createValidSettings()
		s.Model.Task = task
		if err := validateSettings(s); err != nil {
			t.Errorf("task %q: unexpected error %v", task, err)
		}
	}
}
