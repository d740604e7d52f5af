package common

import "time"

// Dataset split names used by the dataset catalog.
const (
	SplitXTrain = "x_train"
	SplitXTest  = "x_test"
	SplitYTrain = "y_train"
	SplitYTest  = "y_test"
)

// Splits lists the known split names in catalog order.
var Splits = []string{SplitXTrain, SplitXTest, SplitYTrain, SplitYTest}

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvEnvFile      = "ENV_FILE"
	EnvFeatureNames = "FEATURE_NAMES"
	EnvTimeLayouts  = "TIME_LAYOUTS"
	EnvDataPath     = "DATA_PATH"
	EnvMetricsPort  = "METRICS_PORT"
	EnvServerPort   = "SERVER_PORT"
	EnvLogLevel     = "LOG_LEVEL"
	EnvModelKind    = "MODEL_KIND"
	EnvModelTask    = "MODEL_TASK"
	EnvModelCommand = "MODEL_COMMAND"
	EnvModelArgs    = "MODEL_ARGS"
	EnvModelURL     = "MODEL_URL"
	EnvModelTimeout = "MODEL_TIMEOUT"
	EnvModelRetries = "MODEL_RETRIES"
	EnvTestFraction = "TEST_FRACTION"
	EnvSplitSeed    = "SPLIT_SEED"
)

// Model backend kinds
const (
	ModelKindProcess = "process"
	ModelKindRemote  = "remote"
)

// Configuration defaults
const (
	DefaultDataPath     = "data"
	DefaultMetricsPort  = 8080
	DefaultServerPort   = 8081
	DefaultLogLevel     = "info"
	DefaultModelKind    = ModelKindProcess
	DefaultModelTimeout = 5 * time.Second
	DefaultModelRetries = 2
	DefaultTestFraction = 0.2
	DefaultSplitSeed    = 42
)

// Validation limits
const (
	MinPort         = 1
	MaxPort         = 65535
	MaxModelRetries = 10
	MaxModelTimeout = 5 * time.Minute
	MinTestFraction = 0.0
	MaxTestFraction = 1.0
)

