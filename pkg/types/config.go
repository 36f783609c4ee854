package types

import "time"

// HTTPConfig holds shared HTTP settings used by clients of external services.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "estrus-ensemble/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// EnsembleConfig holds the decision engine's tuned constants. They were fit
// on one labeled dataset and should be re-validated against any new one.
type EnsembleConfig struct {
	// MinSupport is the minimum number of labeled examples a pair override
	// needs before the engine honors it (default 3).
	MinSupport int `json:"min_support" yaml:"min_support" mapstructure:"min_support"`

	// DiestrusGuard is the judge confidence at or above which a Diestrus
	// call wins over a disagreeing k-NN (default 0.85).
	DiestrusGuard float64 `json:"diestrus_guard" yaml:"diestrus_guard" mapstructure:"diestrus_guard"`

	// JudgeName labels the judge in method tags and reasoning text
	// (default "Gemini").
	JudgeName string `json:"judge_name" yaml:"judge_name" mapstructure:"judge_name"`

	// KNNWeight and JudgeWeight configure the legacy weighted ensemble
	// (defaults 0.4 and 0.6).
	KNNWeight   float64 `json:"knn_weight" yaml:"knn_weight" mapstructure:"knn_weight"`
	JudgeWeight float64 `json:"judge_weight" yaml:"judge_weight" mapstructure:"judge_weight"`

	// OverridesFile is the path of the pair override table (YAML).
	OverridesFile string `json:"overrides_file" yaml:"overrides_file" mapstructure:"overrides_file"`
}

// DefaultEnsembleConfig returns the constants observed in production.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		MinSupport:    3,
		DiestrusGuard: 0.85,
		JudgeName:     "Gemini",
		KNNWeight:     0.4,
		JudgeWeight:   0.6,
	}
}

// StoreDriver selects the database/sql driver for the records store.
type StoreDriver string

const (
	DriverSQLite   StoreDriver = "sqlite3"
	DriverPostgres StoreDriver = "pgx"
)

// StoreConfig holds settings for the historical records store.
type StoreConfig struct {
	// Driver is sqlite3 (default) or pgx.
	Driver StoreDriver `json:"driver" yaml:"driver" mapstructure:"driver"`

	// DSN is a file path for SQLite or a postgres:// URL for pgx. When empty
	// the SQLite database lives at DataDir/index/records.db.
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`

	// DataDir is the base directory for local data (contains index/, reports/).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
}

// JudgeBackend identifies the vision model used as the judge.
type JudgeBackend string

const (
	JudgeGemini JudgeBackend = "gemini"
	JudgeClaude JudgeBackend = "claude"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// JudgeConfig holds settings for the vision judge.
type JudgeConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the judge: gemini or claude.
	Backend JudgeBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
}

// NeighborsConfig holds settings for the reference-image match service.
type NeighborsConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the match endpoint.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// K is the number of neighbors requested (default 3; 5 is also used).
	K int `json:"k" yaml:"k" mapstructure:"k"`

	// MaxRetries bounds retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// TieBreak names the policy for choosing between equally frequent ground
// truth stages within one classifier pair.
type TieBreak string

const (
	// TieBreakCycleOrder picks the first tied stage in cycle order. This is
	// the historical behavior; the order carries no meaning.
	TieBreakCycleOrder TieBreak = "cycle"

	// TieBreakGlobalFrequency picks the tied stage that is most frequent in
	// the whole dataset, then falls back to cycle order.
	TieBreakGlobalFrequency TieBreak = "global"
)

// OptimizerConfig holds settings for deriving the pair override table.
type OptimizerConfig struct {
	TieBreak TieBreak `json:"tie_break" yaml:"tie_break" mapstructure:"tie_break"`

	// MinMargin is how many more votes the best stage needs over the runner
	// up before a pair is accepted. 0 accepts ties.
	MinMargin int `json:"min_margin" yaml:"min_margin" mapstructure:"min_margin"`

	// Schedule is a cron spec for periodic re-derivation (e.g. "@daily").
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty" mapstructure:"schedule"`
}

// EvaluationConfig holds settings for the accuracy report.
type EvaluationConfig struct {
	// Baseline and Candidate name the strategies compared in the
	// improvement and regression lists (defaults "old" and "new").
	Baseline  string `json:"baseline" yaml:"baseline" mapstructure:"baseline"`
	Candidate string `json:"candidate" yaml:"candidate" mapstructure:"candidate"`

	// MaxChanges caps the listed improvements and regressions. Counts are
	// never capped.
	MaxChanges int `json:"max_changes" yaml:"max_changes" mapstructure:"max_changes"`
}

// Config groups all stage configurations.
type Config struct {
	Ensemble   EnsembleConfig   `json:"ensemble" yaml:"ensemble" mapstructure:"ensemble"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Judge      JudgeConfig      `json:"judge" yaml:"judge" mapstructure:"judge"`
	Neighbors  NeighborsConfig  `json:"neighbors" yaml:"neighbors" mapstructure:"neighbors"`
	Optimizer  OptimizerConfig  `json:"optimizer" yaml:"optimizer" mapstructure:"optimizer"`
	Evaluation EvaluationConfig `json:"evaluation" yaml:"evaluation" mapstructure:"evaluation"`
}
