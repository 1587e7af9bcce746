package types

import "time"

// HTTPConfig holds shared HTTP settings for stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "checklist-fuser/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AnalysisConfig holds settings for the external fusion analysis call.
type AnalysisConfig struct {
	HTTPConfig `yaml:",inline"`

	// WebhookURL is the fusion analyzer endpoint. Required for analyze.
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`

	// AuthToken is sent as a bearer token when non-empty. Usually
	// loaded from .secrets/fusion-webhook-token rather than config.
	AuthToken string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`

	// MaxRetries is the number of retry attempts on rate-limited
	// responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ParserConfig holds tunables for the structural parser. Zero values
// select the defaults the certification checklists were calibrated on.
type ParserConfig struct {
	// MinItemLength discards item candidates shorter than this
	// (default 10 characters).
	MinItemLength int `json:"min_item_length" yaml:"min_item_length"`

	// MaxSubsectionLength is the longest line still considered a
	// subsection header (default 150 characters).
	MaxSubsectionLength int `json:"max_subsection_length" yaml:"max_subsection_length"`

	// MaxContinuationLength is the longest line absorbed into a
	// preceding item (default 200 characters).
	MaxContinuationLength int `json:"max_continuation_length" yaml:"max_continuation_length"`
}

// StoreConfig holds settings for the document cache and session store.
type StoreConfig struct {
	// DataDir is the base directory for persisted state (contains
	// fuser.db). Default "data".
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// ExportConfig holds settings for final checklist export.
type ExportConfig struct {
	// OutputDir is the directory for export files (default "output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// AppConfig groups all stage configurations.
type AppConfig struct {
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`
	Parser   ParserConfig   `json:"parser" yaml:"parser"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Export   ExportConfig   `json:"export" yaml:"export"`
}
