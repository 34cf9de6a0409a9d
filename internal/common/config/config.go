// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct, injected through
// constructors; there is no process-wide singleton.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Models     ModelsConfig     `mapstructure:"models"`
	Devices    DevicesConfig    `mapstructure:"devices"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Routing    RoutingConfig    `mapstructure:"routing"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Validation ValidationConfig `mapstructure:"validation"`
	Stages     StagesConfig     `mapstructure:"stages"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Model Gateway Config ---

// ModelTierConfig describes one reachable model tier.
type ModelTierConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type ModelsConfig struct {
	Small  ModelTierConfig `mapstructure:"small"`
	Medium ModelTierConfig `mapstructure:"medium"`
	Large  ModelTierConfig `mapstructure:"large"`
	APIKey string          `mapstructure:"api_key"`
	// ReasoningVerbs escalate routing to the LARGE tier.
	ReasoningVerbs []string `mapstructure:"reasoning_verbs"`
	// LongQueryWords is the word count above which routing escalates.
	LongQueryWords int `mapstructure:"long_query_words"`
	MaxRetries     int `mapstructure:"max_retries"`
}

// --- Device Control Config ---

type DevicesConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// --- Retrieval Provider Config ---

// ProviderConfig holds the settings shared by every HTTP provider.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type WebSearchConfig struct {
	ProviderConfig `mapstructure:",squash"`
	EngineID       string `mapstructure:"engine_id"`
	MaxResults     int    `mapstructure:"max_results"`
}

type ProvidersConfig struct {
	Weather  ProviderConfig  `mapstructure:"weather"`
	Sports   ProviderConfig  `mapstructure:"sports"`
	Airports ProviderConfig  `mapstructure:"airports"`
	Web      WebSearchConfig `mapstructure:"web"`
	// Places is backed by the Elasticsearch local-business index.
	Places struct {
		Enabled bool `mapstructure:"enabled"`
		Timeout int  `mapstructure:"timeout"`
	} `mapstructure:"places"`
	// Events is backed by the Postgres events table.
	Events struct {
		Enabled bool `mapstructure:"enabled"`
		Timeout int  `mapstructure:"timeout"`
	} `mapstructure:"events"`
}

// RoutingConfig maps a category to its ordered eligible providers and the
// per-provider authority weights used by fusion ranking.
type RoutingConfig struct {
	// Table: category -> ordered provider ids (priority order).
	Table map[string][]string `mapstructure:"table"`
	// Authority: category -> provider id -> static weight.
	Authority map[string]map[string]float64 `mapstructure:"authority"`
}

// --- Classifier Config ---

type DisambiguationRule struct {
	Entity   string            `mapstructure:"entity"`
	Keywords map[string]string `mapstructure:"keywords"` // keyword -> sense
	Senses   []string          `mapstructure:"senses"`
}

type ClassifierConfig struct {
	// TrustThreshold: below it a category is provisional.
	TrustThreshold float64 `mapstructure:"trust_threshold"`
	// FastPathThreshold: minimum pattern confidence to skip the model.
	FastPathThreshold float64 `mapstructure:"fast_path_threshold"`
	// Separators split compound queries into sub-queries.
	Separators []string `mapstructure:"separators"`
	// Chains: named alias -> fixed ordered sub-intent texts.
	Chains map[string][]string `mapstructure:"chains"`
	// Disambiguation is the pluggable entity-sense policy.
	Disambiguation []DisambiguationRule `mapstructure:"disambiguation"`
	ClarifyBelow   float64              `mapstructure:"clarify_below"`
	MaxTokens      int                  `mapstructure:"max_tokens"`
	Temperature    float64              `mapstructure:"temperature"`
}

// --- Cache Config ---

type CacheTierSettings struct {
	TTL           int     `mapstructure:"ttl"` // seconds
	MinSimilarity float64 `mapstructure:"min_similarity"`
}

type CacheConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	KeyPrefix string            `mapstructure:"key_prefix"`
	Instant   CacheTierSettings `mapstructure:"instant"`
	Fresh     CacheTierSettings `mapstructure:"fresh"`
	Response  CacheTierSettings `mapstructure:"response"`
	// ScanCount bounds each SCAN page when searching similarity tiers.
	ScanCount int `mapstructure:"scan_count"`
}

// --- Retrieval Config ---

type RetrievalConfig struct {
	// GlobalTimeout bounds the whole fan-out; shorter than provider timeouts.
	GlobalTimeout int `mapstructure:"global_timeout"` // milliseconds
	// ClusterSimilarity is the fusion duplicate threshold.
	ClusterSimilarity float64 `mapstructure:"cluster_similarity"`
	// AgreementBonusStep and AgreementBonusCap shape the saturating bonus.
	AgreementBonusStep float64 `mapstructure:"agreement_bonus_step"`
	AgreementBonusCap  float64 `mapstructure:"agreement_bonus_cap"`
}

// --- Validation Config ---

type ValidationConfig struct {
	MinAnswerLength int `mapstructure:"min_answer_length"`
	MaxAnswerLength int `mapstructure:"max_answer_length"`
	// SecondOpinionBelow triggers the fact-check call under this confidence.
	SecondOpinionBelow float64 `mapstructure:"second_opinion_below"`
	// HighStakesCategories always receive the second-opinion check.
	HighStakesCategories []string `mapstructure:"high_stakes_categories"`
	MaxRetries           int      `mapstructure:"max_retries"`
}

// --- Stage Budgets ---

// StagesConfig carries per-stage deadline budgets in milliseconds.
type StagesConfig struct {
	Classify   int `mapstructure:"classify"`
	Control    int `mapstructure:"control"`
	Retrieve   int `mapstructure:"retrieve"`
	Synthesize int `mapstructure:"synthesize"`
	Validate   int `mapstructure:"validate"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
