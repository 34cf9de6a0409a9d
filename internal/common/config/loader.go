// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DEVICES_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the most likely locations.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the environment when the YAML left
// them empty after expansion.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Models.APIKey == "" {
		if val := os.Getenv("MODELS_API_KEY"); val != "" {
			cfg.Models.APIKey = val
		}
	}
	if cfg.Devices.APIKey == "" {
		if val := os.Getenv("DEVICES_API_KEY"); val != "" {
			cfg.Devices.APIKey = val
		}
	}
	if cfg.Providers.Weather.APIKey == "" {
		if val := os.Getenv("WEATHER_API_KEY"); val != "" {
			cfg.Providers.Weather.APIKey = val
		}
	}
	if cfg.Providers.Sports.APIKey == "" {
		if val := os.Getenv("SPORTS_API_KEY"); val != "" {
			cfg.Providers.Sports.APIKey = val
		}
	}
	if cfg.Providers.Airports.APIKey == "" {
		if val := os.Getenv("AIRPORTS_API_KEY"); val != "" {
			cfg.Providers.Airports.APIKey = val
		}
	}
	if cfg.Providers.Web.APIKey == "" {
		if val := os.Getenv("WEB_SEARCH_API_KEY"); val != "" {
			cfg.Providers.Web.APIKey = val
		}
	}
	if cfg.Providers.Web.EngineID == "" {
		if val := os.Getenv("WEB_SEARCH_ENGINE_ID"); val != "" {
			cfg.Providers.Web.EngineID = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults sets default values for optional configuration fields.
// Defaults encode the engine's documented thresholds.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "local-businesses"
	}

	// Model gateway defaults
	if cfg.Models.LongQueryWords == 0 {
		cfg.Models.LongQueryWords = 20
	}
	if len(cfg.Models.ReasoningVerbs) == 0 {
		cfg.Models.ReasoningVerbs = []string{"explain", "compare", "analyze", "summarize", "why"}
	}
	if cfg.Models.MaxRetries == 0 {
		cfg.Models.MaxRetries = 1
	}
	for _, tier := range []*ModelTierConfig{&cfg.Models.Small, &cfg.Models.Medium, &cfg.Models.Large} {
		if tier.Timeout == 0 {
			tier.Timeout = 10000
		}
	}

	if cfg.Devices.Timeout == 0 {
		cfg.Devices.Timeout = 3000
	}

	// Provider defaults
	for _, p := range []*ProviderConfig{&cfg.Providers.Weather, &cfg.Providers.Sports, &cfg.Providers.Airports, &cfg.Providers.Web.ProviderConfig} {
		if p.Timeout == 0 {
			p.Timeout = 3000
		}
	}
	if cfg.Providers.Web.MaxResults == 0 {
		cfg.Providers.Web.MaxResults = 5
	}
	if cfg.Providers.Places.Timeout == 0 {
		cfg.Providers.Places.Timeout = 3000
	}
	if cfg.Providers.Events.Timeout == 0 {
		cfg.Providers.Events.Timeout = 3000
	}

	if len(cfg.Routing.Table) == 0 {
		cfg.Routing.Table = map[string][]string{
			"WEATHER":        {"weather", "web"},
			"SPORTS":         {"sports", "web"},
			"AIRPORTS":       {"airports", "web"},
			"LOCAL_BUSINESS": {"places", "events", "web"},
			"EVENTS":         {"events", "places", "web"},
			"GENERAL":        {"web"},
		}
	}

	// Classifier defaults
	if cfg.Classifier.TrustThreshold == 0 {
		cfg.Classifier.TrustThreshold = 0.6
	}
	if cfg.Classifier.FastPathThreshold == 0 {
		cfg.Classifier.FastPathThreshold = 0.8
	}
	if len(cfg.Classifier.Separators) == 0 {
		cfg.Classifier.Separators = []string{" and ", " then ", " also "}
	}
	if cfg.Classifier.ClarifyBelow == 0 {
		cfg.Classifier.ClarifyBelow = 0.6
	}
	if cfg.Classifier.MaxTokens == 0 {
		cfg.Classifier.MaxTokens = 64
	}
	if cfg.Classifier.Temperature == 0 {
		cfg.Classifier.Temperature = 0.1
	}

	// Cache defaults
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "qo"
	}
	if cfg.Cache.Instant.TTL == 0 {
		cfg.Cache.Instant.TTL = 300
	}
	if cfg.Cache.Fresh.TTL == 0 {
		cfg.Cache.Fresh.TTL = 1800
	}
	if cfg.Cache.Fresh.MinSimilarity == 0 {
		cfg.Cache.Fresh.MinSimilarity = 0.85
	}
	if cfg.Cache.Response.TTL == 0 {
		cfg.Cache.Response.TTL = 7200
	}
	if cfg.Cache.Response.MinSimilarity == 0 {
		cfg.Cache.Response.MinSimilarity = 0.90
	}
	if cfg.Cache.ScanCount == 0 {
		cfg.Cache.ScanCount = 100
	}

	// Retrieval defaults
	if cfg.Retrieval.GlobalTimeout == 0 {
		cfg.Retrieval.GlobalTimeout = 2500
	}
	if cfg.Retrieval.ClusterSimilarity == 0 {
		cfg.Retrieval.ClusterSimilarity = 0.7
	}
	if cfg.Retrieval.AgreementBonusStep == 0 {
		cfg.Retrieval.AgreementBonusStep = 0.15
	}
	if cfg.Retrieval.AgreementBonusCap == 0 {
		cfg.Retrieval.AgreementBonusCap = 0.45
	}

	// Validation defaults
	if cfg.Validation.MinAnswerLength == 0 {
		cfg.Validation.MinAnswerLength = 10
	}
	if cfg.Validation.MaxAnswerLength == 0 {
		cfg.Validation.MaxAnswerLength = 2000
	}
	if cfg.Validation.SecondOpinionBelow == 0 {
		cfg.Validation.SecondOpinionBelow = 0.7
	}
	if cfg.Validation.MaxRetries == 0 {
		cfg.Validation.MaxRetries = 1
	}

	// Stage budgets
	if cfg.Stages.Classify == 0 {
		cfg.Stages.Classify = 2000
	}
	if cfg.Stages.Control == 0 {
		cfg.Stages.Control = 3000
	}
	if cfg.Stages.Retrieve == 0 {
		cfg.Stages.Retrieve = 3000
	}
	if cfg.Stages.Synthesize == 0 {
		cfg.Stages.Synthesize = 12000
	}
	if cfg.Stages.Validate == 0 {
		cfg.Stages.Validate = 8000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Models.Medium.BaseURL == "" {
		return fmt.Errorf("models.medium.base_url is required")
	}
	if cfg.Devices.BaseURL == "" {
		return fmt.Errorf("devices.base_url is required")
	}
	for category, providers := range cfg.Routing.Table {
		if len(providers) == 0 {
			return fmt.Errorf("routing.table.%s must list at least one provider", category)
		}
		if len(providers) > 4 {
			return fmt.Errorf("routing.table.%s lists more than four providers", category)
		}
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
