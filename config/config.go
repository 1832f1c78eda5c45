package config

import (
	"time"

	"babcia/internal/logger"
	"babcia/internal/models"

	"github.com/spf13/viper"
)

const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"
)

type Config struct {
	GeneralVersion       string        `mapstructure:"GENERAL_VERSION"`
	Environment          string        `mapstructure:"ENVIRONMENT"`
	ServerPort           int           `mapstructure:"SERVER_PORT"`
	DatabaseDriver       string        `mapstructure:"DB_DRIVER"`
	DatabaseHost         string        `mapstructure:"DB_HOST"`
	DatabasePort         int           `mapstructure:"DB_PORT"`
	DatabaseName         string        `mapstructure:"DB_NAME"`
	DatabaseUser         string        `mapstructure:"DB_USER"`
	DatabasePassword     string        `mapstructure:"DB_PASSWORD"`
	DatabasePath         string        `mapstructure:"DB_PATH"`
	DatabaseCacheAddress string        `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort    int           `mapstructure:"DB_CACHE_PORT"`
	CorsAllowOrigins     string        `mapstructure:"CORS_ALLOW_ORIGINS"`
	ImageDir             string        `mapstructure:"IMAGE_DIR"`
	SchedulerEnabled     bool          `mapstructure:"SCHEDULER_ENABLED"`
	AutoScanConcurrency  int           `mapstructure:"AUTOSCAN_CONCURRENCY"`
	BackgroundWakeBudget time.Duration `mapstructure:"BACKGROUND_WAKE_BUDGET"`
	GeminiAPIKey         string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel          string        `mapstructure:"GEMINI_MODEL"`
	GeminiImageModel     string        `mapstructure:"GEMINI_IMAGE_MODEL"`
	HomeAssistantURL     string        `mapstructure:"HOME_ASSISTANT_URL"`
	HomeAssistantToken   string        `mapstructure:"HOME_ASSISTANT_TOKEN"`
	DefaultPersona       string        `mapstructure:"DEFAULT_PERSONA"`
	APIJWTSecret         string        `mapstructure:"API_JWT_SECRET"`
}

var ConfigInstance Config

func New() (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	viper.AutomaticEnv()
	setDefaults()

	envVars := []string{
		"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
		"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_PATH",
		"DB_CACHE_ADDRESS", "DB_CACHE_PORT",
		"CORS_ALLOW_ORIGINS", "IMAGE_DIR",
		"SCHEDULER_ENABLED", "AUTOSCAN_CONCURRENCY", "BACKGROUND_WAKE_BUDGET",
		"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_IMAGE_MODEL",
		"HOME_ASSISTANT_URL", "HOME_ASSISTANT_TOKEN",
		"DEFAULT_PERSONA", "API_JWT_SECRET",
	}

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	envVarsSet := viper.IsSet("SERVER_PORT") && viper.IsSet("DB_DRIVER")

	if envVarsSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	log.Info("Successfully initialized config",
		"environment", config.Environment,
		"port", config.ServerPort,
		"dbDriver", config.DatabaseDriver,
		"schedulerEnabled", config.SchedulerEnabled,
	)
	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}
	return ConfigInstance, nil
}

func GetConfig() Config {
	return ConfigInstance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", 8288)
	viper.SetDefault("DB_DRIVER", DatabaseDriverSQLite)
	viper.SetDefault("DB_PATH", "babcia.db")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("IMAGE_DIR", "images")
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("AUTOSCAN_CONCURRENCY", 2)
	viper.SetDefault("BACKGROUND_WAKE_BUDGET", "2m")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	viper.SetDefault("GEMINI_IMAGE_MODEL", "gemini-2.0-flash-preview-image-generation")
	viper.SetDefault("DEFAULT_PERSONA", string(models.PersonaClassic))
	viper.SetDefault("CORS_ALLOW_ORIGINS", "*")
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error(
			"Fatal error: invalid server port",
			"port", config.ServerPort,
		)
	}

	switch config.DatabaseDriver {
	case DatabaseDriverPostgres:
		if config.DatabaseHost == "" || config.DatabaseName == "" || config.DatabaseUser == "" {
			return log.Error("Fatal error: DB_HOST, DB_NAME and DB_USER are required for postgres")
		}
	case DatabaseDriverSQLite:
		if config.DatabasePath == "" {
			return log.Error("Fatal error: DB_PATH is required for sqlite")
		}
	default:
		return log.Error("Fatal error: unsupported database driver", "driver", config.DatabaseDriver)
	}

	if config.DatabaseCacheAddress != "" && config.DatabaseCachePort <= 0 {
		return log.Error("Fatal error: DB_CACHE_PORT required when DB_CACHE_ADDRESS is set")
	}

	if config.ImageDir == "" {
		return log.Error("Fatal error: IMAGE_DIR is required")
	}

	if config.AutoScanConcurrency <= 0 {
		return log.Error(
			"Fatal error: AUTOSCAN_CONCURRENCY must be positive",
			"concurrency", config.AutoScanConcurrency,
		)
	}

	if config.BackgroundWakeBudget <= 0 {
		return log.Error(
			"Fatal error: BACKGROUND_WAKE_BUDGET must be positive",
			"budget", config.BackgroundWakeBudget,
		)
	}

	if _, err := models.ParsePersona(config.DefaultPersona); err != nil {
		return log.Err("Fatal error: invalid DEFAULT_PERSONA", err, "persona", config.DefaultPersona)
	}

	if config.Environment == "production" && config.APIJWTSecret == "" {
		return log.Error("Fatal error: API_JWT_SECRET required in production")
	}

	ConfigInstance = config
	return nil
}

// DefaultSettings seeds the settings row on first start
func (c Config) DefaultSettings() models.Settings {
	persona, err := models.ParsePersona(c.DefaultPersona)
	if err != nil {
		persona = models.PersonaClassic
	}
	return models.Settings{
		GeminiAPIKey:       c.GeminiAPIKey,
		HomeAssistantURL:   c.HomeAssistantURL,
		HomeAssistantToken: c.HomeAssistantToken,
		SelectedPersona:    persona,
	}
}
