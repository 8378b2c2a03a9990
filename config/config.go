package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is everything the service reads from the environment.
type Config struct {
	DatabaseURL string
	FrontendURL string
	JWTSecret   string

	// MasterPasswordHash unlocks the API (bcrypt). DataKey + DataKeySalt
	// derive the AES key for credentials and sessions at rest.
	MasterPasswordHash string
	DataKey            string
	DataKeySalt        string

	GoCardlessSecretID  string
	GoCardlessSecretKey string

	PriceAPIBase       string
	ChainGatewayURL    string
	ChainGatewayAPIKey string

	PositionCooldown     time.Duration
	TransactionsCooldown time.Duration
	CryptoCooldown       time.Duration
	ExternalCooldown     time.Duration

	TargetFiat string

	VirtualImportEnabled bool
}

// Load reads the environment. Only DATABASE_URL and DATA_ENCRYPTION_KEY are
// mandatory; everything else has a sane default.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		FrontendURL:          envOr("FRONTEND_URL", "http://localhost:3000"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		MasterPasswordHash:   os.Getenv("MASTER_PASSWORD_HASH"),
		DataKey:              os.Getenv("DATA_ENCRYPTION_KEY"),
		DataKeySalt:          envOr("DATA_KEY_SALT", "wealth-api"),
		GoCardlessSecretID:   os.Getenv("GOCARDLESS_SECRET_ID"),
		GoCardlessSecretKey:  os.Getenv("GOCARDLESS_SECRET_KEY"),
		PriceAPIBase:         envOr("PRICE_API_BASE", "https://api.coingecko.com/api/v3"),
		ChainGatewayURL:      envOr("CHAIN_GATEWAY_URL", "https://api.etherscan.io/api"),
		ChainGatewayAPIKey:   os.Getenv("CHAIN_GATEWAY_API_KEY"),
		TargetFiat:           envOr("TARGET_FIAT", "EUR"),
		VirtualImportEnabled: envOr("VIRTUAL_IMPORT_ENABLED", "true") == "true",

		PositionCooldown:     envSeconds("FETCH_COOLDOWN_SECONDS", 2*time.Hour),
		TransactionsCooldown: envSeconds("TX_COOLDOWN_SECONDS", 30*time.Minute),
		CryptoCooldown:       envSeconds("CRYPTO_COOLDOWN_SECONDS", 2*time.Minute),
		ExternalCooldown:     envSeconds("EXTERNAL_COOLDOWN_SECONDS", 2*time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.DataKey == "" {
		return Config{}, fmt.Errorf("DATA_ENCRYPTION_KEY environment variable is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
