package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port                     string
	DatabaseURL              string
	DBDriver                 string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	RPCURL                   string
	ContractAddress          string
	ChainID                  int64
	AdminAddress             string
	PrivateKey               string
	APIURL                   string
	GuessFeeWei              string
	RevealDelayBlocks        uint64
	BlockPollSeconds         int
	ReceiptTimeoutSeconds    int
	AdminAuthWindowSeconds   int
	SyncPollSeconds          int
	CORSOrigins              []string
	LogLevel                 string
	StateDir                 string
}

func Default() Config {
	return Config{
		Port:                     "8080",
		DBDriver:                 "postgres",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		ChainID:                  8453,
		APIURL:                   "http://localhost:8080",
		GuessFeeWei:              "100000000000000",
		RevealDelayBlocks:        2,
		BlockPollSeconds:         3,
		ReceiptTimeoutSeconds:    20,
		AdminAuthWindowSeconds:   300,
		SyncPollSeconds:          5,
		LogLevel:                 "info",
		StateDir:                 ".pixpot",
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Port = raw
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := strings.ToLower(os.Getenv("DB_DRIVER")); raw == "postgres" || raw == "mysql" {
		cfg.DBDriver = raw
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	if raw := os.Getenv("RPC_URL"); raw != "" {
		cfg.RPCURL = raw
	}
	if raw := os.Getenv("CONTRACT_ADDRESS"); raw != "" {
		cfg.ContractAddress = raw
	}
	if raw := os.Getenv("CHAIN_ID"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil && value > 0 {
			cfg.ChainID = value
		}
	}
	if raw := os.Getenv("ADMIN_ADDRESS"); raw != "" {
		cfg.AdminAddress = strings.ToLower(strings.TrimSpace(raw))
	}
	if raw := os.Getenv("PRIVATE_KEY"); raw != "" {
		cfg.PrivateKey = raw
	}
	if raw := os.Getenv("API_URL"); raw != "" {
		cfg.APIURL = strings.TrimRight(raw, "/")
	}
	if raw := os.Getenv("GUESS_FEE_WEI"); raw != "" {
		cfg.GuessFeeWei = raw
	}
	if raw := os.Getenv("REVEAL_DELAY_BLOCKS"); raw != "" {
		if value, err := strconv.ParseUint(raw, 10, 64); err == nil {
			cfg.RevealDelayBlocks = value
		}
	}
	if raw := os.Getenv("BLOCK_POLL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.BlockPollSeconds = value
		}
	}
	if raw := os.Getenv("RECEIPT_TIMEOUT_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.ReceiptTimeoutSeconds = value
		}
	}
	if raw := os.Getenv("ADMIN_AUTH_WINDOW_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.AdminAuthWindowSeconds = value
		}
	}
	if raw := os.Getenv("SYNC_POLL_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SyncPollSeconds = value
		}
	}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		cfg.CORSOrigins = splitList(raw)
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("STATE_DIR"); raw != "" {
		cfg.StateDir = raw
	}
	return cfg
}

func (c Config) BlockPollInterval() time.Duration {
	return time.Duration(c.BlockPollSeconds) * time.Second
}

func (c Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.ReceiptTimeoutSeconds) * time.Second
}

func (c Config) AdminAuthWindow() time.Duration {
	return time.Duration(c.AdminAuthWindowSeconds) * time.Second
}

func (c Config) SyncPollInterval() time.Duration {
	return time.Duration(c.SyncPollSeconds) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
