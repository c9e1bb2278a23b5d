package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		Production             bool      `json:"production" env:"PRODUCTION" envDefault:"false"`
		PrettyLogs             bool      `json:"pretty_logs" env:"PRETTY_LOGS" envDefault:"false"`
		LogLevel               string    `json:"log_level" env:"LOG_LEVEL" envDefault:"info"`
		Server                 Server    `json:"server" envPrefix:"SERVER_"`
		Chain                  Chain     `json:"chain" envPrefix:"CHAIN_"`
		Contracts              Contracts `json:"contracts" envPrefix:"CONTRACTS_"`
		Signer                 Signer    `json:"signer" envPrefix:"SIGNER_"`
		Redis                  Redis     `json:"redis" envPrefix:"REDIS_"`
		Database               Database  `json:"database" envPrefix:"DATABASE_"`
		Auth                   Auth      `json:"auth" envPrefix:"AUTH_"`
		Issuance               Issuance  `json:"issuance" envPrefix:"ISSUANCE_"`
		WalletConnectProjectID string    `json:"walletconnect_project_id" env:"WALLETCONNECT_PROJECT_ID"`
		FrontendBaseURL        string    `json:"frontend_base_url" env:"FRONTEND_BASE_URL" envDefault:"http://localhost:3000"`
		ExplorerTxURL          string    `json:"explorer_tx_url" env:"EXPLORER_TX_URL" envDefault:"https://sepolia.arbiscan.io/tx/"`
	}

	Server struct {
		Address        string   `json:"address" env:"ADDRESS" envDefault:"0.0.0.0:8080"`
		AllowedOrigins []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	Chain struct {
		RPCURL  string `json:"rpc_url" env:"RPC_URL" envDefault:"https://sepolia-rollup.arbitrum.io/rpc"`
		ChainID int64  `json:"chain_id" env:"ID" envDefault:"421614"`
	}

	// Contracts holds the deployed addresses. Empty means not deployed.
	Contracts struct {
		AccessControl string `json:"access_control" env:"ACCESS_CONTROL_ADDRESS"`
		Registry      string `json:"registry" env:"REGISTRY_ADDRESS"`
		Diploma       string `json:"diploma" env:"DIPLOMA_ADDRESS"`
		Token         string `json:"token" env:"TOKEN_ADDRESS"`
	}

	Signer struct {
		PrivateKey         string `json:"-" env:"PRIVATE_KEY"`
		KeystorePath       string `json:"keystore_path" env:"KEYSTORE_PATH"`
		KeystorePassphrase string `json:"-" env:"KEYSTORE_PASSPHRASE"`
	}

	Redis struct {
		URL string `json:"url" env:"URL"`
	}

	Database struct {
		URL string `json:"-" env:"URL"`
	}

	Auth struct {
		JWTSecret     string        `json:"-" env:"JWT_SECRET"`
		ShareSecret   string        `json:"-" env:"SHARE_SECRET"`
		SessionTTL    time.Duration `json:"session_ttl" env:"SESSION_TTL" envDefault:"24h"`
		NonceTTL      time.Duration `json:"nonce_ttl" env:"NONCE_TTL" envDefault:"5m"`
		MaxShareHours int           `json:"max_share_hours" env:"MAX_SHARE_HOURS" envDefault:"168"`
	}

	Issuance struct {
		SettleDelay    time.Duration `json:"settle_delay" env:"SETTLE_DELAY" envDefault:"2s"`
		PollInterval   time.Duration `json:"poll_interval" env:"POLL_INTERVAL" envDefault:"2s"`
		ReceiptTimeout time.Duration `json:"receipt_timeout" env:"RECEIPT_TIMEOUT" envDefault:"3m"`
		StatusInterval time.Duration `json:"status_interval" env:"STATUS_INTERVAL" envDefault:"4s"`
		SweepSchedule  string        `json:"sweep_schedule" env:"SWEEP_SCHEDULE" envDefault:"@every 1m"`
	}
)

// Load reads an optional .env file from the working directory and then
// parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	var conf Config
	if err := env.Parse(&conf); err != nil {
		return Config{}, err
	}

	return conf, nil
}

// ShareSigningKey falls back to the session secret when no dedicated share
// secret is configured.
func (a Auth) ShareSigningKey() []byte {
	if a.ShareSecret != "" {
		return []byte(a.ShareSecret)
	}
	return []byte(a.JWTSecret)
}

func (s Signer) Configured() bool {
	return s.PrivateKey != "" || s.KeystorePath != ""
}
