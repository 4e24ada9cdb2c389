// Package config provides gateway configuration through environment
// variables. The loaded struct is passed explicitly into constructors; no
// component reads ambient state.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all gateway configuration.
type Config struct {
	// ServerHost is the host address the server will bind to.
	ServerHost string
	// ServerPort is the port number the server will listen on.
	ServerPort int

	// LedgerRPCURL is the ledger node's JSON-RPC endpoint.
	LedgerRPCURL string
	// BlobStoreURL is the content store's base URL.
	BlobStoreURL string
	// KeyServiceURL is the key-release service's base URL.
	KeyServiceURL string

	// RedisURL backs the registry and the event stream. Empty disables both
	// in favor of the in-memory registry and no publisher.
	RedisURL string

	// ContractPackageID identifies the on-chain access contract package.
	ContractPackageID string
	// ContractModule is the module name inside the package.
	ContractModule string
	// Receiver is the address payments are sent to.
	Receiver string

	// FetchTimeout bounds ledger fetches inside a verification.
	FetchTimeout time.Duration
	// SettleDelay is waited after a purchase for ledger indexing.
	SettleDelay time.Duration
	// AgentMaxAttempts bounds whole-operation agent retries.
	AgentMaxAttempts int
	// AgentRetryDelay is the fixed backoff between agent attempts.
	AgentRetryDelay time.Duration
	// EventWindow caps the recent-purchase scan for pass reuse.
	EventWindow int
	// RelayInterval is the period between purchase event relay scans.
	RelayInterval time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 9000),

		LedgerRPCURL:  env.GetString("LEDGER_RPC_URL", "http://localhost:9124"),
		BlobStoreURL:  env.GetString("BLOB_STORE_URL", "http://localhost:9125"),
		KeyServiceURL: env.GetString("KEY_SERVICE_URL", "http://localhost:9126"),

		RedisURL: env.GetString("REDIS_URL", ""),

		ContractPackageID: env.GetString("CONTRACT_PACKAGE_ID", ""),
		ContractModule:    env.GetString("CONTRACT_MODULE", "access"),
		Receiver:          env.GetString("RECEIVER_ADDRESS", ""),

		FetchTimeout:     time.Duration(env.GetInt("FETCH_TIMEOUT_SECONDS", 10)) * time.Second,
		SettleDelay:      time.Duration(env.GetInt("SETTLE_DELAY_SECONDS", 2)) * time.Second,
		AgentMaxAttempts: env.GetInt("AGENT_MAX_ATTEMPTS", 3),
		AgentRetryDelay:  time.Duration(env.GetInt("AGENT_RETRY_DELAY_SECONDS", 2)) * time.Second,
		EventWindow:      env.GetInt("EVENT_WINDOW", 50),
		RelayInterval:    time.Duration(env.GetInt("RELAY_INTERVAL_SECONDS", 15)) * time.Second,
	}
}

// loadDotEnv walks up from the working directory looking for a .env file.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		candidate := filepath.Join(dir, ".env")
		if _, err := os.Stat(candidate); err == nil {
			_ = godotenv.Load(candidate)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
