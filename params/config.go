package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Engine struct {
	LiveMode bool
	// RetentionCap bounds the live-mode order/ticket tables; the oldest
	// entries are evicted past it.
	RetentionCap     int
	SyncDrainTimeout time.Duration
	ExitTimeout      time.Duration
	FillQuiescence   time.Duration
	// CashSyncCutoff is the time of day (offset from local midnight) after
	// which the daily cash sync is allowed to run.
	CashSyncCutoff time.Duration
}

type Node struct {
	APIAddr string
	DataDir string
	LogFile string
}

type Config struct {
	Engine Engine
	Node   Node
}

func Default() Config {
	return Config{
		Engine: Engine{
			LiveMode:         false,
			RetentionCap:     10000,
			SyncDrainTimeout: time.Second,
			ExitTimeout:      60 * time.Second,
			FillQuiescence:   10 * time.Second,
			CashSyncCutoff:   7*time.Hour + 45*time.Minute,
		},
		Node: Node{
			APIAddr: ":8080",
			DataDir: "data",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if live := os.Getenv("ENGINE_LIVE_MODE"); live != "" {
		cfg.Engine.LiveMode = live == "true"
	}
	if cap := os.Getenv("ENGINE_RETENTION_CAP"); cap != "" {
		if n, err := strconv.Atoi(cap); err == nil {
			cfg.Engine.RetentionCap = n
		}
	}
	if drain := os.Getenv("ENGINE_SYNC_DRAIN_MS"); drain != "" {
		if ms, err := strconv.Atoi(drain); err == nil {
			cfg.Engine.SyncDrainTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if exit := os.Getenv("ENGINE_EXIT_TIMEOUT_MS"); exit != "" {
		if ms, err := strconv.Atoi(exit); err == nil {
			cfg.Engine.ExitTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if quiet := os.Getenv("ENGINE_FILL_QUIESCENCE_MS"); quiet != "" {
		if ms, err := strconv.Atoi(quiet); err == nil {
			cfg.Engine.FillQuiescence = time.Duration(ms) * time.Millisecond
		}
	}
	if cutoff := os.Getenv("ENGINE_CASH_SYNC_CUTOFF_MIN"); cutoff != "" {
		if m, err := strconv.Atoi(cutoff); err == nil {
			cfg.Engine.CashSyncCutoff = time.Duration(m) * time.Minute
		}
	}
	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Node.APIAddr = addr
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.Node.DataDir = dir
	}
	if lf := os.Getenv("LOG_FILE"); lf != "" {
		cfg.Node.LogFile = lf
	}

	return cfg
}
