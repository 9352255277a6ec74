package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all daemon configuration.
type Config struct {
	Interface  string
	DeviceName string
	Addr       string
	MockMode   bool
	DBPath     string
	Debug      bool

	GroupCreateTimeout  time.Duration
	IdleShutdownTimeout time.Duration
	GroupIdleTimeout    time.Duration

	// WaitForInvitation keeps a reinvocation attempt pending when the
	// peer reports its group information is not yet available, instead
	// of falling back to fresh negotiation.
	WaitForInvitation bool
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	// Defaults and Environment Variables
	cfg.Interface = getEnv("WFD_INTERFACE", "p2p-dev-wlan0")
	cfg.DeviceName = getEnv("WFD_DEVICE_NAME", "")
	cfg.Addr = getEnv("WFD_ADDR", "127.0.0.1:8711")
	cfg.MockMode = getEnvBool("WFD_MOCK", false)
	cfg.DBPath = getEnv("WFD_DB", getDefaultDBPath())
	cfg.WaitForInvitation = getEnvBool("WFD_WAIT_FOR_INVITATION", false)

	groupCreate := getEnvInt("WFD_GROUP_CREATE_TIMEOUT", 120)
	idleShutdown := getEnvInt("WFD_IDLE_SHUTDOWN", 20)
	groupIdle := getEnvInt("WFD_GROUP_IDLE", 20)

	// Command Line Flags (Override Env)
	flag.StringVar(&cfg.Interface, "i", cfg.Interface, "P2P management interface")
	flag.StringVar(&cfg.DeviceName, "name", cfg.DeviceName, "Device name advertised to peers")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Debug HTTP server address")
	flag.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Run in mock mode (simulation)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	flag.IntVar(&groupCreate, "group-create-timeout", groupCreate, "Group formation timeout in seconds")
	flag.IntVar(&idleShutdown, "idle-shutdown", idleShutdown, "Seconds without active clients before the radio is released")
	flag.IntVar(&groupIdle, "group-idle", groupIdle, "Seconds a memberless group survives before removal")
	flag.BoolVar(&cfg.WaitForInvitation, "wait-for-invitation", cfg.WaitForInvitation, "Wait for the owner's invitation when reinvocation info is unavailable")

	flag.Parse()

	cfg.GroupCreateTimeout = time.Duration(groupCreate) * time.Second
	cfg.IdleShutdownTimeout = time.Duration(idleShutdown) * time.Second
	cfg.GroupIdleTimeout = time.Duration(groupIdle) * time.Second

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "wfdirect.db"
	}

	wfdDir := filepath.Join(home, ".wfdirect")
	if err := os.MkdirAll(wfdDir, 0755); err != nil {
		log.Printf("Warning: Could not create .wfdirect directory, using current dir: %v", err)
		return "wfdirect.db"
	}

	return filepath.Join(wfdDir, "wfdirect.db")
}
