package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	Env   string // "dev" | "prod"
	Store string // "memory" | "sqlite"

	// DB
	DBPath string // e.g. "./data/checkpoint.db"

	// Validation policy
	VisitorStayWarning time.Duration
	LookupTimeout      time.Duration

	// Overstay monitor; 0 disables it.
	OverstayInterval time.Duration

	// OperatorsFile is the YAML list of operator accounts.
	OperatorsFile string

	// DevBadges seeds the badge pool in dev.
	DevBadges []string
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("CHECKPOINT_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	backend := strings.ToLower(getenvDefault("CHECKPOINT_STORE", "memory"))
	if backend != "memory" && backend != "sqlite" {
		backend = "memory"
	}

	return Config{
		HTTPAddr: getenvDefault("CHECKPOINT_HTTP_ADDR", ":8080"),
		GRPCAddr: getenvDefault("CHECKPOINT_GRPC_ADDR", ":9090"),

		Env:    env,
		Store:  backend,
		DBPath: getenvDefault("CHECKPOINT_DB_PATH", "./data/checkpoint.db"),

		VisitorStayWarning: time.Duration(getenvInt("CHECKPOINT_VISITOR_STAY_WARNING_MINUTES", 240)) * time.Minute,
		LookupTimeout:      time.Duration(getenvInt("CHECKPOINT_LOOKUP_TIMEOUT_MS", 2000)) * time.Millisecond,
		OverstayInterval:   time.Duration(getenvInt("CHECKPOINT_OVERSTAY_INTERVAL_MINUTES", 15)) * time.Minute,

		OperatorsFile: getenvDefault("CHECKPOINT_OPERATORS_FILE", "./operators.yaml"),
		DevBadges:     splitCSV(os.Getenv("CHECKPOINT_DEV_BADGES")),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
