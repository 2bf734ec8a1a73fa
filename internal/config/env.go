package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/san-kum/episim/internal/logger"
)

const (
	EnvDataDir  = "EPISIM_DATA_DIR"
	EnvLogLevel = "EPISIM_LOG_LEVEL"
	EnvSolver   = "EPISIM_SOLVER"
)

// Env holds process defaults; CLI flags override them.
type Env struct {
	DataDir  string
	LogLevel string
	Solver   string
}

// LoadEnv reads .env files (missing files are ignored) and then the process
// environment.
func LoadEnv(files ...string) Env {
	if err := godotenv.Load(files...); err != nil {
		logger.Debug("no .env file loaded", "err", err)
	}
	return Env{
		DataDir:  GetEnvString(EnvDataDir, ".episim"),
		LogLevel: GetEnvString(EnvLogLevel, "warn"),
		Solver:   GetEnvString(EnvSolver, DefaultSolver),
	}
}

func GetEnvString(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return strings.TrimSpace(value)
}
