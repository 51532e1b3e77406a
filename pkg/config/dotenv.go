package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from .env files in the working
// directory.
//
// Files load in priority order: .env.local (highest), then .env, then the
// process environment (lowest). Variables already present in the environment
// are never overwritten, so a deployment can still pin values. Missing files
// are not an error.
//
// Call this before reading any configuration, including LOG_LEVEL.
func LoadDotEnv() error {
	envFiles := []string{".env.local", ".env"}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}
