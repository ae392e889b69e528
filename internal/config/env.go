package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const tokenEnv = "GITHUB_TOKEN"

// ApplyEnv loads a .env file from dir (when present) and fills settings the
// YAML left empty from the environment. Existing environment variables win
// over .env entries.
func (c *Config) ApplyEnv(dir string) error {
	envFile := filepath.Join(dir, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	if strings.TrimSpace(c.Network.GitHubToken) == "" {
		c.Network.GitHubToken = strings.TrimSpace(os.Getenv(tokenEnv))
	}
	return nil
}

func expandArchive(template, name string) string {
	return strings.ReplaceAll(template, "{archive}", name)
}
