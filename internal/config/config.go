package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	ListenAddr  string
	DatabaseURL string
	ExportDir   string
	// HostPasswordHash is the bcrypt hash checked at host sign-in.
	HostPasswordHash []byte
}

// Load reads .env if present, then the environment. The host password is
// hashed once here so the plaintext never travels further than this call.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost port=5432 user=postgres password=postgres dbname=livevote sslmode=disable"),
		ExportDir:   getEnv("EXPORT_DIR", "data/exports"),
	}

	password := getEnv("HOST_PASSWORD", "host123")
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Config{}, fmt.Errorf("hash host password: %w", err)
	}
	cfg.HostPasswordHash = hash
	return cfg, nil
}

// CheckHostPassword reports whether candidate matches the configured
// host password.
func (c Config) CheckHostPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword(c.HostPasswordHash, []byte(candidate)) == nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
