package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"expense/config"
)

// RequireEnv loads the .env file at the module root, then returns the value of key.
// The test is skipped when key is unset; suites that need a live service call this first.
func RequireEnv(t *testing.T, key string) string {
	t.Helper()

	if root, ok := moduleRoot(); ok {
		if err := config.LoadEnv(filepath.Join(root, config.DefaultEnvFile)); err != nil {
			t.Fatalf("loading env file: %v", err)
		}
	}

	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set", key)
	}
	return v
}

func moduleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func NewUUID() string {
	id := uuid.New()
	return id.String()
}
