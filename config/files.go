package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no other env file is named
const DefaultEnvFile = ".env"

// File returns the path of a config file: inside CONFIG_DIR when it is set,
// otherwise relative to the working directory.
func File(filename string) string {
	dir := os.Getenv("CONFIG_DIR")
	if dir != "" {
		return filepath.Join(dir, filename)
	}
	return filename
}

// EnvFile returns the dotenv file to load: ENV_FILE when set, otherwise File(DefaultEnvFile)
func EnvFile() string {
	if path := os.Getenv("ENV_FILE"); path != "" {
		return path
	}
	return File(DefaultEnvFile)
}

// LoadEnv sets the variables from the dotenv file at path.
// Variables already in the environment keep their value. A missing file is not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
