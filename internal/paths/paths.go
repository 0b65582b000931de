package paths

import (
	"os"
	"path/filepath"
)

const (
	// HomeEnvVar overrides the lifesignal home directory
	HomeEnvVar = "LIFESIGNAL_HOME"
	// DefaultHome is the directory name under the user's home
	DefaultHome = ".lifesignal"
)

// GetHome returns the lifesignal home directory:
// $LIFESIGNAL_HOME if set, otherwise ~/.lifesignal.
func GetHome() (string, error) {
	if h := os.Getenv(HomeEnvVar); h != "" {
		return h, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, DefaultHome), nil
}

// ConfigDir returns the directory holding config.json, catalog.toml and .env.
// An explicit dir wins over the home default.
func ConfigDir(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return GetHome()
}

// LogsDir returns <home>/logs
func LogsDir(home string) string {
	return filepath.Join(home, "logs")
}

// SnapshotsDir returns <home>/snapshots
func SnapshotsDir(home string) string {
	return filepath.Join(home, "snapshots")
}

// DefaultDatabasePath returns <home>/lifesignal.db, the local SQLite store
func DefaultDatabasePath(home string) string {
	return filepath.Join(home, "lifesignal.db")
}

// DefaultCatalogPath returns <home>/catalog.toml
func DefaultCatalogPath(home string) string {
	return filepath.Join(home, "catalog.toml")
}

// DotEnvPath returns <home>/.env
func DotEnvPath(home string) string {
	return filepath.Join(home, ".env")
}

// EnsureDir creates dir (and parents) if missing and returns it.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
