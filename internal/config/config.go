package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	ServerHost     string
	ServerPort     int
	ServerPassword string

	DataDir      string
	DatabasePath string

	// ListenAddr enables the web API when non-empty.
	ListenAddr  string
	DefaultUser string
	DefaultPass string
}

// Load reads configuration from a .env file in the working directory (when
// present) and the process environment, environment taking precedence.
func Load() (*Config, error) {
	env, err := loadDotEnv(".env")
	if err != nil {
		return nil, err
	}
	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v, ok := env[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	dataDir, err := filepath.Abs(get("ZEDCTL_DATA_DIR", "./data"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	port := 8081
	if v := get("SERVER_PORT", ""); v != "" {
		port, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
	}

	return &Config{
		ServerHost:     get("SERVER_HOST", ""),
		ServerPort:     port,
		ServerPassword: get("SERVER_PASSWORD", ""),
		DataDir:        dataDir,
		DatabasePath:   get("ZEDCTL_DB", filepath.Join(dataDir, "zedctl.db")),
		ListenAddr:     get("ZEDCTL_LISTEN", ""),
		DefaultUser:    get("ZEDCTL_DEFAULT_USER", "admin"),
		DefaultPass:    get("ZEDCTL_DEFAULT_PASS", "admin"),
	}, nil
}

// loadDotEnv parses KEY=VALUE lines; comments and blanks are skipped, and
// single or double quotes around values are stripped. A missing file is not
// an error.
func loadDotEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	env := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		env[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return env, nil
}
