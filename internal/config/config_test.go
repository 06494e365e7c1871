package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment
SERVER_HOST=game.example.com
SERVER_PORT = 8081
SERVER_PASSWORD="secret with spaces"
QUOTED='single'

MALFORMED LINE WITHOUT EQUALS
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	env, err := loadDotEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "game.example.com", env["SERVER_HOST"])
	assert.Equal(t, "8081", env["SERVER_PORT"])
	assert.Equal(t, "secret with spaces", env["SERVER_PASSWORD"])
	assert.Equal(t, "single", env["QUOTED"])
	assert.NotContains(t, env, "MALFORMED LINE WITHOUT EQUALS")
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	env, err := loadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Empty(t, env)
}
