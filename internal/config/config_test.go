package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "OPENAI_API_KEY", "OPENAI_BASE_URL", "GPT_MODEL", "TRANSCRIBE_MODEL",
		"GATEWAY_TIMEOUT", "DATABASE_URL", "ALLOWED_USERS", "TIMEZONE", "LOG_LEVEL",
		"LOG_FORMAT", "LOG_FILE", "OPS_ADDR", "OPS_JWT_SECRET", "OPS_ALLOWED_ORIGINS",
		"S3_BUCKET", "S3_REGION", "S3_PREFIX",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-vision-preview", c.OpenAI.Model)
	assert.Equal(t, "whisper-1", c.OpenAI.TranscribeModel)
	assert.Equal(t, "nutritioner.db", c.Database.URL)
	assert.Equal(t, "Europe/Moscow", c.Timezone)
	assert.Equal(t, "info", c.Log.Level)
	assert.Empty(t, c.Ops.Addr)
	assert.Empty(t, c.Archive.Bucket)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
telegram:
  token: from-file
openai:
  model: gpt-4o
  timeout: 30s
access:
  allowed_users: ["alice"]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("TELEGRAM_TOKEN", "from-env")
	t.Setenv("ALLOWED_USERS", " @Alice, bob ,, ")
	t.Setenv("GATEWAY_TIMEOUT", "45")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", c.Telegram.Token)
	assert.Equal(t, "gpt-4o", c.OpenAI.Model)
	assert.Equal(t, 45*time.Second, c.OpenAI.Timeout)
	assert.Equal(t, []string{"@Alice", "bob"}, c.Access.AllowedUsers)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing telegram token", func(c *Config) { c.Telegram.Token = "" }, "TELEGRAM_TOKEN"},
		{"missing openai key", func(c *Config) { c.OpenAI.APIKey = "" }, "OPENAI_API_KEY"},
		{"ops without secret", func(c *Config) { c.Ops.Addr = ":8081" }, "OPS_JWT_SECRET"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			c.Telegram.Token = "t"
			c.OpenAI.APIKey = "k"
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
