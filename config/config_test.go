package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.Client.WithCredentials)
	assert.Zero(t, cfg.Request.Timeout)
	assert.Equal(t, SizeBytes(10*humanize.MiByte), cfg.Request.MaxBody)
}

func TestLoad(t *testing.T) {
	expected := Default()
	expected.Client.WithCredentials = true
	expected.Log.Format = "json"
	expected.Request.Timeout = Duration(1500 * time.Millisecond)
	expected.Request.Headers = map[string]string{"Accept": "application/json"}
	expected.Request.MaxBody = SizeBytes(64 * humanize.KByte)

	testcases := []struct {
		desc    string
		name    string
		content string
	}{
		{
			desc: "toml",
			name: "config.toml",
			content: `
[client]
with_credentials = true

[log]
format = "json"

[request]
timeout = "1.5s"
max_body = "64kB"

[request.headers]
Accept = "application/json"
`,
		},
		{
			desc: "yaml",
			name: "config.yaml",
			content: `
client:
  with_credentials: true
log:
  format: json
request:
  timeout: 1.5
  max_body: 64kB
  headers:
    Accept: application/json
`,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tc.name, tc.content))
			require.NoError(t, err)
			assert.Equal(t, expected, cfg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "config.ini", "a=b"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(writeFile(t, "config.toml", "[client"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "config.yml", "request:\n  timeout: forever\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	dotenv := writeFile(t, ".env", `
BROWSER_HTTP_WITH_CREDENTIALS=true
BROWSER_HTTP_LOG_LEVEL=debug
BROWSER_HTTP_TIMEOUT=250ms
BROWSER_HTTP_MAX_BODY=1MiB
BROWSER_HTTP_METRICS=1
UNRELATED=x
`)
	env, err := godotenv.Read(dotenv)
	require.NoError(t, err)

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(mapLookup(env)))

	assert.True(t, cfg.Client.WithCredentials)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Request.Timeout.Std())
	assert.Equal(t, SizeBytes(humanize.MiByte), cfg.Request.MaxBody)
}

func TestApplyEnvErrors(t *testing.T) {
	testcases := []struct {
		desc string
		env  map[string]string
	}{
		{desc: "bool", env: map[string]string{"BROWSER_HTTP_WITH_CREDENTIALS": "maybe"}},
		{desc: "timeout", env: map[string]string{"BROWSER_HTTP_TIMEOUT": "soon"}},
		{desc: "size", env: map[string]string{"BROWSER_HTTP_MAX_BODY": "huge"}},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, cfg.ApplyEnv(mapLookup(tc.env)))
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "BROWSER_HTTP_TEST_DOTENV=loaded\n")
	t.Setenv("BROWSER_HTTP_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("BROWSER_HTTP_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("BROWSER_HTTP_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	testcases := []struct {
		desc   string
		modify func(cfg *Config)
	}{
		{desc: "level", modify: func(cfg *Config) { cfg.Log.Level = "loud" }},
		{desc: "format", modify: func(cfg *Config) { cfg.Log.Format = "xml" }},
		{desc: "timeout", modify: func(cfg *Config) { cfg.Request.Timeout = Duration(-time.Second) }},
		{desc: "max body", modify: func(cfg *Config) { cfg.Request.MaxBody = -1 }},
		{desc: "header name", modify: func(cfg *Config) { cfg.Request.Headers = map[string]string{"bad name": "x"} }},
		{desc: "header value", modify: func(cfg *Config) { cfg.Request.Headers = map[string]string{"X": "a\nb"} }},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestClientOptions(t *testing.T) {
	cfg := Default()
	cfg.Client.WithCredentials = true
	cfg.Client.CanonicalReasonPhrase = true

	opts := cfg.ClientOptions(nil)
	assert.True(t, opts.WithCredentials)
	assert.True(t, opts.Receive.CanonicalReasonPhrase)
	assert.Nil(t, opts.Metrics)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := Default()
	cfg.Log.Format = "json"
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestSizeBytesString(t *testing.T) {
	assert.Equal(t, "1.0 MiB", SizeBytes(humanize.MiByte).String())
}
