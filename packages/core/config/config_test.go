package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	timeout, err := c.GetTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
	assert.True(t, c.GetFollowRedirects())
	assert.False(t, c.GetRequestID())
	assert.Equal(t, "console", c.Output)
	assert.Equal(t, 1, c.Repeat)
	assert.NoError(t, c.Validate())
}

func TestFindAndLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	content := `
timeout: 5s
followRedirects: false
headers:
  Authorization: Bearer abc
variables:
  base: https://api.example.test
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitreq.yaml"), []byte(content), 0644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)

	timeout, err := c.GetTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
	assert.False(t, c.GetFollowRedirects())
	assert.Equal(t, "Bearer abc", c.Headers["Authorization"])
	assert.Equal(t, "https://api.example.test", c.Variables["base"])
	// untouched keys keep their defaults
	assert.Equal(t, "console", c.Output)
}

func TestFindAndLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	content := `{"timeout": "250ms", "output": "json", "requestId": true}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hitreq.json"), []byte(content), 0644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "json", c.Output)
	assert.True(t, c.GetRequestID())
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	c, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "bad yaml", content: "timeout: [", errMsg: "parsing"},
		{name: "bad timeout", content: "timeout: soon", errMsg: "invalid timeout"},
		{name: "negative repeat", content: "repeat: -1", errMsg: "repeat must not be negative"},
		{name: "unknown output", content: "output: xml", errMsg: "unknown output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1", "B": "1"}

	other := &Config{
		Timeout:   "2s",
		NoColor:   BoolPtr(true),
		Headers:   map[string]string{"B": "2"},
		Variables: map[string]string{"v": "x"},
	}

	merged := base.Merge(other)

	assert.Equal(t, "2s", merged.Timeout)
	assert.True(t, merged.GetNoColor())
	assert.True(t, merged.GetFollowRedirects())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, map[string]string{"v": "x"}, merged.Variables)

	// base is left untouched
	assert.Equal(t, "1", base.Headers["B"])
	assert.Equal(t, "30s", base.Timeout)

	assert.Same(t, base, base.Merge(nil))
}

func TestClientOptions(t *testing.T) {
	c := DefaultConfig()
	c.Headers = map[string]string{"X-Test": "1"}

	opts, err := c.ClientOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 5)

	c.Timeout = "nope"
	_, err = c.ClientOptions()
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hitreq.yaml")
	c := DefaultConfig()
	c.Rate = 2.5
	c.Headers = map[string]string{"Accept": "application/json"}

	require.NoError(t, c.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}
