package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/chihaya/bdecode/bencode"
)

const testConfig = `
bdecode:
  decoder:
    reject_negative_integers: true
    max_depth: 64
  log:
    level: warn
  metrics_addr: "0.0.0.0:6880"
  http:
    addr: "${BDECODE_TEST_ADDR}"
    read_timeout: 5s
  storage:
    name: memory
    config:
      shard_count: 8
  prehooks:
    - name: torrent approval
      options:
        denylist:
          - 3532cf2d327fad8448c075b4cb42c8136964a435
  posthooks:
    - name: log
`

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bdecode.yaml")
	require.Nil(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfgFile, err := ParseConfigFile(path)
	require.Nil(t, err)

	cfg := cfgFile.Bdecode
	require.True(t, cfg.Decoder.RejectNegativeIntegers)
	require.Equal(t, 64, cfg.Decoder.MaxDepth)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "0.0.0.0:6880", cfg.MetricsAddr)
	require.Equal(t, 5*time.Second, cfg.HTTPConfig.ReadTimeout)
	require.Equal(t, "memory", cfg.Storage.Name)
	require.Equal(t, []string{"torrent approval"}, cfg.PreHookNames())
	require.Equal(t, []string{"log"}, cfg.PostHookNames())
}

func TestParseConfigFileExpandsPath(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "c.yaml"), []byte(testConfig), 0o600))
	os.Setenv("BDECODE_TEST_DIR", dir)
	defer os.Unsetenv("BDECODE_TEST_DIR")

	_, err := ParseConfigFile("$BDECODE_TEST_DIR/c.yaml")
	require.Nil(t, err)

	_, err = ParseConfigFile("")
	require.NotNil(t, err)
}

func TestNewRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bdecode.yaml")
	os.Setenv("BDECODE_TEST_ADDR", "127.0.0.1:0")
	defer os.Unsetenv("BDECODE_TEST_ADDR")

	// The metrics server is left out so the test does not bind a fixed port.
	noMetrics := `
bdecode:
  http:
    addr: "${BDECODE_TEST_ADDR}"
  storage:
    name: memory
  prehooks:
    - name: require private
`
	require.Nil(t, os.WriteFile(path, []byte(os.ExpandEnv(noMetrics)), 0o600))

	r, err := NewRun(path, nil)
	require.Nil(t, err)
	store, err := r.Stop(false)
	require.Nil(t, err)
	require.Nil(t, store)
}

func TestOverlayDecoderFlags(t *testing.T) {
	fromFile := bencode.Config{AllowTrailingBytes: true, MaxDepth: 64, MaxInputSize: 1024}

	cmd := &cobra.Command{Use: "serve"}
	addDecoderFlags(cmd)
	require.Nil(t, cmd.ParseFlags(nil))

	cfg, err := overlayDecoderFlags(cmd, fromFile)
	require.Nil(t, err)
	require.Equal(t, fromFile, cfg)

	cmd = &cobra.Command{Use: "serve"}
	addDecoderFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--max-depth=8", "--no-negative", "--allow-trailing=false"}))

	cfg, err = overlayDecoderFlags(cmd, fromFile)
	require.Nil(t, err)
	require.Equal(t, bencode.Config{
		RejectNegativeIntegers: true,
		AllowTrailingBytes:     false,
		MaxDepth:               8,
		MaxInputSize:           1024,
	}, cfg)
}
