package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
	"nats": {"urls": ["nats://nats:4222"], "reconnect_wait": "5s", "ping_interval": "10s", "handler_timeout": "2s"},
	"input": {"subject": "orders.send", "stream": "ORDERS", "durable": "fix-bridge"},
	"output": {"enabled": true, "subject": "orders.raw"},
	"dictionary": "/etc/fix/dictionaries.zip",
	"settings": {
		"autoStopAfter": 30,
		"sessionSettings": [
			{"beginString": "FIX.4.4", "senderCompID": "S", "targetCompID": "T", "sessionAlias": "client1"}
		]
	}
}`

const yamlConfig = `
nats:
  urls: ["nats://nats:4222"]
input:
  subject: orders.send
settings:
  startControl: true
  queueCapacity: 50
  sessionSettings:
    - beginString: FIX.4.2
      senderCompID: S
      targetCompID: T
      sessionAlias: client1
      heartBtInt: 15
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func loaderWithEnv(env map[string]string) *Loader {
	l := NewLoader()
	l.getenv = func(k string) string { return env[k] }
	return l
}

func TestLoadJSON(t *testing.T) {
	cfg, err := loaderWithEnv(nil).LoadFile(writeFile(t, "bridge.json", jsonConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"nats://nats:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait.Std())
	assert.Equal(t, 10*time.Second, cfg.NATS.PingInterval.Std())
	assert.Equal(t, 2*time.Second, cfg.NATS.HandlerTimeout.Std())
	assert.Zero(t, cfg.NATS.DrainTimeout)
	assert.Equal(t, "ORDERS", cfg.Input.Stream)
	assert.Equal(t, "/etc/fix/dictionaries.zip", cfg.Dictionary)
	assert.Equal(t, 30, cfg.Settings.AutoStopAfter)
	assert.True(t, cfg.Settings.AutoStart)
	assert.Equal(t, DefaultQueueCapacity, cfg.Settings.QueueCapacity)
	assert.Equal(t, "fix.client.events", cfg.Events.Subject)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := loaderWithEnv(nil).LoadFile(writeFile(t, "bridge.yaml", yamlConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Settings.StartControl)
	assert.Equal(t, 50, cfg.Settings.QueueCapacity)
	require.Len(t, cfg.Settings.Sessions, 1)
	require.NotNil(t, cfg.Settings.Sessions[0].HeartBtInt)
	assert.Equal(t, 15, *cfg.Settings.Sessions[0].HeartBtInt)
	assert.Equal(t, "fix.client.control", cfg.Control.Subject)
}

func TestLoadEnvOverrides(t *testing.T) {
	env := map[string]string{
		"SEMSTREAMS_FIX_NATS_URLS":    "nats://a:4222,nats://b:4222",
		"SEMSTREAMS_FIX_DICTIONARY":   "/opt/dict.zip",
		"SEMSTREAMS_FIX_METRICS_PORT": "9191",
	}
	cfg, err := loaderWithEnv(env).LoadFile(writeFile(t, "bridge.json", jsonConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, "/opt/dict.zip", cfg.Dictionary)
	assert.Equal(t, 9191, cfg.Metrics.Port)

	_, err = loaderWithEnv(map[string]string{"SEMSTREAMS_FIX_METRICS_PORT": "abc"}).
		LoadFile(writeFile(t, "bridge.json", jsonConfig))
	assert.Error(t, err)
}

func TestLoadRejects(t *testing.T) {
	l := loaderWithEnv(nil)

	_, err := l.LoadFile(writeFile(t, "bridge.toml", "x = 1"))
	assert.ErrorContains(t, err, "only JSON or YAML")

	_, err = l.LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)

	_, err = l.LoadFile(writeFile(t, "bridge.json", `{"settings": {"sessionSettings": []}}`))
	assert.ErrorContains(t, err, "at least one session")

	_, err = l.LoadFile(writeFile(t, "bridge.json", `{"input": {"subject": "x", "stream": "S"}, "settings": {"sessionSettings": [{"beginString": "FIX.4.4", "senderCompID": "S", "targetCompID": "T", "sessionAlias": "a"}]}}`))
	assert.ErrorContains(t, err, "input.durable")
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": "[[[[", "b": [1, 2]}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a": [`)))
	assert.Error(t, validateJSONDepth([]byte(`}`)))

	deep := make([]byte, 0, 2*(maxJSONDepth+1))
	for i := 0; i <= maxJSONDepth; i++ {
		deep = append(deep, '[')
	}
	for i := 0; i <= maxJSONDepth; i++ {
		deep = append(deep, ']')
	}
	assert.ErrorContains(t, validateJSONDepth(deep), "too deep")
}

func TestSafeReadFileRejects(t *testing.T) {
	_, err := safeReadFile("")
	assert.ErrorContains(t, err, "invalid config path")

	_, err = safeReadFile("bridge\x00.json")
	assert.ErrorContains(t, err, "invalid config path")

	dir := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.Mkdir(dir, 0o700))
	_, err = safeReadFile(dir)
	assert.ErrorContains(t, err, "not a regular file")

	data, err := safeReadFile(writeFile(t, "ok.yml", "nats: {}"))
	require.NoError(t, err)
	assert.Equal(t, "nats: {}", string(data))
}

func TestValidateEnvVar(t *testing.T) {
	assert.NoError(t, validateEnvVar("SEMSTREAMS_FIX_TOKEN", "abc"))
	assert.Error(t, validateEnvVar("SEMSTREAMS_FIX_TOKEN", "a\x00b"))
	assert.Error(t, validateEnvVar("SEMSTREAMS_FIX_TOKEN", string(make([]byte, maxEnvVarLen+1))))
}

func TestConfigStringMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.NATS.Token = "s3cret"
	assert.NotContains(t, cfg.String(), "s3cret")
	assert.Contains(t, cfg.String(), "***")
}
