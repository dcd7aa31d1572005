package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-restaurant-ordering/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, 600*time.Millisecond, cfg.AddressSettle)
	assert.Equal(t, int64(500), cfg.FallbackFee)
	assert.Equal(t, int64(300), cfg.BaseFee)
	assert.Equal(t, []string{"http://localhost:9000"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.Branches)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	_, err := Load("", t.TempDir())
	assert.EqualError(t, err, "SECRET_KEY is required")
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
port: "9100"
debounce_window: 150ms
branches:
  - id: north
    name: North
    lat: 41.31
    lng: 69.24
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("PORT", "9200")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load("", dir)
	require.NoError(t, err)

	assert.Equal(t, "9200", cfg.Port)
	assert.Equal(t, 150*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []models.Branch{{ID: "north", Name: "North", Lat: 41.31, Lng: 69.24}}, cfg.Branches)
}

func TestLoadBranchesFromEnvJSON(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("BRANCHES", `[{"id":"south","name":"South","lat":41.2,"lng":69.1}]`)

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	require.Len(t, cfg.Branches, 1)
	assert.Equal(t, "south", cfg.Branches[0].ID)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("SECRET_KEY=from-dotenv\nSMS_FROM=Storefront\n"), 0o600))
	t.Setenv("SECRET_KEY", "")
	os.Unsetenv("SECRET_KEY")
	t.Cleanup(func() { os.Unsetenv("SMS_FROM") })

	cfg, err := Load(env, dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.SecretKey)
	assert.Equal(t, "Storefront", cfg.SMSFrom)
}

func TestLoadMissingDotEnvIsFine(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	_, err := Load(filepath.Join(t.TempDir(), ".env"), "")
	require.NoError(t, err)
}
