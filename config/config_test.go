package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
)

func TestLoad_DefaultsWithEnv(t *testing.T) {
	t.Setenv("ZENSYNC_AUTH_JWT_SECRET", "dev-secret")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, time.UTC, cfg.Zone())
	assert.Equal(t, progress.SameDayKeep, cfg.EngineConfig().SameDay)
	assert.Nil(t, cfg.SigningKey())
	assert.False(t, cfg.Features.IsEnabled(FeatureRedisLocking))
	assert.True(t, cfg.Features.IsEnabled(FeatureAttestationSigning))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ZENSYNC_AUTH_JWT_SECRET", "dev-secret")
	t.Setenv("ZENSYNC_HTTP_PORT", "9000")
	t.Setenv("ZENSYNC_ENGINE_SAME_DAY_POLICY", "reset")
	t.Setenv("ZENSYNC_ENGINE_TIMEZONE", "Asia/Almaty")
	t.Setenv("ZENSYNC_FEATURES_REDIS_LOCKING", "true")
	t.Setenv("ZENSYNC_SHARING_SIGNING_KEY", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, progress.SameDayReset, cfg.EngineConfig().SameDay)
	assert.Equal(t, "Asia/Almaty", cfg.Zone().String())
	assert.True(t, cfg.Features.IsEnabled(FeatureRedisLocking))
	assert.Len(t, cfg.SigningKey(), 32)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		App:           AppConfig{Environment: EnvProduction},
		HTTP:          HTTPConfig{Port: 0},
		Storage:       StorageConfig{Driver: DriverPostgres},
		Engine:        EngineConfig{Timezone: "Mars/Olympus", SameDayPolicy: "sometimes"},
		Sharing:       SharingConfig{SigningKey: "abcd"},
		Observability: ObservabilityConfig{TraceSampleRatio: 2},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"http.port",
		"auth.jwt_secret is required",
		"database.url is required",
		"engine.timezone",
		"engine.same_day_policy",
		"sharing.signing_key must decode",
		"trace_sample_ratio",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_MemoryDriverRejectedInProduction(t *testing.T) {
	cfg := &Config{
		App:     AppConfig{Environment: EnvProduction},
		HTTP:    HTTPConfig{Port: 8080},
		Auth:    AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef"},
		Storage: StorageConfig{Driver: DriverMemory},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver memory")
}

func TestFeatureFlags(t *testing.T) {
	ff := LoadFeatureFlags(nil)
	assert.Equal(t, []string{FeatureAchievementCache, FeatureAttestationSigning, FeatureRedisLocking}, ff.Names())
	assert.False(t, ff.IsEnabled("unknown"))

	require.NoError(t, ff.Set(FeatureAchievementCache, true))
	assert.True(t, ff.IsEnabled(FeatureAchievementCache))
	assert.ErrorIs(t, ff.Set("unknown", true), ErrFeatureNotFound)
}
