package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL",
		"AI_MAX_TOKENS", "AI_TEMPERATURE", "STORE_DRIVER", "SQLITE_PATH", "DATABASE_URL",
		"SEED_FILE", "EMOTION_MODEL", "AUTH_USER_HEADER", "LOG_LEVEL", "LOG_DEVELOPMENT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 150, cfg.AI.MaxTokens)
	assert.InDelta(t, 0.7, cfg.AI.Temperature, 1e-6)
	assert.Equal(t, "https://api.openai.com/v1", cfg.AI.Primary.BaseURL)
	assert.Equal(t, "cn-beijing", cfg.AI.Secondary.Region)
	assert.False(t, cfg.AI.Primary.Enabled())
	assert.False(t, cfg.AI.Secondary.Enabled())
	assert.Equal(t, "default", cfg.Dialogue.EmotionModel)
	assert.Equal(t, "X-User-ID", cfg.Auth.UserHeader)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadProviders(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("ARK_ACCESS_KEY", "ak")
	t.Setenv("ARK_SECRET_KEY", "sk")
	t.Setenv("ARK_MODEL", "doubao")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.AI.Primary.Enabled())
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.Primary.BaseURL)
	assert.True(t, cfg.AI.Secondary.Enabled())
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8080",
		"9000":           ":9000",
		":7000":          ":7000",
		"127.0.0.1:6000": "127.0.0.1:6000",
	}
	for in, want := range cases {
		got, err := normalizeAddr(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := normalizeAddr("80 80")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Load()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})
	t.Run("postgres without url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_DRIVER", DriverPostgres)
		_, err := Load()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})
	t.Run("max tokens", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AI_MAX_TOKENS", "many")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("port", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "80 80")
		_, err := Load()
		assert.ErrorContains(t, err, "PORT")
	})
}

func TestNewLogger(t *testing.T) {
	logger, err := LogConfig{Level: "debug"}.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = LogConfig{Level: "warn", Development: true}.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = LogConfig{Level: "loud"}.NewLogger()
	assert.Error(t, err)
}

func TestLoadSeedDefault(t *testing.T) {
	seed, err := LoadSeed("")
	require.NoError(t, err)
	require.NoError(t, seed.Validate())
	assert.Equal(t, emotion.DefaultModelName, seed.EmotionModel.Name)
	require.NotEmpty(t, seed.Intents)
	assert.Equal(t, "greeting", seed.Intents[0].Category)
}

func TestLoadSeedFile(t *testing.T) {
	seed, err := LoadSeed(filepath.Join("testdata", "seed.toml"))
	require.NoError(t, err)

	assert.Equal(t, "compact", seed.EmotionModel.Name)
	assert.Equal(t, []string{"sad", "down"}, seed.EmotionModel.Keywords[emotion.Sad])
	require.Len(t, seed.EmotionModel.Modifiers, 1)
	assert.InDelta(t, 1.5, seed.EmotionModel.Modifiers[0].Multiplier, 1e-9)

	require.Len(t, seed.Intents, 2)
	assert.InDelta(t, 0.5, seed.Intents[0].RequiredConfidence, 1e-9)
	require.Len(t, seed.Intents[1].Entities, 1)
	assert.Equal(t, "time", seed.Intents[1].Entities[0].Type)
}

func TestLoadSeedRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	_, err := LoadSeed(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	_, err = LoadSeed(write("label.toml", "[emotion_model]\nname = \"x\"\n[emotion_model.keywords]\nbored = [\"meh\"]\n"))
	assert.ErrorContains(t, err, "bored")

	_, err = LoadSeed(write("dup.toml", "[emotion_model]\nname = \"x\"\n[[intents]]\ncategory = \"a\"\n[[intents]]\ncategory = \"a\"\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = LoadSeed(write("reserved.toml", "[emotion_model]\nname = \"x\"\n[[intents]]\ncategory = \"unknown\"\n"))
	assert.ErrorContains(t, err, "reserved")
}
