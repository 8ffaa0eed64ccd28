package config

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"

	"latksync/internal/archive"
)

type ConfigTestSuite struct {
	suite.Suite
}

var configKeys = []string{
	"GO_ENV", "LATK_SERVER_ADDRESS", "LATK_SERVER_PORT", "LATK_SCALER", "LATK_DEBUG",
	"LATK_AUTH_TOKEN", "LATK_KILL_STROKES", "LATK_STROKE_LIFE", "LATK_EMIT_RATE",
	"LATK_EMIT_BURST", "LATK_RECONNECT", "LATK_RECONNECT_DELAY", "LATK_RECONNECT_ATTEMPTS",
	"RELAY_PORT", "RELAY_JWT_SECRET", "ARCHIVE_MODE", "REDIS_URL", "DATABASE_URL",
	"ARCHIVE_TTL", "LOG_LEVEL", "LOG_FORMAT",
}

// SetupTest clears every key so host settings do not leak into the defaults.
func (s *ConfigTestSuite) SetupTest() {
	for _, k := range configKeys {
		s.T().Setenv(k, "")
	}
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := loadFromEnv()
	s.Require().NoError(err)

	s.Equal("vr.fox-gieg.com", cfg.ServerAddress)
	s.Equal(8080, cfg.ServerPort)
	s.Equal(1.0, cfg.Scaler)
	s.True(cfg.Debug)
	s.False(cfg.KillStrokes)
	s.Equal(10*time.Second, cfg.StrokeLife)
	s.Equal(10.0, cfg.EmitRate)
	s.Equal(20, cfg.EmitBurst)
	s.True(cfg.Reconnect)
	s.Equal(2*time.Second, cfg.ReconnectDelay)
	s.Equal(ArchiveMemory, cfg.ArchiveMode)
	s.Equal(24*time.Hour, cfg.ArchiveTTL)
	s.True(cfg.IsDevelopment())
	s.NoError(cfg.Validate())

	s.Equal("http://vr.fox-gieg.com:8080/socket.io/:8443", cfg.SocketAddress())
}

func (s *ConfigTestSuite) TestOverrides() {
	t := s.T()
	t.Setenv("LATK_SERVER_ADDRESS", "localhost")
	t.Setenv("LATK_SERVER_PORT", "9000")
	t.Setenv("LATK_SCALER", "0.5")
	t.Setenv("LATK_DEBUG", "false")
	t.Setenv("LATK_KILL_STROKES", "true")
	t.Setenv("LATK_STROKE_LIFE", "3s")
	t.Setenv("LATK_AUTH_TOKEN", "tok")
	t.Setenv("LATK_EMIT_RATE", "5")
	t.Setenv("LATK_RECONNECT", "false")

	cfg, err := loadFromEnv()
	s.Require().NoError(err)
	s.Require().NoError(cfg.Validate())

	s.Equal("http://localhost:9000/socket.io/:8443", cfg.SocketAddress())

	sock := cfg.SocketOptions(nil)
	s.Equal(rate.Limit(5), sock.EmitRate)
	s.False(sock.Reconnect)
	s.Equal(map[string]any{"token": "tok"}, sock.Auth)
	s.NotNil(sock.Logger)

	br := cfg.BridgeOptions(nil)
	s.Equal(0.5, br.Scaler)
	s.False(br.Debug)
	s.True(br.Curve.KillStrokes)
	s.Equal(3*time.Second, br.Curve.StrokeLife)
}

func (s *ConfigTestSuite) TestParseErrors() {
	tests := map[string]string{
		"LATK_SERVER_PORT":     "eighty",
		"LATK_SCALER":          "big",
		"LATK_DEBUG":           "maybe",
		"LATK_RECONNECT_DELAY": "soon",
	}
	for key, value := range tests {
		s.Run(key, func() {
			s.T().Setenv(key, value)
			_, err := loadFromEnv()
			s.Require().Error(err)
			s.Contains(err.Error(), key)
		})
	}
}

func (s *ConfigTestSuite) TestValidateCollectsAllViolations() {
	t := s.T()
	t.Setenv("LATK_SERVER_PORT", "70000")
	t.Setenv("ARCHIVE_MODE", "postgres")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("RELAY_JWT_SECRET", "short")

	cfg, err := loadFromEnv()
	s.Require().NoError(err)

	err = cfg.Validate()
	s.Require().Error(err)
	for _, want := range []string{"LATK_SERVER_PORT", "DATABASE_URL", "LOG_LEVEL", "RELAY_JWT_SECRET"} {
		s.Contains(err.Error(), want)
	}
}

func (s *ConfigTestSuite) TestUnknownArchiveMode() {
	s.T().Setenv("ARCHIVE_MODE", "s3")
	cfg, err := loadFromEnv()
	s.Require().NoError(err)
	s.ErrorContains(cfg.Validate(), "ARCHIVE_MODE")
}

func (s *ConfigTestSuite) TestRelayAndArchiveOptions() {
	s.T().Setenv("RELAY_PORT", "9090")
	s.T().Setenv("RELAY_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	s.T().Setenv("ARCHIVE_MODE", "redis")
	s.T().Setenv("ARCHIVE_TTL", "1h")
	cfg, err := loadFromEnv()
	s.Require().NoError(err)

	relayOpts := cfg.RelayOptions(nil)
	s.Equal(":9090", relayOpts.Addr)
	s.Equal("0123456789abcdef0123456789abcdef", relayOpts.JWTSecret)
	s.NotNil(relayOpts.Logger)
	s.Equal(25*time.Second, relayOpts.PingInterval)

	archiveOpts := cfg.ArchiveOptions(nil)
	s.Equal(archive.ModeRedis, archiveOpts.Mode)
	s.Equal("redis://localhost:6379", archiveOpts.RedisURL)
	s.Equal(time.Hour, archiveOpts.TTL)
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, "info", "json")
		logger.Debug("hidden")
		logger.Info("stroke_sent", "index", 3)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "stroke_sent", line["msg"])
		assert.Equal(t, 3.0, line["index"])
	})

	t.Run("text with debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, "DEBUG", "text")
		logger.Debug("frame_received")
		assert.Contains(t, buf.String(), "msg=frame_received")
	})

	t.Run("unknown level is info", func(t *testing.T) {
		assert.Equal(t, "INFO", parseLevel("verbose").String())
	})
}
