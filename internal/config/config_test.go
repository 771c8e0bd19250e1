package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_EXPIRY", "not-a-duration")
	t.Setenv("CHAT_GROUP_MAX_MEMBERS", "-3")

	cfg := Load()

	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, 100, cfg.Chat.GroupMaxMembers)
	assert.Equal(t, 5*time.Minute, cfg.MinIO.PresignExpiry)
	assert.Equal(t, PushProviderStub, cfg.Push.Provider)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHAT_GROUP_MAX_MEMBERS", "50")
	t.Setenv("PUSH_PROVIDER", "FCM")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_SSLMODE", "require")

	cfg := Load()

	assert.Equal(t, 50, cfg.Chat.GroupMaxMembers)
	assert.Equal(t, PushProviderFCM, cfg.Push.Provider)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.Origins)
	assert.InDelta(t, 0.25, cfg.OTEL.SampleRatio, 1e-9)
	assert.Contains(t, cfg.DB.DSN(), "host=db")
	assert.Contains(t, cfg.DB.URL(), "@db:5432/lighttalk?sslmode=require")
}
