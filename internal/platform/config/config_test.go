package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/cadence"
)

const sampleRules = `
categories: [intern, regular]
matcher:
  primary_category: commute
  secondary_category: travel
push:
  default:
    mode: realtime
  groups:
    Berlin:
      mode: scheduled
      days: [1, 3, 5]
chats:
  default: chat-all
  Berlin: chat-berlin
locations:
  BER-01: Berlin
ride_rules:
  - id: r1
    name: Berlin-commute
    category: commute
    active: true
`

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndRules(t *testing.T) {
	t.Setenv("ONBOARD_RULES_FILE", writeRules(t, sampleRules))
	t.Setenv("ONBOARD_SCHEDULE_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.PollInterval)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.Equal(t, 500, cfg.Notify.AuditCapacity)

	assert.Equal(t, "commute", cfg.Rules.Matcher.PrimaryCategory)
	assert.Equal(t, cadence.Rule{Mode: cadence.ModeScheduled, Days: []int{1, 3, 5}}, cfg.Rules.Push.Groups["Berlin"])
	assert.Equal(t, "chat-berlin", cfg.Rules.Chats["Berlin"])
	assert.Equal(t, "Berlin", cfg.Rules.Locations["BER-01"])
	require.Len(t, cfg.Rules.RideRules, 1)
	assert.True(t, cfg.Rules.RideRules[0].Active)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ONBOARD_RULES_FILE", writeRules(t, sampleRules))
	t.Setenv("ONBOARD_SCHEDULE_POLL_INTERVAL", "30s")
	t.Setenv("ONBOARD_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ONBOARD_VENDORS_RIDE_BASE_URL", "https://ride.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Schedule.PollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://ride.test", cfg.Vendors.Ride.BaseURL)
}

func TestLoad_RejectsBadDigestTime(t *testing.T) {
	t.Setenv("ONBOARD_RULES_FILE", writeRules(t, sampleRules))
	t.Setenv("ONBOARD_SCHEDULE_DIGEST_AT", "9am")

	_, err := Load()
	assert.ErrorContains(t, err, "digest time")
}

func TestLoad_RequiresPrimaryCategory(t *testing.T) {
	t.Setenv("ONBOARD_RULES_FILE", writeRules(t, "categories: [intern]\n"))

	_, err := Load()
	assert.ErrorContains(t, err, "primary_category")
}

func TestParseRules_Defaults(t *testing.T) {
	r, err := ParseRules([]byte("matcher:\n  primary_category: commute\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"intern", "regular"}, r.Categories)
	assert.Equal(t, cadence.ModeRealtime, r.Push.Default.Mode)
}

func TestDigestTime(t *testing.T) {
	h, m, err := Schedule{DigestAt: "07:45"}.DigestTime()
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 45, m)
}

func TestLoadWithRules_OverridesEnvPath(t *testing.T) {
	t.Setenv("ONBOARD_RULES_FILE", "/does/not/exist.yaml")
	path := writeRules(t, sampleRules)

	cfg, err := LoadWithRules(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.RulesFile)
	assert.Equal(t, "chat-all", cfg.Rules.Chats["default"])
}
