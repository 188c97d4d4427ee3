package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseDuration verifies standard units plus days and weeks
func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"90m", 90 * time.Minute},
		{"6h", 6 * time.Hour},
		{"60d", 60 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"0d", 0},
	}

	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

// TestParseDuration_Invalid verifies malformed input is rejected
func TestParseDuration_Invalid(t *testing.T) {
	for _, in := range []string{"", "d", "xd", "-3d", "5y", "abc"} {
		_, err := parseDuration(in)
		assert.Error(t, err, in)
	}
}

// TestTruncate verifies rune-aware truncation
func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "전기차...", truncate("전기차 모터 뉴스", 6))
}

// TestGetEnv verifies the fallback
func TestGetEnv(t *testing.T) {
	t.Setenv("EVMOTOR_TEST_VALUE", "set")
	assert.Equal(t, "set", getEnv("EVMOTOR_TEST_VALUE", "default"))
	assert.Equal(t, "default", getEnv("EVMOTOR_TEST_UNSET", "default"))
}
