package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, keys ...string) {
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "STORE_DRIVER", "CHAT_HIGHLIGHT_MS", "CHAT_TYPING_PULSE_MS",
		"CHAT_TOAST_VISIBLE_MS", "CHAT_TOAST_EXIT_MS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverFirestore, cfg.StoreDriver)
	assert.Equal(t, 600*time.Millisecond, cfg.Chat.HighlightDuration)
	assert.Equal(t, 900*time.Millisecond, cfg.Chat.TypingPulseDuration)
	assert.Equal(t, 3800*time.Millisecond, cfg.Chat.ToastVisibleDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.Chat.ToastExitDuration)
}

func TestLoad_ChatTimingsFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreDriverMemory)
	t.Setenv("CHAT_HIGHLIGHT_MS", "25")
	t.Setenv("CHAT_TYPING_PULSE_MS", "0")
	t.Setenv("CHAT_TOAST_VISIBLE_MS", "not-a-number")
	t.Setenv("CHAT_SEND_RATE_PER_MINUTE", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 25*time.Millisecond, cfg.Chat.HighlightDuration)
	assert.Equal(t, time.Duration(0), cfg.Chat.TypingPulseDuration)
	assert.Equal(t, 3800*time.Millisecond, cfg.Chat.ToastVisibleDuration)
	assert.Equal(t, 5, cfg.Chat.SendRatePerMinute)
}
