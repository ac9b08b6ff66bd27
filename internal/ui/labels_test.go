package ui

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/mindmorass/clipshelf/internal/clipboard"
	"github.com/mindmorass/clipshelf/internal/engine"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute, "1 minute"},
		{90 * time.Minute, "1 hour"},
		{5 * time.Hour, "5 hours"},
		{72 * time.Hour, "3 days"},
		{-time.Second, "0 seconds"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), tt.d.String())
	}
}

func TestMenuLabel(t *testing.T) {
	now := time.Now()

	text := clipboard.NewTextItem("hello\nworld", "", now.Add(-2*time.Minute))
	assert.Equal(t, "hello world  (2 minutes ago)", menuLabel(text, now))

	long := clipboard.NewTextItem(strings.Repeat("x", 200), "", now)
	label := menuLabel(long, now)
	preview := strings.Split(label, "  (")[0]
	assert.Equal(t, menuLabelLength, utf8.RuneCountInString(preview))
	assert.True(t, strings.HasSuffix(preview, "…"))

	img := clipboard.NewImageItem("a.png", "Preview", now.Add(-3*time.Hour))
	assert.Equal(t, "Image from Preview  (3 hours ago)", menuLabel(img, now))
}

func TestStatusTitle(t *testing.T) {
	assert.Equal(t, "Status: Watching ✓", statusTitle(engine.StatusWatching))
	assert.Equal(t, "Status: Paused ⏸", statusTitle(engine.StatusPaused))
	assert.Equal(t, "Status: Error ⚠", statusTitle(engine.StatusError))
	assert.Equal(t, "Status: Idle", statusTitle(engine.StatusIdle))
}

func TestLastBackupTitle(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "Last backup: Never", lastBackupTitle(time.Time{}, now))
	assert.Equal(t, "Last backup: 10 minutes ago", lastBackupTitle(now.Add(-10*time.Minute), now))
}
