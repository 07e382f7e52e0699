package display_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourorg/connecthub/internal/display"
)

func TestRenderAt_Alignment(t *testing.T) {
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	own := display.RenderAt("mine", now, now, true)
	assert.Equal(t, display.AlignSelf, own.Alignment)
	assert.Equal(t, "mine", own.Text)

	other := display.RenderAt("theirs", now, now, false)
	assert.Equal(t, display.AlignOther, other.Alignment)
}

func TestRenderAt_Timestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		createdAt time.Time
		want      string
	}{
		{"same day", time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), "09:30"},
		{"same year", time.Date(2025, 2, 14, 8, 5, 0, 0, time.UTC), "Feb 14, 08:05"},
		{"previous year", time.Date(2023, 12, 24, 23, 59, 0, 0, time.UTC), "Dec 24, 2023"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := display.RenderAt("x", tc.createdAt, now, false)
			assert.Equal(t, tc.want, b.Timestamp)
		})
	}
}
