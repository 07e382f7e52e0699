// Package display turns message records into view descriptors for chat UIs.
// Pure transformations: no store or network access.
package display

import (
	"time"
)

type Alignment string

const (
	AlignSelf  Alignment = "right"
	AlignOther Alignment = "left"
)

// Bubble describes how one message should be rendered for a viewer.
type Bubble struct {
	Text      string    `json:"text"`
	Alignment Alignment `json:"alignment"`
	Timestamp string    `json:"timestamp"`
}

// Render maps a message and the viewer's relationship to it onto a display
// descriptor, using the current time for the humanized timestamp.
func Render(text string, createdAt time.Time, own bool) Bubble {
	return RenderAt(text, createdAt, time.Now(), own)
}

// RenderAt is Render with an explicit reference time.
func RenderAt(text string, createdAt, now time.Time, own bool) Bubble {
	align := AlignOther
	if own {
		align = AlignSelf
	}
	return Bubble{
		Text:      text,
		Alignment: align,
		Timestamp: humanTime(createdAt, now),
	}
}

// humanTime shortens timestamps the way chat clients do: clock time for
// today, month and day within the year, full date otherwise.
func humanTime(t, now time.Time) string {
	t = t.In(now.Location())
	switch {
	case sameDay(t, now):
		return t.Format("15:04")
	case t.Year() == now.Year():
		return t.Format("Jan 2, 15:04")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
