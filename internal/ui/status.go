package ui

import (
	"fmt"
	"time"
)

// Tone selects how a status line is colored.
type Tone int

const (
	ToneInfo Tone = iota
	ToneGood
	ToneWarn
	ToneBad
)

func (t Tone) icon() string {
	switch t {
	case ToneGood:
		return SuccessStyle.Render(IconConnect)
	case ToneWarn:
		return WarningStyle.Render(IconWaiting)
	case ToneBad:
		return ErrorStyle.Render(IconError)
	default:
		return IconInfo
	}
}

// PrintStatus prints one connection status line, e.g.
// "🔌 streaming  room kitchen".
func PrintStatus(tone Tone, state, detail string) {
	label := BoldStyle.Render(state)
	if detail == "" {
		fmt.Fprintf(Out, "%s %s\n", tone.icon(), label)
		return
	}
	fmt.Fprintf(Out, "%s %s  %s\n", tone.icon(), label, MutedStyle.Render(detail))
}

// PrintClick prints a received cue.
func PrintClick(sound string, at time.Time) {
	fmt.Fprintf(Out, "%s %s %s\n",
		IconClick,
		BoldStyle.Render(sound),
		MutedStyle.Render(at.Format(time.TimeOnly)),
	)
}
