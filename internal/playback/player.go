package playback

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

var ErrUnsupportedFormat = errors.New("no audio player supports this format")

// Player plays one sound file to completion. Cancelling ctx stops playback.
type Player interface {
	Play(ctx context.Context, path string, volume float64) error
}

// NoopPlayer is a Player that does nothing.
// Use this as a safe default when no audio player is available.
type NoopPlayer struct{}

func (NoopPlayer) Play(context.Context, string, float64) error { return nil }

// tool describes one OS-native audio command.
type tool struct {
	name    string
	path    string
	formats []string // empty means any
	args    func(file string, volume float64) []string
}

func (t tool) supports(ext string) bool {
	if len(t.formats) == 0 {
		return true
	}
	for _, f := range t.formats {
		if f == ext {
			return true
		}
	}
	return false
}

var knownTools = map[string][]tool{
	"darwin": {
		{name: "afplay", args: func(file string, volume float64) []string {
			return []string{"-v", strconv.FormatFloat(volume, 'f', 2, 64), file}
		}},
	},
	"linux": {
		{name: "paplay", formats: []string{".wav", ".ogg"}, args: func(file string, volume float64) []string {
			return []string{"--volume=" + strconv.Itoa(int(volume*65536)), file}
		}},
		{name: "ffplay", args: func(file string, volume float64) []string {
			return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", strconv.Itoa(ffplayVolume(volume)), file}
		}},
		{name: "aplay", formats: []string{".wav"}, args: func(file string, _ float64) []string {
			return []string{"-q", file}
		}},
	},
	"windows": {
		{name: "powershell.exe", formats: []string{".wav"}, args: func(file string, _ float64) []string {
			return []string{"-NoProfile", "-c", fmt.Sprintf("(New-Object System.Media.SoundPlayer '%s').PlaySync()", strings.ReplaceAll(file, "'", "''"))}
		}},
	},
}

func ffplayVolume(volume float64) int {
	v := int(volume * 100)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// CommandPlayer plays sounds via OS-native audio commands, picking the first
// detected command that understands the file's format.
type CommandPlayer struct {
	tools []tool
}

// DetectPlayer returns a CommandPlayer when at least one audio command is on
// PATH, otherwise a NoopPlayer.
func DetectPlayer() (Player, bool) {
	p := detectCommandPlayer(runtime.GOOS, exec.LookPath)
	if p == nil {
		return NoopPlayer{}, false
	}
	return p, true
}

func detectCommandPlayer(goos string, lookPath func(string) (string, error)) *CommandPlayer {
	var found []tool
	for _, t := range knownTools[goos] {
		path, err := lookPath(t.name)
		if err != nil {
			continue
		}
		t.path = path
		found = append(found, t)
	}
	if len(found) == 0 {
		return nil
	}
	return &CommandPlayer{tools: found}
}

// Commands lists the detected audio commands in order of preference.
func (p *CommandPlayer) Commands() []string {
	names := make([]string, len(p.tools))
	for i, t := range p.tools {
		names[i] = t.name
	}
	return names
}

func (p *CommandPlayer) command(path string, volume float64) (string, []string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, t := range p.tools {
		if t.supports(ext) {
			return t.path, t.args(path, volume), nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

func (p *CommandPlayer) Play(ctx context.Context, path string, volume float64) error {
	name, args, err := p.command(path, volume)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // name comes from detection
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(string(out)))
	}
	return nil
}
