package protocol

import (
	"strings"
	"unicode"
)

// SoundReference identifies the cue a listener should play. The zero value is
// the built-in default click; a non-empty Name refers to a listener-local sound
// file basename.
type SoundReference struct {
	Name string
}

// DefaultSound returns the reference to the built-in click cue.
func DefaultSound() SoundReference {
	return SoundReference{}
}

// NamedSound returns a reference to a custom sound. The name is not validated;
// use ParseSoundName for untrusted input.
func NamedSound(name string) SoundReference {
	return SoundReference{Name: name}
}

// IsDefault reports whether the reference is the built-in click.
func (s SoundReference) IsDefault() bool {
	return s.Name == ""
}

func (s SoundReference) String() string {
	if s.IsDefault() {
		return "default"
	}
	return s.Name
}

var separatorReplacer = strings.NewReplacer("/", "_", "\\", "_")

// SanitizeSoundName replaces path separators so the name cannot escape the
// listener's sound directory.
func SanitizeSoundName(name string) string {
	return separatorReplacer.Replace(name)
}

// ParseSoundName sanitizes and validates a custom sound name.
func ParseSoundName(raw string) (SoundReference, error) {
	name := SanitizeSoundName(raw)
	switch {
	case name == "", name == ".", name == "..":
		return SoundReference{}, ErrInvalidSoundName
	case len(name) > MaxRoomIDLength:
		return SoundReference{}, ErrInvalidSoundName
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return SoundReference{}, ErrInvalidSoundName
	}
	return NamedSound(name), nil
}
