// Package media plays the audio attached to each state.
package media

import "strings"

// Player starts and stops the audio for a state.
type Player interface {
	// Start stops anything playing and starts ref.
	Start(ref string) error
	// Stop stops playback. Stopping an idle player is not an error.
	Stop() error
	// IsActive reports whether audio is playing.
	IsActive() bool
	// IsFinished reports whether the last started audio ran to its end.
	// It stays true until the next Start or Stop.
	IsFinished() bool
}

// Placeholder in a command template replaced by the media path.
const Placeholder = "{file}"

// expand substitutes path into every argument containing the placeholder.
// When no argument carries it the path is appended.
func expand(command []string, path string) []string {
	args := make([]string, 0, len(command)+1)
	found := false
	for _, a := range command {
		if strings.Contains(a, Placeholder) {
			a = strings.ReplaceAll(a, Placeholder, path)
			found = true
		}
		args = append(args, a)
	}
	if !found {
		args = append(args, path)
	}
	return args
}
