// Package levelpath turns engine-decorated level paths into canonical
// identities that compare equal across instances and play sessions.
package levelpath

import (
	"strings"
)

const (
	// InstanceMarker is appended by the engine to every streamed instance
	// of a level ("/Game/Rooms/RoomA_LevelInstance_3").
	InstanceMarker = "_LevelInstance"

	// SessionPrefix decorates the short name of a level renamed for a play
	// session ("/Game/Rooms/UEDPIE_0_RoomA").
	SessionPrefix = "UEDPIE_"
)

// Normalize returns the canonical identity of raw. It strips, in order:
// the instance marker and everything after it, otherwise the package
// object suffix, and finally the play-session decoration.
func Normalize(raw string) string {
	p := strings.TrimSpace(raw)

	if i := strings.Index(p, InstanceMarker); i >= 0 {
		p = p[:i]
	} else if dot := strings.LastIndex(p, "."); dot > strings.LastIndex(p, "/") {
		p = p[:dot]
	}

	return stripSession(p)
}

// stripSession removes every "UEDPIE_<digits>_" segment.
func stripSession(p string) string {
	var b strings.Builder
	for {
		i := strings.Index(p, SessionPrefix)
		if i < 0 {
			b.WriteString(p)
			return b.String()
		}

		rest := p[i+len(SessionPrefix):]
		n := 0
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n == 0 || n == len(rest) || rest[n] != '_' {
			// Not a decoration; keep the token and keep scanning after it.
			b.WriteString(p[:i+len(SessionPrefix)])
			p = rest
			continue
		}

		b.WriteString(p[:i])
		p = rest[n+1:]
	}
}

// Same reports whether two raw paths refer to the same source level.
func Same(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// ShortName returns the last segment of the canonical path.
func ShortName(raw string) string {
	p := Normalize(raw)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
