// Package permission resolves a user's department memberships into one
// authoritative permission set and answers access checks against it.
package permission

import "fmt"

// Level is the ordered access level a grant confers. The ordering is total:
// None < Read < Write < Admin. Absent keys imply None.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelWrite
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelAdmin:
		return "admin"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Satisfies reports whether l grants at least the required level.
func (l Level) Satisfies(required Level) bool {
	return l >= required
}

// ParseLevel clamps a raw backend integer onto the known range. Values above
// Admin collapse to Admin, negatives to None.
func ParseLevel(raw int) Level {
	switch {
	case raw <= int(LevelNone):
		return LevelNone
	case raw >= int(LevelAdmin):
		return LevelAdmin
	default:
		return Level(raw)
	}
}
