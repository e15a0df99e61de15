package entity

// Role is a client's part in one game: a player mark or a spectator.
type Role string

const (
	RoleX         Role = "X"
	RoleO         Role = "O"
	RoleSpectator Role = "spectator"
)

// Players holds the identities that claimed each mark. An empty string is an open slot.
type Players struct {
	X string `json:"X"`
	O string `json:"O"`
}

// RoleOf returns the role already held by identity, or RoleSpectator.
func (that Players) RoleOf(identity string) Role {
	switch {
	case identity == "":
		return RoleSpectator
	case that.X == identity:
		return RoleX
	case that.O == identity:
		return RoleO
	default:
		return RoleSpectator
	}
}

// OpenSlot returns the first unclaimed role, X before O, or RoleSpectator when both are taken.
func (that Players) OpenSlot() Role {
	switch {
	case that.X == "":
		return RoleX
	case that.O == "":
		return RoleO
	default:
		return RoleSpectator
	}
}

func (that Players) Full() bool {
	return that.X != "" && that.O != ""
}

// Mark converts a player role to the mark it places.
func (that Role) Mark() Mark {
	switch that {
	case RoleX:
		return MarkX
	case RoleO:
		return MarkO
	default:
		return MarkNone
	}
}

func (that Role) IsPlayer() bool {
	return that == RoleX || that == RoleO
}
