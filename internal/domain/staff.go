package domain

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleKitchen Role = "kitchen"
	RoleWaiter  Role = "waiter"
)

// Principal is the verified staff identity supplied by the external auth
// service. The engine never checks credentials itself.
type Principal struct {
	ID   string
	Name string
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type StaffPresence struct {
	StaffID  string    `json:"staffId"`
	Name     string    `json:"name"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}
