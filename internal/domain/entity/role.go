package entity

import "fmt"

// Role is one of the two parties of a conversation.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleCustomer:
		return RoleCustomer, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCustomer:
		return true
	}
	return false
}

// Counterpart returns the other party. It panics on an invalid role.
func (r Role) Counterpart() Role {
	switch r {
	case RoleAdmin:
		return RoleCustomer
	case RoleCustomer:
		return RoleAdmin
	}
	panic(fmt.Sprintf("entity: counterpart of invalid role %q", string(r)))
}

// UnreadField is the UnreadCounter field this role clears when it reads.
func (r Role) UnreadField() string {
	switch r {
	case RoleAdmin:
		return "unreadByAdmin"
	case RoleCustomer:
		return "unreadByCustomer"
	}
	panic(fmt.Sprintf("entity: unread field of invalid role %q", string(r)))
}

func (r Role) String() string {
	return string(r)
}
