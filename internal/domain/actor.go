package domain

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleInstructor Role = "INSTRUCTOR"
)

// Actor is the verified identity performing an operation. It is resolved by
// the transport layer before any core operation runs; the core never
// re-derives identity from any other signal.
type Actor struct {
	ID   string
	Role Role
}
