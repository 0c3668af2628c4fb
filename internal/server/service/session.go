package service

import "context"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Principal is the authenticated actor a console acts for. Token is the
// credential forwarded to the store on the principal's behalf.
type Principal struct {
	ID    string
	Role  Role
	Token string
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// SessionProvider resolves the signed-in principal. A nil principal with a
// nil error means nobody is signed in.
type SessionProvider interface {
	CurrentPrincipal(ctx context.Context) (*Principal, error)
}

// StaticSession always resolves to the same principal.
type StaticSession struct {
	Principal *Principal
}

func (s StaticSession) CurrentPrincipal(context.Context) (*Principal, error) {
	return s.Principal, nil
}
