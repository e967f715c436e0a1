package auth

import (
	"crypto/subtle"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
)

// Decision is the outcome of an access check.
type Decision int

const (
	Denied Decision = iota
	AllowOwner
	AllowVisitor
	Unavailable
)

func (d Decision) String() string {
	switch d {
	case AllowOwner:
		return "owner"
	case AllowVisitor:
		return "visitor"
	case Unavailable:
		return "unavailable"
	default:
		return "denied"
	}
}

// Allowed reports whether d grants access.
func (d Decision) Allowed() bool {
	return d == AllowOwner || d == AllowVisitor
}

// Role is the sender type an allowing decision grants.
func (d Decision) Role() domain.SenderType {
	switch d {
	case AllowOwner:
		return domain.SenderOwner
	case AllowVisitor:
		return domain.SenderVisitor
	default:
		return ""
	}
}

// Authorizer decides whether a party may enter a room. Rules are checked
// in order: room availability, owner identity, visitor secret.
type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// Authorize evaluates identity (empty when none resolved) and visitor
// secret (empty when absent) against room.
func (a *Authorizer) Authorize(room *domain.Room, identity, visitorSecret string) Decision {
	if room == nil || !room.Active {
		return Unavailable
	}
	if identity != "" && identity == room.OwnerID {
		return AllowOwner
	}
	if visitorSecret != "" && SecretsEqual(visitorSecret, room.VisitorSecret) {
		return AllowVisitor
	}
	return Denied
}

// SecretsEqual compares two secrets in constant time.
func SecretsEqual(given, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(stored)) == 1
}
