package session

import "github.com/atinyakov/GigBid/internal/models"

// Status is the resolution state of the session.
type Status int

const (
	// StatusUnresolved means a credential may exist but its identity is not known yet.
	StatusUnresolved Status = iota
	// StatusPresent means the credential resolved to an identity.
	StatusPresent
	// StatusAbsent means there is no usable credential.
	StatusAbsent
)

func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusPresent:
		return "resolved-present"
	case StatusAbsent:
		return "resolved-absent"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	// Credential is the bearer token, "" when logged out.
	Credential string
	// Identity is nil unless Status is StatusPresent.
	Identity *models.Identity
	Status   Status
	// Generation changes every time the credential value changes.
	Generation uint64
	// Version changes on every state change.
	Version uint64
}

// Resolved reports whether the session has left StatusUnresolved.
func (s Snapshot) Resolved() bool {
	return s.Status != StatusUnresolved
}

// Authenticated reports whether an identity is present.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusPresent && s.Identity != nil
}
