package model

import "time"

// Keys the client owns in a session store. The store holds flat strings
// only; Session is the typed view over them.
const (
	KeyToken       = "token"
	KeyDisplayName = "display_name"
	KeyRole        = "role"
)

// SessionKeys lists every key the application writes.
var SessionKeys = []string{KeyToken, KeyDisplayName, KeyRole}

// Session is the client-held record of the current identity.
// Every field is optional; an empty Token means no session.
type Session struct {
	Token       string `json:"-"`
	DisplayName string `json:"display_name,omitempty"`
	Role        Role   `json:"role,omitempty"`
}

// IsAuthenticated reports whether a bearer token is present.
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// IsAdmin reports whether the cached role hint is admin.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Claims are the fields the client reads out of a bearer token. They are
// derived on demand and never stored apart from the raw token.
type Claims struct {
	Role     string    `json:"role"`
	Fullname string    `json:"fullname,omitempty"`
	Subject  string    `json:"sub,omitempty"`
	Expiry   time.Time `json:"-"`
}

// HasExpiry reports whether the token carried an exp claim.
func (c Claims) HasExpiry() bool {
	return !c.Expiry.IsZero()
}
