package domain

import "time"

// Identity is the (user, provider) pair owning one OAuth connection.
type Identity struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
}

// String returns the canonical "user/provider" key used in logs and storage.
func (id Identity) String() string {
	return id.UserID + "/" + id.Provider
}

// ConnectionStatus tracks the lifecycle state of an OAuth connection.
type ConnectionStatus string

const (
	ConnectionStatusActive   ConnectionStatus = "active"
	ConnectionStatusExpired  ConnectionStatus = "expired"
	ConnectionStatusRevoked  ConnectionStatus = "revoked"
	ConnectionStatusDisabled ConnectionStatus = "disabled"
)

// Connection represents a stored OAuth connection for one identity.
type Connection struct {
	Identity     Identity         `json:"identity"`
	AccessToken  string           `json:"-"`
	RefreshToken string           `json:"-"`
	ExpiresAt    time.Time        `json:"expires_at"`
	Status       ConnectionStatus `json:"status"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ExpiresWithin reports whether the access token expires within d from now.
func (c *Connection) ExpiresWithin(d time.Duration) bool {
	return c.ExpiresAt.Before(time.Now().Add(d))
}

// HasRefreshToken reports whether the connection can be refreshed at all.
func (c *Connection) HasRefreshToken() bool {
	return c.RefreshToken != ""
}
