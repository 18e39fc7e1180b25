package domain

// Identity is the authenticated caller, resolved once at the transport boundary.
type Identity struct {
	UserID int64
	Email  string
}
