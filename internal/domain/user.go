package domain

// User is the signed-in dashboard user as resolved by the identity provider.
type User struct {
	Username string `json:"username"`
	Token    string `json:"-"`
}

// UnknownUsername is used when the identity provider has no name for the caller.
const UnknownUsername = "unknown"

// DisplayName returns the username or the unknown placeholder.
func (u *User) DisplayName() string {
	if u == nil || u.Username == "" {
		return UnknownUsername
	}
	return u.Username
}
