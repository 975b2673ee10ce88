package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the hosted-auth access token shape: the user id travels in
// "sub" and the role is either a signed-in member or the service role.
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// UserID is the token subject.
func (c Claims) UserID() string { return c.Subject }
