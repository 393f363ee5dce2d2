package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// MyClaims is the JWT claim set issued at login and presented again in the
// voice handshake.
type MyClaims struct {
	Login    string `json:"login"`
	Password string `json:"password"` // sha256 hex digest, never the clear text
	jwt.StandardClaims
}
