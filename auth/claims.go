package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT claims structure shared by the API server, the web
// frontend, and the recorder. The `_id`/`name`/`email` field names are the
// wire contract: the recorder decodes the same payload when it syncs a token
// out of the companion web app's localStorage.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}
