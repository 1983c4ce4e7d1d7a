package transfer

import "github.com/golang-jwt/jwt/v5"

type StateClaims struct {
	Platform string `json:"platform"`
	jwt.RegisteredClaims
}
