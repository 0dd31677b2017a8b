package credentials

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry decodes a JWT-shaped cookie value without verifying its
// signature and returns the exp claim. This is a best-effort expiry
// hint used to reject stale sessions early; it is NOT an authentication
// check and must never be treated as one.
func TokenExpiry(token string) (expiry int64, err error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return 0, fmt.Errorf("decoding session token: %w", err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, fmt.Errorf("session token has no usable exp claim")
	}

	return exp.Unix(), nil
}
