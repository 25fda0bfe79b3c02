package utils // package utils provides helper functions for token creation

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed HS256 JWT together with its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// NewAccessToken signs a token for userID with the given role. The claims
// are sub, role, exp and iat; the booking API reads sub as the caller
// identity. Production tokens come from the identity provider; this is
// used by the devtoken CLI and by tests.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
    if userID == "" {
        return AccessToken{}, errors.New("empty user id")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
