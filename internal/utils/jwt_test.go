package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
    tok, err := NewAccessToken("k", "A1", "ARTIST", 10*time.Minute)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().Add(10*time.Minute), tok.Exp, 5*time.Second)

    claims := jwt.MapClaims{}
    parsed, err := jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) { return []byte("k"), nil })
    require.NoError(t, err)
    assert.True(t, parsed.Valid)
    assert.Equal(t, "A1", claims["sub"])
    assert.Equal(t, "ARTIST", claims["role"])

    _, err = NewAccessToken("k", "", "ARTIST", time.Minute)
    assert.Error(t, err)
}
