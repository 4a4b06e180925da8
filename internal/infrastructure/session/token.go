package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "settlement-dashboard"

// Common errors
var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrMissingID    = errors.New("missing session id in token")
	ErrNoSession    = errors.New("no active session")
)

// Claims is the payload of the session cookie. It carries only the session
// id; the credential never leaves the server.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// tokenCodec signs and verifies session cookies with HS256.
type tokenCodec struct {
	secret []byte
}

func (c tokenCodec) sign(id, username string, issuedAt time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       id,
			Subject:  username,
			Issuer:   tokenIssuer,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
		Username: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

func (c tokenCodec) verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, ErrMissingID
	}
	return claims, nil
}
