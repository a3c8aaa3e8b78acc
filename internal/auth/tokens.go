package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sanitrack/internal/models"
)

// Claims are carried by access tokens.
type Claims struct {
	AccountID string      `json:"account_id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

func (a *Authority) signAccess(acct *models.Account) (string, error) {
	now := a.now()
	claims := &Claims{
		AccountID: acct.ID,
		Email:     acct.Email,
		Role:      acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.opts.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.opts.AccessSecret)
}

// signRefresh mints a refresh token. The random jti keeps tokens unique
// across sessions, even for one account within the same second.
func (a *Authority) signRefresh(accountID string, expires time.Time) (string, error) {
	now := a.now()
	claims := &jwt.RegisteredClaims{
		Subject:   accountID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.opts.RefreshSecret)
}

func (a *Authority) parseAccess(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.opts.AccessSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AccountID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// parseRefresh checks the signature only. The stored session decides
// whether the token is still alive, so an expired session can be found
// and removed.
func (a *Authority) parseRefresh(raw string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.opts.RefreshSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// hashToken is what sessions store in place of the refresh token.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
