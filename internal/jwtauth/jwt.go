// Package jwtauth issues and validates the bearer tokens that bind each
// request to a principal account. The ledger itself never authenticates;
// it assumes every operation arrives already bound to a caller identity.
package jwtauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
)

// Claims represents the JWT claims for our access tokens.
type Claims struct {
	Account string `json:"account"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey string, issuer string, audience string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateToken signs a token for the given account.
func (s *Service) GenerateToken(account id.Account, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Account: account.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateToken parses and verifies a token, returning the principal account.
func (s *Service) ValidateToken(tokenString string) (id.Account, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.Account{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return id.Account{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return id.Account{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return id.Account{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	account, err := id.ParseAccount(claims.Account)
	if err != nil {
		return id.Account{}, dErrors.New(dErrors.CodeUnauthorized, "invalid account claim")
	}
	return account, nil
}
