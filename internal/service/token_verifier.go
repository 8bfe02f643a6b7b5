package service

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/facility-workorder-api/internal/models"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
)

// TokenVerifierConfig describes the accepted access tokens.
type TokenVerifierConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// TokenVerifier validates access tokens issued by the identity provider.
type TokenVerifier struct {
	config TokenVerifierConfig
	parser *jwt.Parser
}

// NewTokenVerifier constructs a verifier for HS256 tokens.
func NewTokenVerifier(config TokenVerifierConfig) *TokenVerifier {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	return &TokenVerifier{config: config, parser: jwt.NewParser(opts...)}
}

// ValidateToken parses and verifies a token string.
func (v *TokenVerifier) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = strings.TrimSpace(claims.Subject)
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}
	if claims.UserID == models.SystemActorID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "reserved token subject")
	}
	return claims, nil
}
