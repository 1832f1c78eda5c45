package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"babcia/internal/logger"
	"babcia/internal/types"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenIssuer     = "babcia"
	DefaultTokenTTL = 30 * 24 * time.Hour
)

// AuthService signs and validates the HS256 bearer tokens that guard the API
// and the event stream. Without a secret every request is let through.
type AuthService struct {
	secret []byte
	log    logger.Logger
	now    func() time.Time
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{
		secret: []byte(strings.TrimSpace(secret)),
		log:    logger.New("authService"),
		now:    time.Now,
	}
}

func (s *AuthService) Enabled() bool {
	return len(s.secret) > 0
}

// ValidateToken checks the signature, issuer and expiry and returns the subject
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (string, error) {
	log := s.log.TraceFromContext(ctx).Function("ValidateToken")

	if !s.Enabled() {
		return "", nil
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		log.Info("Token rejected", "error", err.Error())
		return "", fmt.Errorf("%w: %v", types.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token claims", types.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// IssueToken signs a token for subject valid for ttl
func (s *AuthService) IssueToken(subject string, ttl time.Duration) (string, error) {
	log := s.log.Function("IssueToken")

	if !s.Enabled() {
		return "", log.ErrorWithType(types.ErrValidation, "API_JWT_SECRET is not configured")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", log.Err("failed to sign token", err)
	}
	return signed, nil
}
