package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/config"
	"github.com/jonathan/resume-topics/internal/server/middleware"
)

// clockSkew is tolerated on exp, nbf and iat
const clockSkew = 30 * time.Second

var (
	ErrEmptyToken error = &middleware.TokenError{Reason: "token string is empty"}
	ErrNoUserID   error = &middleware.TokenError{Reason: "token has no user id"}
)

// Claims carries the caller's user id next to the registered claims.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// GetUserID implements middleware.UserIDGetter.
func (c *Claims) GetUserID() uuid.UUID {
	return c.UserID
}

// JWTService validates HS256 bearer tokens. Tokens are normally issued upstream;
// GenerateToken exists for development tokens and tests.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

// NewJWTService creates a JWT service. When cfg.Issuer is set, tokens must carry it.
func NewJWTService(cfg *config.JWTConfig) *JWTService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL(),
		parser: jwt.NewParser(opts...),
	}
}

// GenerateToken signs a token for userID that expires after the configured TTL.
func (s *JWTService) GenerateToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token and returns its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(tokenString, claims, s.key); err != nil {
		return nil, s.describeTokenError(err, claims)
	}
	if claims.UserID == uuid.Nil {
		return nil, ErrNoUserID
	}
	return claims, nil
}

func (s *JWTService) key(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}

// describeTokenError maps a parser failure to a caller-facing reason. A token without iss
// fails as a missing claim when an issuer is configured; it is reported as an issuer problem.
func (s *JWTService) describeTokenError(err error, claims *Claims) error {
	reason := "failed to parse token"
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		reason = "invalid token signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		reason = "malformed token"
	case errors.Is(err, jwt.ErrTokenExpired):
		reason = "token expired"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		reason = "unexpected token issuer"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing) && s.issuer != "" && claims.Issuer == "":
		reason = "missing token issuer"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		reason = "token missing required claim"
	}
	return &middleware.TokenError{Reason: reason, Err: err}
}

// AsTokenValidator adapts the service to the auth middleware.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return tokenValidator{s}
}

type tokenValidator struct{ *JWTService }

func (v tokenValidator) ValidateToken(tokenString string) (middleware.UserIDGetter, error) {
	claims, err := v.JWTService.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
