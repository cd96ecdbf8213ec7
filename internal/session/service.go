package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "crewdeck"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims represents JWT claims used for both token types.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service issues and validates credential pairs using HS256.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = strings.TrimSpace(issuer)
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service. The signing secret is required.
func NewService(secret string, opts ...Option) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session: signing secret is required")
	}
	s := &Service{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ Provider = (*Service)(nil)

// Validate resolves credentials to a session. A valid access token wins
// outright; otherwise a valid refresh token rotates the pair and the rotated
// credentials are attached to the returned session.
func (s *Service) Validate(ctx context.Context, creds Credentials) (Session, error) {
	if creds.Empty() {
		return Session{}, ErrNoSession
	}
	if claims, err := s.parse(creds.AccessToken, tokenTypeAccess); err == nil {
		return Session{UserID: claims.Subject}, nil
	}
	claims, err := s.parse(creds.RefreshToken, tokenTypeRefresh)
	if err != nil {
		return Session{}, ErrNoSession
	}
	rotated, err := s.IssuePair(claims.Subject)
	if err != nil {
		return Session{}, fmt.Errorf("%w: rotate pair: %v", ErrProvider, err)
	}
	return Session{UserID: claims.Subject, Refreshed: &rotated}, nil
}

// IssuePair mints a fresh access/refresh credential pair for the user.
func (s *Service) IssuePair(userID string) (Credentials, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Credentials{}, errors.New("session: userID is required")
	}
	access, err := s.sign(userID, tokenTypeAccess, s.accessTTL)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := s.sign(userID, tokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(userID, tokenType string, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (s *Service) parse(token, wantType string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoSession
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrNoSession
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, ErrNoSession
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrNoSession
	}
	if claims.Issuer != s.issuer || claims.TokenType != wantType {
		return nil, ErrNoSession
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrNoSession
	}
	return claims, nil
}
