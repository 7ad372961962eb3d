package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	authCodeTTL = 10 * time.Minute
	tokenTTL    = time.Hour
	bcryptCost  = 10
)

var (
	// ErrInvalidCredentials covers unknown subjects and wrong secrets alike
	// so responses do not leak which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCodeExpired is returned when an authorization code outlived its TTL.
	ErrCodeExpired = errors.New("authorization code expired")
	// ErrScopeExceeded is returned when a client requests scopes beyond its grant.
	ErrScopeExceeded = errors.New("requested scope exceeds client grant")
)

var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// TokenClaims is the payload carried by every issued token. Scopes decide
// which process endpoints the bearer may call.
type TokenClaims struct {
	Subject     string   `json:"sub"`
	SubjectType string   `json:"sub_type"` // "user" or "client"
	Scopes      []string `json:"scopes"`
	jwt.RegisteredClaims
}

// AuthService issues and validates credentials for the process API. Users
// authenticate interactively and always receive admin scope; clients carry
// an explicit scope grant and may narrow it per token.
type AuthService struct {
	userRepo     repository.UserRepository
	clientRepo   repository.ClientRepository
	authCodeRepo repository.AuthCodeRepository
	jwtSecret    string
	jwtAlgorithm string
}

func NewAuthService(
	userRepo repository.UserRepository,
	clientRepo repository.ClientRepository,
	authCodeRepo repository.AuthCodeRepository,
	jwtSecret string,
	jwtAlgorithm string,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		clientRepo:   clientRepo,
		authCodeRepo: authCodeRepo,
		jwtSecret:    jwtSecret,
		jwtAlgorithm: jwtAlgorithm,
	}
}

// TokenTTLSeconds is what the token endpoint reports as expires_in.
func (s *AuthService) TokenTTLSeconds() int {
	return int(tokenTTL / time.Second)
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// AuthorizeUser checks a username and password and mints a single-use
// authorization code carrying the admin scope.
func (s *AuthService) AuthorizeUser(ctx context.Context, username, password string) (*domain.AuthCode, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !s.VerifyPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	code := domain.NewAuthCode(username, []string{domain.ScopeAdmin}, authCodeTTL)
	if err := s.authCodeRepo.Create(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to store authorization code: %w", err)
	}

	// Opportunistic cleanup, stale codes are harmless but accumulate
	_ = s.authCodeRepo.DeleteExpired(ctx)

	return code, nil
}

// ExchangeAuthCode redeems an authorization code for a token. The code is
// consumed whether or not it was still valid.
func (s *AuthService) ExchangeAuthCode(ctx context.Context, code string) (string, error) {
	stored, err := s.authCodeRepo.FindByCode(ctx, code)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	defer func() { _ = s.authCodeRepo.Delete(ctx, code) }()

	if stored.IsExpired() {
		return "", ErrCodeExpired
	}
	return s.signToken(stored.Username, "user", stored.Scopes)
}

// AuthenticateClient checks client credentials and issues a token. A
// non-empty requested set narrows the token to those scopes; it must not
// exceed what the client was granted.
func (s *AuthService) AuthenticateClient(ctx context.Context, clientID, clientSecret string, requested []string) (string, error) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !s.VerifyPassword(clientSecret, client.Secret) {
		return "", ErrInvalidCredentials
	}

	scopes := client.Scopes
	if len(requested) > 0 {
		if !domain.SubsetOf(requested, client.Scopes) {
			return "", ErrScopeExceeded
		}
		scopes = requested
	}
	return s.signToken(clientID, "client", scopes)
}

// ValidateToken parses and verifies a token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != s.jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) signToken(subject, subjectType string, scopes []string) (string, error) {
	method, ok := signingMethods[s.jwtAlgorithm]
	if !ok {
		method = jwt.SigningMethodHS256
	}

	now := time.Now()
	claims := TokenClaims{
		Subject:     subject,
		SubjectType: subjectType,
		Scopes:      scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "procwrap",
		},
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
