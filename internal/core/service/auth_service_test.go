package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.users[user.Username] = user
	return nil
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", username)
	}
	return user, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	f.users[user.Username] = user
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, username string) error {
	delete(f.users, username)
	return nil
}

func (f *fakeUserRepo) List(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	for _, u := range f.users {
		users = append(users, u)
	}
	return users, nil
}

type fakeClientRepo struct {
	clients map[string]*domain.Client
}

func (f *fakeClientRepo) Create(ctx context.Context, client *domain.Client) error {
	f.clients[client.ID] = client
	return nil
}

func (f *fakeClientRepo) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	client, ok := f.clients[id]
	if !ok {
		return nil, fmt.Errorf("client not found: %s", id)
	}
	return client, nil
}

func (f *fakeClientRepo) Update(ctx context.Context, client *domain.Client) error {
	f.clients[client.ID] = client
	return nil
}

func (f *fakeClientRepo) Delete(ctx context.Context, id string) error {
	delete(f.clients, id)
	return nil
}

func (f *fakeClientRepo) List(ctx context.Context) ([]*domain.Client, error) {
	var clients []*domain.Client
	for _, c := range f.clients {
		clients = append(clients, c)
	}
	return clients, nil
}

type fakeAuthCodeRepo struct {
	codes map[string]*domain.AuthCode
}

func (f *fakeAuthCodeRepo) Create(ctx context.Context, code *domain.AuthCode) error {
	f.codes[code.Code] = code
	return nil
}

func (f *fakeAuthCodeRepo) FindByCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	stored, ok := f.codes[code]
	if !ok {
		return nil, fmt.Errorf("auth code not found: %s", code)
	}
	return stored, nil
}

func (f *fakeAuthCodeRepo) Delete(ctx context.Context, code string) error {
	delete(f.codes, code)
	return nil
}

func (f *fakeAuthCodeRepo) DeleteExpired(ctx context.Context) error {
	for code, stored := range f.codes {
		if stored.IsExpired() {
			delete(f.codes, code)
		}
	}
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *fakeClientRepo, *fakeAuthCodeRepo) {
	t.Helper()
	users := &fakeUserRepo{users: make(map[string]*domain.User)}
	clients := &fakeClientRepo{clients: make(map[string]*domain.Client)}
	codes := &fakeAuthCodeRepo{codes: make(map[string]*domain.AuthCode)}
	svc := NewAuthService(users, clients, codes, "test-secret", "HS256")
	return svc, users, clients, codes
}

func TestPasswordHashRoundTrip(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)

	hash, err := svc.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("password stored in the clear")
	}
	if !svc.VerifyPassword("hunter22", hash) {
		t.Error("correct password rejected")
	}
	if svc.VerifyPassword("hunter23", hash) {
		t.Error("wrong password accepted")
	}
}

func TestAuthorizeAndExchange(t *testing.T) {
	svc, users, _, codes := newTestAuthService(t)
	ctx := context.Background()

	hash, _ := svc.HashPassword("correct-password")
	users.users["alice"] = domain.NewUser("alice", hash)

	if _, err := svc.AuthorizeUser(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.AuthorizeUser(ctx, "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	code, err := svc.AuthorizeUser(ctx, "alice", "correct-password")
	if err != nil {
		t.Fatalf("AuthorizeUser failed: %v", err)
	}

	token, err := svc.ExchangeAuthCode(ctx, code.Code)
	if err != nil {
		t.Fatalf("ExchangeAuthCode failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "alice" || claims.SubjectType != "user" {
		t.Errorf("unexpected claims: %s/%s", claims.Subject, claims.SubjectType)
	}
	if !domain.ScopesAllow(claims.Scopes, domain.ScopeProcsControl) {
		t.Error("user token should cover every scope")
	}

	// Codes are single use
	if _, err := svc.ExchangeAuthCode(ctx, code.Code); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected reused code to be rejected, got %v", err)
	}
	if len(codes.codes) != 0 {
		t.Errorf("expected code store to be empty, have %d", len(codes.codes))
	}
}

func TestExpiredCodeRejected(t *testing.T) {
	svc, _, _, codes := newTestAuthService(t)
	ctx := context.Background()

	stale := domain.NewAuthCode("alice", []string{domain.ScopeAdmin}, -time.Minute)
	codes.codes[stale.Code] = stale

	if _, err := svc.ExchangeAuthCode(ctx, stale.Code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if _, ok := codes.codes[stale.Code]; ok {
		t.Error("expired code should have been consumed")
	}
}

func TestClientScopeNarrowing(t *testing.T) {
	svc, _, clients, _ := newTestAuthService(t)
	ctx := context.Background()

	hash, _ := svc.HashPassword("s3cret")
	client := domain.NewClient("deploy-bot", hash, []string{domain.ScopeProcsRead, domain.ScopeProcsControl})
	clients.clients[client.ID] = client

	if _, err := svc.AuthenticateClient(ctx, client.ID, "wrong", nil); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong secret, got %v", err)
	}

	// Full grant when no narrowing is requested
	token, err := svc.AuthenticateClient(ctx, client.ID, "s3cret", nil)
	if err != nil {
		t.Fatalf("AuthenticateClient failed: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if len(claims.Scopes) != 2 {
		t.Errorf("expected full grant, got %v", claims.Scopes)
	}
	if claims.SubjectType != "client" {
		t.Errorf("expected client subject type, got %s", claims.SubjectType)
	}

	// Narrowed grant
	token, err = svc.AuthenticateClient(ctx, client.ID, "s3cret", []string{domain.ScopeProcsRead})
	if err != nil {
		t.Fatalf("narrowed AuthenticateClient failed: %v", err)
	}
	claims, _ = svc.ValidateToken(token)
	if len(claims.Scopes) != 1 || claims.Scopes[0] != domain.ScopeProcsRead {
		t.Errorf("expected narrowed grant, got %v", claims.Scopes)
	}

	// Escalation is refused
	if _, err := svc.AuthenticateClient(ctx, client.ID, "s3cret", []string{domain.ScopeAdmin}); !errors.Is(err, ErrScopeExceeded) {
		t.Errorf("expected ErrScopeExceeded, got %v", err)
	}
}
