package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/service"
)

type stubClientRepo struct {
	clients map[string]*domain.Client
}

func (s *stubClientRepo) Create(ctx context.Context, client *domain.Client) error {
	s.clients[client.ID] = client
	return nil
}

func (s *stubClientRepo) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	client, ok := s.clients[id]
	if !ok {
		return nil, fmt.Errorf("client not found: %s", id)
	}
	return client, nil
}

func (s *stubClientRepo) Update(ctx context.Context, client *domain.Client) error { return nil }
func (s *stubClientRepo) Delete(ctx context.Context, id string) error             { return nil }
func (s *stubClientRepo) List(ctx context.Context) ([]*domain.Client, error)      { return nil, nil }

// issueToken registers a client with the given scopes and returns a token
// for it.
func issueToken(t *testing.T, svc *service.AuthService, repo *stubClientRepo, scopes []string) string {
	t.Helper()
	hash, err := svc.HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	client := domain.NewClient("test", hash, scopes)
	repo.clients[client.ID] = client

	token, err := svc.AuthenticateClient(context.Background(), client.ID, "secret", nil)
	if err != nil {
		t.Fatalf("AuthenticateClient failed: %v", err)
	}
	return token
}

func newScopedRouter(svc *service.AuthService, apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/guarded", AuthMiddleware(svc, apiKey), RequireScope(domain.ScopeProcsControl))
	group.GET("", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestAuthMiddlewareScopeEnforcement(t *testing.T) {
	repo := &stubClientRepo{clients: make(map[string]*domain.Client)}
	svc := service.NewAuthService(nil, repo, nil, "test-secret", "HS256")
	router := newScopedRouter(svc, "static-key")

	controlToken := issueToken(t, svc, repo, []string{domain.ScopeProcsControl})
	readToken := issueToken(t, svc, repo, []string{domain.ScopeProcsRead})
	adminToken := issueToken(t, svc, repo, []string{domain.ScopeAdmin})

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{"no credentials", nil, http.StatusUnauthorized},
		{"malformed header", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized},
		{"garbage token", map[string]string{"Authorization": "Bearer not-a-jwt"}, http.StatusUnauthorized},
		{"scope covers route", map[string]string{"Authorization": "Bearer " + controlToken}, http.StatusOK},
		{"scope too narrow", map[string]string{"Authorization": "Bearer " + readToken}, http.StatusForbidden},
		{"admin covers route", map[string]string{"Authorization": "Bearer " + adminToken}, http.StatusOK},
		{"api key bypasses scopes", map[string]string{"X-API-Key": "static-key"}, http.StatusOK},
		{"wrong api key", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("got %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
