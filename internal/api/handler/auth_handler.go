package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nourselim0/http-process-wrapper/internal/api/dto"
	"github.com/nourselim0/http-process-wrapper/internal/core/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Authorize handles POST /auth/authorize
func (h *AuthHandler) Authorize(c *gin.Context) {
	var req dto.AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	code, err := h.authService.AuthorizeUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeUnauthorized(c, "Invalid credentials")
		return
	}

	c.JSON(http.StatusOK, dto.AuthorizeResponse{Code: code.Code})
}

// Token handles POST /auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	var token string
	var issued bool
	switch req.GrantType {
	case "authorization_code":
		token, issued = h.tokenFromCode(c, req)
	case "client_credentials":
		token, issued = h.tokenFromClientCredentials(c, req)
	default:
		writeBadRequest(c, "Invalid grant_type. Must be 'authorization_code' or 'client_credentials'")
		return
	}
	if !issued {
		// The grant handlers already wrote the response
		return
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		writeUnauthorized(c, "Token issuance failed")
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   h.authService.TokenTTLSeconds(),
		Scope:       strings.Join(claims.Scopes, " "),
	})
}

func (h *AuthHandler) tokenFromCode(c *gin.Context, req dto.TokenRequest) (string, bool) {
	if req.Code == "" {
		writeBadRequest(c, "code is required for authorization_code grant type")
		return "", false
	}

	token, err := h.authService.ExchangeAuthCode(c.Request.Context(), req.Code)
	if err != nil {
		writeUnauthorized(c, "Invalid or expired authorization code")
		return "", false
	}
	return token, true
}

func (h *AuthHandler) tokenFromClientCredentials(c *gin.Context, req dto.TokenRequest) (string, bool) {
	if req.ClientID == "" || req.ClientSecret == "" {
		writeBadRequest(c, "client_id and client_secret are required for client_credentials grant type")
		return "", false
	}

	// The scope field narrows the token, space-delimited per OAuth convention
	var requested []string
	if req.Scope != "" {
		requested = strings.Fields(req.Scope)
	}

	token, err := h.authService.AuthenticateClient(c.Request.Context(), req.ClientID, req.ClientSecret, requested)
	if err != nil {
		if errors.Is(err, service.ErrScopeExceeded) {
			writeBadRequest(c, err.Error())
		} else {
			writeUnauthorized(c, "Invalid client credentials")
		}
		return "", false
	}
	return token, true
}

func writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Bad Request",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}

func writeUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "Unauthorized",
		Message: message,
		Code:    http.StatusUnauthorized,
	})
}
