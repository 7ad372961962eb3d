package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nourselim0/http-process-wrapper/internal/api/dto"
	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
	"github.com/nourselim0/http-process-wrapper/internal/core/service"
)

type ClientHandler struct {
	clientRepo  repository.ClientRepository
	authService *service.AuthService
}

func NewClientHandler(clientRepo repository.ClientRepository, authService *service.AuthService) *ClientHandler {
	return &ClientHandler{
		clientRepo:  clientRepo,
		authService: authService,
	}
}

// CreateClient handles POST /clients. The generated secret is returned
// once and stored only as a hash.
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req dto.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{domain.ScopeProcsRead}
	}
	if err := domain.ValidateScopes(scopes); err != nil {
		writeBadRequest(c, err.Error())
		return
	}

	secret := uuid.New().String()
	hashed, err := h.authService.HashPassword(secret)
	if err != nil {
		writeInternalError(c, "Failed to create client")
		return
	}

	client := domain.NewClient(req.Label, hashed, scopes)
	if err := h.clientRepo.Create(c.Request.Context(), client); err != nil {
		writeInternalError(c, err.Error())
		return
	}

	c.JSON(http.StatusCreated, dto.ClientCreateResponse{
		ID:        client.ID,
		Label:     client.Label,
		Secret:    secret,
		Scopes:    client.Scopes,
		CreatedAt: client.CreatedAt,
		UpdatedAt: client.UpdatedAt,
	})
}

// GetClient handles GET /clients/:id
func (h *ClientHandler) GetClient(c *gin.Context) {
	id := c.Param("id")

	client, err := h.clientRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		writeClientNotFound(c, id)
		return
	}

	c.JSON(http.StatusOK, toClientResponse(client))
}

// ListClients handles GET /clients
func (h *ClientHandler) ListClients(c *gin.Context) {
	clients, err := h.clientRepo.List(c.Request.Context())
	if err != nil {
		writeInternalError(c, err.Error())
		return
	}

	total := len(clients)
	response := dto.ClientListResponse{
		Items: make([]dto.ClientResponse, total),
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       1,
			PerPage:    total,
			TotalPages: 1,
		},
	}
	for i, client := range clients {
		response.Items[i] = toClientResponse(client)
	}

	c.JSON(http.StatusOK, response)
}

// UpdateClient handles PUT /clients/:id. Label and scopes can be changed
// independently; omitted fields keep their current value.
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	id := c.Param("id")

	var req dto.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	if req.Label == "" && len(req.Scopes) == 0 {
		writeBadRequest(c, "nothing to update: provide label, scopes, or both")
		return
	}
	if len(req.Scopes) > 0 {
		if err := domain.ValidateScopes(req.Scopes); err != nil {
			writeBadRequest(c, err.Error())
			return
		}
	}

	client, err := h.clientRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		writeClientNotFound(c, id)
		return
	}

	if req.Label != "" {
		client.Label = req.Label
	}
	if len(req.Scopes) > 0 {
		client.Scopes = req.Scopes
	}
	client.UpdatedAt = time.Now()

	if err := h.clientRepo.Update(c.Request.Context(), client); err != nil {
		writeInternalError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, toClientResponse(client))
}

// DeleteClient handles DELETE /clients/:id
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	id := c.Param("id")

	if err := h.clientRepo.Delete(c.Request.Context(), id); err != nil {
		writeClientNotFound(c, id)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func toClientResponse(client *domain.Client) dto.ClientResponse {
	return dto.ClientResponse{
		ID:        client.ID,
		Label:     client.Label,
		Scopes:    client.Scopes,
		CreatedAt: client.CreatedAt,
		UpdatedAt: client.UpdatedAt,
	}
}

func writeClientNotFound(c *gin.Context, id string) {
	c.JSON(http.StatusNotFound, dto.ErrorResponse{
		Error:   "Not Found",
		Message: fmt.Sprintf("Client not found: %s", id),
		Code:    http.StatusNotFound,
	})
}

func writeInternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal Server Error",
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}
