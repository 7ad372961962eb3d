package dto

import "time"

// CreateClientRequest registers an API client. Scopes default to read-only
// when omitted.
type CreateClientRequest struct {
	Label  string   `json:"label" binding:"required"`
	Scopes []string `json:"scopes"`
}

// UpdateClientRequest changes a client's label, its scope grant, or both.
type UpdateClientRequest struct {
	Label  string   `json:"label"`
	Scopes []string `json:"scopes"`
}

// ClientResponse describes a client without its secret.
type ClientResponse struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientCreateResponse additionally carries the plaintext secret, shown
// only on creation.
type ClientCreateResponse struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Secret    string    `json:"secret"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientListResponse lists registered clients.
type ClientListResponse struct {
	Items      []ClientResponse `json:"items"`
	Pagination PaginationInfo   `json:"pagination"`
}
