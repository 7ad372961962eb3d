package dto

// AuthorizeRequest carries user credentials for the authorize step.
type AuthorizeRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthorizeResponse returns the single-use authorization code.
type AuthorizeResponse struct {
	Code string `json:"code"`
}

// TokenRequest covers both supported grants. Scope is optional and only
// meaningful for client_credentials, space-delimited.
type TokenRequest struct {
	GrantType    string `json:"grant_type" binding:"required"` // "authorization_code" or "client_credentials"
	Code         string `json:"code"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope"`
}

// TokenResponse is the issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
	Scope       string `json:"scope"`      // space-delimited
}
