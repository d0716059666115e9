package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/internal/services"
	"github.com/tokengate/tokengate/pkg/response"
)

// UserTokenHandler binds the token management operations consumed by
// the admin screen. Validation and error mapping only; everything else
// is delegated.
type UserTokenHandler struct {
	store   *services.TokenStore
	issuer  *services.IssuerService
	summary *services.SummaryService
}

func NewUserTokenHandler(store *services.TokenStore, issuer *services.IssuerService, summary *services.SummaryService) *UserTokenHandler {
	return &UserTokenHandler{store: store, issuer: issuer, summary: summary}
}

// UserTokenResponse is the wire shape of one token record.
type UserTokenResponse struct {
	ID              string  `json:"id"`
	Secret          string  `json:"secret"`
	Username        string  `json:"username"`
	Description     string  `json:"description"`
	Enabled         bool    `json:"enabled"`
	ExpiresType     string  `json:"expires_type"`
	ExpiresAt       *string `json:"expires_at"`
	MaxIPs          int     `json:"max_ips"`
	CurfewStart     *string `json:"curfew_start"`
	CurfewEnd       *string `json:"curfew_end"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	LastUsedAt      *string `json:"last_used_at"`
	TotalRequests   int64   `json:"total_requests"`
	TotalTokensUsed int64   `json:"total_tokens_used"`
}

const timeLayout = "2006-01-02 15:04:05"

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func toUserTokenResponse(t *models.UserToken) UserTokenResponse {
	return UserTokenResponse{
		ID:              t.ID,
		Secret:          t.Secret,
		Username:        t.OwnerUsername,
		Description:     t.Description,
		Enabled:         t.Enabled,
		ExpiresType:     t.ExpiresType,
		ExpiresAt:       formatTimePtr(t.ExpiresAt),
		MaxIPs:          t.MaxIPs,
		CurfewStart:     t.CurfewStart,
		CurfewEnd:       t.CurfewEnd,
		CreatedAt:       t.CreatedAt.Format(timeLayout),
		UpdatedAt:       t.UpdatedAt.Format(timeLayout),
		LastUsedAt:      formatTimePtr(t.LastUsedAt),
		TotalRequests:   t.TotalRequests,
		TotalTokensUsed: t.TotalTokensUsed,
	}
}

// mapServiceError translates service sentinels into HTTP responses.
func mapServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrNotFound):
		response.NotFound(c, "token not found")
	default:
		response.ServerError(c, err.Error())
	}
}

// List returns all tokens as a snapshot, newest first.
func (h *UserTokenHandler) List(c *gin.Context) {
	tokens, err := h.store.List()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	items := make([]UserTokenResponse, len(tokens))
	for i := range tokens {
		items[i] = toUserTokenResponse(&tokens[i])
	}
	response.Success(c, items)
}

// Summary returns the fleet-wide dashboard rollup.
func (h *UserTokenHandler) Summary(c *gin.Context) {
	summary, err := h.summary.GetSummary(time.Now())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, summary)
}

// GetByID returns a single token.
func (h *UserTokenHandler) GetByID(c *gin.Context) {
	t, err := h.store.GetByID(c.Param("id"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	response.Success(c, toUserTokenResponse(t))
}

// ListIPs returns the seen-IP set of one token.
func (h *UserTokenHandler) ListIPs(c *gin.Context) {
	ips, err := h.store.ListIPs(c.Param("id"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	response.Success(c, ips)
}

type CreateUserTokenRequest struct {
	Username    string  `json:"username" binding:"required"`
	Description string  `json:"description"`
	ExpiresType string  `json:"expires_type" binding:"required"`
	MaxIPs      int     `json:"max_ips" binding:"min=0"`
	CurfewStart *string `json:"curfew_start"`
	CurfewEnd   *string `json:"curfew_end"`
}

// Create issues a new token.
func (h *UserTokenHandler) Create(c *gin.Context) {
	var req CreateUserTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	t, err := h.issuer.Create(&services.CreateTokenParams{
		Username:    req.Username,
		Description: req.Description,
		ExpiresType: req.ExpiresType,
		MaxIPs:      req.MaxIPs,
		CurfewStart: req.CurfewStart,
		CurfewEnd:   req.CurfewEnd,
	}, time.Now())
	if err != nil {
		mapServiceError(c, err)
		return
	}

	response.Created(c, toUserTokenResponse(t))
}

type UpdateUserTokenRequest struct {
	Username    string  `json:"username" binding:"required"`
	Description string  `json:"description"`
	Enabled     *bool   `json:"enabled"`
	MaxIPs      int     `json:"max_ips" binding:"min=0"`
	CurfewStart *string `json:"curfew_start"`
	CurfewEnd   *string `json:"curfew_end"`
}

// Update mutates the policy fields of one token. A nil curfew pair
// clears the blackout window; enabled is left untouched when omitted.
func (h *UserTokenHandler) Update(c *gin.Context) {
	var req UpdateUserTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := services.ValidateCurfewPair(req.CurfewStart, req.CurfewEnd); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	fields := map[string]interface{}{
		"owner_username": req.Username,
		"description":    req.Description,
		"max_ips":        req.MaxIPs,
		"curfew_start":   req.CurfewStart,
		"curfew_end":     req.CurfewEnd,
	}
	if req.Enabled != nil {
		fields["enabled"] = *req.Enabled
	}

	t, err := h.store.Update(c.Param("id"), fields)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	response.Success(c, toUserTokenResponse(t))
}

// Delete removes a token. A missing record still acks: the admin screen
// fires a single delete and retries must stay harmless.
func (h *UserTokenHandler) Delete(c *gin.Context) {
	err := h.store.Delete(c.Param("id"))
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

type RenewUserTokenRequest struct {
	ExpiresType string `json:"expires_type" binding:"required"`
}

// Renew recomputes the token's expiry from now.
func (h *UserTokenHandler) Renew(c *gin.Context) {
	var req RenewUserTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	t, err := h.issuer.Renew(c.Param("id"), req.ExpiresType, time.Now())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	response.Success(c, toUserTokenResponse(t))
}
