package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/middleware"
	"github.com/tokengate/tokengate/internal/services"
	"github.com/tokengate/tokengate/pkg/response"
)

// AccessHandler exposes the runtime enforcement decision to the data
// plane: the proxy calls authorize with the caller's bearer secret
// before serving a request, then reports the consumed amount.
type AccessHandler struct {
	policy *services.PolicyService
}

func NewAccessHandler(policy *services.PolicyService) *AccessHandler {
	return &AccessHandler{policy: policy}
}

type AuthorizeRequest struct {
	// TokensUsed is the domain consumption amount to account for this
	// request (e.g. language-model tokens). Zero is valid.
	TokensUsed int64 `json:"tokens_used" binding:"min=0"`
	// Method and Path describe the upstream request, for the access log.
	Method string `json:"method"`
	Path   string `json:"path"`
}

type AuthorizeResponse struct {
	TokenID         string `json:"token_id"`
	Username        string `json:"username"`
	TotalRequests   int64  `json:"total_requests"`
	TotalTokensUsed int64  `json:"total_tokens_used"`
}

// Authorize runs the access policy decision for the presented bearer
// secret and records the usage when allowed.
func (h *AccessHandler) Authorize(c *gin.Context) {
	secret := middleware.BearerSecret(c)
	if secret == "" {
		denial(c, http.StatusUnauthorized, "missing_bearer", "authorization header with bearer secret required")
		return
	}

	// The body is optional; a bare authorize accounts one request with
	// zero consumption.
	var req AuthorizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	t, err := h.policy.Authorize(&services.AccessRequest{
		Secret:     secret,
		ClientIP:   c.ClientIP(),
		Now:        time.Now(),
		TokensUsed: req.TokensUsed,
		Method:     req.Method,
		Path:       req.Path,
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		denyFromError(c, err)
		return
	}

	response.Success(c, AuthorizeResponse{
		TokenID:         t.ID,
		Username:        t.OwnerUsername,
		TotalRequests:   t.TotalRequests,
		TotalTokensUsed: t.TotalTokensUsed,
	})
}

// denyFromError maps policy denial errors onto HTTP statuses with a
// machine-readable reason, so callers can react per cause (e.g. offer
// renewal only when the token expired).
func denyFromError(c *gin.Context, err error) {
	reason := services.DenialReason(err)
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		denial(c, http.StatusUnauthorized, reason, "invalid or unknown token")
	case errors.Is(err, services.ErrTokenExpired):
		denial(c, http.StatusUnauthorized, reason, "token has expired")
	case errors.Is(err, services.ErrTokenDisabled):
		denial(c, http.StatusForbidden, reason, "token is disabled")
	case errors.Is(err, services.ErrCurfewBlocked):
		denial(c, http.StatusForbidden, reason, "access denied during curfew window")
	case errors.Is(err, services.ErrIPLimitExceeded):
		denial(c, http.StatusForbidden, reason, "too many distinct source IPs for this token")
	default:
		response.ServerError(c, err.Error())
	}
}

func denial(c *gin.Context, status int, reason, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    reason,
			"type":    reason,
			"message": message,
		},
	})
}
