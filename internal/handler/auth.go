package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xmrbet/internal/powauth"
	"xmrbet/internal/service"
)

type AuthHandler struct {
	Auth   *service.AuthService
	Logger *zap.Logger
}

func (h *AuthHandler) Register(r *gin.Engine) {
	group := r.Group("/api/auth")
	group.POST("/register", h.register)
	group.POST("/signin", h.signIn)
}

// register runs the full key generation and proof-of-work search inline; at
// the default difficulty the request takes a few seconds. The private key in
// the response is shown exactly once and never stored.
func (h *AuthHandler) register(c *gin.Context) {
	kp, err := h.Auth.Register(c.Request.Context(), func(p powauth.Progress) {
		// Progress is surfaced through logs only; the HTTP response arrives
		// when the search completes.
		h.Logger.Debug("pow progress",
			zap.String("phase", string(p.Phase)),
			zap.Uint64("hashes", p.Hashes))
	})
	if err != nil {
		h.Logger.Warn("registration failed", zap.Error(err))
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"key_id":      kp.KeyID,
		"private_key": kp.PrivateKeyHex,
		"public_key":  kp.PublicKeyHex,
		"pow_nonce":   kp.Nonce,
		"hashes":      kp.Hashes,
	}, nil)
}

type signInRequest struct {
	PrivateKey string `json:"private_key" binding:"required"`
}

func (h *AuthHandler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	identity, err := h.Auth.SignIn(c.Request.Context(), req.PrivateKey)
	if err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{"key_id": identity.KeyID}, nil)
}
