package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"fitclub/backend/pkg/response"
)

// TokenRevoker 吊销 Access Token
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthHandler 认证模块 HTTP 处理器
// Token 由门户签发，本服务只提供身份查询与吊销
type AuthHandler struct {
	revoker TokenRevoker
}

// NewAuthHandler 创建 AuthHandler；revoker 为 nil 时登出只返回成功
func NewAuthHandler(revoker TokenRevoker) *AuthHandler {
	return &AuthHandler{revoker: revoker}
}

// Me 当前 Token 中的身份信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	response.OK(c, gin.H{"user_id": userID, "role": role})
}

// Logout 吊销当前 Token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.revoker == nil {
		response.OK(c, nil)
		return
	}

	jti := c.GetString(ctxTokenID)
	if jti == "" {
		response.OK(c, nil)
		return
	}

	ttl := time.Until(c.GetTime(ctxTokenExpiresAt))
	if err := h.revoker.BlacklistToken(c.Request.Context(), jti, ttl); err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}
