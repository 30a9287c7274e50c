package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/parking-gate/internal/repository"
	"github.com/wfunc/parking-gate/internal/utils"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	operators  repository.OperatorRepository
	jwtManager *utils.JWTManager
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(operators repository.OperatorRepository, jwtManager *utils.JWTManager) *AuthHandler {
	return &AuthHandler{
		operators:  operators,
		jwtManager: jwtManager,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login 操作员登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
			Details: err.Error(),
		})
		return
	}

	operator, err := h.operators.FindByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "LOGIN_FAILED",
			Message: "用户名或密码错误",
		})
		return
	}

	ok, err := utils.VerifyPassword(req.Password, operator.Password)
	if err != nil || !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "LOGIN_FAILED",
			Message: "用户名或密码错误",
		})
		return
	}

	token, err := h.jwtManager.GenerateToken(operator.ID, operator.Username, operator.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "TOKEN_FAILED",
			Message: "生成令牌失败",
		})
		return
	}

	_ = h.operators.UpdateLastLogin(c.Request.Context(), operator.ID)

	c.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		Username: operator.Username,
		Role:     operator.Role,
	})
}
