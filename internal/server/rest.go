package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"scc-link-go/internal/platform/logging"
)

// apiResponse is the uniform REST response body.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

func respond(c *gin.Context, httpStatus int, success bool, message string, data interface{}) {
	if message == "" {
		if success {
			message = "ok"
		} else {
			message = http.StatusText(httpStatus)
		}
	}
	resp := apiResponse{
		Success: success,
		Message: message,
		Code:    httpStatus,
	}
	if data == nil {
		resp.Data = gin.H{}
	} else {
		resp.Data = data
	}
	c.JSON(httpStatus, resp)
}

func respondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	respond(c, httpStatus, true, message, data)
}

func respondError(c *gin.Context, httpStatus int, message string) {
	respond(c, httpStatus, false, message, nil)
}

// authAPI serves the REST auth endpoints.
type authAPI struct {
	users  *UserRepository
	tokens *TokenService
	logger *logging.Logger
}

func newAuthAPI(users *UserRepository, tokens *TokenService, logger *logging.Logger) *authAPI {
	return &authAPI{users: users, tokens: tokens, logger: logger}
}

func (a *authAPI) register(group *gin.RouterGroup) {
	group.POST("/auth/login", a.handleLogin)
	group.GET("/auth/verify", a.handleVerify)
	group.POST("/auth/logout", a.handleLogout)
}

func (a *authAPI) handleLogin(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.users.Authenticate(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid email or password")
		return
	}
	token, err := a.tokens.Issue(user.Contract())
	if err != nil {
		a.logger.Error("issue token for %s: %v", user.Email, err)
		respondError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"user":  user.Contract(),
		"token": token,
	}, "login successful")
}

func (a *authAPI) handleVerify(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		respondError(c, http.StatusUnauthorized, "missing bearer token")
		return
	}

	email, err := a.tokens.Verify(token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	user, err := a.users.FindByEmail(c.Request.Context(), email)
	if err != nil || !user.Active {
		respondError(c, http.StatusUnauthorized, "account no longer available")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"user": user.Contract()}, "")
}

func (a *authAPI) handleLogout(c *gin.Context) {
	// Tokens are stateless; logout only confirms the client-side discard.
	respondSuccess(c, http.StatusOK, nil, "logged out")
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
