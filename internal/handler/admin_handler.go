package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/db"
)

const (
	sessionAdminID   = "admin_user_id"
	sessionAdminName = "admin_username"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 校验运营账号并写入会话。
func (a *API) Login(c *gin.Context) {
	var payload loginRequest
	if !bindJSON(c, &payload, "username and password are required") {
		return
	}

	user, err := db.Authenticate(a.db, payload.Username, payload.Password)
	if err != nil {
		a.respondServiceError(c, err, "login failed")
		return
	}
	if user == nil {
		respondError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	// 设置会话
	session := sessions.Default(c)
	session.Set(sessionAdminID, user.ID)
	session.Set(sessionAdminName, user.Username)
	if err := session.Save(); err != nil {
		a.respondServiceError(c, err, "failed to save session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// AuthRequired 是后台接口的认证中间件。
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get(sessionAdminID) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Next()
	}
}
