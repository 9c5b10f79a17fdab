package handler

import (
	"net/http"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/db"
)

func adminEngine(api *API) *gin.Engine {
	r := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("smallplates_admin", store))

	r.POST("/admin/login", api.Login)
	r.POST("/admin/logout", api.Logout)
	auth := r.Group("/admin", AuthRequired())
	auth.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": sessions.Default(c).Get(sessionAdminName)})
	})
	return r
}

func TestAdminLoginFlow(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	if _, err := db.UpsertUser(env.db, "ops", "s3cret-pass"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	r := adminEngine(env.api)

	w := doJSON(t, r, http.MethodGet, "/admin/whoami", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/admin/login", map[string]string{"username": "ops", "password": "wrong"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password should be 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/admin/login", map[string]string{"username": "ops", "password": "s3cret-pass"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("login should set a session cookie")
	}
	cookieHeader := map[string]string{"Cookie": cookies[0].Name + "=" + cookies[0].Value}

	w = doJSON(t, r, http.MethodGet, "/admin/whoami", nil, cookieHeader)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", w.Code)
	}
	var body struct {
		Username string `json:"username"`
	}
	decode(t, w, &body)
	if body.Username != "ops" {
		t.Fatalf("unexpected session user %q", body.Username)
	}
}

func TestAdminLoginRequiresCredentials(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := adminEngine(env.api)

	w := doJSON(t, r, http.MethodPost, "/admin/login", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
