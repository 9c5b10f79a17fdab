package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/middleware"
)

func hostEngine(api *API) *gin.Engine {
	r := gin.New()
	r.POST("/c/:token/recipes", api.SubmitRecipe)
	r.GET("/c/:token", api.GetCollection)

	host := r.Group("/host", middleware.HostIdentity())
	host.GET("/guests", api.ListGuests)
	host.GET("/collection", api.GetCollectionSettings)
	host.PUT("/collection/enabled", api.SetCollectionEnabled)
	host.GET("/groups/:id/recipes", api.ListGroupRecipes)
	host.POST("/groups/:id/recipes/reorder", api.ReorderGroupRecipes)
	return r
}

type orderedResponse struct {
	Error string `json:"error"`
	Items []struct {
		RecipeID     string `json:"recipe_id"`
		RecipeName   string `json:"recipe_name"`
		DisplayOrder int    `json:"display_order"`
	} `json:"items"`
}

func seedGroup(t *testing.T, env *testEnv) *db.Group {
	t.Helper()
	group := db.Group{Name: "Family", CreatedBy: env.owner.ID}
	if err := env.db.Create(&group).Error; err != nil {
		t.Fatalf("seed group: %v", err)
	}
	if err := env.db.Create(&db.GroupMember{GroupID: group.ID, ProfileID: env.owner.ID, Role: "owner"}).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return &group
}

func TestCollectionSettingsToggle(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := hostEngine(env.api)
	hdr := map[string]string{"X-User-ID": env.owner.ID}

	w := doJSON(t, r, http.MethodGet, "/host/collection", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/host/collection", nil, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Settings struct {
			Token   string `json:"token"`
			Enabled bool   `json:"enabled"`
		} `json:"settings"`
	}
	decode(t, w, &body)
	if body.Settings.Token != "tok" || !body.Settings.Enabled {
		t.Fatalf("unexpected settings %+v", body.Settings)
	}

	w = doJSON(t, r, http.MethodPut, "/host/collection/enabled", map[string]bool{"enabled": false}, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodGet, "/c/tok", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("disabled collection should be 403, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPut, "/host/collection/enabled", map[string]string{}, hdr)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing flag should be 400, got %d", w.Code)
	}
}

func TestGroupRecipeReorder(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := hostEngine(env.api)
	hdr := map[string]string{"X-User-ID": env.owner.ID}
	group := seedGroup(t, env)

	for _, name := range []string{"Flan", "Mole"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, multipartRequest(t, "/c/tok/recipes", map[string]string{
			"first_name": "Ana", "recipe_name": name, "ingredients": "x", "group_id": group.ID,
		}, nil))
		if w.Code != http.StatusCreated {
			t.Fatalf("submit %s: %d %s", name, w.Code, w.Body.String())
		}
	}

	path := "/host/groups/" + group.ID + "/recipes"
	w := doJSON(t, r, http.MethodGet, path, nil, hdr)
	var listed orderedResponse
	decode(t, w, &listed)
	if len(listed.Items) != 2 || listed.Items[0].RecipeName != "Flan" {
		t.Fatalf("unexpected initial order %+v", listed.Items)
	}

	w = doJSON(t, r, http.MethodPost, path+"/reorder", map[string]any{"from": 1, "to": 0, "search": "Flan"}, hdr)
	if w.Code != http.StatusConflict {
		t.Fatalf("filtered reorder should be 409, got %d: %s", w.Code, w.Body.String())
	}
	var refused orderedResponse
	decode(t, w, &refused)
	if refused.Error == "" || len(refused.Items) != 2 {
		t.Fatalf("refusal should carry the stored order: %+v", refused)
	}

	w = doJSON(t, r, http.MethodPost, path+"/reorder", map[string]any{"from": 1, "to": 0}, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, path, nil, hdr)
	var reordered orderedResponse
	decode(t, w, &reordered)
	if len(reordered.Items) != 2 || reordered.Items[0].RecipeName != "Mole" || reordered.Items[1].RecipeName != "Flan" {
		t.Fatalf("order not persisted: %+v", reordered.Items)
	}

	w = doJSON(t, r, http.MethodGet, path, nil, map[string]string{"X-User-ID": "outsider"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-member should be 403, got %d", w.Code)
	}
}

func TestListGuestsScopedToHost(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := hostEngine(env.api)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/c/tok/recipes", map[string]string{
		"first_name": "Ana", "last_name": "Gomez", "recipe_name": "Flan", "ingredients": "x",
	}, nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/host/guests", nil, map[string]string{"X-User-ID": env.owner.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Total int64 `json:"total"`
	}
	decode(t, w, &body)
	if body.Total != 1 {
		t.Fatalf("expected one guest, got %d", body.Total)
	}

	w = doJSON(t, r, http.MethodGet, "/host/guests", nil, map[string]string{"X-User-ID": "someone-else"})
	decode(t, w, &body)
	if body.Total != 0 {
		t.Fatalf("other hosts should see no guests, got %d", body.Total)
	}
}
