package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/smallplates/internal/db"
)

func collectionEngine(api *API) *gin.Engine {
	r := gin.New()
	r.POST("/c/link-recipe", api.LinkRecipe)
	r.GET("/c/:token", api.GetCollection)
	r.GET("/c/:token/guests", api.SearchCollectionGuests)
	r.POST("/c/:token/recipes", api.SubmitRecipe)
	r.PATCH("/c/:token/recipes/:id/notification", api.UpdateRecipeNotification)
	r.PATCH("/c/:token/guests/:id/notification", api.UpdateGuestNotification)
	return r
}

func TestGetCollection(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := collectionEngine(env.api)

	w := doJSON(t, r, http.MethodGet, "/c/tok", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Collection struct {
			UserID   string `json:"user_id"`
			UserName string `json:"user_name"`
		} `json:"collection"`
	}
	decode(t, w, &body)
	if body.Collection.UserID != env.owner.ID || body.Collection.UserName != "Maria" {
		t.Fatalf("unexpected collection %+v", body.Collection)
	}

	w = doJSON(t, r, http.MethodGet, "/c/unknown", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", w.Code)
	}
}

func TestSubmitRecipeWithImages(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := collectionEngine(env.api)

	req := multipartRequest(t, "/c/tok/recipes", map[string]string{
		"first_name":    "Ana",
		"last_name":     "Gomez",
		"recipe_name":   "Mole",
		"upload_method": "image",
	}, []formFile{
		{field: "files", name: "page1.jpg", contentType: "image/jpeg", body: []byte("jpeg-1")},
		{field: "files", name: "page2.pdf", contentType: "application/pdf", body: []byte("pdf-2")},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var result struct {
		RecipeID     string   `json:"recipe_id"`
		GuestCreated bool     `json:"guest_created"`
		FileURLs     []string `json:"file_urls"`
	}
	decode(t, w, &result)
	if !result.GuestCreated || len(result.FileURLs) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.HasSuffix(result.FileURLs[0], "/images/001.jpg") || !strings.HasSuffix(result.FileURLs[1], "/documents/002.pdf") {
		t.Fatalf("files out of order: %v", result.FileURLs)
	}

	staged, err := env.bucket.List(context.Background(), "temp/uploads/")
	if err != nil {
		t.Fatalf("list staging: %v", err)
	}
	if len(staged) != 0 {
		t.Fatalf("staging should be empty, got %v", staged)
	}
}

func TestSubmitRecipeRejections(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := collectionEngine(env.api)

	cases := []struct {
		name   string
		path   string
		fields map[string]string
		files  []formFile
		status int
	}{
		{
			name:   "unknown link",
			path:   "/c/nope/recipes",
			fields: map[string]string{"first_name": "Ana", "recipe_name": "Mole", "ingredients": "x"},
			status: http.StatusNotFound,
		},
		{
			name:   "missing recipe name",
			path:   "/c/tok/recipes",
			fields: map[string]string{"first_name": "Ana", "ingredients": "x"},
			status: http.StatusBadRequest,
		},
		{
			name:   "audio in an image upload",
			path:   "/c/tok/recipes",
			fields: map[string]string{"first_name": "Ana", "recipe_name": "Mole", "upload_method": "image"},
			files:  []formFile{{field: "files[]", name: "a.m4a", contentType: "audio/mp4", body: []byte("m4a")}},
			status: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, multipartRequest(t, tc.path, tc.fields, tc.files))
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}

	var guests int64
	env.db.Model(&db.Guest{}).Count(&guests)
	if guests != 0 {
		t.Fatalf("rejected submissions must not create guests, got %d", guests)
	}
}

func TestNotificationRequiresOwnership(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := collectionEngine(env.api)

	otherToken := "other"
	other := db.Profile{Email: "o@example.com", CollectionLinkToken: &otherToken, CollectionEnabled: true}
	if err := env.db.Create(&other).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	req := multipartRequest(t, "/c/tok/recipes", map[string]string{
		"first_name": "Ana", "recipe_name": "Flan", "ingredients": "eggs",
	}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit failed: %d %s", w.Code, w.Body.String())
	}
	var result struct {
		RecipeID string `json:"recipe_id"`
		GuestID  string `json:"guest_id"`
	}
	decode(t, w, &result)

	payload := map[string]any{"notify_opt_in": true, "notify_email": "ana@example.com"}
	w = doJSON(t, r, http.MethodPatch, "/c/other/recipes/"+result.RecipeID+"/notification", payload, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign token should not see the recipe, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPatch, "/c/tok/recipes/"+result.RecipeID+"/notification", payload, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPatch, "/c/tok/guests/"+result.GuestID+"/notification", payload, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var guest db.Guest
	env.db.First(&guest, "id = ?", result.GuestID)
	if !guest.NotifyOptIn || guest.NotifyOptInAt == nil {
		t.Fatalf("guest opt-in not stored: %+v", guest)
	}
}

func TestLinkRecipeEndpointIsIdempotent(t *testing.T) {
	env, cleanup := setupTestDB(t)
	defer cleanup()
	r := collectionEngine(env.api)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/c/tok/recipes", map[string]string{
		"first_name": "Ana", "recipe_name": "Flan", "ingredients": "eggs",
	}, nil))
	var result struct {
		RecipeID string `json:"recipe_id"`
	}
	decode(t, w, &result)

	cookbook := db.Cookbook{UserID: env.owner.ID, Name: "Ours"}
	env.db.Create(&cookbook)

	payload := map[string]string{"collection_token": "tok", "recipe_id": result.RecipeID, "cookbook_id": cookbook.ID}
	for i, want := range []string{"recipe added to cookbook", "recipe already in cookbook"} {
		w = doJSON(t, r, http.MethodPost, "/c/link-recipe", payload, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d: %s", i+1, w.Code, w.Body.String())
		}
		var body struct {
			Message string `json:"message"`
		}
		decode(t, w, &body)
		if body.Message != want {
			t.Fatalf("call %d: expected %q, got %q", i+1, want, body.Message)
		}
	}

	w = doJSON(t, r, http.MethodPost, "/c/link-recipe", map[string]string{"collection_token": "tok", "recipe_id": result.RecipeID}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing target should be 400, got %d", w.Code)
	}
}
