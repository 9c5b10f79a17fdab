package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gorm.io/gorm"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/logger"
)

var (
	ErrRecipeNotFound       = errors.New("recipe not found")
	ErrInvalidUploadMethod  = errors.New("upload method must be text, image or audio")
	ErrRecipeContentMissing = errors.New("ingredients and instructions, or the full recipe text, are required")
)

const (
	imagePlaceholderText = "See uploaded images"
	audioPlaceholderText = "See audio recording"
)

func imageCountText(n int) string {
	if n == 1 {
		return "1 image uploaded"
	}
	return fmt.Sprintf("%d images uploaded", n)
}

// NewRecipe is the input for one submitted dish. FileCount is the number of
// submitted files when DocumentURLs are attached after the insert.
type NewRecipe struct {
	OwnerID      string
	GuestID      string
	GroupID      string
	RecipeName   string
	Ingredients  string
	Instructions string
	Comments     string
	RawText      string
	UploadMethod string
	DocumentURLs []string
	FileCount    int
	NotifyOptIn  bool
	NotifyEmail  string
}

// recipeContent is the authoritative text chosen for an upload method.
type recipeContent struct {
	Ingredients  string
	Instructions string
	RawText      *string
	RawFallback  bool
}

// RecipeService is the recipe record store.
type RecipeService struct {
	db        *gorm.DB
	log       *slog.Logger
	now       func() time.Time
	stripTags *bluemonday.Policy
	htmlSafe  *bluemonday.Policy
	markdown  goldmark.Markdown
}

func NewRecipeService(gdb *gorm.DB) *RecipeService {
	return &RecipeService{
		db:        gdb,
		log:       logger.WithComponent("recipes"),
		now:       time.Now,
		stripTags: bluemonday.StrictPolicy(),
		htmlSafe:  bluemonday.UGCPolicy(),
		markdown:  goldmark.New(),
	}
}

func normalizeUploadMethod(method string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(method)); m {
	case "":
		return db.UploadMethodText, nil
	case db.UploadMethodText, db.UploadMethodImage, db.UploadMethodAudio:
		return m, nil
	default:
		return "", ErrInvalidUploadMethod
	}
}

// resolveContent selects exactly one authoritative content source: the
// structured fields, the raw text, or a placeholder pointing at the files.
func (s *RecipeService) resolveContent(input NewRecipe) (recipeContent, error) {
	method, err := normalizeUploadMethod(input.UploadMethod)
	if err != nil {
		return recipeContent{}, err
	}

	switch method {
	case db.UploadMethodImage:
		n := input.FileCount
		if n < len(input.DocumentURLs) {
			n = len(input.DocumentURLs)
		}
		return recipeContent{Ingredients: imagePlaceholderText, Instructions: imageCountText(n)}, nil
	case db.UploadMethodAudio:
		return recipeContent{Ingredients: audioPlaceholderText, Instructions: audioPlaceholderText}, nil
	}

	ingredients := s.sanitize(input.Ingredients)
	instructions := s.sanitize(input.Instructions)
	if ingredients != "" || instructions != "" {
		return recipeContent{Ingredients: ingredients, Instructions: instructions}, nil
	}

	raw := s.sanitize(input.RawText)
	if raw == "" {
		return recipeContent{}, ErrRecipeContentMissing
	}
	return recipeContent{RawText: &raw, RawFallback: true}, nil
}

// sanitize strips markup and returns plain text; entities escaped by the
// policy are decoded again so "&" is stored as typed.
func (s *RecipeService) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.stripTags.Sanitize(text)))
}

// Create inserts a submitted recipe. The guests.recipes_received counter is
// advanced by the database trigger, not here.
func (s *RecipeService) Create(ctx context.Context, input NewRecipe) (*db.Recipe, bool, error) {
	name := s.sanitize(input.RecipeName)
	if name == "" {
		return nil, false, newValidationError("recipe_name is required")
	}
	if input.GuestID == "" || input.OwnerID == "" {
		return nil, false, errors.New("recipe owner and guest are required")
	}
	method, err := normalizeUploadMethod(input.UploadMethod)
	if err != nil {
		return nil, false, err
	}
	content, err := s.resolveContent(input)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	urls := input.DocumentURLs
	if urls == nil {
		urls = []string{}
	}
	recipe := db.Recipe{
		GuestID:          input.GuestID,
		UserID:           input.OwnerID,
		GroupID:          stringPtr(input.GroupID),
		RecipeName:       name,
		Ingredients:      content.Ingredients,
		Instructions:     content.Instructions,
		Comments:         stringPtr(s.sanitize(input.Comments)),
		RawRecipeText:    content.RawText,
		UploadMethod:     method,
		DocumentURLs:     urls,
		SubmissionStatus: db.SubmissionStatusSubmitted,
		SubmittedAt:      &now,
		NotifyOptIn:      input.NotifyOptIn,
		NotifyEmail:      stringPtr(input.NotifyEmail),
	}
	if err := s.db.WithContext(ctx).Create(&recipe).Error; err != nil {
		return nil, false, fmt.Errorf("create recipe: %w", err)
	}
	return &recipe, content.RawFallback, nil
}

// AttachDocuments sets the file URLs of an existing recipe.
func (s *RecipeService) AttachDocuments(ctx context.Context, recipeID string, urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	res := s.db.WithContext(ctx).Model(&db.Recipe{Model: db.Model{ID: recipeID}}).
		Select("document_urls").
		Updates(&db.Recipe{DocumentURLs: urls})
	if res.Error != nil {
		return fmt.Errorf("attach documents: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecipeNotFound
	}
	return nil
}

func (s *RecipeService) Get(ctx context.Context, id string) (*db.Recipe, error) {
	var recipe db.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	return &recipe, nil
}

// UpdateNotification stores a per-recipe notification opt-in.
func (s *RecipeService) UpdateNotification(ctx context.Context, recipeID string, prefs NotificationPrefs) error {
	updates := map[string]interface{}{}
	if prefs.OptIn != nil {
		updates["notify_opt_in"] = *prefs.OptIn
	}
	if prefs.Email != nil {
		updates["notify_email"] = stringPtr(*prefs.Email)
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&db.Recipe{}).Where("id = ?", recipeID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecipeNotFound
	}
	return nil
}

// ContentUpdate replaces a recipe's name and structured text.
type ContentUpdate struct {
	RecipeName   *string
	Ingredients  *string
	Instructions *string
}

// UpdateContent applies a partial text edit and returns the updated recipe.
func (s *RecipeService) UpdateContent(ctx context.Context, recipeID string, input ContentUpdate) (*db.Recipe, error) {
	updates := map[string]interface{}{}
	if input.RecipeName != nil {
		name := s.sanitize(*input.RecipeName)
		if name == "" {
			return nil, newValidationError("recipe_name is required")
		}
		updates["recipe_name"] = name
	}
	if input.Ingredients != nil {
		updates["ingredients"] = s.sanitize(*input.Ingredients)
	}
	if input.Instructions != nil {
		updates["instructions"] = s.sanitize(*input.Instructions)
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&db.Recipe{}).Where("id = ?", recipeID).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update recipe content: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrRecipeNotFound
		}
	}
	return s.Get(ctx, recipeID)
}

// RecipeText is the plain text sent to the prompt agent.
func RecipeText(r *db.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recipe Title: %s\n\n", r.RecipeName)
	b.WriteString("Ingredients:\n")
	b.WriteString(r.Ingredients)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString(r.Instructions)
	return b.String()
}

// RenderHTML renders a recipe for the admin detail view. Text is treated as
// Markdown so guests' bullet lists survive; the output is sanitised.
func (s *RecipeService) RenderHTML(r *db.Recipe) (template.HTML, error) {
	var src strings.Builder
	fmt.Fprintf(&src, "## %s\n\n", r.RecipeName)
	if r.RawRecipeText != nil && *r.RawRecipeText != "" {
		src.WriteString(*r.RawRecipeText)
	} else {
		src.WriteString("### Ingredients\n\n")
		src.WriteString(r.Ingredients)
		src.WriteString("\n\n### Instructions\n\n")
		src.WriteString(r.Instructions)
	}
	if r.Comments != nil && *r.Comments != "" {
		src.WriteString("\n\n> ")
		src.WriteString(strings.ReplaceAll(*r.Comments, "\n", "\n> "))
	}

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(src.String()), &buf); err != nil {
		return "", fmt.Errorf("render recipe: %w", err)
	}
	return template.HTML(s.htmlSafe.SanitizeBytes(buf.Bytes())), nil
}
