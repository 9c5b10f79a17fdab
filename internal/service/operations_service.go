package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
	"gorm.io/gorm"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/logger"
	"github.com/smallplates/internal/storage"
)

var (
	ErrProductionStatusNotFound = errors.New("production status not found")
	ErrRecipeHasNoGroup         = errors.New("recipe has no group")
	ErrUnsupportedImage         = errors.New("invalid file type, use PNG, JPG or WebP")
	ErrImageTooLarge            = errors.New("image exceeds 10MB")
	ErrInvalidStatusFilter      = errors.New("unknown production status")
)

const (
	maxGeneratedImageSize = 10 << 20
	// NotInCookbook selects recipes with no active group link.
	NotInCookbook = "not_in_cookbook"
)

var generatedImageFormats = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/jpg":  "jpeg",
	"image/webp": "webp",
}

// OperationsFilter narrows the back-office recipe list. Nil pointers and empty
// strings mean "any".
type OperationsFilter struct {
	Status       string
	CookbookID   string
	UserID       string
	GuestID      string
	NeedsReview  *bool
	HideArchived bool
	NotifyOptIn  bool
	Search       string
	SortByStatus bool
	Page         int
	PerPage      int
}

type GuestSummary struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	PrintedName *string `json:"printed_name"`
	Email       string  `json:"email"`
	Source      string  `json:"source"`
	NotifyOptIn bool    `json:"notify_opt_in"`
}

type GroupSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OperationsRecipe is one recipe as seen by the production team. Status is
// derived on every read.
type OperationsRecipe struct {
	Recipe           db.Recipe                  `json:"recipe"`
	Guest            *GuestSummary              `json:"guest"`
	Group            *GroupSummary              `json:"group"`
	CookbookIDs      []string                   `json:"cookbook_ids"`
	ProductionStatus *db.RecipeProductionStatus `json:"production_status"`
	Status           ProductionStatus           `json:"calculated_status"`
	Prompt           *db.MidjourneyPrompt       `json:"midjourney_prompt"`
	PrintReady       *db.RecipePrintReady       `json:"print_ready"`
}

type OperationsListResult struct {
	Items      []OperationsRecipe `json:"items"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
}

type OperationsDetail struct {
	OperationsRecipe
	HTML template.HTML `json:"html"`
}

// StatusPatch is a partial update of the production flags.
type StatusPatch struct {
	TextFinalizedInIndesign *bool   `json:"text_finalized_in_indesign"`
	ImageGenerated          *bool   `json:"image_generated"`
	ImagePlacedInIndesign   *bool   `json:"image_placed_in_indesign"`
	NeedsReview             *bool   `json:"needs_review"`
	OperationsNotes         *string `json:"operations_notes"`
}

func (p StatusPatch) empty() bool {
	return p.TextFinalizedInIndesign == nil && p.ImageGenerated == nil &&
		p.ImagePlacedInIndesign == nil && p.NeedsReview == nil && p.OperationsNotes == nil
}

// ContentEdit changes a recipe's submitted text and/or its cleaned
// print-ready text.
type ContentEdit struct {
	RecipeName        *string `json:"recipe_name"`
	Ingredients       *string `json:"ingredients"`
	Instructions      *string `json:"instructions"`
	IngredientsClean  *string `json:"ingredients_clean"`
	InstructionsClean *string `json:"instructions_clean"`
	MarkNeedsReview   bool    `json:"mark_needs_review"`
}

type ContentEditResult struct {
	Recipe           *db.Recipe                 `json:"recipe"`
	PrintReady       *db.RecipePrintReady       `json:"print_ready"`
	ProductionStatus *db.RecipeProductionStatus `json:"production_status"`
}

// GeneratedImage is the dish image produced outside the system.
type GeneratedImage struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type OperationsStats struct {
	Total                int                      `json:"total"`
	NeedsReview          int                      `json:"needs_review"`
	ByStatus             map[ProductionStatus]int `json:"by_status"`
	RecipesNeedingAction int                      `json:"recipes_needing_action"`
	RecipesReadyToPrint  int                      `json:"recipes_ready_to_print"`
}

// OperationsService 为后台生产流程提供菜谱列表、状态更新与生成图片上传。
type OperationsService struct {
	db      *gorm.DB
	recipes *RecipeService
	bucket  storage.Bucket
	log     *slog.Logger
	now     func() time.Time
}

func NewOperationsService(gdb *gorm.DB, recipes *RecipeService, bucket storage.Bucket) *OperationsService {
	return &OperationsService{
		db:      gdb,
		recipes: recipes,
		bucket:  bucket,
		log:     logger.WithComponent("operations"),
		now:     time.Now,
	}
}

// List loads matching recipes newest first. Filters on derived values run
// after the rows are assembled.
func (s *OperationsService) List(ctx context.Context, filter OperationsFilter) (OperationsListResult, error) {
	result := OperationsListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 50),
		Items:   []OperationsRecipe{},
	}

	var wantStatus ProductionStatus
	if filter.Status != "" {
		st, ok := ParseProductionStatus(filter.Status)
		if !ok {
			return result, ErrInvalidStatusFilter
		}
		wantStatus = st
	}

	query := s.db.WithContext(ctx).Model(&db.Recipe{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.GuestID != "" {
		query = query.Where("guest_id = ?", filter.GuestID)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		query = query.Where(`LOWER(recipe_name) LIKE ? ESCAPE '\'`, "%"+escapeLike(search)+"%")
	}

	var recipes []db.Recipe
	if err := query.Order("created_at DESC").Find(&recipes).Error; err != nil {
		return result, fmt.Errorf("list recipes: %w", err)
	}

	rows, err := s.assemble(ctx, recipes)
	if err != nil {
		return result, err
	}

	filtered := make([]OperationsRecipe, 0, len(rows))
	for _, row := range rows {
		if wantStatus != "" && row.Status != wantStatus {
			continue
		}
		if !matchesCookbook(row, filter.CookbookID) {
			continue
		}
		if filter.NeedsReview != nil {
			needs := row.ProductionStatus != nil && row.ProductionStatus.NeedsReview
			if needs != *filter.NeedsReview {
				continue
			}
		}
		if filter.HideArchived && row.Group == nil {
			continue
		}
		if filter.NotifyOptIn && (row.Guest == nil || !row.Guest.NotifyOptIn) {
			continue
		}
		filtered = append(filtered, row)
	}

	if filter.SortByStatus {
		sortByStatus(filtered)
	}

	result.Total = len(filtered)
	result.TotalPages = calculateTotalPages(int64(result.Total), result.PerPage)
	start := (result.Page - 1) * result.PerPage
	if start < len(filtered) {
		end := start + result.PerPage
		if end > len(filtered) {
			end = len(filtered)
		}
		result.Items = filtered[start:end]
	}
	return result, nil
}

func matchesCookbook(row OperationsRecipe, cookbookID string) bool {
	switch cookbookID {
	case "":
		return true
	case NotInCookbook:
		return row.Group == nil
	}
	if row.Group != nil && row.Group.ID == cookbookID {
		return true
	}
	for _, id := range row.CookbookIDs {
		if id == cookbookID {
			return true
		}
	}
	return false
}

// assemble batch-loads everything a row needs and derives the status.
func (s *OperationsService) assemble(ctx context.Context, recipes []db.Recipe) ([]OperationsRecipe, error) {
	if len(recipes) == 0 {
		return []OperationsRecipe{}, nil
	}

	recipeIDs := make([]string, 0, len(recipes))
	guestIDs := make([]string, 0, len(recipes))
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		guestIDs = append(guestIDs, r.GuestID)
	}
	tx := s.db.WithContext(ctx)

	var guests []db.Guest
	if err := tx.Where("id IN ?", guestIDs).Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("load guests: %w", err)
	}
	guestByID := make(map[string]*GuestSummary, len(guests))
	for _, g := range guests {
		guestByID[g.ID] = &GuestSummary{
			ID:          g.ID,
			FirstName:   g.FirstName,
			LastName:    g.LastName,
			PrintedName: g.PrintedName,
			Email:       g.Email,
			Source:      g.Source,
			NotifyOptIn: g.NotifyOptIn,
		}
	}

	var statuses []db.RecipeProductionStatus
	if err := tx.Where("recipe_id IN ?", recipeIDs).Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("load production status: %w", err)
	}
	statusByRecipe := make(map[string]*db.RecipeProductionStatus, len(statuses))
	for i := range statuses {
		statusByRecipe[statuses[i].RecipeID] = &statuses[i]
	}

	var prompts []db.MidjourneyPrompt
	if err := tx.Where("recipe_id IN ?", recipeIDs).Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	promptByRecipe := make(map[string]*db.MidjourneyPrompt, len(prompts))
	for i := range prompts {
		promptByRecipe[prompts[i].RecipeID] = &prompts[i]
	}

	var printReady []db.RecipePrintReady
	if err := tx.Where("recipe_id IN ?", recipeIDs).Find(&printReady).Error; err != nil {
		return nil, fmt.Errorf("load print ready: %w", err)
	}
	printReadyByRecipe := make(map[string]*db.RecipePrintReady, len(printReady))
	for i := range printReady {
		printReadyByRecipe[printReady[i].RecipeID] = &printReady[i]
	}

	type groupLink struct {
		RecipeID string
		GroupID  string
		Name     string
	}
	var links []groupLink
	if err := tx.Table("group_recipes AS gr").
		Select("gr.recipe_id, gr.group_id, g.name").
		Joins("JOIN groups g ON g.id = gr.group_id").
		Where("gr.recipe_id IN ? AND gr.removed_at IS NULL", recipeIDs).
		Order("gr.created_at ASC").
		Scan(&links).Error; err != nil {
		return nil, fmt.Errorf("load group links: %w", err)
	}
	groupByRecipe := make(map[string]*GroupSummary, len(links))
	for _, l := range links {
		if _, ok := groupByRecipe[l.RecipeID]; !ok {
			groupByRecipe[l.RecipeID] = &GroupSummary{ID: l.GroupID, Name: l.Name}
		}
	}

	var memberships []db.CookbookRecipe
	if err := tx.Where("recipe_id IN ?", recipeIDs).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("load cookbook links: %w", err)
	}
	cookbooksByRecipe := make(map[string][]string, len(memberships))
	for _, m := range memberships {
		cookbooksByRecipe[m.RecipeID] = append(cookbooksByRecipe[m.RecipeID], m.CookbookID)
	}

	rows := make([]OperationsRecipe, 0, len(recipes))
	for _, r := range recipes {
		status := statusByRecipe[r.ID]
		cookbooks := cookbooksByRecipe[r.ID]
		if cookbooks == nil {
			cookbooks = []string{}
		}
		rows = append(rows, OperationsRecipe{
			Recipe:           r,
			Guest:            guestByID[r.GuestID],
			Group:            groupByRecipe[r.ID],
			CookbookIDs:      cookbooks,
			ProductionStatus: status,
			Status:           DeriveProductionStatus(productionFlags(status)),
			Prompt:           promptByRecipe[r.ID],
			PrintReady:       printReadyByRecipe[r.ID],
		})
	}
	return rows, nil
}

// Get returns one recipe with its rendered detail HTML.
func (s *OperationsService) Get(ctx context.Context, recipeID string) (*OperationsDetail, error) {
	recipe, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	rows, err := s.assemble(ctx, []db.Recipe{*recipe})
	if err != nil {
		return nil, err
	}
	html, err := s.recipes.RenderHTML(recipe)
	if err != nil {
		return nil, err
	}
	return &OperationsDetail{OperationsRecipe: rows[0], HTML: html}, nil
}

func (s *OperationsService) loadStatus(tx *gorm.DB, recipeID string) (*db.RecipeProductionStatus, error) {
	var status db.RecipeProductionStatus
	err := tx.Where("recipe_id = ?", recipeID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// UpdateStatus applies a partial flag update. When the image is generated
// and no review is pending, production_completed_at is stamped once. A
// pending review is only cleared by an explicit needs_review=false or
// MarkReviewed.
func (s *OperationsService) UpdateStatus(ctx context.Context, recipeID string, patch StatusPatch) (*db.RecipeProductionStatus, error) {
	if _, err := s.recipes.Get(ctx, recipeID); err != nil {
		return nil, err
	}

	var result *db.RecipeProductionStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.loadStatus(tx, recipeID)
		if err != nil {
			return err
		}

		next := db.RecipeProductionStatus{RecipeID: recipeID}
		if existing != nil {
			next = *existing
		}
		if patch.TextFinalizedInIndesign != nil {
			next.TextFinalizedInIndesign = *patch.TextFinalizedInIndesign
		}
		if patch.ImageGenerated != nil {
			next.ImageGenerated = *patch.ImageGenerated
		}
		if patch.ImagePlacedInIndesign != nil {
			next.ImagePlacedInIndesign = *patch.ImagePlacedInIndesign
		}
		if patch.NeedsReview != nil {
			next.NeedsReview = *patch.NeedsReview
		}
		if patch.OperationsNotes != nil {
			next.OperationsNotes = stringPtr(*patch.OperationsNotes)
		}

		if next.ImageGenerated && !next.NeedsReview && next.ProductionCompletedAt == nil {
			now := s.now()
			next.ProductionCompletedAt = &now
		}

		if existing == nil {
			if err := tx.Create(&next).Error; err != nil {
				return fmt.Errorf("create production status: %w", err)
			}
		} else {
			if err := tx.Model(existing).Updates(map[string]interface{}{
				"text_finalized_in_indesign": next.TextFinalizedInIndesign,
				"image_generated":            next.ImageGenerated,
				"image_placed_in_indesign":   next.ImagePlacedInIndesign,
				"needs_review":               next.NeedsReview,
				"operations_notes":           next.OperationsNotes,
				"production_completed_at":    next.ProductionCompletedAt,
			}).Error; err != nil {
				return fmt.Errorf("update production status: %w", err)
			}
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("production status updated",
		"recipe_id", recipeID,
		"status", DeriveProductionStatus(productionFlags(result)),
	)
	return result, nil
}

// MarkReviewed clears needs_review and records the recipe's current
// updated_at as the completion time.
func (s *OperationsService) MarkReviewed(ctx context.Context, recipeID string) (*db.RecipeProductionStatus, error) {
	recipe, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx)
	existing, err := s.loadStatus(tx, recipeID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrProductionStatusNotFound
	}

	completedAt := recipe.UpdatedAt
	if err := tx.Model(existing).Updates(map[string]interface{}{
		"needs_review":            false,
		"production_completed_at": completedAt,
	}).Error; err != nil {
		return nil, fmt.Errorf("mark reviewed: %w", err)
	}
	existing.NeedsReview = false
	existing.ProductionCompletedAt = &completedAt
	return existing, nil
}

// EditContent updates submitted and cleaned text. With MarkNeedsReview the
// recipe is flagged for review and a dated note is appended.
func (s *OperationsService) EditContent(ctx context.Context, recipeID string, edit ContentEdit) (*ContentEditResult, error) {
	recipe, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	result := &ContentEditResult{Recipe: recipe}

	if edit.RecipeName != nil || edit.Ingredients != nil || edit.Instructions != nil {
		recipe, err = s.recipes.UpdateContent(ctx, recipeID, ContentUpdate{
			RecipeName:   edit.RecipeName,
			Ingredients:  edit.Ingredients,
			Instructions: edit.Instructions,
		})
		if err != nil {
			return nil, err
		}
		result.Recipe = recipe
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if edit.IngredientsClean != nil || edit.InstructionsClean != nil {
			pr, err := upsertCleanText(tx, recipe, edit)
			if err != nil {
				return err
			}
			result.PrintReady = pr
		}

		if edit.MarkNeedsReview {
			status, err := s.flagForReview(tx, recipeID)
			if err != nil {
				return err
			}
			result.ProductionStatus = status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func upsertCleanText(tx *gorm.DB, recipe *db.Recipe, edit ContentEdit) (*db.RecipePrintReady, error) {
	var pr db.RecipePrintReady
	err := tx.Where("recipe_id = ?", recipe.ID).First(&pr).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		pr = db.RecipePrintReady{RecipeID: recipe.ID, RecipeNameClean: recipe.RecipeName}
	case err != nil:
		return nil, err
	}

	if edit.IngredientsClean != nil {
		pr.IngredientsClean = strings.TrimSpace(*edit.IngredientsClean)
	}
	if edit.InstructionsClean != nil {
		pr.InstructionsClean = strings.TrimSpace(*edit.InstructionsClean)
	}
	if err := tx.Save(&pr).Error; err != nil {
		return nil, fmt.Errorf("save print ready: %w", err)
	}
	return &pr, nil
}

func (s *OperationsService) flagForReview(tx *gorm.DB, recipeID string) (*db.RecipeProductionStatus, error) {
	note := "Ingredients/Steps edited in Operations on " + s.now().Format("January 2, 2006")

	existing, err := s.loadStatus(tx, recipeID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		status := db.RecipeProductionStatus{RecipeID: recipeID, NeedsReview: true, OperationsNotes: &note}
		if err := tx.Create(&status).Error; err != nil {
			return nil, fmt.Errorf("flag for review: %w", err)
		}
		return &status, nil
	}

	notes := note
	if prev := strings.TrimSpace(derefString(existing.OperationsNotes)); prev != "" {
		notes = prev + "\n" + note
	}
	if err := tx.Model(existing).Updates(map[string]interface{}{
		"needs_review":     true,
		"operations_notes": notes,
	}).Error; err != nil {
		return nil, fmt.Errorf("flag for review: %w", err)
	}
	existing.NeedsReview = true
	existing.OperationsNotes = &notes
	return existing, nil
}

// UploadGeneratedImage stores the dish image at generated/<group>/<recipe>.<ext>,
// replacing any previous one, and marks the image as generated.
func (s *OperationsService) UploadGeneratedImage(ctx context.Context, recipeID string, img GeneratedImage) (string, error) {
	recipe, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		return "", err
	}
	if recipe.GroupID == nil || *recipe.GroupID == "" {
		return "", ErrRecipeHasNoGroup
	}

	contentType := strings.ToLower(strings.TrimSpace(img.ContentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	wantFormat, ok := generatedImageFormats[contentType]
	if !ok || img.Body == nil {
		return "", ErrUnsupportedImage
	}

	raw, err := io.ReadAll(io.LimitReader(img.Body, maxGeneratedImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(raw) > maxGeneratedImageSize {
		return "", ErrImageTooLarge
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || format != wantFormat {
		return "", ErrUnsupportedImage
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(img.Name)), ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		ext = format
		if ext == "jpeg" {
			ext = "jpg"
		}
	}
	key := fmt.Sprintf("generated/%s/%s.%s", *recipe.GroupID, recipe.ID, ext)

	if err := s.bucket.Upload(ctx, key, bytes.NewReader(raw), contentType); err != nil {
		return "", fmt.Errorf("upload generated image: %w", err)
	}
	url := s.bucket.PublicURL(key)

	if err := s.db.WithContext(ctx).Model(&db.Recipe{}).
		Where("id = ?", recipe.ID).
		UpdateColumn("generated_image_url", url).Error; err != nil {
		return "", fmt.Errorf("save image url: %w", err)
	}

	generated := true
	if _, err := s.UpdateStatus(ctx, recipe.ID, StatusPatch{ImageGenerated: &generated}); err != nil {
		return "", err
	}
	s.log.Info("generated image uploaded", "recipe_id", recipe.ID, "key", key, "bytes", len(raw))
	return url, nil
}

// Stats counts recipes per derived status.
func (s *OperationsService) Stats(ctx context.Context) (OperationsStats, error) {
	stats := OperationsStats{ByStatus: map[ProductionStatus]int{
		ProductionStatusNeedsReview:  0,
		ProductionStatusReadyToPrint: 0,
		ProductionStatusInProgress:   0,
		ProductionStatusNoAction:     0,
	}}

	type row struct {
		ID                      string
		TextFinalizedInIndesign *bool
		ImageGenerated          *bool
		ImagePlacedInIndesign   *bool
		NeedsReview             *bool
	}
	var rows []row
	if err := s.db.WithContext(ctx).Table("guest_recipes AS r").
		Select("r.id, ps.text_finalized_in_indesign, ps.image_generated, ps.image_placed_in_indesign, ps.needs_review").
		Joins("LEFT JOIN recipe_production_status ps ON ps.recipe_id = r.id").
		Scan(&rows).Error; err != nil {
		return stats, fmt.Errorf("load stats: %w", err)
	}

	deref := func(b *bool) bool { return b != nil && *b }
	for _, r := range rows {
		status := DeriveProductionStatus(ProductionFlags{
			TextFinalized:  deref(r.TextFinalizedInIndesign),
			ImageGenerated: deref(r.ImageGenerated),
			ImagePlaced:    deref(r.ImagePlacedInIndesign),
			NeedsReview:    deref(r.NeedsReview),
		})
		stats.ByStatus[status]++
		stats.Total++
		if status == ProductionStatusNeedsReview {
			stats.NeedsReview++
		}
		if status == ProductionStatusReadyToPrint {
			stats.RecipesReadyToPrint++
		} else {
			stats.RecipesNeedingAction++
		}
	}
	return stats, nil
}

// sortByStatus orders rows by production urgency, keeping input order within
// a status.
func sortByStatus(rows []OperationsRecipe) {
	rank := map[ProductionStatus]int{
		ProductionStatusNeedsReview:  0,
		ProductionStatusNoAction:     1,
		ProductionStatusInProgress:   2,
		ProductionStatusReadyToPrint: 3,
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rank[rows[i].Status] < rank[rows[j].Status]
	})
}
