package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/logger"
)

var (
	ErrLinkTargetMissing = errors.New("either cookbook_id or group_id is required")
	ErrCookbookNotFound  = errors.New("cookbook not found")
	ErrGroupAccessDenied = errors.New("user does not have access to this group")
	ErrCookbookForbidden = errors.New("user does not have access to this cookbook")
	ErrRecipeNotOwned    = errors.New("recipe does not belong to this collection")
)

// LinkRequest asks to place a submitted recipe into a cookbook, either
// directly or through a group's shared cookbook. GroupID wins when both are set.
type LinkRequest struct {
	Token      string `json:"collection_token" validate:"required"`
	RecipeID   string `json:"recipe_id" validate:"required"`
	CookbookID string `json:"cookbook_id"`
	GroupID    string `json:"group_id"`
}

type LinkResult struct {
	CookbookID    string `json:"cookbook_id"`
	DisplayOrder  int    `json:"display_order"`
	AlreadyLinked bool   `json:"already_linked"`
}

// LinkService 负责将菜谱加入菜谱集或群组菜谱集。
type LinkService struct {
	db          *gorm.DB
	collections *CollectionService
	log         *slog.Logger
}

func NewLinkService(gdb *gorm.DB, collections *CollectionService) *LinkService {
	return &LinkService{db: gdb, collections: collections, log: logger.WithComponent("linker")}
}

// LinkRecipe is idempotent: a recipe already in the target cookbook is
// reported as AlreadyLinked and nothing is written.
func (s *LinkService) LinkRecipe(ctx context.Context, req LinkRequest) (*LinkResult, error) {
	req.Token = strings.TrimSpace(req.Token)
	req.RecipeID = strings.TrimSpace(req.RecipeID)
	req.CookbookID = strings.TrimSpace(req.CookbookID)
	req.GroupID = strings.TrimSpace(req.GroupID)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.CookbookID == "" && req.GroupID == "" {
		return nil, ErrLinkTargetMissing
	}

	info, err := s.collections.ValidateToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	ownerID := info.UserID

	var recipe db.Recipe
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&recipe, "id = ?", req.RecipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	if recipe.UserID != ownerID {
		return nil, ErrRecipeNotOwned
	}

	var result *LinkResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cookbookID, err := s.resolveTarget(tx, ownerID, req)
		if err != nil {
			return err
		}

		result, err = linkIntoCookbook(tx, cookbookID, req.RecipeID, ownerID)
		if err != nil {
			return err
		}

		if req.GroupID != "" {
			return upsertGroupRecipe(tx, req.GroupID, req.RecipeID, ownerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recipe linked",
		"recipe_id", req.RecipeID,
		"cookbook_id", result.CookbookID,
		"already_linked", result.AlreadyLinked,
	)
	return result, nil
}

func (s *LinkService) resolveTarget(tx *gorm.DB, ownerID string, req LinkRequest) (string, error) {
	if req.GroupID != "" {
		member, err := isGroupMember(tx, req.GroupID, ownerID)
		if err != nil {
			return "", err
		}
		if !member {
			return "", ErrGroupAccessDenied
		}
		cookbook, err := groupCookbook(tx, req.GroupID, ownerID)
		if err != nil {
			return "", err
		}
		return cookbook.ID, nil
	}

	var cookbook db.Cookbook
	if err := tx.First(&cookbook, "id = ?", req.CookbookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCookbookNotFound
		}
		return "", err
	}

	if cookbook.IsGroupCookbook && cookbook.GroupID != nil {
		member, err := isGroupMember(tx, *cookbook.GroupID, ownerID)
		if err != nil {
			return "", err
		}
		if !member {
			return "", ErrCookbookForbidden
		}
		return cookbook.ID, nil
	}
	if cookbook.UserID != ownerID {
		return "", ErrCookbookForbidden
	}
	return cookbook.ID, nil
}

func isGroupMember(tx *gorm.DB, groupID, profileID string) (bool, error) {
	var count int64
	if err := tx.Model(&db.GroupMember{}).
		Where("group_id = ? AND profile_id = ?", groupID, profileID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return count > 0, nil
}

// groupCookbook returns the group's shared cookbook, creating it on first use.
func groupCookbook(tx *gorm.DB, groupID, createdBy string) (*db.Cookbook, error) {
	var cookbook db.Cookbook
	err := tx.Where("group_id = ? AND is_group_cookbook = ?", groupID, true).First(&cookbook).Error
	if err == nil {
		return &cookbook, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var group db.Group
	if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCookbookNotFound
		}
		return nil, err
	}

	gid := group.ID
	cookbook = db.Cookbook{
		UserID:          createdBy,
		GroupID:         &gid,
		Name:            group.Name,
		IsGroupCookbook: true,
	}
	if err := tx.Create(&cookbook).Error; err != nil {
		return nil, fmt.Errorf("create group cookbook: %w", err)
	}
	return &cookbook, nil
}

func linkIntoCookbook(tx *gorm.DB, cookbookID, recipeID, userID string) (*LinkResult, error) {
	var existing db.CookbookRecipe
	err := tx.Where("cookbook_id = ? AND recipe_id = ?", cookbookID, recipeID).First(&existing).Error
	if err == nil {
		return &LinkResult{CookbookID: cookbookID, DisplayOrder: existing.DisplayOrder, AlreadyLinked: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var count int64
	if err := tx.Model(&db.CookbookRecipe{}).Where("cookbook_id = ?", cookbookID).Count(&count).Error; err != nil {
		return nil, err
	}

	row := db.CookbookRecipe{
		CookbookID:   cookbookID,
		RecipeID:     recipeID,
		UserID:       userID,
		DisplayOrder: int(count),
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert cookbook recipe: %w", err)
	}
	return &LinkResult{CookbookID: cookbookID, DisplayOrder: row.DisplayOrder}, nil
}

// upsertGroupRecipe inserts the group link, or reactivates a removed one.
func upsertGroupRecipe(tx *gorm.DB, groupID, recipeID, addedBy string) error {
	var existing db.GroupRecipe
	err := tx.Where("group_id = ? AND recipe_id = ?", groupID, recipeID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(&db.GroupRecipe{GroupID: groupID, RecipeID: recipeID, AddedBy: addedBy}).Error
	case err != nil:
		return err
	case existing.RemovedAt != nil:
		return tx.Model(&db.GroupRecipe{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"removed_at": nil,
			"added_by":   addedBy,
			"updated_at": time.Now(),
		}).Error
	default:
		return nil
	}
}
