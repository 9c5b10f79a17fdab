package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallplates/internal/db"
	"github.com/smallplates/internal/logger"
)

// PromptGenerator 定义为菜谱生成 Midjourney 提示词的能力，便于注入不同实现。
type PromptGenerator interface {
	Enabled(ctx context.Context) bool
	GenerateForRecipe(ctx context.Context, recipeID string) (*PromptResult, error)
}

// PromptService 调用提示词代理，并保存提示词、可印刷文本与菜品分类。
type PromptService struct {
	db       *gorm.DB
	client   *PromptAgentClient
	settings *SystemSettingService
	log      *slog.Logger
}

func NewPromptService(gdb *gorm.DB, client *PromptAgentClient, settings *SystemSettingService) *PromptService {
	return &PromptService{
		db:       gdb,
		client:   client,
		settings: settings,
		log:      logger.WithComponent("prompts"),
	}
}

// agentURL 返回生效的代理地址：系统设置优先，其次为配置文件。
func (s *PromptService) agentURL(ctx context.Context) (string, bool) {
	if s.settings != nil {
		settings, err := s.settings.GetSettings(ctx)
		if err != nil {
			s.log.Warn("load settings for prompt agent", "error", err)
		} else {
			if !settings.PromptAgentEnabled {
				return "", false
			}
			if settings.PromptAgentURL != "" {
				return settings.PromptAgentURL, true
			}
		}
	}
	base := s.client.BaseURL()
	return base, base != ""
}

// Enabled reports whether submissions should trigger prompt generation.
func (s *PromptService) Enabled(ctx context.Context) bool {
	_, ok := s.agentURL(ctx)
	return ok
}

// GenerateForRecipe 生成并保存提示词。代理返回的可印刷文本与菜品分类
// 保存失败只记录日志，不影响提示词本身。
func (s *PromptService) GenerateForRecipe(ctx context.Context, recipeID string) (*PromptResult, error) {
	base, ok := s.agentURL(ctx)
	if !ok {
		return nil, ErrAgentDisabled
	}

	var recipe db.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, "id = ?", recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}

	result, err := s.client.Generate(ctx, base, PromptRequest{
		DishName: recipe.RecipeName,
		Recipe:   RecipeText(&recipe),
		RecipeID: recipe.ID,
	})
	if err != nil {
		return nil, err
	}

	prompt := db.MidjourneyPrompt{
		RecipeID:        recipe.ID,
		GeneratedPrompt: result.GeneratedPrompt,
		AgentMetadata:   string(result.AgentMetadata),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "recipe_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"generated_prompt": prompt.GeneratedPrompt,
			"agent_metadata":   prompt.AgentMetadata,
			"updated_at":       time.Now(),
		}),
	}).Create(&prompt).Error; err != nil {
		return nil, fmt.Errorf("save prompt: %w", err)
	}

	s.savePrintReady(ctx, recipe.ID, result.PrintReady)
	s.saveDishCategory(ctx, recipe.ID, result.DishCategory)

	s.log.Info("prompt generated", "recipe_id", recipe.ID, "took", result.Duration.String(), "category", result.DishCategory)
	return result, nil
}

func (s *PromptService) savePrintReady(ctx context.Context, recipeID string, pr *PrintReady) {
	if pr == nil {
		s.log.Warn("agent returned no print_ready text", "recipe_id", recipeID)
		return
	}
	if strings.TrimSpace(pr.IngredientsClean) == "" && strings.TrimSpace(pr.InstructionsClean) == "" {
		s.log.Warn("print_ready missing cleaned text", "recipe_id", recipeID)
		return
	}

	row := db.RecipePrintReady{
		RecipeID:          recipeID,
		RecipeNameClean:   pr.RecipeNameClean,
		IngredientsClean:  pr.IngredientsClean,
		InstructionsClean: pr.InstructionsClean,
		DetectedLanguage:  pr.DetectedLanguage,
		CleaningVersion:   pr.Version(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "recipe_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"recipe_name_clean":  row.RecipeNameClean,
			"ingredients_clean":  row.IngredientsClean,
			"instructions_clean": row.InstructionsClean,
			"detected_language":  row.DetectedLanguage,
			"cleaning_version":   row.CleaningVersion,
			"updated_at":         time.Now(),
		}),
	}).Create(&row).Error; err != nil {
		s.log.Error("save print_ready", "recipe_id", recipeID, "error", err)
	}
}

func (s *PromptService) saveDishCategory(ctx context.Context, recipeID, category string) {
	if category == "" {
		return
	}
	if err := s.db.WithContext(ctx).Model(&db.Recipe{}).
		Where("id = ?", recipeID).
		UpdateColumn("dish_category", category).Error; err != nil {
		s.log.Error("save dish_category", "recipe_id", recipeID, "error", err)
	}
}
