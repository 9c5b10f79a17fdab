package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/smallplates/internal/db"
)

// PromptEvaluationInput 描述一次提示词评估，rating 取值 1 到 5。
type PromptEvaluationInput struct {
	RecipeID             string  `json:"recipe_id" validate:"required"`
	PromptText           *string `json:"prompt_text"`
	MidjourneyImageURL   *string `json:"midjourney_image_url" validate:"omitempty,max=1024"`
	Rating               int     `json:"rating" validate:"required,gte=1,lte=5"`
	WhatWorked           *string `json:"what_worked"`
	WhatFailed           *string `json:"what_failed"`
	Notes                *string `json:"notes"`
	WasEdited            *bool   `json:"was_edited"`
	EditedPrompt         *string `json:"edited_prompt"`
	DishCategory         *string `json:"dish_category" validate:"omitempty,max=100"`
	HeroElement          *string `json:"hero_element" validate:"omitempty,max=255"`
	ContainerUsed        *string `json:"container_used" validate:"omitempty,max=255"`
	AgentVersion         *string `json:"agent_version" validate:"omitempty,max=50"`
	GenerationDurationMS *int    `json:"generation_duration_ms" validate:"omitempty,gte=0"`
}

// PromptEvaluationService 管理提示词评估，每个菜谱保留一条记录。
type PromptEvaluationService struct {
	db *gorm.DB
}

func NewPromptEvaluationService(gdb *gorm.DB) *PromptEvaluationService {
	return &PromptEvaluationService{db: gdb}
}

// Latest returns the newest evaluation for a recipe, or nil when there is none.
func (s *PromptEvaluationService) Latest(ctx context.Context, recipeID string) (*db.PromptEvaluation, error) {
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return nil, newValidationError("recipe_id is required")
	}

	var eval db.PromptEvaluation
	err := s.db.WithContext(ctx).Where("recipe_id = ?", recipeID).Order("created_at DESC").First(&eval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load prompt evaluation: %w", err)
	}
	return &eval, nil
}

// Save creates the recipe's evaluation or overwrites the existing one.
// created reports which happened.
func (s *PromptEvaluationService) Save(ctx context.Context, input PromptEvaluationInput) (eval *db.PromptEvaluation, created bool, err error) {
	input.RecipeID = strings.TrimSpace(input.RecipeID)
	if err := validateStruct(input); err != nil {
		return nil, false, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Recipe{}).Where("id = ?", input.RecipeID).Count(&count).Error; err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, false, ErrRecipeNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.PromptEvaluation
		findErr := tx.Where("recipe_id = ?", input.RecipeID).Order("created_at DESC").First(&existing).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			created = true
			eval = &db.PromptEvaluation{RecipeID: input.RecipeID}
		case findErr != nil:
			return findErr
		default:
			eval = &existing
		}

		eval.PromptText = input.PromptText
		eval.MidjourneyImageURL = input.MidjourneyImageURL
		eval.Rating = input.Rating
		eval.WhatWorked = input.WhatWorked
		eval.WhatFailed = input.WhatFailed
		eval.Notes = input.Notes
		eval.WasEdited = input.WasEdited != nil && *input.WasEdited
		eval.EditedPrompt = input.EditedPrompt
		eval.DishCategory = input.DishCategory
		eval.HeroElement = input.HeroElement
		eval.ContainerUsed = input.ContainerUsed
		eval.AgentVersion = input.AgentVersion
		eval.GenerationDurationMS = input.GenerationDurationMS

		return tx.Save(eval).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("save prompt evaluation: %w", err)
	}
	return eval, created, nil
}
