package db

import "time"

// RecipeProductionStatus holds the mutable production facts for one recipe.
// The display status is derived from these on every read and never stored.
type RecipeProductionStatus struct {
	Model
	RecipeID                string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"recipe_id"`
	TextFinalizedInIndesign bool       `gorm:"not null;default:false" json:"text_finalized_in_indesign"`
	ImageGenerated          bool       `gorm:"not null;default:false" json:"image_generated"`
	ImagePlacedInIndesign   bool       `gorm:"not null;default:false" json:"image_placed_in_indesign"`
	NeedsReview             bool       `gorm:"not null;default:false" json:"needs_review"`
	OperationsNotes         *string    `gorm:"type:text" json:"operations_notes"`
	ProductionCompletedAt   *time.Time `json:"production_completed_at"`
}

func (RecipeProductionStatus) TableName() string {
	return "recipe_production_status"
}

// RecipePrintReady is the agent-cleaned text used for layout.
type RecipePrintReady struct {
	Model
	RecipeID          string `gorm:"type:varchar(36);not null;uniqueIndex" json:"recipe_id"`
	RecipeNameClean   string `gorm:"size:255" json:"recipe_name_clean"`
	IngredientsClean  string `gorm:"type:text" json:"ingredients_clean"`
	InstructionsClean string `gorm:"type:text" json:"instructions_clean"`
	DetectedLanguage  string `gorm:"size:20" json:"detected_language"`
	CleaningVersion   string `gorm:"size:50" json:"cleaning_version"`
}

func (RecipePrintReady) TableName() string {
	return "recipe_print_ready"
}

type MidjourneyPrompt struct {
	Model
	RecipeID        string `gorm:"type:varchar(36);not null;uniqueIndex" json:"recipe_id"`
	GeneratedPrompt string `gorm:"type:text" json:"generated_prompt"`
	AgentMetadata   string `gorm:"type:text" json:"agent_metadata"`
}

func (MidjourneyPrompt) TableName() string {
	return "midjourney_prompts"
}

// PromptEvaluation 记录运营人员对生成提示词的评分，每个菜谱保留一条。
type PromptEvaluation struct {
	Model
	RecipeID             string  `gorm:"type:varchar(36);not null;index" json:"recipe_id"`
	PromptText           *string `gorm:"type:text" json:"prompt_text"`
	MidjourneyImageURL   *string `gorm:"size:1024" json:"midjourney_image_url"`
	Rating               int     `gorm:"not null" json:"rating"`
	WhatWorked           *string `gorm:"type:text" json:"what_worked"`
	WhatFailed           *string `gorm:"type:text" json:"what_failed"`
	Notes                *string `gorm:"type:text" json:"notes"`
	WasEdited            bool    `gorm:"not null;default:false" json:"was_edited"`
	EditedPrompt         *string `gorm:"type:text" json:"edited_prompt"`
	DishCategory         *string `gorm:"size:100" json:"dish_category"`
	HeroElement          *string `gorm:"size:255" json:"hero_element"`
	ContainerUsed        *string `gorm:"size:255" json:"container_used"`
	AgentVersion         *string `gorm:"size:50" json:"agent_version"`
	GenerationDurationMS *int    `json:"generation_duration_ms"`
}

func (PromptEvaluation) TableName() string {
	return "prompt_evaluations"
}
