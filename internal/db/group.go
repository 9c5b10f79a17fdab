package db

import "time"

// Group is a shared wedding space; members co-own its cookbook.
type Group struct {
	Model
	Name      string `gorm:"size:255;not null" json:"name"`
	CreatedBy string `gorm:"type:varchar(36);index" json:"created_by"`
}

func (Group) TableName() string {
	return "groups"
}

type GroupMember struct {
	Model
	GroupID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_group_member" json:"group_id"`
	ProfileID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_group_member" json:"profile_id"`
	Role      string `gorm:"size:20;not null" json:"role"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

// GroupRecipe links a recipe into a group. A non-nil RemovedAt hides the
// link without deleting it.
type GroupRecipe struct {
	Model
	GroupID   string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_group_recipe" json:"group_id"`
	RecipeID  string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_group_recipe;index" json:"recipe_id"`
	AddedBy   string     `gorm:"type:varchar(36)" json:"added_by"`
	RemovedAt *time.Time `json:"removed_at"`
}

func (GroupRecipe) TableName() string {
	return "group_recipes"
}
