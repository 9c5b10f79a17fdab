package db

// Cookbook 是主办方或群组的菜谱集合。群组共享的菜谱集 IsGroupCookbook 为真。
type Cookbook struct {
	Model
	UserID          string  `gorm:"type:varchar(36);index;not null" json:"user_id"`
	GroupID         *string `gorm:"type:varchar(36);index" json:"group_id"`
	Name            string  `gorm:"size:255;not null" json:"name"`
	IsGroupCookbook bool    `gorm:"not null;default:false" json:"is_group_cookbook"`
}

func (Cookbook) TableName() string {
	return "cookbooks"
}

// CookbookRecipe 记录菜谱在菜谱集中的位置，DisplayOrder 供拖拽排序使用。
type CookbookRecipe struct {
	Model
	CookbookID   string `gorm:"type:varchar(36);not null;uniqueIndex:idx_cookbook_recipe" json:"cookbook_id"`
	RecipeID     string `gorm:"type:varchar(36);not null;uniqueIndex:idx_cookbook_recipe;index" json:"recipe_id"`
	UserID       string `gorm:"type:varchar(36)" json:"user_id"`
	DisplayOrder int    `gorm:"not null;default:0" json:"display_order"`
}

func (CookbookRecipe) TableName() string {
	return "cookbook_recipes"
}
