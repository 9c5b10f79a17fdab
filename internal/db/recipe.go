package db

import "time"

const (
	UploadMethodText  = "text"
	UploadMethodImage = "image"
	UploadMethodAudio = "audio"

	SubmissionStatusDraft     = "draft"
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusApproved  = "approved"
	SubmissionStatusRejected  = "rejected"
)

// Recipe 是宾客提交的单道菜谱。DocumentURLs 以 JSON 数组形式存储。
type Recipe struct {
	Model
	GuestID           string     `gorm:"type:varchar(36);index;not null" json:"guest_id"`
	UserID            string     `gorm:"type:varchar(36);index;not null" json:"user_id"`
	GroupID           *string    `gorm:"type:varchar(36);index" json:"group_id"`
	RecipeName        string     `gorm:"size:255;not null" json:"recipe_name"`
	Ingredients       string     `gorm:"type:text" json:"ingredients"`
	Instructions      string     `gorm:"type:text" json:"instructions"`
	Comments          *string    `gorm:"type:text" json:"comments"`
	RawRecipeText     *string    `gorm:"type:text" json:"raw_recipe_text"`
	UploadMethod      string     `gorm:"size:10;not null" json:"upload_method"`
	DocumentURLs      []string   `gorm:"type:text;serializer:json" json:"document_urls"`
	SubmissionStatus  string     `gorm:"size:20;not null;index" json:"submission_status"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	DishCategory      *string    `gorm:"size:100" json:"dish_category"`
	GeneratedImageURL *string    `gorm:"size:1024" json:"generated_image_url"`
	NotifyOptIn       bool       `gorm:"not null;default:false" json:"notify_opt_in"`
	NotifyEmail       *string    `gorm:"size:255" json:"notify_email"`
}

func (Recipe) TableName() string {
	return "guest_recipes"
}
