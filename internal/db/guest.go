package db

import "time"

const (
	GuestStatusPending    = "pending"
	GuestStatusSubmitted  = "submitted"
	GuestStatusReachedOut = "reached_out"

	GuestSourceManual     = "manual"
	GuestSourceCollection = "collection"
)

// Guest 是提交菜谱的宾客身份。RecipesReceived 仅由数据库触发器维护。
type Guest struct {
	Model
	UserID          string     `gorm:"type:varchar(36);index;not null" json:"user_id"`
	GroupID         *string    `gorm:"type:varchar(36);index" json:"group_id"`
	FirstName       string     `gorm:"size:120;not null" json:"first_name"`
	LastName        string     `gorm:"size:120" json:"last_name"`
	PrintedName     *string    `gorm:"size:255" json:"printed_name"`
	Email           string     `gorm:"size:255;not null" json:"email"`
	Phone           *string    `gorm:"size:50" json:"phone"`
	Status          string     `gorm:"size:20;not null" json:"status"`
	Source          string     `gorm:"size:20;not null" json:"source"`
	NumberOfRecipes int        `gorm:"not null;default:1" json:"number_of_recipes"`
	RecipesReceived int        `gorm:"not null;default:0" json:"recipes_received"`
	IsArchived      bool       `gorm:"not null;default:false;index" json:"is_archived"`
	NotifyOptIn     bool       `gorm:"not null;default:false" json:"notify_opt_in"`
	NotifyEmail     *string    `gorm:"size:255" json:"notify_email"`
	NotifyOptInAt   *time.Time `json:"notify_opt_in_at"`
}

func (Guest) TableName() string {
	return "guests"
}

// DisplayName prefers the printed name.
func (g Guest) DisplayName() string {
	if g.PrintedName != nil && *g.PrintedName != "" {
		return *g.PrintedName
	}
	if g.LastName == "" {
		return g.FirstName
	}
	return g.FirstName + " " + g.LastName
}
