package db

// Profile is a host account. Hosts own guests, recipes and cookbooks; the
// collection link token lets anonymous guests submit on their behalf.
type Profile struct {
	Model
	Email               string  `gorm:"size:255" json:"email"`
	FullName            *string `gorm:"size:255" json:"full_name"`
	CollectionLinkToken *string `gorm:"size:64;uniqueIndex" json:"collection_link_token"`
	CollectionEnabled   bool    `gorm:"not null;default:false" json:"collection_enabled"`
}

func (Profile) TableName() string {
	return "profiles"
}
