package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smallplates/internal/db"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return gdb
}

func createProfile(t *testing.T, gdb *gorm.DB, name, token string, enabled bool) *db.Profile {
	t.Helper()
	profile := db.Profile{
		Email:             name + "@example.com",
		FullName:          stringPtr(name),
		CollectionEnabled: enabled,
	}
	if token != "" {
		profile.CollectionLinkToken = &token
	}
	require.NoError(t, gdb.Create(&profile).Error)
	return &profile
}

func createGuest(t *testing.T, gdb *gorm.DB, ownerID, first, last string, mutate func(*db.Guest)) *db.Guest {
	t.Helper()
	guest := db.Guest{
		UserID:          ownerID,
		FirstName:       first,
		LastName:        last,
		Email:           first + "." + last + "@example.com",
		Status:          db.GuestStatusPending,
		Source:          db.GuestSourceManual,
		NumberOfRecipes: 1,
	}
	if mutate != nil {
		mutate(&guest)
	}
	require.NoError(t, gdb.Create(&guest).Error)
	return &guest
}

func createRecipe(t *testing.T, gdb *gorm.DB, ownerID, guestID, name string) *db.Recipe {
	t.Helper()
	now := time.Now()
	recipe := db.Recipe{
		GuestID:          guestID,
		UserID:           ownerID,
		RecipeName:       name,
		Ingredients:      "salt",
		Instructions:     "stir",
		UploadMethod:     db.UploadMethodText,
		DocumentURLs:     []string{},
		SubmissionStatus: db.SubmissionStatusSubmitted,
		SubmittedAt:      &now,
	}
	require.NoError(t, gdb.Create(&recipe).Error)
	return &recipe
}

func reloadGuest(t *testing.T, gdb *gorm.DB, id string) db.Guest {
	t.Helper()
	var guest db.Guest
	require.NoError(t, gdb.First(&guest, "id = ?", id).Error)
	return guest
}
