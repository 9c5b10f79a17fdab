package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smallplates/internal/config"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:db-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestRecipeInsertTriggerCountsOnlySubmitted(t *testing.T) {
	gdb := setupTestDB(t)

	guest := Guest{UserID: "owner", FirstName: "Ana", LastName: "Gomez", Email: "ana@example.com",
		Status: GuestStatusSubmitted, Source: GuestSourceCollection, NumberOfRecipes: 1}
	require.NoError(t, gdb.Create(&guest).Error)
	require.NotEmpty(t, guest.ID)

	submitted := Recipe{GuestID: guest.ID, UserID: "owner", RecipeName: "Paella",
		UploadMethod: UploadMethodText, SubmissionStatus: SubmissionStatusSubmitted}
	require.NoError(t, gdb.Create(&submitted).Error)

	draft := Recipe{GuestID: guest.ID, UserID: "owner", RecipeName: "Flan",
		UploadMethod: UploadMethodText, SubmissionStatus: SubmissionStatusDraft}
	require.NoError(t, gdb.Create(&draft).Error)

	var reloaded Guest
	require.NoError(t, gdb.First(&reloaded, "id = ?", guest.ID).Error)
	assert.Equal(t, 1, reloaded.RecipesReceived)
}

func TestRecipeDocumentURLsRoundTrip(t *testing.T) {
	gdb := setupTestDB(t)

	recipe := Recipe{GuestID: "g", UserID: "u", RecipeName: "Tortilla", UploadMethod: UploadMethodImage,
		SubmissionStatus: SubmissionStatusDraft, DocumentURLs: []string{"/a/001.jpg", "/a/002.jpg"}}
	require.NoError(t, gdb.Create(&recipe).Error)

	var loaded Recipe
	require.NoError(t, gdb.First(&loaded, "id = ?", recipe.ID).Error)
	assert.Equal(t, []string{"/a/001.jpg", "/a/002.jpg"}, loaded.DocumentURLs)
}

func TestMigrateIsRepeatable(t *testing.T) {
	gdb := setupTestDB(t)
	require.NoError(t, Migrate(gdb))
}

func TestUpsertUserAndAuthenticate(t *testing.T) {
	gdb := setupTestDB(t)

	require.NoError(t, EnsureUser(gdb, "ops", "first-pass"))
	require.NoError(t, EnsureUser(gdb, "ops", "ignored"))

	user, err := Authenticate(gdb, "ops", "first-pass")
	require.NoError(t, err)
	require.NotNil(t, user)

	_, err = UpsertUser(gdb, "ops", "second-pass")
	require.NoError(t, err)

	user, err = Authenticate(gdb, "ops", "first-pass")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = Authenticate(gdb, "ops", "second-pass")
	require.NoError(t, err)
	assert.NotNil(t, user)

	_, err = UpsertUser(gdb, " ", "x")
	assert.ErrorIs(t, err, ErrUserCredentialsMissing)
}

func TestOpenCreatesSQLiteParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	gdb, err := Open(config.DatabaseConfig{Driver: config.DatabaseDriverSQLite, DSN: path})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = Open(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
