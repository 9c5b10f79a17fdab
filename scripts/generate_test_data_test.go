package main

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smallplates/internal/db"
)

func setupSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:demo-seed?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestSeedDemoDataIsIdempotent(t *testing.T) {
	gdb := setupSeedTestDB(t)

	created, err := seedDemoData(gdb)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if created != len(demoRecipes) {
		t.Fatalf("expected %d recipes, got %d", len(demoRecipes), created)
	}

	again, err := seedDemoData(gdb)
	if err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("second seed should be a no-op, created %d", again)
	}

	var recipes int64
	gdb.Model(&db.Recipe{}).Count(&recipes)
	if recipes != int64(len(demoRecipes)) {
		t.Fatalf("expected %d recipes stored, got %d", len(demoRecipes), recipes)
	}

	var ana db.Guest
	if err := gdb.Where("first_name = ? AND last_name = ?", "Ana", "Gomez").First(&ana).Error; err != nil {
		t.Fatalf("guest missing: %v", err)
	}
	if ana.NumberOfRecipes != 2 || ana.RecipesReceived != 2 {
		t.Fatalf("expected 2 expected/received for Ana, got %d/%d", ana.NumberOfRecipes, ana.RecipesReceived)
	}
}
