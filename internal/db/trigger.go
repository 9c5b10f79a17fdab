package db

import (
	"fmt"

	"gorm.io/gorm"
)

const sqliteRecipeCountTrigger = `
CREATE TRIGGER IF NOT EXISTS trg_guest_recipes_received
AFTER INSERT ON guest_recipes
FOR EACH ROW WHEN NEW.submission_status = 'submitted'
BEGIN
	UPDATE guests SET recipes_received = recipes_received + 1 WHERE id = NEW.guest_id;
END;`

const postgresRecipeCountFunction = `
CREATE OR REPLACE FUNCTION increment_guest_recipes_received() RETURNS trigger AS $$
BEGIN
	IF NEW.submission_status = 'submitted' THEN
		UPDATE guests SET recipes_received = recipes_received + 1 WHERE id = NEW.guest_id;
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;`

const postgresDropRecipeCountTrigger = `DROP TRIGGER IF EXISTS trg_guest_recipes_received ON guest_recipes`

const postgresRecipeCountTrigger = `
CREATE TRIGGER trg_guest_recipes_received
AFTER INSERT ON guest_recipes
FOR EACH ROW EXECUTE FUNCTION increment_guest_recipes_received();`

// installRecipeCountTrigger keeps guests.recipes_received in step with
// submitted recipe inserts. Application code never writes that column.
func installRecipeCountTrigger(gdb *gorm.DB) error {
	var statements []string
	switch gdb.Dialector.Name() {
	case "sqlite":
		statements = []string{sqliteRecipeCountTrigger}
	case "postgres":
		statements = []string{postgresRecipeCountFunction, postgresDropRecipeCountTrigger, postgresRecipeCountTrigger}
	default:
		return fmt.Errorf("recipe count trigger: unsupported dialect %q", gdb.Dialector.Name())
	}

	for _, stmt := range statements {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("install recipe count trigger: %w", err)
		}
	}
	return nil
}
