package models

import "gorm.io/gorm"

// registerModels returns all models that need migration
func registerModels() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&ProjectSimilarity{},
	}
}

// Migrate runs AutoMigrate for all models followed by custom migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(registerModels()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addFacultyListingIndex,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

// addFacultyListingIndex backs the faculty dashboard ordering.
func addFacultyListingIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_projects_faculty_similarity
		ON projects(assigned_faculty_email, similarity_percentage DESC, submitted_on DESC)
	`).Error
}
