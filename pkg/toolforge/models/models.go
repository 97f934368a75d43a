package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: Tool must be migrated before the models that reference it
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&APIKey{},
		&Tool{},
		&Tag{},
		&AffiliateLink{},
		&ClickLog{},
		&Conversion{},
		&BrowsingHistory{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
