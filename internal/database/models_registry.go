package database

import "socialhub/internal/models"

// PersistentModels lists every table the API owns, parents before children
// so AutoMigrate can create foreign keys in one pass.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.PostMedia{},
		&models.Like{},
		&models.Comment{},
	}
}
