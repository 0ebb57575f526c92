package database

import "sprout/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.PostVote{},
		&models.Favourite{},
		&models.Comment{},
		&models.Reply{},
		&models.Payment{},
	}
}
