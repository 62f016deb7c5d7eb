package repositories

import "catalog/internal/models"

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	GetByEmailAndService(email, service string) (*models.User, error)
	GetByID(id uint) (*models.User, error)
}
