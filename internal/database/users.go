package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrUsernameTaken is returned by CreateUser when the username already exists.
var ErrUsernameTaken = errors.New("username taken")

// CreateUser inserts a new account unless the username is already registered.
func CreateUser(ctx context.Context, db *gorm.DB, username, passwordHash, role string) (*User, error) {
	if role == "" {
		role = RoleUser
	}

	var created User
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing User
		switch err := tx.Where("username = ?", username).First(&existing).Error; {
		case err == nil:
			return ErrUsernameTaken
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("lookup user: %w", err)
		}

		created = User{Username: username, PasswordHash: passwordHash, Role: role}
		if err := tx.Create(&created).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// FindUserByUsername returns gorm.ErrRecordNotFound for unknown usernames.
func FindUserByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error) {
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns every account ordered by id.
func ListUsers(ctx context.Context, db *gorm.DB) ([]User, error) {
	var users []User
	if err := db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
