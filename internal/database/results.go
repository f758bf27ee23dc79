package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var errNoOwner = errors.New("result owner is required")

// CreateResult inserts a result stamped with the current server time.
func CreateResult(ctx context.Context, db *gorm.DB, result *Result) error {
	if result.UserID == 0 {
		return errNoOwner
	}
	result.ID = 0
	result.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("create result: %w", err)
	}
	return nil
}

// ListResults returns the user's results, most recent first.
func ListResults(ctx context.Context, db *gorm.DB, userID uint) ([]Result, error) {
	var results []Result
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

// LatestResult returns the first entry of ListResults' ordering.
func LatestResult(ctx context.Context, db *gorm.DB, userID uint) (*Result, error) {
	var result Result
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// GetResultForUser loads one result, scoped by owner. Results of other users
// surface as gorm.ErrRecordNotFound.
func GetResultForUser(ctx context.Context, db *gorm.DB, id, userID uint) (*Result, error) {
	var result Result
	if err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// CountResults returns the total number of stored results.
func CountResults(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&Result{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return count, nil
}
