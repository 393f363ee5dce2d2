package profiles

import (
	"context"
	"errors"

	"mafserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("profile not found")
	ErrExists   = errors.New("login already registered")
)

// Store wraps profile persistence. It also serves as the statistics sink for
// finished game sessions.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Insert registers a new profile. The password field must already be hashed.
func (s *Store) Insert(ctx context.Context, profile *models.Profile) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Profile
		err := tx.Where("login = ?", profile.Login).First(&existing).Error
		if err == nil {
			return ErrExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(profile).Error
	})
	if err == nil {
		s.logger.Info("profile registered", zap.String("login", profile.Login))
	}
	return err
}

// Lookup fetches one profile by login.
func (s *Store) Lookup(ctx context.Context, login string) (models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("login = ?", login).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return profile, ErrNotFound
	}
	return profile, err
}

// Modify applies a partial update to the profile with the given login.
// Only the listed columns may change.
func (s *Store) Modify(ctx context.Context, login string, fields map[string]interface{}) (models.Profile, error) {
	allowed := map[string]bool{"name": true, "image": true, "gender": true, "mail": true, "password": true}
	for column := range fields {
		if !allowed[column] {
			delete(fields, column)
		}
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("login = ?", login).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&profile).Updates(fields).Error; err != nil {
			return err
		}
		return tx.Where("login = ?", login).First(&profile).Error
	})
	return profile, err
}

// All lists every registered profile.
func (s *Store) All(ctx context.Context) ([]models.Profile, error) {
	var out []models.Profile
	err := s.db.WithContext(ctx).Order("login").Find(&out).Error
	return out, err
}

// RecordSession implements the statistics sink: it folds one finished game
// into the player's lifetime counters.
func (s *Store) RecordSession(ctx context.Context, login string, seconds int64, won bool) error {
	winDelta, loseDelta := 0, 1
	if won {
		winDelta, loseDelta = 1, 0
	}

	result := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("login = ?", login).
		UpdateColumns(map[string]interface{}{
			"total_time":    gorm.Expr("total_time + ?", seconds),
			"session_count": gorm.Expr("session_count + 1"),
			"win_count":     gorm.Expr("win_count + ?", winDelta),
			"lose_count":    gorm.Expr("lose_count + ?", loseDelta),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Guests may play without a stored profile.
		s.logger.Debug("session stats skipped, no profile", zap.String("login", login))
	}
	return nil
}
