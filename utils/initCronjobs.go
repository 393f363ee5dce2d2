package utils

import (
	"time"

	"mafserver/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CronCleaner schedules the recurring database sweeps.
func CronCleaner(db *gorm.DB, logger *zap.Logger) {
	c := cron.New()

	// Sweep session tokens that passed their expiry.
	c.AddFunc("@hourly", func() {
		result := db.Where("expires_at <= ?", time.Now()).Delete(&models.SessionToken{})
		if result.Error != nil {
			logger.Error("failed to sweep expired session tokens", zap.Error(result.Error))
			return
		}
		if result.RowsAffected > 0 {
			logger.Info("swept expired session tokens",
				zap.Int("tokens_deleted", int(result.RowsAffected)))
		}
	})

	// Purge soft-deleted profiles that have been gone for two days.
	c.AddFunc("0 3 * * *", func() {
		result := db.Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at <= ?", time.Now().Add(-48*time.Hour)).
			Delete(&models.Profile{})
		if result.Error != nil {
			logger.Error("failed to purge deleted profiles", zap.Error(result.Error))
			return
		}
		if result.RowsAffected > 0 {
			logger.Info("purged deleted profiles",
				zap.Int("profiles_deleted", int(result.RowsAffected)))
		}
	})

	c.Start()
}
