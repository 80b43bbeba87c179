package postgres

import (
	"context"
	"errors"
	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/infrastructure/database/postgres/models"
	appErrors "facility-uptime-monitor/pkg/errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmailLogRepository struct {
	db *DB
}

var _ domainDevice.EmailLogRepository = (*EmailLogRepository)(nil)

func NewEmailLogRepository(db *DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

func (r *EmailLogRepository) LastSent(ctx context.Context, key domainDevice.Key) (int64, bool, error) {
	var dbModel models.EmailLogModel
	err := r.db.DB.WithContext(ctx).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, appErrors.NewStoreError("read email log", err)
	}
	return dbModel.LastEmailTS, true, nil
}

// SetLastSent overwrites the single log row of the device.
func (r *EmailLogRepository) SetLastSent(ctx context.Context, key domainDevice.Key, ts int64) error {
	dbModel := &models.EmailLogModel{
		Type:        key.Type,
		DeviceID:    key.DeviceID,
		LastEmailTS: ts,
		UpdatedAt:   time.Now(),
	}
	err := r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}, {Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_email_ts", "updated_at"}),
		}).
		Create(dbModel).Error
	if err != nil {
		return appErrors.NewStoreError("write email log", err)
	}
	return nil
}
