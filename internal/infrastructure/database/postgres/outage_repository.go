package postgres

import (
	"context"
	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/infrastructure/database/postgres/models"
	appErrors "facility-uptime-monitor/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutageRepository implements domainDevice.OutageRepository
type OutageRepository struct {
	db *DB
}

var (
	_ domainDevice.OutageRepository = (*OutageRepository)(nil)
	_ domainDevice.OutageWriter     = txOutages{}
)

func NewOutageRepository(db *DB) *OutageRepository {
	return &OutageRepository{db: db}
}

func (r *OutageRepository) Open(ctx context.Context, key domainDevice.Key, start int64) (*domainDevice.OutageInterval, error) {
	return openInterval(r.db.DB.WithContext(ctx), key, start)
}

// CloseOpen closes every open interval of the device, tolerating zero or several.
func (r *OutageRepository) CloseOpen(ctx context.Context, key domainDevice.Key, end int64) (int, error) {
	return closeOpenIntervals(r.db.DB.WithContext(ctx), key, end)
}

// txOutages writes intervals inside a device Apply transaction.
type txOutages struct {
	tx *gorm.DB
}

func (o txOutages) Open(ctx context.Context, key domainDevice.Key, start int64) (*domainDevice.OutageInterval, error) {
	return openInterval(o.tx.WithContext(ctx), key, start)
}

func (o txOutages) CloseOpen(ctx context.Context, key domainDevice.Key, end int64) (int, error) {
	return closeOpenIntervals(o.tx.WithContext(ctx), key, end)
}

func openInterval(db *gorm.DB, key domainDevice.Key, start int64) (*domainDevice.OutageInterval, error) {
	dbModel := &models.OutageIntervalModel{
		ID:       uuid.NewString(),
		Type:     key.Type,
		DeviceID: key.DeviceID,
		StartTS:  start,
	}
	if err := db.Create(dbModel).Error; err != nil {
		return nil, appErrors.NewStoreError("open interval", err)
	}
	return toIntervalEntity(dbModel), nil
}

func closeOpenIntervals(db *gorm.DB, key domainDevice.Key, end int64) (int, error) {
	result := db.Model(&models.OutageIntervalModel{}).
		Where("type = ? AND device_id = ? AND end_ts IS NULL", key.Type, key.DeviceID).
		Update("end_ts", end)
	if result.Error != nil {
		return 0, appErrors.NewStoreError("close intervals", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *OutageRepository) List(ctx context.Context, key domainDevice.Key) ([]*domainDevice.OutageInterval, error) {
	var dbModels []models.OutageIntervalModel
	err := r.db.DB.WithContext(ctx).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		Order("start_ts ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, appErrors.NewStoreError("list intervals", err)
	}
	return toIntervalEntities(dbModels), nil
}

func (r *OutageRepository) ListRecent(ctx context.Context, key domainDevice.Key, limit int) ([]*domainDevice.OutageInterval, error) {
	var dbModels []models.OutageIntervalModel
	err := r.db.DB.WithContext(ctx).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		Order("start_ts DESC").
		Limit(limit).
		Find(&dbModels).Error
	if err != nil {
		return nil, appErrors.NewStoreError("list recent intervals", err)
	}
	return toIntervalEntities(dbModels), nil
}

func toIntervalEntities(dbModels []models.OutageIntervalModel) []*domainDevice.OutageInterval {
	intervals := make([]*domainDevice.OutageInterval, len(dbModels))
	for i := range dbModels {
		intervals[i] = toIntervalEntity(&dbModels[i])
	}
	return intervals
}

func toIntervalEntity(m *models.OutageIntervalModel) *domainDevice.OutageInterval {
	return &domainDevice.OutageInterval{
		ID:       m.ID,
		Type:     m.Type,
		DeviceID: m.DeviceID,
		Start:    m.StartTS,
		End:      m.EndTS,
	}
}
