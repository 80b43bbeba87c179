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

// Two writers racing to create the same device: the loser retries once and then sees the row.
const applyAttempts = 2

// DeviceRepository implements domainDevice.StateRepository
type DeviceRepository struct {
	db *DB
}

var _ domainDevice.StateRepository = (*DeviceRepository)(nil)

func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Apply reads the device under a row lock and writes fn's result in the same transaction.
func (r *DeviceRepository) Apply(ctx context.Context, key domainDevice.Key, fn domainDevice.ApplyFunc) error {
	return r.ApplyWithOutages(ctx, key, func(current *domainDevice.Device, _ domainDevice.OutageWriter) (*domainDevice.Device, error) {
		return fn(current)
	})
}

// ApplyWithOutages is Apply with an interval writer bound to the same transaction.
// A retry after a lost create race rolls back the first attempt's interval writes.
func (r *DeviceRepository) ApplyWithOutages(ctx context.Context, key domainDevice.Key, fn domainDevice.ApplyOutagesFunc) error {
	var (
		err   error
		fnErr error
	)
	guarded := func(current *domainDevice.Device, outages domainDevice.OutageWriter) (*domainDevice.Device, error) {
		next, err := fn(current, outages)
		fnErr = err
		return next, err
	}

	for attempt := 0; attempt < applyAttempts; attempt++ {
		fnErr = nil
		err = r.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return applyTx(tx, key, guarded)
		})
		if !isUniqueViolation(err) {
			break
		}
	}

	if err != nil && fnErr == nil {
		return appErrors.NewStoreError("apply device", err)
	}
	return err
}

func applyTx(tx *gorm.DB, key domainDevice.Key, fn domainDevice.ApplyOutagesFunc) error {
	var dbModel models.DeviceModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		First(&dbModel).Error

	var current *domainDevice.Device
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return err
	default:
		current = toDeviceEntity(&dbModel)
	}

	next, err := fn(current, txOutages{tx: tx})
	if err != nil || next == nil {
		return err
	}

	now := time.Now()
	next.UpdatedAt = now
	if current == nil {
		next.CreatedAt = now
		return tx.Create(toDeviceModel(next)).Error
	}

	return tx.Model(&models.DeviceModel{}).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		Updates(map[string]interface{}{
			"device_name":           next.DeviceName,
			"campus":                next.Campus,
			"power":                 next.Power,
			"alarm":                 next.Alarm,
			"monitored":             next.Monitored,
			"last_status_check_ts":  next.LastStatusCheckAt,
			"last_status_change_ts": next.LastStatusChangeAt,
			"updated_at":            now,
		}).Error
}

func (r *DeviceRepository) Get(ctx context.Context, key domainDevice.Key) (*domainDevice.Device, error) {
	var dbModel models.DeviceModel
	err := r.db.DB.WithContext(ctx).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainDevice.ErrDeviceNotFound
	}
	if err != nil {
		return nil, appErrors.NewStoreError("get device", err)
	}

	return toDeviceEntity(&dbModel), nil
}

func (r *DeviceRepository) List(ctx context.Context) ([]*domainDevice.Device, error) {
	var dbModels []models.DeviceModel
	err := r.db.DB.WithContext(ctx).
		Order("type ASC, device_id ASC").
		Find(&dbModels).Error
	if err != nil {
		return nil, appErrors.NewStoreError("list devices", err)
	}

	devices := make([]*domainDevice.Device, len(dbModels))
	for i := range dbModels {
		devices[i] = toDeviceEntity(&dbModels[i])
	}
	return devices, nil
}

func (r *DeviceRepository) UpdateUptime(ctx context.Context, key domainDevice.Key, summary domainDevice.UptimeSummary) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.DeviceModel{}).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		Updates(map[string]interface{}{
			"uptime_total_hours":         summary.TotalHours,
			"uptime_total_offline_hours": summary.TotalOfflineHours,
			"uptime_hours":               summary.UptimeHours,
			"uptime_percentage":          summary.UptimePercentage,
		})

	if result.Error != nil {
		return appErrors.NewStoreError("update uptime", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainDevice.ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) SetMonitored(ctx context.Context, key domainDevice.Key, monitored bool) (*domainDevice.Device, error) {
	result := r.db.DB.WithContext(ctx).
		Model(&models.DeviceModel{}).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		Updates(map[string]interface{}{
			"monitored":  monitored,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return nil, appErrors.NewStoreError("set monitored", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, domainDevice.ErrDeviceNotFound
	}
	return r.Get(ctx, key)
}

func toDeviceModel(d *domainDevice.Device) *models.DeviceModel {
	m := &models.DeviceModel{
		Type:               d.Type,
		DeviceID:           d.DeviceID,
		DeviceName:         d.DeviceName,
		Campus:             d.Campus,
		Power:              d.Power,
		Alarm:              d.Alarm,
		Monitored:          d.Monitored,
		LastStatusCheckAt:  d.LastStatusCheckAt,
		LastStatusChangeAt: d.LastStatusChangeAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if u := d.CurrentMonthUptime; u != nil {
		m.UptimeTotalHours = &u.TotalHours
		m.UptimeOfflineHours = &u.TotalOfflineHours
		m.UptimeHours = &u.UptimeHours
		m.UptimePercentage = &u.UptimePercentage
	}
	return m
}

func toDeviceEntity(m *models.DeviceModel) *domainDevice.Device {
	d := &domainDevice.Device{
		Type:               m.Type,
		DeviceID:           m.DeviceID,
		DeviceName:         m.DeviceName,
		Campus:             m.Campus,
		Power:              m.Power,
		Alarm:              m.Alarm,
		Monitored:          m.Monitored,
		LastStatusCheckAt:  m.LastStatusCheckAt,
		LastStatusChangeAt: m.LastStatusChangeAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.UptimePercentage != nil {
		d.CurrentMonthUptime = &domainDevice.UptimeSummary{
			TotalHours:        deref(m.UptimeTotalHours),
			TotalOfflineHours: deref(m.UptimeOfflineHours),
			UptimeHours:       deref(m.UptimeHours),
			UptimePercentage:  *m.UptimePercentage,
		}
	}
	return d
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
