package postgres

import (
	"context"
	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/infrastructure/database/postgres/models"
	appErrors "facility-uptime-monitor/pkg/errors"

	"gorm.io/gorm/clause"
)

type UptimeRepository struct {
	db *DB
}

var _ domainDevice.UptimeRepository = (*UptimeRepository)(nil)

func NewUptimeRepository(db *DB) *UptimeRepository {
	return &UptimeRepository{db: db}
}

// Save writes the snapshot for its period, replacing an earlier run of the same month.
func (r *UptimeRepository) Save(ctx context.Context, s *domainDevice.UptimeSnapshot) error {
	dbModel := &models.UptimeSnapshotModel{
		Type:              s.Type,
		DeviceID:          s.DeviceID,
		Period:            s.Period,
		TotalHours:        s.Summary.TotalHours,
		TotalOfflineHours: s.Summary.TotalOfflineHours,
		UptimeHours:       s.Summary.UptimeHours,
		UptimePercentage:  s.Summary.UptimePercentage,
		CalculatedAt:      s.CalculatedAt,
	}
	err := r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "type"}, {Name: "device_id"}, {Name: "period"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_hours", "total_offline_hours", "uptime_hours", "uptime_percentage", "calculated_at_ts",
			}),
		}).
		Create(dbModel).Error
	if err != nil {
		return appErrors.NewStoreError("save uptime snapshot", err)
	}
	return nil
}

func (r *UptimeRepository) List(ctx context.Context, key domainDevice.Key) ([]*domainDevice.UptimeSnapshot, error) {
	var dbModels []models.UptimeSnapshotModel
	err := r.db.DB.WithContext(ctx).
		Where("type = ? AND device_id = ?", key.Type, key.DeviceID).
		Order("period DESC").
		Find(&dbModels).Error
	if err != nil {
		return nil, appErrors.NewStoreError("list uptime snapshots", err)
	}

	snapshots := make([]*domainDevice.UptimeSnapshot, len(dbModels))
	for i, m := range dbModels {
		snapshots[i] = &domainDevice.UptimeSnapshot{
			Type:     m.Type,
			DeviceID: m.DeviceID,
			Period:   m.Period,
			Summary: domainDevice.UptimeSummary{
				TotalHours:        m.TotalHours,
				TotalOfflineHours: m.TotalOfflineHours,
				UptimeHours:       m.UptimeHours,
				UptimePercentage:  m.UptimePercentage,
			},
			CalculatedAt: m.CalculatedAt,
		}
	}
	return snapshots, nil
}
