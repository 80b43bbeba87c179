package postgres

import (
	"context"
	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/infrastructure/database/postgres/models"
	appErrors "facility-uptime-monitor/pkg/errors"

	"github.com/google/uuid"
)

// RecipientRepository reads alert addresses per campus.
type RecipientRepository struct {
	db *DB
}

var _ domainDevice.RecipientRepository = (*RecipientRepository)(nil)

func NewRecipientRepository(db *DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

func (r *RecipientRepository) ListAddresses(ctx context.Context, campus string) ([]string, error) {
	var addresses []string
	err := r.db.DB.WithContext(ctx).
		Model(&models.AlertEmailModel{}).
		Where("campus = ?", campus).
		Order("address ASC").
		Pluck("address", &addresses).Error
	if err != nil {
		return nil, appErrors.NewStoreError("list recipients", err)
	}
	return addresses, nil
}

func (r *RecipientRepository) AddAddress(ctx context.Context, campus, address string) error {
	err := r.db.DB.WithContext(ctx).Create(&models.AlertEmailModel{
		ID:      uuid.NewString(),
		Campus:  campus,
		Address: address,
	}).Error
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return appErrors.NewStoreError("add recipient", err)
	}
	return nil
}
