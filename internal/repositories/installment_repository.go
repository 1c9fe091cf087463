package repositories

import (
	"context"
	"errors"
	"fmt"

	"parceltoken/internal/models"

	"gorm.io/gorm"
)

type installmentRepository struct {
	db *gorm.DB
}

// NewInstallmentRepository returns a GORM-backed InstallmentRepository.
func NewInstallmentRepository(db *gorm.DB) InstallmentRepository {
	return &installmentRepository{db: db}
}

func (r *installmentRepository) CreateBatch(ctx context.Context, installments []*models.Installment) error {
	if len(installments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(installments).Error
}

func (r *installmentRepository) GetByID(ctx context.Context, id string) (*models.Installment, error) {
	var installment models.Installment
	err := r.db.WithContext(ctx).First(&installment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstallmentNotFound
		}
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	return &installment, nil
}

func (r *installmentRepository) Update(ctx context.Context, installment *models.Installment) error {
	return r.db.WithContext(ctx).Save(installment).Error
}

func (r *installmentRepository) ListByUser(ctx context.Context, userID uint) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("due_date ASC").
		Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) ListAll(ctx context.Context) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Order("due_date ASC").
		Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) ListByTransaction(ctx context.Context, transactionID string) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("sequence ASC").
		Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) ListOpen(ctx context.Context) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			models.InstallmentStatusPending,
			models.InstallmentStatusOverdue,
			models.InstallmentStatusRenegotiated,
		}).
		Order("due_date ASC").
		Find(&installments).Error
	return installments, err
}
