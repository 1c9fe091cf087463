package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parceltoken/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository returns a GORM-backed CredentialRepository.
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, credential *models.Credential) error {
	return r.db.WithContext(ctx).Create(credential).Error
}

func (r *credentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	var credential models.Credential
	err := r.db.WithContext(ctx).First(&credential, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &credential, nil
}

func (r *credentialRepository) Update(ctx context.Context, credential *models.Credential) error {
	return r.db.WithContext(ctx).Save(credential).Error
}

func (r *credentialRepository) ListByUser(ctx context.Context, userID uint) ([]models.Credential, error) {
	var credentials []models.Credential
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&credentials).Error
	return credentials, err
}

// ApplyUsage serializes concurrent settlements on the same credential
// with a row lock, then checks every cap before writing. The check and
// the increment commit together or not at all.
func (r *credentialRepository) ApplyUsage(ctx context.Context, id string, amount int64, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var credential models.Credential
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&credential, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCredentialNotFound
			}
			return err
		}

		if err := applyUsageCounters(&credential, amount, at); err != nil {
			return err
		}
		return tx.Save(&credential).Error
	})
}

// applyUsageCounters mutates the usage counters in place after
// validating every cap. Shared by the GORM and memory repositories so
// the windows roll over identically.
func applyUsageCounters(credential *models.Credential, amount int64, at time.Time) error {
	if credential.Status != models.CredentialStatusActive {
		return ErrCredentialNotActive
	}

	usedDaily := credential.Usage.UsedDaily
	usedMonthly := credential.Usage.UsedMonthly
	if last := credential.Usage.LastUsedAt; last != nil {
		if !sameDay(*last, at) {
			usedDaily = 0
		}
		if !sameMonth(*last, at) {
			usedMonthly = 0
		}
	}

	switch {
	case credential.Usage.UsedAmount+amount > credential.Limits.MaxAmount:
		return ErrLimitExceeded
	case credential.Usage.UsedTransactions+1 > credential.Limits.MaxTransactions:
		return ErrTransactionLimitExceeded
	case usedDaily+amount > credential.Limits.DailyLimit:
		return ErrDailyLimitExceeded
	case usedMonthly+amount > credential.Limits.MonthlyLimit:
		return ErrMonthlyLimitExceeded
	}

	credential.Usage.UsedAmount += amount
	credential.Usage.UsedTransactions++
	credential.Usage.UsedDaily = usedDaily + amount
	credential.Usage.UsedMonthly = usedMonthly + amount
	ts := at
	credential.Usage.LastUsedAt = &ts
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.UTC().Date()
	by, bm, _ := b.UTC().Date()
	return ay == by && am == bm
}

// AppendUsage inserts a usage-history record, reporting false when the
// (credential, transaction) pair already exists. The unique index makes
// replayed settlement attempts a no-op instead of a double count.
func (r *credentialRepository) AppendUsage(ctx context.Context, rec *models.UsageRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, fmt.Errorf("failed to append usage record: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *credentialRepository) UsageHistory(ctx context.Context, credentialID string, limit int) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	q := r.db.WithContext(ctx).
		Where("credential_id = ?", credentialID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

// Supersede revokes the old credential and creates its replacement in
// one transaction. The lineage is never left with two ACTIVE records.
func (r *credentialRepository) Supersede(ctx context.Context, old, replacement *models.Credential) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(old).Error; err != nil {
			return err
		}
		return tx.Create(replacement).Error
	})
}
