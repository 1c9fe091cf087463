package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"parceltoken/internal/models"
)

// MemoryCredentialRepository is an in-memory CredentialRepository for
// tests and local runs. A single mutex gives it the same single-writer
// guarantee the SQL row lock gives the GORM implementation.
type MemoryCredentialRepository struct {
	mu          sync.Mutex
	credentials map[string]*models.Credential
	usage       map[string][]models.UsageRecord // credentialID -> records
	seen        map[string]struct{}             // credentialID+transactionID
	nextID      uint
}

// NewMemoryCredentialRepository returns an empty in-memory store.
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		credentials: make(map[string]*models.Credential),
		usage:       make(map[string][]models.UsageRecord),
		seen:        make(map[string]struct{}),
	}
}

func (r *MemoryCredentialRepository) Create(_ context.Context, credential *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *credential
	r.credentials[credential.ID] = &cp
	return nil
}

func (r *MemoryCredentialRepository) GetByID(_ context.Context, id string) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	credential, ok := r.credentials[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	cp := *credential
	return &cp, nil
}

func (r *MemoryCredentialRepository) Update(_ context.Context, credential *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.credentials[credential.ID]; !ok {
		return ErrCredentialNotFound
	}
	cp := *credential
	r.credentials[credential.ID] = &cp
	return nil
}

func (r *MemoryCredentialRepository) ListByUser(_ context.Context, userID uint) ([]models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Credential
	for _, credential := range r.credentials {
		if credential.UserID == userID {
			out = append(out, *credential)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (r *MemoryCredentialRepository) ApplyUsage(_ context.Context, id string, amount int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	credential, ok := r.credentials[id]
	if !ok {
		return ErrCredentialNotFound
	}
	return applyUsageCounters(credential, amount, at)
}

func (r *MemoryCredentialRepository) AppendUsage(_ context.Context, rec *models.UsageRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rec.CredentialID + ":" + rec.TransactionID
	if _, dup := r.seen[key]; dup {
		return false, nil
	}
	r.seen[key] = struct{}{}
	r.nextID++
	cp := *rec
	cp.ID = r.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.usage[rec.CredentialID] = append(r.usage[rec.CredentialID], cp)
	return true, nil
}

func (r *MemoryCredentialRepository) UsageHistory(_ context.Context, credentialID string, limit int) ([]models.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.usage[credentialID]
	out := make([]models.UsageRecord, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryCredentialRepository) Supersede(_ context.Context, old, replacement *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.credentials[old.ID]; !ok {
		return ErrCredentialNotFound
	}
	oldCp := *old
	newCp := *replacement
	r.credentials[old.ID] = &oldCp
	r.credentials[replacement.ID] = &newCp
	return nil
}

// MemoryInstallmentRepository is an in-memory InstallmentRepository.
type MemoryInstallmentRepository struct {
	mu           sync.Mutex
	installments map[string]*models.Installment
}

// NewMemoryInstallmentRepository returns an empty in-memory ledger.
func NewMemoryInstallmentRepository() *MemoryInstallmentRepository {
	return &MemoryInstallmentRepository{installments: make(map[string]*models.Installment)}
}

func (r *MemoryInstallmentRepository) CreateBatch(_ context.Context, installments []*models.Installment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, installment := range installments {
		cp := *installment
		r.installments[installment.ID] = &cp
	}
	return nil
}

func (r *MemoryInstallmentRepository) GetByID(_ context.Context, id string) (*models.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	installment, ok := r.installments[id]
	if !ok {
		return nil, ErrInstallmentNotFound
	}
	cp := *installment
	return &cp, nil
}

func (r *MemoryInstallmentRepository) Update(_ context.Context, installment *models.Installment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.installments[installment.ID]; !ok {
		return ErrInstallmentNotFound
	}
	cp := *installment
	r.installments[installment.ID] = &cp
	return nil
}

func (r *MemoryInstallmentRepository) ListByUser(_ context.Context, userID uint) ([]models.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Installment
	for _, installment := range r.installments {
		if installment.UserID == userID {
			out = append(out, *installment)
		}
	}
	sortByDueDate(out)
	return out, nil
}

func (r *MemoryInstallmentRepository) ListByTransaction(_ context.Context, transactionID string) ([]models.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Installment
	for _, installment := range r.installments {
		if installment.TransactionID == transactionID {
			out = append(out, *installment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *MemoryInstallmentRepository) ListOpen(_ context.Context) ([]models.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Installment
	for _, installment := range r.installments {
		if installment.Open() {
			out = append(out, *installment)
		}
	}
	sortByDueDate(out)
	return out, nil
}

func (r *MemoryInstallmentRepository) ListAll(_ context.Context) ([]models.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Installment, 0, len(r.installments))
	for _, installment := range r.installments {
		out = append(out, *installment)
	}
	sortByDueDate(out)
	return out, nil
}

func sortByDueDate(installments []models.Installment) {
	sort.Slice(installments, func(i, j int) bool {
		return installments[i].DueDate.Before(installments[j].DueDate)
	})
}
