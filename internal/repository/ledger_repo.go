package repository

import (
	"errors"
	"time"

	"lifelink-backend/internal/apperrors"
	"lifelink-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository is the persistence layer for resource entries and their
// rejection sets. No transactions: each workflow operation issues one read
// and at most one write.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepo(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Insert persists a new entry
func (r *LedgerRepository) Insert(entry *models.ResourceEntry) error {
	return r.db.Create(entry).Error
}

// FindByID retrieves an entry with its rejection set
func (r *LedgerRepository) FindByID(id string) (*models.ResourceEntry, error) {
	var entry models.ResourceEntry
	err := r.db.Preload("Rejections").Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("entry not found")
		}
		return nil, err
	}
	return &entry, nil
}

// ListByOwner retrieves all entries of a category owned by a user,
// newest first
func (r *LedgerRepository) ListByOwner(category string, ownerID uint) ([]models.ResourceEntry, error) {
	var entries []models.ResourceEntry
	err := r.db.Preload("Rejections").
		Where("category = ? AND owner_id = ?", category, ownerID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// ListForHospital retrieves the union a hospital is allowed to see:
// (a) pending entries it has not rejected, (b) approved/rejected entries
// assigned to it, (c) entries it has rejected, regardless of status.
func (r *LedgerRepository) ListForHospital(category string, hospitalID uint) ([]models.ResourceEntry, error) {
	rejected := r.db.Model(&models.Rejection{}).
		Select("entry_id").
		Where("hospital_id = ?", hospitalID)

	var entries []models.ResourceEntry
	err := r.db.Preload("Rejections").
		Where("category = ?", category).
		Where(
			r.db.Where("status = ? AND id NOT IN (?)", models.StatusPending, rejected).
				Or("status IN ? AND assigned_hospital_id = ?",
					[]string{models.StatusApproved, models.StatusRejected}, hospitalID).
				Or("id IN (?)", rejected),
		).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// ListByFulfilledPatient retrieves donations linked to a patient through
// the fulfilment reference, newest first
func (r *LedgerRepository) ListByFulfilledPatient(patientID uint) ([]models.ResourceEntry, error) {
	var entries []models.ResourceEntry
	err := r.db.Preload("Rejections").
		Where("category = ? AND fulfilled_patient_id = ?", models.CategoryDonation, patientID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// ListAll retrieves every entry of a category, newest first
func (r *LedgerRepository) ListAll(category string) ([]models.ResourceEntry, error) {
	var entries []models.ResourceEntry
	err := r.db.Preload("Rejections").
		Where("category = ?", category).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// Update persists entry mutations unconditionally
func (r *LedgerRepository) Update(entry *models.ResourceEntry) error {
	return r.db.Omit("Rejections").Save(entry).Error
}

// UpdateIfVersion persists entry mutations only if the stored version still
// matches the version the caller read. Returns false when another writer
// got there first. The entry's version is bumped on success.
func (r *LedgerRepository) UpdateIfVersion(entry *models.ResourceEntry, expectedVersion int) (bool, error) {
	entry.Version = expectedVersion + 1
	res := r.db.Model(&models.ResourceEntry{}).
		Where("id = ? AND version = ?", entry.ID, expectedVersion).
		Omit("Rejections").
		Select("*").
		Updates(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByID hard-deletes an entry; rejection rows cascade
func (r *LedgerRepository) DeleteByID(id string) error {
	if err := r.db.Where("entry_id = ?", id).Delete(&models.Rejection{}).Error; err != nil {
		return err
	}
	return r.db.Where("id = ?", id).Delete(&models.ResourceEntry{}).Error
}

// AppendRejection inserts a rejection row if the hospital has not already
// rejected the entry. Returns false for the idempotent duplicate case.
func (r *LedgerRepository) AppendRejection(rejection *models.Rejection) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(rejection)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountByStatus returns entry counts of a category keyed by status
func (r *LedgerRepository) CountByStatus(category string) (map[string]int64, error) {
	return r.countGrouped(category, "status")
}

// CountByKind returns entry counts of a category keyed by kind
func (r *LedgerRepository) CountByKind(category string) (map[string]int64, error) {
	return r.countGrouped(category, "kind")
}

func (r *LedgerRepository) countGrouped(category, column string) (map[string]int64, error) {
	type row struct {
		Key   string
		Count int64
	}
	var rows []row
	err := r.db.Model(&models.ResourceEntry{}).
		Select(column+" as `key`, COUNT(*) as count").
		Where("category = ?", category).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Key] = rw.Count
	}
	return counts, nil
}

// CountByOwner returns how many entries of a category a user owns
func (r *LedgerRepository) CountByOwner(category string, ownerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ResourceEntry{}).
		Where("category = ? AND owner_id = ?", category, ownerID).
		Count(&count).Error
	return count, err
}

// CountAssignedToHospital returns how many entries of a category a hospital
// has claimed (approved or completed)
func (r *LedgerRepository) CountAssignedToHospital(category string, hospitalID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ResourceEntry{}).
		Where("category = ? AND assigned_hospital_id = ?", category, hospitalID).
		Count(&count).Error
	return count, err
}

// ExpirePendingOlderThan moves pending entries created before the cutoff to
// expired status. Returns the number of entries swept.
func (r *LedgerRepository) ExpirePendingOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.ResourceEntry{}).
		Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Updates(map[string]interface{}{"status": models.StatusExpired})
	return res.RowsAffected, res.Error
}
