package service

import (
	"fmt"
	"time"

	"lifelink-backend/internal/apperrors"
	"lifelink-backend/internal/metrics"
	"lifelink-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Ledger is the persistence abstraction for resource entries. Implemented
// by repository.LedgerRepository; faked in tests.
type Ledger interface {
	Insert(entry *models.ResourceEntry) error
	FindByID(id string) (*models.ResourceEntry, error)
	ListByOwner(category string, ownerID uint) ([]models.ResourceEntry, error)
	ListForHospital(category string, hospitalID uint) ([]models.ResourceEntry, error)
	ListByFulfilledPatient(patientID uint) ([]models.ResourceEntry, error)
	ListAll(category string) ([]models.ResourceEntry, error)
	Update(entry *models.ResourceEntry) error
	UpdateIfVersion(entry *models.ResourceEntry, expectedVersion int) (bool, error)
	DeleteByID(id string) error
	AppendRejection(rejection *models.Rejection) (bool, error)
	CountByStatus(category string) (map[string]int64, error)
	CountByKind(category string) (map[string]int64, error)
	CountByOwner(category string, ownerID uint) (int64, error)
	CountAssignedToHospital(category string, hospitalID uint) (int64, error)
	ExpirePendingOlderThan(cutoff time.Time) (int64, error)
}

// UserDirectory resolves identity references when snapshotting owner
// contact details and validating fulfilment links
type UserDirectory interface {
	FindUserByID(id uint) (*models.User, error)
}

// AuditRecorder writes audit log rows
type AuditRecorder interface {
	CreateAuditLog(userID *uint, action string, details string) error
}

// Actor is the authenticated caller identity resolved from token claims
type Actor struct {
	ID   uint
	Role string
	Name string
}

// TransitionPayload carries the optional fields of a status update
type TransitionPayload struct {
	RejectionReason string
	PatientID       *uint
}

// WorkflowStats is the derived aggregate view over one entry category.
// Computed by scanning the ledger on demand; never cached.
type WorkflowStats struct {
	Total       int64            `json:"total"`
	ByStatus    map[string]int64 `json:"by_status"`
	ByKind      map[string]int64 `json:"by_kind"`
	MyDonations *int64           `json:"my_donations,omitempty"`
	MyRequests  *int64           `json:"my_requests,omitempty"`
	MyApprovals *int64           `json:"my_approvals,omitempty"`
}

// transitionRule describes who may move an entry to a target status and
// which current status the entry must hold. Evaluated once per transition
// instead of re-deriving role checks per route.
type transitionRule struct {
	roles []string
	from  string
}

var transitionRules = map[string]transitionRule{
	models.StatusApproved:  {roles: []string{models.RoleHospital, models.RoleAdmin}, from: models.StatusPending},
	models.StatusRejected:  {roles: []string{models.RoleHospital}, from: models.StatusPending},
	models.StatusCompleted: {roles: []string{models.RoleHospital, models.RoleAdmin}, from: models.StatusApproved},
	models.StatusCancelled: {roles: []string{models.RoleDonor}, from: models.StatusPending},
}

// ownerRoleFor maps an entry category to the role that may create entries
// of that category
var ownerRoleFor = map[string]string{
	models.CategoryDonation: models.RoleDonor,
	models.CategoryRequest:  models.RolePatient,
}

// WorkflowService is the engine applying status transitions to ledger
// entries: create, multi-hospital claim/reject, approve, complete,
// cancel and delete.
type WorkflowService struct {
	ledger Ledger
	users  UserDirectory
	audit  AuditRecorder
	logger *zap.Logger
}

func NewWorkflowService(ledger Ledger, users UserDirectory, audit AuditRecorder, logger *zap.Logger) *WorkflowService {
	return &WorkflowService{
		ledger: ledger,
		users:  users,
		audit:  audit,
		logger: logger,
	}
}

// Create allocates a new pending entry owned by the caller. The owner's
// contact details are snapshotted at this point and never re-synced.
func (s *WorkflowService) Create(actor Actor, category, kind string, details datatypes.JSONMap) (*models.ResourceEntry, error) {
	if actor.Role != ownerRoleFor[category] {
		return nil, apperrors.Forbidden("only a %s can create a %s", ownerRoleFor[category], category)
	}

	if err := ValidateDetails(category, kind, details); err != nil {
		return nil, err
	}

	owner, err := s.users.FindUserByID(actor.ID)
	if err != nil {
		return nil, err
	}

	entry := &models.ResourceEntry{
		Category:   category,
		OwnerID:    owner.ID,
		OwnerName:  owner.Name,
		OwnerEmail: owner.Email,
		OwnerPhone: owner.Phone,
		Kind:       kind,
		Details:    details,
		Status:     models.StatusPending,
	}
	if err := s.ledger.Insert(entry); err != nil {
		return nil, err
	}

	metrics.EntriesCreatedTotal.WithLabelValues(category, kind).Inc()
	s.recordAudit(actor, fmt.Sprintf("%s_create", category),
		fmt.Sprintf("Created %s %s (kind: %s)", category, entry.ID, kind))

	return entry, nil
}

// List returns the entries visible to the caller.
//
// Owner roles see their own entries. Hospitals see the union of pending
// entries they have not rejected, approved/rejected entries assigned to
// them, and their own rejection history. Admins see everything. Patients
// additionally see donations fulfilled for them.
func (s *WorkflowService) List(actor Actor, category string) ([]models.ResourceEntry, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return s.ledger.ListAll(category)
	case models.RoleHospital:
		return s.ledger.ListForHospital(category, actor.ID)
	case models.RolePatient:
		if category == models.CategoryDonation {
			return s.ledger.ListByFulfilledPatient(actor.ID)
		}
		return s.ledger.ListByOwner(category, actor.ID)
	case models.RoleDonor:
		return s.ledger.ListByOwner(category, actor.ID)
	default:
		return nil, apperrors.Forbidden("role %q cannot list %ss", actor.Role, category)
	}
}

// Get returns a single entry if the caller is allowed to see it
func (s *WorkflowService) Get(actor Actor, category, id string) (*models.ResourceEntry, error) {
	entry, err := s.findInCategory(category, id)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleAdmin, models.RoleHospital:
		return entry, nil
	default:
		if entry.OwnerID != actor.ID {
			return nil, apperrors.Forbidden("you do not own this entry")
		}
		return entry, nil
	}
}

// Transition applies a status change to an entry according to the
// transition rule table.
func (s *WorkflowService) Transition(actor Actor, category, id, target string, payload TransitionPayload) (*models.ResourceEntry, error) {
	rule, ok := transitionRules[target]
	if !ok {
		return nil, apperrors.Validation("unknown target status %q", target)
	}

	entry, err := s.findInCategory(category, id)
	if err != nil {
		return nil, err
	}

	if !roleAllowed(rule.roles, actor.Role) {
		return nil, apperrors.Forbidden("role %q cannot set status %q", actor.Role, target)
	}
	if entry.Status != rule.from {
		return nil, apperrors.Forbidden("cannot move a %s entry to %s", entry.Status, target)
	}

	// Fulfilment linkage rides along with any transition on a donation
	if payload.PatientID != nil {
		if err := s.applyFulfilment(entry, *payload.PatientID); err != nil {
			return nil, err
		}
	}

	switch target {
	case models.StatusApproved:
		err = s.approve(actor, entry)
	case models.StatusRejected:
		err = s.reject(actor, entry, payload.RejectionReason)
	case models.StatusCompleted:
		err = s.complete(actor, entry)
	case models.StatusCancelled:
		err = s.cancel(actor, entry)
	}
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(category, target).Inc()
	s.recordAudit(actor, fmt.Sprintf("%s_%s", category, target),
		fmt.Sprintf("%s %s -> %s by %s (user %d)", category, entry.ID, target, actor.Role, actor.ID))

	return entry, nil
}

// approve claims the entry for the calling hospital. Guarded by the entry
// version so that of two overlapping approvals only the first survives;
// the loser gets a conflict instead of silently overwriting the claim.
func (s *WorkflowService) approve(actor Actor, entry *models.ResourceEntry) error {
	expected := entry.Version

	now := time.Now().UTC()
	entry.Status = models.StatusApproved
	entry.AssignedHospitalID = &actor.ID
	entry.AssignedHospitalName = actor.Name
	if entry.ApprovedAt == nil {
		entry.ApprovedBy = &actor.ID
		entry.ApprovedAt = &now
	}

	ok, err := s.ledger.UpdateIfVersion(entry, expected)
	if err != nil {
		return err
	}
	if !ok {
		metrics.ApproveConflictsTotal.Inc()
		return apperrors.Conflict("entry was already claimed by another hospital")
	}
	return nil
}

// reject appends the hospital to the entry's rejection set. The global
// status stays pending so the entry remains visible to other hospitals.
// A repeat rejection by the same hospital is a silent no-op.
func (s *WorkflowService) reject(actor Actor, entry *models.ResourceEntry, reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}

	rejection := &models.Rejection{
		EntryID:      entry.ID,
		HospitalID:   actor.ID,
		HospitalName: actor.Name,
		Reason:       reason,
	}
	added, err := s.ledger.AppendRejection(rejection)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	entry.Rejections = append(entry.Rejections, *rejection)
	return s.ledger.Update(entry)
}

func (s *WorkflowService) complete(actor Actor, entry *models.ResourceEntry) error {
	if actor.Role == models.RoleHospital {
		if entry.AssignedHospitalID == nil || *entry.AssignedHospitalID != actor.ID {
			return apperrors.Forbidden("only the assigned hospital can complete this entry")
		}
	}

	now := time.Now().UTC()
	entry.Status = models.StatusCompleted
	if entry.CompletedAt == nil {
		entry.CompletedAt = &now
	}
	return s.ledger.Update(entry)
}

func (s *WorkflowService) cancel(actor Actor, entry *models.ResourceEntry) error {
	if entry.Category != models.CategoryDonation {
		return apperrors.Forbidden("only donations can be cancelled")
	}
	if entry.OwnerID != actor.ID {
		return apperrors.Forbidden("only the owning donor can cancel this donation")
	}

	entry.Status = models.StatusCancelled
	return s.ledger.Update(entry)
}

// applyFulfilment links a donation to the patient it serves. The reference
// is validated at the boundary: the user must exist and hold the patient
// role.
func (s *WorkflowService) applyFulfilment(entry *models.ResourceEntry, patientID uint) error {
	if entry.Category != models.CategoryDonation {
		return apperrors.Validation("patient linkage applies to donations only")
	}
	patient, err := s.users.FindUserByID(patientID)
	if err != nil {
		return apperrors.Validation("linked patient %d does not exist", patientID)
	}
	if patient.Role != models.RolePatient {
		return apperrors.Validation("user %d is not a patient", patientID)
	}
	entry.FulfilledPatientID = &patientID
	return nil
}

// Delete hard-deletes an entry. Owners may delete their own entries,
// admins may delete any, hospitals may never delete.
func (s *WorkflowService) Delete(actor Actor, category, id string) error {
	entry, err := s.findInCategory(category, id)
	if err != nil {
		return err
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleDonor, models.RolePatient:
		if entry.OwnerID != actor.ID {
			return apperrors.Forbidden("you can only delete your own entries")
		}
	default:
		return apperrors.Forbidden("role %q cannot delete entries", actor.Role)
	}

	if err := s.ledger.DeleteByID(id); err != nil {
		return err
	}

	s.recordAudit(actor, fmt.Sprintf("%s_delete", category),
		fmt.Sprintf("Deleted %s %s", category, id))
	return nil
}

// Stats computes the aggregate view for a category by scanning the ledger.
// Role-specific counters are added for owner and hospital roles.
func (s *WorkflowService) Stats(actor Actor, category string) (*WorkflowStats, error) {
	byStatus, err := s.ledger.CountByStatus(category)
	if err != nil {
		return nil, err
	}
	byKind, err := s.ledger.CountByKind(category)
	if err != nil {
		return nil, err
	}

	stats := &WorkflowStats{ByStatus: byStatus, ByKind: byKind}
	for _, count := range byStatus {
		stats.Total += count
	}

	switch actor.Role {
	case models.RoleDonor:
		count, err := s.ledger.CountByOwner(models.CategoryDonation, actor.ID)
		if err != nil {
			return nil, err
		}
		stats.MyDonations = &count
	case models.RolePatient:
		count, err := s.ledger.CountByOwner(models.CategoryRequest, actor.ID)
		if err != nil {
			return nil, err
		}
		stats.MyRequests = &count
	case models.RoleHospital:
		count, err := s.ledger.CountAssignedToHospital(category, actor.ID)
		if err != nil {
			return nil, err
		}
		stats.MyApprovals = &count
	}

	return stats, nil
}

func (s *WorkflowService) findInCategory(category, id string) (*models.ResourceEntry, error) {
	entry, err := s.ledger.FindByID(id)
	if err != nil {
		return nil, err
	}
	if entry.Category != category {
		return nil, apperrors.NotFound("entry not found")
	}
	return entry, nil
}

// recordAudit writes an audit row. Audit failures must not fail the
// operation that triggered them; they are logged and dropped.
func (s *WorkflowService) recordAudit(actor Actor, action, details string) {
	userID := actor.ID
	if err := s.audit.CreateAuditLog(&userID, action, details); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.Error(err))
	}
}

func roleAllowed(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
