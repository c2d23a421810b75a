package service_test

import (
	"testing"

	"lifelink-backend/internal/apperrors"
	"lifelink-backend/internal/models"
	"lifelink-backend/internal/service"
	"lifelink-backend/internal/service/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	donor    = service.Actor{ID: 1, Role: models.RoleDonor, Name: "Dana Donor"}
	patient  = service.Actor{ID: 2, Role: models.RolePatient, Name: "Pat Patient"}
	hosp1    = service.Actor{ID: 3, Role: models.RoleHospital, Name: "City General"}
	hosp2    = service.Actor{ID: 4, Role: models.RoleHospital, Name: "St. Mary"}
	admin    = service.Actor{ID: 5, Role: models.RoleAdmin, Name: "Root"}
	patient2 = service.Actor{ID: 6, Role: models.RolePatient, Name: "Second Patient"}
)

func newWorkflow(t *testing.T) (*service.WorkflowService, *servicetest.MemLedger, *servicetest.MemAudit) {
	t.Helper()

	ledger := servicetest.NewMemLedger()
	users := servicetest.NewMemDirectory(
		&models.User{ID: 1, Name: "Dana Donor", Email: "dana@example.com", Phone: "111", Role: models.RoleDonor},
		&models.User{ID: 2, Name: "Pat Patient", Email: "pat@example.com", Phone: "222", Role: models.RolePatient},
		&models.User{ID: 3, Name: "City General", Email: "city@example.com", Role: models.RoleHospital},
		&models.User{ID: 4, Name: "St. Mary", Email: "mary@example.com", Role: models.RoleHospital},
		&models.User{ID: 5, Name: "Root", Email: "root@example.com", Role: models.RoleAdmin},
		&models.User{ID: 6, Name: "Second Patient", Email: "second@example.com", Role: models.RolePatient},
	)
	audit := servicetest.NewMemAudit()
	return service.NewWorkflowService(ledger, users, audit, zap.NewNop()), ledger, audit
}

func bloodRequestDetails() datatypes.JSONMap {
	return datatypes.JSONMap{"blood_group": "O-", "units": float64(2), "urgency": "critical"}
}

func createBloodRequest(t *testing.T, wf *service.WorkflowService) *models.ResourceEntry {
	t.Helper()
	entry, err := wf.Create(patient, models.CategoryRequest, models.KindBlood, bloodRequestDetails())
	require.NoError(t, err)
	return entry
}

func createBloodDonation(t *testing.T, wf *service.WorkflowService) *models.ResourceEntry {
	t.Helper()
	entry, err := wf.Create(donor, models.CategoryDonation, models.KindBlood, datatypes.JSONMap{"blood_group": "A+"})
	require.NoError(t, err)
	return entry
}

func TestCreate(t *testing.T) {
	t.Run("patient creates a critical blood request", func(t *testing.T) {
		wf, _, audit := newWorkflow(t)

		entry := createBloodRequest(t, wf)
		assert.Equal(t, models.StatusPending, entry.Status)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, patient.ID, entry.OwnerID)

		// Owner contact snapshot captured at creation
		assert.Equal(t, "Pat Patient", entry.OwnerName)
		assert.Equal(t, "pat@example.com", entry.OwnerEmail)
		assert.Equal(t, "222", entry.OwnerPhone)

		// Appears in the owner's list
		mine, err := wf.List(patient, models.CategoryRequest)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, entry.ID, mine[0].ID)

		// Appears in every hospital's pending list
		for _, h := range []service.Actor{hosp1, hosp2} {
			visible, err := wf.List(h, models.CategoryRequest)
			require.NoError(t, err)
			require.Len(t, visible, 1)
			assert.Equal(t, models.StatusPending, visible[0].Status)
		}

		require.NotEmpty(t, audit.Records)
		assert.Equal(t, "request_create", audit.Records[len(audit.Records)-1].Action)
	})

	t.Run("role must match the entry category", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)

		_, err := wf.Create(donor, models.CategoryRequest, models.KindBlood, bloodRequestDetails())
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

		_, err = wf.Create(patient, models.CategoryDonation, models.KindBlood, datatypes.JSONMap{"blood_group": "A+"})
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

		_, err = wf.Create(hosp1, models.CategoryRequest, models.KindBlood, bloodRequestDetails())
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})

	t.Run("kind and details are validated", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)

		// bed is a request-only kind
		_, err := wf.Create(donor, models.CategoryDonation, models.KindBed, datatypes.JSONMap{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

		// blood details require a blood group
		_, err = wf.Create(patient, models.CategoryRequest, models.KindBlood, datatypes.JSONMap{"units": float64(1)})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

		// medicine details require a name
		_, err = wf.Create(patient, models.CategoryRequest, models.KindMedicine, datatypes.JSONMap{"quantity": float64(3)})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

		// valid bed request passes
		_, err = wf.Create(patient, models.CategoryRequest, models.KindBed, datatypes.JSONMap{"ward": "icu"})
		assert.NoError(t, err)
	})
}

func TestReject(t *testing.T) {
	t.Run("rejection keeps the entry pending and visible to other hospitals", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		updated, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusRejected,
			service.TransitionPayload{RejectionReason: "no stock"})
		require.NoError(t, err)

		assert.Equal(t, models.StatusPending, updated.Status)
		require.Len(t, updated.Rejections, 1)
		assert.Equal(t, hosp1.ID, updated.Rejections[0].HospitalID)
		assert.Equal(t, "no stock", updated.Rejections[0].Reason)

		// H1 still sees the entry in its own list (rejection history)
		h1List, err := wf.List(hosp1, models.CategoryRequest)
		require.NoError(t, err)
		require.Len(t, h1List, 1)

		// H2 still sees it as pending
		h2List, err := wf.List(hosp2, models.CategoryRequest)
		require.NoError(t, err)
		require.Len(t, h2List, 1)
		assert.Equal(t, models.StatusPending, h2List[0].Status)
	})

	t.Run("repeat rejection by the same hospital is a silent no-op", func(t *testing.T) {
		wf, ledger, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusRejected,
			service.TransitionPayload{RejectionReason: "no stock"})
		require.NoError(t, err)

		_, err = wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusRejected,
			service.TransitionPayload{RejectionReason: "still no stock"})
		require.NoError(t, err)

		stored, err := ledger.FindByID(entry.ID)
		require.NoError(t, err)
		require.Len(t, stored.Rejections, 1)
		assert.Equal(t, "no stock", stored.Rejections[0].Reason)
		assert.Equal(t, models.StatusPending, stored.Status)
	})

	t.Run("missing reason gets the default", func(t *testing.T) {
		wf, ledger, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusRejected, service.TransitionPayload{})
		require.NoError(t, err)

		stored, err := ledger.FindByID(entry.ID)
		require.NoError(t, err)
		require.Len(t, stored.Rejections, 1)
		assert.Equal(t, "No reason provided", stored.Rejections[0].Reason)
	})

	t.Run("only hospitals may reject", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		for _, actor := range []service.Actor{admin, patient, donor} {
			_, err := wf.Transition(actor, models.CategoryRequest, entry.ID, models.StatusRejected, service.TransitionPayload{})
			assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden), "role %s", actor.Role)
		}
	})
}

func TestApprove(t *testing.T) {
	t.Run("approval after another hospital's rejection", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusRejected,
			service.TransitionPayload{RejectionReason: "no stock"})
		require.NoError(t, err)

		updated, err := wf.Transition(hosp2, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		require.NoError(t, err)

		assert.Equal(t, models.StatusApproved, updated.Status)
		require.NotNil(t, updated.AssignedHospitalID)
		assert.Equal(t, hosp2.ID, *updated.AssignedHospitalID)
		assert.Equal(t, "St. Mary", updated.AssignedHospitalName)
		require.NotNil(t, updated.ApprovedBy)
		assert.Equal(t, hosp2.ID, *updated.ApprovedBy)
		require.NotNil(t, updated.ApprovedAt)

		// H2 sees it in its approved view, no longer as pending
		h2List, err := wf.List(hosp2, models.CategoryRequest)
		require.NoError(t, err)
		require.Len(t, h2List, 1)
		assert.Equal(t, models.StatusApproved, h2List[0].Status)

		// H1 still sees it through its rejection history
		h1List, err := wf.List(hosp1, models.CategoryRequest)
		require.NoError(t, err)
		require.Len(t, h1List, 1)
	})

	t.Run("concurrent approval loses to the first claim", func(t *testing.T) {
		wf, ledger, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		// Another hospital's write lands between our read and our write
		ledger.BeforeUpdateIfVersion = func() {
			ledger.BeforeUpdateIfVersion = nil
			ledger.SetVersion(entry.ID, entry.Version+1)
		}

		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

		stored, err := ledger.FindByID(entry.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, stored.Status)
	})

	t.Run("second sequential approval fails and approvedAt is untouched", func(t *testing.T) {
		wf, ledger, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		first, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		require.NoError(t, err)
		require.NotNil(t, first.ApprovedAt)

		_, err = wf.Transition(hosp2, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

		stored, err := ledger.FindByID(entry.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ApprovedAt)
		assert.Equal(t, *first.ApprovedAt, *stored.ApprovedAt)
		assert.Equal(t, hosp1.ID, *stored.AssignedHospitalID)
	})

	t.Run("admin may approve", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		updated, err := wf.Transition(admin, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, updated.Status)
	})

	t.Run("owners may not approve", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(patient, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})
}

func TestComplete(t *testing.T) {
	t.Run("assigned hospital completes", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		require.NoError(t, err)

		updated, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusCompleted, service.TransitionPayload{})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, updated.Status)
		require.NotNil(t, updated.CompletedAt)
	})

	t.Run("non-assigned hospital may not complete", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		require.NoError(t, err)

		_, err = wf.Transition(hosp2, models.CategoryRequest, entry.ID, models.StatusCompleted, service.TransitionPayload{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})

	t.Run("pending entries cannot be completed", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusCompleted, service.TransitionPayload{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})

	t.Run("completed entries are immutable", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
		require.NoError(t, err)
		_, err = wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusCompleted, service.TransitionPayload{})
		require.NoError(t, err)

		for _, target := range []string{models.StatusApproved, models.StatusRejected, models.StatusCompleted} {
			_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, target, service.TransitionPayload{})
			assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden), "target %s", target)
		}
	})
}

func TestCancel(t *testing.T) {
	t.Run("donor cancels their own pending donation", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodDonation(t, wf)

		updated, err := wf.Transition(donor, models.CategoryDonation, entry.ID, models.StatusCancelled, service.TransitionPayload{})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, updated.Status)

		// Hospital approving a cancelled donation fails
		_, err = wf.Transition(hosp1, models.CategoryDonation, entry.ID, models.StatusApproved, service.TransitionPayload{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})

	t.Run("requests cannot be cancelled", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		_, err := wf.Transition(patient, models.CategoryRequest, entry.ID, models.StatusCancelled, service.TransitionPayload{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})

	t.Run("only the owning donor can cancel", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodDonation(t, wf)

		other := service.Actor{ID: 99, Role: models.RoleDonor, Name: "Other Donor"}
		_, err := wf.Transition(other, models.CategoryDonation, entry.ID, models.StatusCancelled, service.TransitionPayload{})
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})
}

func TestFulfilmentLink(t *testing.T) {
	t.Run("approval can link the served patient", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodDonation(t, wf)

		pid := patient.ID
		updated, err := wf.Transition(hosp1, models.CategoryDonation, entry.ID, models.StatusApproved,
			service.TransitionPayload{PatientID: &pid})
		require.NoError(t, err)
		require.NotNil(t, updated.FulfilledPatientID)
		assert.Equal(t, pid, *updated.FulfilledPatientID)

		// Linked donation shows up in the patient's donation view
		list, err := wf.List(patient, models.CategoryDonation)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("link target must be an existing patient", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodDonation(t, wf)

		missing := uint(404)
		_, err := wf.Transition(hosp1, models.CategoryDonation, entry.ID, models.StatusApproved,
			service.TransitionPayload{PatientID: &missing})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

		notPatient := hosp2.ID
		_, err = wf.Transition(hosp1, models.CategoryDonation, entry.ID, models.StatusApproved,
			service.TransitionPayload{PatientID: &notPatient})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("requests accept no patient link", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		pid := patient2.ID
		_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusApproved,
			service.TransitionPayload{PatientID: &pid})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})
}

func TestDelete(t *testing.T) {
	t.Run("admin delete removes the entry for all roles", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		require.NoError(t, wf.Delete(admin, models.CategoryRequest, entry.ID))

		_, err := wf.Get(patient, models.CategoryRequest, entry.ID)
		assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

		for _, actor := range []service.Actor{patient, hosp1, admin} {
			list, err := wf.List(actor, models.CategoryRequest)
			require.NoError(t, err)
			assert.Empty(t, list, "role %s", actor.Role)
		}
	})

	t.Run("owner deletes only their own entries", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		err := wf.Delete(patient2, models.CategoryRequest, entry.ID)
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

		require.NoError(t, wf.Delete(patient, models.CategoryRequest, entry.ID))
	})

	t.Run("hospitals may never delete", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		entry := createBloodRequest(t, wf)

		err := wf.Delete(hosp1, models.CategoryRequest, entry.ID)
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})
}

func TestStats(t *testing.T) {
	wf, _, _ := newWorkflow(t)

	r1 := createBloodRequest(t, wf)
	createBloodRequest(t, wf)
	_, err := wf.Create(patient, models.CategoryRequest, models.KindBed, datatypes.JSONMap{"ward": "general"})
	require.NoError(t, err)

	_, err = wf.Transition(hosp1, models.CategoryRequest, r1.ID, models.StatusApproved, service.TransitionPayload{})
	require.NoError(t, err)

	t.Run("derived totals", func(t *testing.T) {
		stats, err := wf.Stats(admin, models.CategoryRequest)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, int64(2), stats.ByStatus[models.StatusPending])
		assert.Equal(t, int64(1), stats.ByStatus[models.StatusApproved])
		assert.Equal(t, int64(2), stats.ByKind[models.KindBlood])
		assert.Equal(t, int64(1), stats.ByKind[models.KindBed])
	})

	t.Run("patient extras", func(t *testing.T) {
		stats, err := wf.Stats(patient, models.CategoryRequest)
		require.NoError(t, err)
		require.NotNil(t, stats.MyRequests)
		assert.Equal(t, int64(3), *stats.MyRequests)
		assert.Nil(t, stats.MyApprovals)
	})

	t.Run("hospital extras", func(t *testing.T) {
		stats, err := wf.Stats(hosp1, models.CategoryRequest)
		require.NoError(t, err)
		require.NotNil(t, stats.MyApprovals)
		assert.Equal(t, int64(1), *stats.MyApprovals)
	})

	t.Run("donor extras", func(t *testing.T) {
		_, err := wf.Create(donor, models.CategoryDonation, models.KindMedicine, datatypes.JSONMap{"name": "insulin"})
		require.NoError(t, err)

		stats, err := wf.Stats(donor, models.CategoryDonation)
		require.NoError(t, err)
		require.NotNil(t, stats.MyDonations)
		assert.Equal(t, int64(1), *stats.MyDonations)
	})
}

func TestCategoryIsolation(t *testing.T) {
	wf, _, _ := newWorkflow(t)
	entry := createBloodDonation(t, wf)

	// A donation id is not addressable through the requests surface
	_, err := wf.Get(admin, models.CategoryRequest, entry.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	_, err = wf.Transition(hosp1, models.CategoryRequest, entry.ID, models.StatusApproved, service.TransitionPayload{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestUnknownTargetStatus(t *testing.T) {
	wf, _, _ := newWorkflow(t)
	entry := createBloodRequest(t, wf)

	_, err := wf.Transition(hosp1, models.CategoryRequest, entry.ID, "archived", service.TransitionPayload{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}
