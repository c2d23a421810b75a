package service

import (
	"fmt"

	"lifelink-backend/internal/apperrors"
	"lifelink-backend/internal/models"

	"go.uber.org/zap"
)

// AdminUserStore is the identity persistence surface the admin layer needs
type AdminUserStore interface {
	FindUserByID(id uint) (*models.User, error)
	ListUsers(role string) ([]models.User, error)
	DeleteUser(id uint) error
	CountUsersByRole() (map[string]int64, error)
}

// PlatformStats is the admin dashboard aggregate, derived on demand
type PlatformStats struct {
	UsersByRole map[string]int64 `json:"users_by_role"`
	Donations   map[string]int64 `json:"donations_by_status"`
	Requests    map[string]int64 `json:"requests_by_status"`
}

type AdminService struct {
	users  AdminUserStore
	ledger Ledger
	audit  AuditRecorder
	logger *zap.Logger
}

func NewAdminService(users AdminUserStore, ledger Ledger, audit AuditRecorder, logger *zap.Logger) *AdminService {
	return &AdminService{
		users:  users,
		ledger: ledger,
		audit:  audit,
		logger: logger,
	}
}

// ListUsers returns all accounts, optionally filtered by role
func (s *AdminService) ListUsers(role string) ([]models.User, error) {
	if role != "" {
		switch role {
		case models.RoleAdmin, models.RoleDonor, models.RolePatient, models.RoleHospital:
		default:
			return nil, apperrors.Validation("unknown role %q", role)
		}
	}
	return s.users.ListUsers(role)
}

// DeleteUser removes an account. Admins cannot delete themselves or other
// admins. Entries owned by the deleted user survive: owner contact data
// was snapshotted at entry creation.
func (s *AdminService) DeleteUser(actor Actor, id uint) error {
	if id == actor.ID {
		return apperrors.Forbidden("cannot delete your own account")
	}

	user, err := s.users.FindUserByID(id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		return apperrors.Forbidden("cannot delete another admin")
	}

	if err := s.users.DeleteUser(id); err != nil {
		return err
	}

	actorID := actor.ID
	details := fmt.Sprintf("Deleted user %d (%s, role %s)", id, user.Email, user.Role)
	if err := s.audit.CreateAuditLog(&actorID, "user_delete", details); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err))
	}
	return nil
}

// Stats assembles the platform overview from identity and ledger scans
func (s *AdminService) Stats() (*PlatformStats, error) {
	usersByRole, err := s.users.CountUsersByRole()
	if err != nil {
		return nil, err
	}
	donations, err := s.ledger.CountByStatus(models.CategoryDonation)
	if err != nil {
		return nil, err
	}
	requests, err := s.ledger.CountByStatus(models.CategoryRequest)
	if err != nil {
		return nil, err
	}
	return &PlatformStats{
		UsersByRole: usersByRole,
		Donations:   donations,
		Requests:    requests,
	}, nil
}
