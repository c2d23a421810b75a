// Package servicetest provides in-memory fakes for the service-layer
// persistence interfaces, used by service and handler tests.
package servicetest

import (
	"sort"
	"sync"
	"time"

	"lifelink-backend/internal/apperrors"
	"lifelink-backend/internal/models"

	"github.com/google/uuid"
)

// MemLedger is an in-memory Ledger implementation
type MemLedger struct {
	mu      sync.Mutex
	entries map[string]*models.ResourceEntry
	clock   time.Time

	// BeforeUpdateIfVersion, when set, runs before the version check.
	// Lets tests interleave a competing write between a reader and its
	// conditional write.
	BeforeUpdateIfVersion func()
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		entries: make(map[string]*models.ResourceEntry),
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so creation order is
// reflected in CreatedAt
func (l *MemLedger) tick() time.Time {
	l.clock = l.clock.Add(time.Second)
	return l.clock
}

func copyEntry(e *models.ResourceEntry) *models.ResourceEntry {
	cp := *e
	cp.Rejections = append([]models.Rejection(nil), e.Rejections...)
	return &cp
}

func (l *MemLedger) Insert(entry *models.ResourceEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := l.tick()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	l.entries[entry.ID] = copyEntry(entry)
	return nil
}

func (l *MemLedger) FindByID(id string) (*models.ResourceEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[id]
	if !ok {
		return nil, apperrors.NotFound("entry not found")
	}
	return copyEntry(entry), nil
}

func (l *MemLedger) ListByOwner(category string, ownerID uint) ([]models.ResourceEntry, error) {
	return l.list(func(e *models.ResourceEntry) bool {
		return e.Category == category && e.OwnerID == ownerID
	}), nil
}

func (l *MemLedger) ListForHospital(category string, hospitalID uint) ([]models.ResourceEntry, error) {
	return l.list(func(e *models.ResourceEntry) bool {
		if e.Category != category {
			return false
		}
		rejectedByMe := e.RejectedBy(hospitalID)
		if e.Status == models.StatusPending && !rejectedByMe {
			return true
		}
		if (e.Status == models.StatusApproved || e.Status == models.StatusRejected) &&
			e.AssignedHospitalID != nil && *e.AssignedHospitalID == hospitalID {
			return true
		}
		return rejectedByMe
	}), nil
}

func (l *MemLedger) ListByFulfilledPatient(patientID uint) ([]models.ResourceEntry, error) {
	return l.list(func(e *models.ResourceEntry) bool {
		return e.Category == models.CategoryDonation &&
			e.FulfilledPatientID != nil && *e.FulfilledPatientID == patientID
	}), nil
}

func (l *MemLedger) ListAll(category string) ([]models.ResourceEntry, error) {
	return l.list(func(e *models.ResourceEntry) bool {
		return e.Category == category
	}), nil
}

func (l *MemLedger) list(match func(*models.ResourceEntry) bool) []models.ResourceEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.ResourceEntry
	for _, e := range l.entries {
		if match(e) {
			out = append(out, *copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (l *MemLedger) Update(entry *models.ResourceEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.entries[entry.ID]
	if !ok {
		return apperrors.NotFound("entry not found")
	}
	entry.UpdatedAt = l.tick()
	cp := copyEntry(entry)
	cp.Rejections = stored.Rejections
	l.entries[entry.ID] = cp
	return nil
}

func (l *MemLedger) UpdateIfVersion(entry *models.ResourceEntry, expectedVersion int) (bool, error) {
	if l.BeforeUpdateIfVersion != nil {
		l.BeforeUpdateIfVersion()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.entries[entry.ID]
	if !ok {
		return false, nil
	}
	if stored.Version != expectedVersion {
		return false, nil
	}
	entry.Version = expectedVersion + 1
	entry.UpdatedAt = l.tick()
	cp := copyEntry(entry)
	cp.Rejections = stored.Rejections
	l.entries[entry.ID] = cp
	return true, nil
}

func (l *MemLedger) DeleteByID(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, id)
	return nil
}

func (l *MemLedger) AppendRejection(rejection *models.Rejection) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[rejection.EntryID]
	if !ok {
		return false, apperrors.NotFound("entry not found")
	}
	if entry.RejectedBy(rejection.HospitalID) {
		return false, nil
	}
	rejection.CreatedAt = l.tick()
	entry.Rejections = append(entry.Rejections, *rejection)
	return true, nil
}

func (l *MemLedger) CountByStatus(category string) (map[string]int64, error) {
	return l.countGrouped(category, func(e *models.ResourceEntry) string { return e.Status })
}

func (l *MemLedger) CountByKind(category string) (map[string]int64, error) {
	return l.countGrouped(category, func(e *models.ResourceEntry) string { return e.Kind })
}

func (l *MemLedger) countGrouped(category string, key func(*models.ResourceEntry) string) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := make(map[string]int64)
	for _, e := range l.entries {
		if e.Category == category {
			counts[key(e)]++
		}
	}
	return counts, nil
}

func (l *MemLedger) CountByOwner(category string, ownerID uint) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int64
	for _, e := range l.entries {
		if e.Category == category && e.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (l *MemLedger) CountAssignedToHospital(category string, hospitalID uint) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int64
	for _, e := range l.entries {
		if e.Category == category && e.AssignedHospitalID != nil && *e.AssignedHospitalID == hospitalID {
			count++
		}
	}
	return count, nil
}

func (l *MemLedger) ExpirePendingOlderThan(cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var swept int64
	for _, e := range l.entries {
		if e.Status == models.StatusPending && e.CreatedAt.Before(cutoff) {
			e.Status = models.StatusExpired
			swept++
		}
	}
	return swept, nil
}

// SetVersion overwrites the stored version of an entry, simulating a
// concurrent writer having won the race
func (l *MemLedger) SetVersion(id string, version int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[id]; ok {
		entry.Version = version
	}
}

// MemDirectory is an in-memory UserDirectory/UserStore implementation
type MemDirectory struct {
	mu    sync.Mutex
	users map[uint]*models.User
	next  uint
}

func NewMemDirectory(users ...*models.User) *MemDirectory {
	d := &MemDirectory{users: make(map[uint]*models.User)}
	for _, u := range users {
		d.add(u)
	}
	return d
}

func (d *MemDirectory) add(user *models.User) {
	if user.ID == 0 {
		d.next++
		user.ID = d.next
	} else if user.ID > d.next {
		d.next = user.ID
	}
	cp := *user
	d.users[user.ID] = &cp
}

func (d *MemDirectory) FindUserByID(id uint) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	cp := *user
	return &cp, nil
}

func (d *MemDirectory) FindUserByEmail(email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, user := range d.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (d *MemDirectory) CreateUser(user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.add(user)
	return nil
}

func (d *MemDirectory) DeleteUser(id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.users, id)
	return nil
}

func (d *MemDirectory) ListUsers(role string) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []models.User
	for _, user := range d.users {
		if role == "" || user.Role == role {
			out = append(out, *user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *MemDirectory) CountUsersByRole() (map[string]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[string]int64)
	for _, user := range d.users {
		counts[user.Role]++
	}
	return counts, nil
}

// MemTokens adds refresh-token storage on top of MemDirectory for auth
// service tests
type MemTokens struct {
	*MemDirectory

	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func NewMemTokens(dir *MemDirectory) *MemTokens {
	return &MemTokens{MemDirectory: dir, tokens: make(map[string]*models.RefreshToken)}
}

func (t *MemTokens) CreateRefreshToken(token *models.RefreshToken) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := *token
	t.tokens[token.TokenHash] = &cp
	return nil
}

func (t *MemTokens) FindRefreshTokenByHash(hash string) (*models.RefreshToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	token, ok := t.tokens[hash]
	if !ok || token.Revoked {
		return nil, apperrors.Authentication("refresh token not found or revoked")
	}
	cp := *token
	if user, err := t.MemDirectory.FindUserByID(token.UserID); err == nil {
		cp.User = *user
	}
	return &cp, nil
}

func (t *MemTokens) RevokeRefreshTokenByHash(hash string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if token, ok := t.tokens[hash]; ok {
		token.Revoked = true
	}
	return nil
}

// MemAudit records audit rows in memory
type MemAudit struct {
	mu      sync.Mutex
	Records []AuditRecord
}

type AuditRecord struct {
	UserID  *uint
	Action  string
	Details string
}

func NewMemAudit() *MemAudit {
	return &MemAudit{}
}

func (a *MemAudit) CreateAuditLog(userID *uint, action string, details string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Records = append(a.Records, AuditRecord{UserID: userID, Action: action, Details: details})
	return nil
}
