package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bloodbank/internal/domain"
)

// Memory is an in-process store. Each ledger entry has its own mutex, and a
// transaction that writes an entry keeps it locked until it ends, so nobody
// reads or changes the entry in between. Pending requests are unique per
// owner, and WithTx undoes the writes of a failed transaction.
type Memory struct {
	mu             sync.RWMutex
	hospitals      map[string]domain.Hospital
	profiles       map[string]domain.Profile
	entries        map[string]*memEntry
	entryKeys      map[domain.LedgerKey]string
	donations      map[string]domain.Donation
	pendingByOwner map[string]string
	claims         []domain.Claim
}

type memEntry struct {
	mu       sync.Mutex
	entry    domain.LedgerEntry
	credited map[string]int
}

func (e *memEntry) snapshot() domain.LedgerEntry {
	out := e.entry
	out.Donations = append([]string{}, e.entry.Donations...)
	return out
}

func NewMemory() *Memory {
	return &Memory{
		hospitals:      make(map[string]domain.Hospital),
		profiles:       make(map[string]domain.Profile),
		entries:        make(map[string]*memEntry),
		entryKeys:      make(map[domain.LedgerKey]string),
		donations:      make(map[string]domain.Donation),
		pendingByOwner: make(map[string]string),
	}
}

type memTxKey struct{}

type memTx struct {
	mu   sync.Mutex
	undo []func()
	held map[*memEntry]bool
}

// WithTx runs fn. fn returning nil commits, even if ctx is cancelled
// afterwards. Otherwise the recorded undo steps run newest first, while the
// entries the transaction wrote are still locked.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{held: make(map[*memEntry]bool)}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	}
	tx.undo = nil
	for e := range tx.held {
		e.mu.Unlock()
	}
	tx.held = nil
	return err
}

// lockEntry locks e for a write. Inside a transaction the lock is kept until
// the transaction ends and the returned release does nothing.
func lockEntry(ctx context.Context, e *memEntry) (release func()) {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok {
		e.mu.Lock()
		return e.mu.Unlock
	}
	tx.mu.Lock()
	held := tx.held[e]
	tx.mu.Unlock()
	if !held {
		e.mu.Lock()
		tx.mu.Lock()
		tx.held[e] = true
		tx.mu.Unlock()
	}
	return func() {}
}

// readEntry locks e for a read unless the caller's transaction holds it.
func readEntry(ctx context.Context, e *memEntry) (release func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.mu.Lock()
		held := tx.held[e]
		tx.mu.Unlock()
		if held {
			return func() {}
		}
	}
	e.mu.Lock()
	return e.mu.Unlock
}

func onRollback(ctx context.Context, undo func()) {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok {
		return
	}
	tx.mu.Lock()
	tx.undo = append(tx.undo, undo)
	tx.mu.Unlock()
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) hospitalConflict(h domain.Hospital) bool {
	for _, other := range m.hospitals {
		if other.ID == h.ID {
			continue
		}
		phones := map[string]bool{other.PhoneNumber1: true}
		if other.PhoneNumber2 != "" {
			phones[other.PhoneNumber2] = true
		}
		if phones[h.PhoneNumber1] || (h.PhoneNumber2 != "" && phones[h.PhoneNumber2]) || other.Email == h.Email {
			return true
		}
	}
	return false
}

func (m *Memory) CreateHospital(ctx context.Context, h domain.Hospital) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.hospitals[h.ID]; exists || m.hospitalConflict(h) {
		return domain.ErrDuplicateHospital
	}
	m.hospitals[h.ID] = h
	onRollback(ctx, func() {
		m.mu.Lock()
		delete(m.hospitals, h.ID)
		m.mu.Unlock()
	})
	return nil
}

func (m *Memory) UpdateHospital(ctx context.Context, h domain.Hospital) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.hospitals[h.ID]
	if !ok {
		return domain.ErrHospitalNotFound
	}
	if m.hospitalConflict(h) {
		return domain.ErrDuplicateHospital
	}
	h.CreatedAt = prev.CreatedAt
	m.hospitals[h.ID] = h
	onRollback(ctx, func() {
		m.mu.Lock()
		m.hospitals[prev.ID] = prev
		m.mu.Unlock()
	})
	return nil
}

func (m *Memory) GetHospital(_ context.Context, id string) (domain.Hospital, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hospitals[id]
	if !ok {
		return domain.Hospital{}, domain.ErrHospitalNotFound
	}
	return h, nil
}

func (m *Memory) ListHospitals(context.Context) ([]domain.Hospital, error) {
	m.mu.RLock()
	out := make([]domain.Hospital, 0, len(m.hospitals))
	for _, h := range m.hospitals {
		out = append(out, h)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveProfile(ctx context.Context, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, existed := m.profiles[p.ID]
	m.profiles[p.ID] = p
	onRollback(ctx, func() {
		m.mu.Lock()
		if existed {
			m.profiles[p.ID] = prev
		} else {
			delete(m.profiles, p.ID)
		}
		m.mu.Unlock()
	})
	return nil
}

func (m *Memory) GetProfile(_ context.Context, id string) (domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (m *Memory) MarkRecipient(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.IsRecipient = true
	m.profiles[id] = p
	return nil
}

func (m *Memory) GetOrCreateEntry(ctx context.Context, key domain.LedgerKey, now time.Time) (domain.LedgerEntry, error) {
	m.mu.Lock()
	if _, ok := m.hospitals[key.HospitalID]; !ok {
		m.mu.Unlock()
		return domain.LedgerEntry{}, domain.ErrHospitalNotFound
	}
	id, ok := m.entryKeys[key]
	if !ok {
		id = uuid.NewString()
		m.entries[id] = &memEntry{
			entry: domain.LedgerEntry{
				ID:         id,
				HospitalID: key.HospitalID,
				BloodGroup: key.BloodGroup,
				Donations:  []string{},
				CreatedAt:  now,
				UpdatedAt:  now,
			},
			credited: make(map[string]int),
		}
		// Entries are never deleted, not even when the creating transaction
		// fails: a concurrent transaction may already hold this entry.
		m.entryKeys[key] = id
	}
	e := m.entries[id]
	m.mu.Unlock()

	defer readEntry(ctx, e)()
	return e.snapshot(), nil
}

func (m *Memory) entryByID(id string) (*memEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *Memory) GetEntry(ctx context.Context, key domain.LedgerKey) (domain.LedgerEntry, error) {
	m.mu.RLock()
	id, ok := m.entryKeys[key]
	var e *memEntry
	if ok {
		e = m.entries[id]
	}
	m.mu.RUnlock()
	if e == nil {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}
	defer readEntry(ctx, e)()
	return e.snapshot(), nil
}

func (m *Memory) GetEntryByID(ctx context.Context, id string) (domain.LedgerEntry, error) {
	e, ok := m.entryByID(id)
	if !ok {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}
	defer readEntry(ctx, e)()
	return e.snapshot(), nil
}

func (m *Memory) ListEntries(ctx context.Context, hospitalID string) ([]domain.LedgerEntry, error) {
	m.mu.RLock()
	matched := make([]*memEntry, 0, len(m.entries))
	for key, id := range m.entryKeys {
		if hospitalID == "" || key.HospitalID == hospitalID {
			matched = append(matched, m.entries[id])
		}
	}
	m.mu.RUnlock()

	out := make([]domain.LedgerEntry, 0, len(matched))
	for _, e := range matched {
		release := readEntry(ctx, e)
		out = append(out, e.snapshot())
		release()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HospitalID != out[j].HospitalID {
			return out[i].HospitalID < out[j].HospitalID
		}
		return out[i].BloodGroup < out[j].BloodGroup
	})
	return out, nil
}

func (m *Memory) CreditEntry(ctx context.Context, entryID, donationID string, amount int, now time.Time) (domain.LedgerEntry, error) {
	e, ok := m.entryByID(entryID)
	if !ok {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}

	defer lockEntry(ctx, e)()
	if _, dup := e.credited[donationID]; dup {
		return domain.LedgerEntry{}, domain.ErrAlreadyCredited
	}
	e.credited[donationID] = amount
	e.entry.Donations = append(e.entry.Donations, donationID)
	e.entry.BagQuantity += amount
	e.entry.UpdatedAt = now

	// Undo runs with e still locked by the transaction.
	onRollback(ctx, func() {
		delete(e.credited, donationID)
		for i, id := range e.entry.Donations {
			if id == donationID {
				e.entry.Donations = append(e.entry.Donations[:i:i], e.entry.Donations[i+1:]...)
				break
			}
		}
		e.entry.BagQuantity -= amount
	})
	return e.snapshot(), nil
}

func (m *Memory) ReserveEntry(ctx context.Context, entryID string, amount int, now time.Time) (domain.LedgerEntry, error) {
	e, ok := m.entryByID(entryID)
	if !ok {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}

	defer lockEntry(ctx, e)()
	if e.entry.BagQuantity < amount {
		return domain.LedgerEntry{}, domain.ErrInsufficientStock
	}
	e.entry.BagQuantity -= amount
	e.entry.UpdatedAt = now

	onRollback(ctx, func() {
		e.entry.BagQuantity += amount
	})
	return e.snapshot(), nil
}

func (m *Memory) InsertDonation(ctx context.Context, d domain.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hospitals[d.HospitalID]; !ok {
		return domain.ErrHospitalNotFound
	}
	if d.Status == domain.DonationPending {
		if _, exists := m.pendingByOwner[d.OwnerID]; exists {
			return domain.ErrPendingRequestExists
		}
		m.pendingByOwner[d.OwnerID] = d.ID
	}
	m.donations[d.ID] = d
	onRollback(ctx, func() {
		m.mu.Lock()
		delete(m.donations, d.ID)
		if m.pendingByOwner[d.OwnerID] == d.ID {
			delete(m.pendingByOwner, d.OwnerID)
		}
		m.mu.Unlock()
	})
	return nil
}

func (m *Memory) GetDonation(_ context.Context, id string) (domain.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.donations[id]
	if !ok {
		return domain.Donation{}, domain.ErrDonationNotFound
	}
	return d, nil
}

// GetDonationForUpdate is a plain read and takes no row lock. Concurrent
// transitions of one donation are serialized by the service.Coordinator's
// per-donation key lock; without it UpdateDonationStatus still refuses the
// loser, since it only writes when the status is unchanged.
func (m *Memory) GetDonationForUpdate(ctx context.Context, id string) (domain.Donation, error) {
	return m.GetDonation(ctx, id)
}

func (m *Memory) UpdateDonationStatus(ctx context.Context, d domain.Donation, from domain.DonationStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.donations[d.ID]
	if !ok {
		return false, domain.ErrDonationNotFound
	}
	if prev.Status != from {
		return false, nil
	}
	next := prev
	next.Status = d.Status
	next.ApprovalNotes = d.ApprovalNotes
	next.UpdatedAt = d.UpdatedAt
	m.donations[d.ID] = next
	m.syncPending(prev, next)

	onRollback(ctx, func() {
		m.mu.Lock()
		m.donations[prev.ID] = prev
		m.syncPending(next, prev)
		m.mu.Unlock()
	})
	return true, nil
}

// syncPending keeps the pending index in line with a status change; m.mu held.
func (m *Memory) syncPending(from, to domain.Donation) {
	if from.Status == domain.DonationPending && to.Status != domain.DonationPending {
		if m.pendingByOwner[from.OwnerID] == from.ID {
			delete(m.pendingByOwner, from.OwnerID)
		}
	}
	if to.Status == domain.DonationPending && from.Status != domain.DonationPending {
		m.pendingByOwner[to.OwnerID] = to.ID
	}
}

func (m *Memory) ListDonations(_ context.Context, filter domain.DonationFilter) ([]domain.Donation, error) {
	m.mu.RLock()
	out := []domain.Donation{}
	for _, d := range m.donations {
		if filter.Match(d) {
			out = append(out, d)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) InsertClaim(ctx context.Context, c domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[c.OwnerID]; !ok {
		return domain.ErrProfileNotFound
	}
	m.claims = append(m.claims, c)
	onRollback(ctx, func() {
		m.mu.Lock()
		for i := range m.claims {
			if m.claims[i].ID == c.ID {
				m.claims = append(m.claims[:i], m.claims[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	})
	return nil
}

func (m *Memory) ListClaims(_ context.Context, ownerID string) ([]domain.Claim, error) {
	m.mu.RLock()
	out := []domain.Claim{}
	for _, c := range m.claims {
		if ownerID == "" || c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
