// Package store provides an in-memory asset.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements asset.TxStore. Values are copied on the way in and out
// so callers never share state with the store.
type Memory struct {
	mu sync.Mutex
	s  *state
}

type state struct {
	assets      map[asset.AssetID]*asset.Asset
	entries     map[asset.AssetID][]asset.LedgerEntry // sorted by period
	transfers   map[string]*asset.Transfer
	maintenance map[asset.AssetID][]asset.MaintenanceRecord
	runs        map[string]*asset.Run
}

func NewMemory() *Memory {
	return &Memory{s: newState()}
}

func newState() *state {
	return &state{
		assets:      make(map[asset.AssetID]*asset.Asset),
		entries:     make(map[asset.AssetID][]asset.LedgerEntry),
		transfers:   make(map[string]*asset.Transfer),
		maintenance: make(map[asset.AssetID][]asset.MaintenanceRecord),
		runs:        make(map[string]*asset.Run),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The store lock is held for the duration, so transactions serialize.
func (m *Memory) WithTx(ctx context.Context, fn func(asset.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.s.clone()
	if err := fn(&view{s: m.s}); err != nil {
		m.s = snapshot
		return err
	}
	return nil
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.assets {
		c.assets[k] = v.Clone()
	}
	for k, v := range s.entries {
		c.entries[k] = append([]asset.LedgerEntry(nil), v...)
	}
	for k, v := range s.transfers {
		t := *v
		c.transfers[k] = &t
	}
	for k, v := range s.maintenance {
		c.maintenance[k] = append([]asset.MaintenanceRecord(nil), v...)
	}
	for k, v := range s.runs {
		r := *v
		c.runs[k] = &r
	}
	return c
}

// view is the Store handed to WithTx callbacks. The parent lock is already
// held, so it talks to state directly.
type view struct {
	s *state
}

// =============================================================================
// LOCKING WRAPPERS
// =============================================================================

func (m *Memory) CreateAsset(_ context.Context, a *asset.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.createAsset(a)
}

func (m *Memory) GetAsset(_ context.Context, id asset.AssetID) (*asset.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.getAsset(id)
}

func (m *Memory) SaveAsset(_ context.Context, a *asset.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.saveAsset(a)
}

func (m *Memory) ListAssets(_ context.Context, f asset.AssetFilter) ([]*asset.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.listAssets(f), nil
}

func (m *Memory) ListFacilities(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.listFacilities(), nil
}

func (m *Memory) AppendEntry(_ context.Context, e asset.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.appendEntry(e)
}

func (m *Memory) HasEntry(_ context.Context, id asset.AssetID, p asset.Period) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.hasEntry(id, p), nil
}

func (m *Memory) LatestEntry(_ context.Context, id asset.AssetID) (*asset.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.latestEntry(id), nil
}

func (m *Memory) ListEntries(_ context.Context, id asset.AssetID) ([]asset.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.listEntries(id), nil
}

func (m *Memory) ListFacilityEntries(_ context.Context, facilityID string, year, month int) ([]asset.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.listFacilityEntries(facilityID, year, month), nil
}

func (m *Memory) CreateTransfer(_ context.Context, t *asset.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.createTransfer(t)
}

func (m *Memory) GetTransfer(_ context.Context, id string) (*asset.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.getTransfer(id)
}

func (m *Memory) SaveTransfer(_ context.Context, t *asset.Transfer, expected asset.TransferStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.saveTransfer(t, expected)
}

func (m *Memory) ListTransfers(_ context.Context, id asset.AssetID) ([]*asset.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.listTransfers(id), nil
}

func (m *Memory) PendingTransfer(_ context.Context, id asset.AssetID) (*asset.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.pendingTransfer(id), nil
}

func (m *Memory) AppendMaintenance(_ context.Context, r asset.MaintenanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.appendMaintenance(r)
}

func (m *Memory) ListMaintenance(_ context.Context, id asset.AssetID) ([]asset.MaintenanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.listMaintenance(id), nil
}

func (m *Memory) SaveRun(_ context.Context, r *asset.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.saveRun(r)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, facilityID string) ([]*asset.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.listRuns(facilityID), nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

func (v *view) CreateAsset(_ context.Context, a *asset.Asset) error { return v.s.createAsset(a) }

func (v *view) GetAsset(_ context.Context, id asset.AssetID) (*asset.Asset, error) {
	return v.s.getAsset(id)
}

func (v *view) SaveAsset(_ context.Context, a *asset.Asset) error { return v.s.saveAsset(a) }

func (v *view) ListAssets(_ context.Context, f asset.AssetFilter) ([]*asset.Asset, error) {
	return v.s.listAssets(f), nil
}

func (v *view) ListFacilities(_ context.Context) ([]string, error) { return v.s.listFacilities(), nil }

func (v *view) AppendEntry(_ context.Context, e asset.LedgerEntry) error {
	return v.s.appendEntry(e)
}

func (v *view) HasEntry(_ context.Context, id asset.AssetID, p asset.Period) (bool, error) {
	return v.s.hasEntry(id, p), nil
}

func (v *view) LatestEntry(_ context.Context, id asset.AssetID) (*asset.LedgerEntry, error) {
	return v.s.latestEntry(id), nil
}

func (v *view) ListEntries(_ context.Context, id asset.AssetID) ([]asset.LedgerEntry, error) {
	return v.s.listEntries(id), nil
}

func (v *view) ListFacilityEntries(_ context.Context, facilityID string, year, month int) ([]asset.LedgerEntry, error) {
	return v.s.listFacilityEntries(facilityID, year, month), nil
}

func (v *view) CreateTransfer(_ context.Context, t *asset.Transfer) error {
	return v.s.createTransfer(t)
}

func (v *view) GetTransfer(_ context.Context, id string) (*asset.Transfer, error) {
	return v.s.getTransfer(id)
}

func (v *view) SaveTransfer(_ context.Context, t *asset.Transfer, expected asset.TransferStatus) error {
	return v.s.saveTransfer(t, expected)
}

func (v *view) ListTransfers(_ context.Context, id asset.AssetID) ([]*asset.Transfer, error) {
	return v.s.listTransfers(id), nil
}

func (v *view) PendingTransfer(_ context.Context, id asset.AssetID) (*asset.Transfer, error) {
	return v.s.pendingTransfer(id), nil
}

func (v *view) AppendMaintenance(_ context.Context, r asset.MaintenanceRecord) error {
	return v.s.appendMaintenance(r)
}

func (v *view) ListMaintenance(_ context.Context, id asset.AssetID) ([]asset.MaintenanceRecord, error) {
	return v.s.listMaintenance(id), nil
}

func (v *view) SaveRun(_ context.Context, r *asset.Run) error {
	v.s.saveRun(r)
	return nil
}

func (v *view) ListRuns(_ context.Context, facilityID string) ([]*asset.Run, error) {
	return v.s.listRuns(facilityID), nil
}

// =============================================================================
// STATE - Unlocked operations shared by Memory and view
// =============================================================================

func (s *state) createAsset(a *asset.Asset) error {
	if _, ok := s.assets[a.ID]; ok {
		return fmt.Errorf("asset %s already exists: %w", a.ID, asset.ErrInvalidInput)
	}
	if err := s.checkUnique(a); err != nil {
		return err
	}
	a.Version = 1
	s.assets[a.ID] = a.Clone()
	return nil
}

func (s *state) checkUnique(a *asset.Asset) error {
	for _, o := range s.assets {
		if o.ID == a.ID || o.DeletedAt != nil {
			continue
		}
		if o.FacilityID == a.FacilityID && o.AssetCode == a.AssetCode {
			return fmt.Errorf("asset code %s in facility %s: %w", a.AssetCode, a.FacilityID, asset.ErrDuplicateAssetCode)
		}
		if a.SerialNumber != nil && o.SerialNumber != nil && *o.SerialNumber == *a.SerialNumber {
			return fmt.Errorf("serial number %s: %w", *a.SerialNumber, asset.ErrDuplicateSerialNumber)
		}
	}
	return nil
}

func (s *state) getAsset(id asset.AssetID) (*asset.Asset, error) {
	a, ok := s.assets[id]
	if !ok || a.DeletedAt != nil {
		return nil, fmt.Errorf("asset %s: %w", id, asset.ErrAssetNotFound)
	}
	return a.Clone(), nil
}

func (s *state) saveAsset(a *asset.Asset) error {
	cur, ok := s.assets[a.ID]
	if !ok {
		return fmt.Errorf("asset %s: %w", a.ID, asset.ErrAssetNotFound)
	}
	if cur.Version != a.Version {
		return fmt.Errorf("asset %s at version %d, have %d: %w", a.ID, cur.Version, a.Version, asset.ErrConcurrentModification)
	}
	if a.DeletedAt == nil {
		if err := s.checkUnique(a); err != nil {
			return err
		}
	}
	a.Version++
	s.assets[a.ID] = a.Clone()
	return nil
}

func (s *state) listAssets(f asset.AssetFilter) []*asset.Asset {
	var out []*asset.Asset
	for _, a := range s.assets {
		if matches(a, f) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetCode != out[j].AssetCode {
			return out[i].AssetCode < out[j].AssetCode
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func matches(a *asset.Asset, f asset.AssetFilter) bool {
	if a.DeletedAt != nil && !f.IncludeDeleted {
		return false
	}
	if f.FacilityID != "" && a.FacilityID != f.FacilityID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if a.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	if f.DepartmentID != "" && (a.DepartmentID == nil || *a.DepartmentID != f.DepartmentID) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		serial := ""
		if a.SerialNumber != nil {
			serial = *a.SerialNumber
		}
		if !strings.Contains(strings.ToLower(a.Name), q) &&
			!strings.Contains(strings.ToLower(a.AssetCode), q) &&
			!strings.Contains(strings.ToLower(serial), q) {
			return false
		}
	}
	return true
}

func (s *state) listFacilities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.assets {
		if a.DeletedAt == nil && !seen[a.FacilityID] {
			seen[a.FacilityID] = true
			out = append(out, a.FacilityID)
		}
	}
	sort.Strings(out)
	return out
}

func (s *state) appendEntry(e asset.LedgerEntry) error {
	if s.hasEntry(e.AssetID, e.Period) {
		return fmt.Errorf("asset %s period %s: %w", e.AssetID, e.Period, asset.ErrAlreadyPosted)
	}
	entries := s.entries[e.AssetID]

	// Binary search for insertion point, entries stay sorted by period
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Period.After(e.Period)
	})
	entries = append(entries, asset.LedgerEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	s.entries[e.AssetID] = entries
	return nil
}

func (s *state) hasEntry(id asset.AssetID, p asset.Period) bool {
	for _, e := range s.entries[id] {
		if e.Period == p {
			return true
		}
	}
	return false
}

func (s *state) latestEntry(id asset.AssetID) *asset.LedgerEntry {
	entries := s.entries[id]
	if len(entries) == 0 {
		return nil
	}
	e := entries[len(entries)-1]
	return &e
}

func (s *state) listEntries(id asset.AssetID) []asset.LedgerEntry {
	return append([]asset.LedgerEntry(nil), s.entries[id]...)
}

func (s *state) listFacilityEntries(facilityID string, year, month int) []asset.LedgerEntry {
	var out []asset.LedgerEntry
	for _, entries := range s.entries {
		for _, e := range entries {
			if e.FacilityID != facilityID || e.Period.Year != year {
				continue
			}
			if month != 0 && int(e.Period.Month) != month {
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period.Before(out[j].Period)
		}
		return out[i].AssetID < out[j].AssetID
	})
	return out
}

func (s *state) createTransfer(t *asset.Transfer) error {
	if _, ok := s.transfers[t.ID]; ok {
		return fmt.Errorf("transfer %s already exists: %w", t.ID, asset.ErrInvalidInput)
	}
	c := *t
	s.transfers[t.ID] = &c
	return nil
}

func (s *state) getTransfer(id string) (*asset.Transfer, error) {
	t, ok := s.transfers[id]
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", id, asset.ErrTransferNotFound)
	}
	c := *t
	return &c, nil
}

func (s *state) saveTransfer(t *asset.Transfer, expected asset.TransferStatus) error {
	cur, ok := s.transfers[t.ID]
	if !ok {
		return fmt.Errorf("transfer %s: %w", t.ID, asset.ErrTransferNotFound)
	}
	if cur.Status != expected {
		return fmt.Errorf("transfer %s is %s, expected %s: %w", t.ID, cur.Status, expected, asset.ErrConcurrentModification)
	}
	c := *t
	s.transfers[t.ID] = &c
	return nil
}

func (s *state) listTransfers(id asset.AssetID) []*asset.Transfer {
	var out []*asset.Transfer
	for _, t := range s.transfers {
		if t.AssetID == id {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *state) pendingTransfer(id asset.AssetID) *asset.Transfer {
	for _, t := range s.transfers {
		if t.AssetID == id && t.Status == asset.TransferPending {
			c := *t
			return &c
		}
	}
	return nil
}

func (s *state) appendMaintenance(r asset.MaintenanceRecord) error {
	for _, o := range s.maintenance[r.AssetID] {
		if o.ID == r.ID {
			return fmt.Errorf("maintenance record %s already exists: %w", r.ID, asset.ErrInvalidInput)
		}
	}
	s.maintenance[r.AssetID] = append(s.maintenance[r.AssetID], r)
	return nil
}

func (s *state) listMaintenance(id asset.AssetID) []asset.MaintenanceRecord {
	out := append([]asset.MaintenanceRecord(nil), s.maintenance[id]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MaintenanceDate.After(out[j].MaintenanceDate)
	})
	return out
}

func (s *state) saveRun(r *asset.Run) {
	c := *r
	s.runs[r.ID] = &c
}

func (s *state) listRuns(facilityID string) []*asset.Run {
	var out []*asset.Run
	for _, r := range s.runs {
		if r.FacilityID == facilityID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

var _ asset.TxStore = (*Memory)(nil)
