// Package store provides koperasi.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/koperasi-engine/koperasi"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	anggota      map[string]koperasi.Anggota
	anggotaOrder []string
	simpanan     []koperasi.Simpanan
	pinjaman     []koperasi.Pinjaman
	penjualan    []koperasi.Penjualan
	pembayaran   []koperasi.PembayaranHutangPiutang
	akun         map[string]koperasi.Akun
	jurnal       []koperasi.Jurnal
	pengembalian []koperasi.Pengembalian
	audit        []koperasi.AuditEntry
}

func newMemoryState() memoryState {
	return memoryState{
		anggota: make(map[string]koperasi.Anggota),
		akun:    make(map[string]koperasi.Akun),
	}
}

func NewMemory() *Memory {
	return &Memory{state: newMemoryState()}
}

// NewMemoryWithCOA returns a store seeded with the default chart of accounts.
func NewMemoryWithCOA() *Memory {
	m := NewMemory()
	for _, a := range koperasi.DefaultCOA() {
		m.state.akun[a.Kode] = a
	}
	return m
}

// =============================================================================
// LOCKED API (koperasi.Store)
// =============================================================================

func (m *Memory) GetAnggota(_ context.Context, id string) (*koperasi.Anggota, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getAnggota(id)
}

func (m *Memory) ListAnggota(_ context.Context) ([]koperasi.Anggota, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listAnggota(), nil
}

func (m *Memory) SaveAnggota(_ context.Context, a koperasi.Anggota) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.saveAnggota(a)
	return nil
}

func (m *Memory) ListSimpanan(_ context.Context, anggotaID string, jenis koperasi.JenisSimpanan) ([]koperasi.Simpanan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listSimpanan(anggotaID, jenis), nil
}

func (m *Memory) AppendSimpanan(_ context.Context, s koperasi.Simpanan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.simpanan = append(m.state.simpanan, s)
	return nil
}

func (m *Memory) ListPinjaman(_ context.Context, anggotaID string) ([]koperasi.Pinjaman, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listPinjaman(anggotaID), nil
}

func (m *Memory) AppendPinjaman(_ context.Context, p koperasi.Pinjaman) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.pinjaman = append(m.state.pinjaman, p)
	return nil
}

func (m *Memory) ListPenjualan(_ context.Context, anggotaID string) ([]koperasi.Penjualan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listPenjualan(anggotaID), nil
}

func (m *Memory) AppendPenjualan(_ context.Context, p koperasi.Penjualan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.penjualan = append(m.state.penjualan, p)
	return nil
}

func (m *Memory) ListPembayaran(_ context.Context, anggotaID string) ([]koperasi.PembayaranHutangPiutang, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listPembayaran(anggotaID), nil
}

func (m *Memory) AppendPembayaran(_ context.Context, p koperasi.PembayaranHutangPiutang) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.pembayaran = append(m.state.pembayaran, p)
	return nil
}

func (m *Memory) GetAkun(_ context.Context, kode string) (*koperasi.Akun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getAkun(kode)
}

func (m *Memory) ListAkun(_ context.Context) ([]koperasi.Akun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listAkun(), nil
}

func (m *Memory) SaveAkun(_ context.Context, a koperasi.Akun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.akun[a.Kode] = a
	return nil
}

func (m *Memory) AppendJurnal(_ context.Context, j koperasi.Jurnal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendJurnal(j)
}

func (m *Memory) ListJurnal(_ context.Context) ([]koperasi.Jurnal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]koperasi.Jurnal{}, m.state.jurnal...), nil
}

func (m *Memory) DeleteJurnal(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteJurnal(id)
}

func (m *Memory) AppendPengembalian(_ context.Context, p koperasi.Pengembalian) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendPengembalian(p)
}

func (m *Memory) GetPengembalian(_ context.Context, id string) (*koperasi.Pengembalian, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getPengembalian(id)
}

func (m *Memory) ListPengembalian(_ context.Context) ([]koperasi.Pengembalian, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]koperasi.Pengembalian{}, m.state.pengembalian...), nil
}

func (m *Memory) DeletePengembalian(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deletePengembalian(id)
}

func (m *Memory) AppendAudit(_ context.Context, e koperasi.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.audit = append(m.state.audit, e)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, f koperasi.AuditFilter) ([]koperasi.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.queryAudit(f), nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newMemoryState()
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction, simulated with a snapshot and
// restore on error.
func (m *Memory) WithTx(ctx context.Context, fn func(koperasi.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txMemoryView{state: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		anggota:      make(map[string]koperasi.Anggota, len(s.anggota)),
		anggotaOrder: append([]string{}, s.anggotaOrder...),
		simpanan:     append([]koperasi.Simpanan{}, s.simpanan...),
		pinjaman:     append([]koperasi.Pinjaman{}, s.pinjaman...),
		penjualan:    append([]koperasi.Penjualan{}, s.penjualan...),
		pembayaran:   append([]koperasi.PembayaranHutangPiutang{}, s.pembayaran...),
		akun:         make(map[string]koperasi.Akun, len(s.akun)),
		jurnal:       append([]koperasi.Jurnal{}, s.jurnal...),
		pengembalian: append([]koperasi.Pengembalian{}, s.pengembalian...),
		audit:        append([]koperasi.AuditEntry{}, s.audit...),
	}
	for k, v := range s.anggota {
		c.anggota[k] = v.Clone()
	}
	for k, v := range s.akun {
		c.akun[k] = v
	}
	return c
}

// txMemoryView operates on the parent state without locking; WithTx holds
// the write lock for its whole duration.
type txMemoryView struct {
	state *memoryState
}

func (v *txMemoryView) GetAnggota(_ context.Context, id string) (*koperasi.Anggota, error) {
	return v.state.getAnggota(id)
}

func (v *txMemoryView) ListAnggota(_ context.Context) ([]koperasi.Anggota, error) {
	return v.state.listAnggota(), nil
}

func (v *txMemoryView) SaveAnggota(_ context.Context, a koperasi.Anggota) error {
	v.state.saveAnggota(a)
	return nil
}

func (v *txMemoryView) ListSimpanan(_ context.Context, anggotaID string, jenis koperasi.JenisSimpanan) ([]koperasi.Simpanan, error) {
	return v.state.listSimpanan(anggotaID, jenis), nil
}

func (v *txMemoryView) AppendSimpanan(_ context.Context, s koperasi.Simpanan) error {
	v.state.simpanan = append(v.state.simpanan, s)
	return nil
}

func (v *txMemoryView) ListPinjaman(_ context.Context, anggotaID string) ([]koperasi.Pinjaman, error) {
	return v.state.listPinjaman(anggotaID), nil
}

func (v *txMemoryView) AppendPinjaman(_ context.Context, p koperasi.Pinjaman) error {
	v.state.pinjaman = append(v.state.pinjaman, p)
	return nil
}

func (v *txMemoryView) ListPenjualan(_ context.Context, anggotaID string) ([]koperasi.Penjualan, error) {
	return v.state.listPenjualan(anggotaID), nil
}

func (v *txMemoryView) AppendPenjualan(_ context.Context, p koperasi.Penjualan) error {
	v.state.penjualan = append(v.state.penjualan, p)
	return nil
}

func (v *txMemoryView) ListPembayaran(_ context.Context, anggotaID string) ([]koperasi.PembayaranHutangPiutang, error) {
	return v.state.listPembayaran(anggotaID), nil
}

func (v *txMemoryView) AppendPembayaran(_ context.Context, p koperasi.PembayaranHutangPiutang) error {
	v.state.pembayaran = append(v.state.pembayaran, p)
	return nil
}

func (v *txMemoryView) GetAkun(_ context.Context, kode string) (*koperasi.Akun, error) {
	return v.state.getAkun(kode)
}

func (v *txMemoryView) ListAkun(_ context.Context) ([]koperasi.Akun, error) {
	return v.state.listAkun(), nil
}

func (v *txMemoryView) SaveAkun(_ context.Context, a koperasi.Akun) error {
	v.state.akun[a.Kode] = a
	return nil
}

func (v *txMemoryView) AppendJurnal(_ context.Context, j koperasi.Jurnal) error {
	return v.state.appendJurnal(j)
}

func (v *txMemoryView) ListJurnal(_ context.Context) ([]koperasi.Jurnal, error) {
	return append([]koperasi.Jurnal{}, v.state.jurnal...), nil
}

func (v *txMemoryView) DeleteJurnal(_ context.Context, id string) error {
	return v.state.deleteJurnal(id)
}

func (v *txMemoryView) AppendPengembalian(_ context.Context, p koperasi.Pengembalian) error {
	return v.state.appendPengembalian(p)
}

func (v *txMemoryView) GetPengembalian(_ context.Context, id string) (*koperasi.Pengembalian, error) {
	return v.state.getPengembalian(id)
}

func (v *txMemoryView) ListPengembalian(_ context.Context) ([]koperasi.Pengembalian, error) {
	return append([]koperasi.Pengembalian{}, v.state.pengembalian...), nil
}

func (v *txMemoryView) DeletePengembalian(_ context.Context, id string) error {
	return v.state.deletePengembalian(id)
}

func (v *txMemoryView) AppendAudit(_ context.Context, e koperasi.AuditEntry) error {
	v.state.audit = append(v.state.audit, e)
	return nil
}

func (v *txMemoryView) QueryAudit(_ context.Context, f koperasi.AuditFilter) ([]koperasi.AuditEntry, error) {
	return v.state.queryAudit(f), nil
}

// =============================================================================
// UNLOCKED STATE OPERATIONS
// =============================================================================

func (s *memoryState) getAnggota(id string) (*koperasi.Anggota, error) {
	a, ok := s.anggota[id]
	if !ok {
		return nil, koperasi.ErrNotFound
	}
	c := a.Clone()
	return &c, nil
}

func (s *memoryState) listAnggota() []koperasi.Anggota {
	out := make([]koperasi.Anggota, 0, len(s.anggotaOrder))
	for _, id := range s.anggotaOrder {
		out = append(out, s.anggota[id].Clone())
	}
	return out
}

func (s *memoryState) saveAnggota(a koperasi.Anggota) {
	if _, ok := s.anggota[a.ID]; !ok {
		s.anggotaOrder = append(s.anggotaOrder, a.ID)
	}
	s.anggota[a.ID] = a.Clone()
}

func (s *memoryState) listSimpanan(anggotaID string, jenis koperasi.JenisSimpanan) []koperasi.Simpanan {
	var out []koperasi.Simpanan
	for _, e := range s.simpanan {
		if e.AnggotaID == anggotaID && e.Jenis == jenis {
			out = append(out, e)
		}
	}
	return out
}

func (s *memoryState) listPinjaman(anggotaID string) []koperasi.Pinjaman {
	var out []koperasi.Pinjaman
	for _, p := range s.pinjaman {
		if p.AnggotaID == anggotaID {
			out = append(out, p)
		}
	}
	return out
}

func (s *memoryState) listPenjualan(anggotaID string) []koperasi.Penjualan {
	var out []koperasi.Penjualan
	for _, p := range s.penjualan {
		if p.AnggotaID == anggotaID {
			out = append(out, p)
		}
	}
	return out
}

func (s *memoryState) listPembayaran(anggotaID string) []koperasi.PembayaranHutangPiutang {
	var out []koperasi.PembayaranHutangPiutang
	for _, p := range s.pembayaran {
		if p.AnggotaID == anggotaID {
			out = append(out, p)
		}
	}
	return out
}

func (s *memoryState) getAkun(kode string) (*koperasi.Akun, error) {
	a, ok := s.akun[kode]
	if !ok {
		return nil, koperasi.ErrNotFound
	}
	return &a, nil
}

func (s *memoryState) listAkun() []koperasi.Akun {
	out := make([]koperasi.Akun, 0, len(s.akun))
	for _, a := range s.akun {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kode < out[j].Kode })
	return out
}

func (s *memoryState) appendJurnal(j koperasi.Jurnal) error {
	for _, existing := range s.jurnal {
		if existing.ID == j.ID {
			return koperasi.ErrDuplicateID
		}
	}
	j.Entries = append([]koperasi.JurnalLine{}, j.Entries...)
	s.jurnal = append(s.jurnal, j)
	return nil
}

func (s *memoryState) deleteJurnal(id string) error {
	for i, j := range s.jurnal {
		if j.ID == id {
			s.jurnal = append(s.jurnal[:i:i], s.jurnal[i+1:]...)
			return nil
		}
	}
	return koperasi.ErrNotFound
}

func (s *memoryState) appendPengembalian(p koperasi.Pengembalian) error {
	for _, existing := range s.pengembalian {
		if existing.ID == p.ID {
			return koperasi.ErrDuplicateID
		}
	}
	s.pengembalian = append(s.pengembalian, p)
	return nil
}

func (s *memoryState) getPengembalian(id string) (*koperasi.Pengembalian, error) {
	for _, p := range s.pengembalian {
		if p.ID == id {
			c := p
			return &c, nil
		}
	}
	return nil, koperasi.ErrNotFound
}

func (s *memoryState) deletePengembalian(id string) error {
	for i, p := range s.pengembalian {
		if p.ID == id {
			s.pengembalian = append(s.pengembalian[:i:i], s.pengembalian[i+1:]...)
			return nil
		}
	}
	return koperasi.ErrNotFound
}

func (s *memoryState) queryAudit(f koperasi.AuditFilter) []koperasi.AuditEntry {
	var out []koperasi.AuditEntry
	for _, e := range s.audit {
		if f.AnggotaID != nil && e.AnggotaID != *f.AnggotaID {
			continue
		}
		if len(f.Actions) > 0 && !containsAction(f.Actions, e.Action) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func containsAction(actions []koperasi.AuditAction, a koperasi.AuditAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
