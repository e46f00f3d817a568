/*
store.go - Repository interfaces for every koperasi collection

PURPOSE:
  Isolates the workflows from the backing store. The original data lives
  in keyed collections (one array per key); each collection gets its own
  small repository interface here, and Store bundles them. Workflows are
  storage-agnostic and tested against the in-memory implementation.

KEY INTERFACES:
  AnggotaRepository:      read/write member records
  SimpananRepository:     savings entries (pokok, wajib)
  PinjamanRepository:     loans
  PenjualanRepository:    POS sales (tunai, kredit)
  PembayaranRepository:   debt/receivable payments
  AkunRepository:         chart of accounts balances
  JurnalRepository:       journal entries
  PengembalianRepository: settlement records
  AuditLog:               append-only audit trail
  TxStore:                all-or-nothing execution of a group of writes

DELETES:
  Only the journal and settlement repositories expose Delete, and only
  for compensating a half-applied posting on stores without WithTx.

IMPLEMENTATIONS:
  - koperasi/store/memory.go: In-memory, used by tests and demos
  - store/sqlite/sqlite.go:   SQLite, used by the server

SEE ALSO:
  - ledger.go: Read-only sums built on these interfaces
*/
package koperasi

import "context"

type AnggotaRepository interface {
	GetAnggota(ctx context.Context, id string) (*Anggota, error) // ErrNotFound if missing
	ListAnggota(ctx context.Context) ([]Anggota, error)
	SaveAnggota(ctx context.Context, a Anggota) error // insert or replace by ID
}

type SimpananRepository interface {
	ListSimpanan(ctx context.Context, anggotaID string, jenis JenisSimpanan) ([]Simpanan, error)
	AppendSimpanan(ctx context.Context, s Simpanan) error
}

type PinjamanRepository interface {
	ListPinjaman(ctx context.Context, anggotaID string) ([]Pinjaman, error)
	AppendPinjaman(ctx context.Context, p Pinjaman) error
}

type PenjualanRepository interface {
	ListPenjualan(ctx context.Context, anggotaID string) ([]Penjualan, error)
	AppendPenjualan(ctx context.Context, p Penjualan) error
}

type PembayaranRepository interface {
	ListPembayaran(ctx context.Context, anggotaID string) ([]PembayaranHutangPiutang, error)
	AppendPembayaran(ctx context.Context, p PembayaranHutangPiutang) error
}

type AkunRepository interface {
	GetAkun(ctx context.Context, kode string) (*Akun, error) // ErrNotFound if missing
	ListAkun(ctx context.Context) ([]Akun, error)
	SaveAkun(ctx context.Context, a Akun) error
}

type JurnalRepository interface {
	AppendJurnal(ctx context.Context, j Jurnal) error
	ListJurnal(ctx context.Context) ([]Jurnal, error)
	DeleteJurnal(ctx context.Context, id string) error
}

type PengembalianRepository interface {
	AppendPengembalian(ctx context.Context, p Pengembalian) error
	GetPengembalian(ctx context.Context, id string) (*Pengembalian, error) // ErrNotFound if missing
	ListPengembalian(ctx context.Context) ([]Pengembalian, error)
	DeletePengembalian(ctx context.Context, id string) error
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	QueryAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// Store is the full set of collections.
type Store interface {
	AnggotaRepository
	SimpananRepository
	PinjamanRepository
	PenjualanRepository
	PembayaranRepository
	AkunRepository
	JurnalRepository
	PengembalianRepository
	AuditLog
}

// TxStore runs fn against a transactional view of the store.
// If fn returns an error nothing fn wrote is retained.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Resettable stores can be wiped (demo scenarios, tests).
type Resettable interface {
	Reset(ctx context.Context) error
}

// RunAtomic uses WithTx when the store supports it and runs fn directly
// otherwise. Callers that need compensation on plain stores check
// SupportsTx first.
func RunAtomic(ctx context.Context, s Store, fn func(Store) error) error {
	if ts, ok := s.(TxStore); ok {
		return ts.WithTx(ctx, fn)
	}
	return fn(s)
}

func SupportsTx(s Store) bool {
	_, ok := s.(TxStore)
	return ok
}
