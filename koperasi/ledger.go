/*
ledger.go - Read-only accessors over the member ledgers

PURPOSE:
  Pure sums over externally-owned collections. Nothing here writes. The
  balance calculator, validator and receipt all read through Ledger so a
  single definition of "total pokok" or "active loan" exists.

DEFINITIONS:
  SimpananPokok(a)  = Σ jumlah of pokok entries of a
  SimpananWajib(a)  = Σ jumlah of wajib entries of a
  KewajibanLain(a)  = max(0, Σ kredit sales − Σ settled hutang payments)
  PinjamanAktif(a)  = loans of a whose status is not lunas

SEE ALSO:
  - store.go: Repository interfaces read here
  - pengembalian/calculator.go: Combines these into a refund amount
*/
package koperasi

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Ledger wraps a Store with read-only derived values.
type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

func (l *Ledger) SimpananPokok(ctx context.Context, anggotaID string) (decimal.Decimal, error) {
	return l.sumSimpanan(ctx, anggotaID, SimpananPokok)
}

func (l *Ledger) SimpananWajib(ctx context.Context, anggotaID string) (decimal.Decimal, error) {
	return l.sumSimpanan(ctx, anggotaID, SimpananWajib)
}

func (l *Ledger) sumSimpanan(ctx context.Context, anggotaID string, jenis JenisSimpanan) (decimal.Decimal, error) {
	entries, err := l.Store.ListSimpanan(ctx, anggotaID, jenis)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Jumlah)
	}
	return total, nil
}

// KewajibanLain is floored at zero.
func (l *Ledger) KewajibanLain(ctx context.Context, anggotaID string) (decimal.Decimal, error) {
	sales, err := l.Store.ListPenjualan(ctx, anggotaID)
	if err != nil {
		return decimal.Zero, err
	}
	payments, err := l.Store.ListPembayaran(ctx, anggotaID)
	if err != nil {
		return decimal.Zero, err
	}

	kredit := decimal.Zero
	for _, s := range sales {
		if strings.EqualFold(s.Status, PenjualanKredit) {
			kredit = kredit.Add(s.Total)
		}
	}
	paid := decimal.Zero
	for _, p := range payments {
		if strings.EqualFold(p.Jenis, JenisHutang) && strings.EqualFold(p.Status, StatusSelesai) {
			paid = paid.Add(p.Jumlah)
		}
	}
	return decimal.Max(decimal.Zero, kredit.Sub(paid)), nil
}

func (l *Ledger) PinjamanAktif(ctx context.Context, anggotaID string) ([]Pinjaman, error) {
	loans, err := l.Store.ListPinjaman(ctx, anggotaID)
	if err != nil {
		return nil, err
	}
	active := make([]Pinjaman, 0, len(loans))
	for _, p := range loans {
		if p.IsAktif() {
			active = append(active, p)
		}
	}
	return active, nil
}

// SaldoAkun returns zero for an unknown account code.
func (l *Ledger) SaldoAkun(ctx context.Context, kode string) (decimal.Decimal, error) {
	akun, err := l.Store.GetAkun(ctx, kode)
	if IsNotFound(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return akun.Saldo, nil
}
