/*
Package pengembalian implements the savings refund settlement for members
who have left the cooperative.

FLOW:
  1. Calculate  - read-only refund preview for a member
  2. Validate   - read-only pre-flight checks, all errors aggregated
  3. Process    - re-validates, then posts the journal, writes the
                  settlement record and flips the member to Selesai
  4. GenerateBukti - renders the printable receipt of a settlement

FORMULA:
  totalSimpanan     = simpananPokok + simpananWajib
  totalPengembalian = totalSimpanan − kewajibanLain   (may be negative)

SEE ALSO:
  - koperasi/ledger.go: The sums used here
  - jurnal/jurnal.go: Posting and compensation
  - anggota/service.go: The Aktif ⇄ Keluar transitions
*/
package pengembalian

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/koperasi-engine/koperasi"
)

// Service bundles the settlement operations over one store.
type Service struct {
	Store   koperasi.Store
	Auditor *koperasi.Auditor
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewService(store koperasi.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:   store,
		Auditor: koperasi.NewAuditor(),
		Logger:  logger.Named("pengembalian"),
		Now:     time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// =============================================================================
// CALCULATION
// =============================================================================

// Perhitungan is the refund preview of one member.
type Perhitungan struct {
	AnggotaID         string              `json:"anggotaId"`
	AnggotaNama       string              `json:"anggotaNama"`
	NIK               string              `json:"nik"`
	SimpananPokok     decimal.Decimal     `json:"simpananPokok"`
	SimpananWajib     decimal.Decimal     `json:"simpananWajib"`
	TotalSimpanan     decimal.Decimal     `json:"totalSimpanan"`
	KewajibanLain     decimal.Decimal     `json:"kewajibanLain"`
	TotalPengembalian decimal.Decimal     `json:"totalPengembalian"`
	PinjamanAktif     []koperasi.Pinjaman `json:"pinjamanAktif"`
	HasPinjamanAktif  bool                `json:"hasPinjamanAktif"`
}

// Calculate derives the refund amount. It writes nothing.
func (s *Service) Calculate(ctx context.Context, anggotaID string) (_ *Perhitungan, err error) {
	defer koperasi.Guard(&err)
	return calculate(ctx, s.Store, anggotaID)
}

func calculate(ctx context.Context, store koperasi.Store, anggotaID string) (*Perhitungan, error) {
	a, err := findAnggota(ctx, store, anggotaID)
	if err != nil {
		return nil, err
	}

	ledger := koperasi.NewLedger(store)
	pokok, err := ledger.SimpananPokok(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	wajib, err := ledger.SimpananWajib(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	kewajiban, err := ledger.KewajibanLain(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	aktif, err := ledger.PinjamanAktif(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	total := pokok.Add(wajib)
	return &Perhitungan{
		AnggotaID:         a.ID,
		AnggotaNama:       a.Nama,
		NIK:               a.NIK,
		SimpananPokok:     pokok,
		SimpananWajib:     wajib,
		TotalSimpanan:     total,
		KewajibanLain:     kewajiban,
		TotalPengembalian: total.Sub(kewajiban),
		PinjamanAktif:     aktif,
		HasPinjamanAktif:  len(aktif) > 0,
	}, nil
}

func findAnggota(ctx context.Context, repo koperasi.AnggotaRepository, anggotaID string) (*koperasi.Anggota, error) {
	if strings.TrimSpace(anggotaID) == "" {
		return nil, koperasi.NewError(koperasi.CodeInvalidParameter, "anggotaId wajib diisi")
	}
	a, err := repo.GetAnggota(ctx, anggotaID)
	if errors.Is(err, koperasi.ErrNotFound) {
		return nil, koperasi.Errorf(koperasi.CodeAnggotaNotFound, "anggota %s tidak ditemukan", anggotaID)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
