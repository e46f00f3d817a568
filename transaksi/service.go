/*
Package transaksi records the everyday member transactions that the exit
gate guards.

WORKFLOWS:
  SetorSimpanan    Dr Kas              / Cr Simpanan Pokok|Wajib
  CairkanPinjaman  Dr Piutang Anggota  / Cr Kas
  CatatPenjualan   Dr Kas|Piutang      / Cr Pendapatan   (tunai|kredit)
  BayarHutang      Dr Kas              / Cr Piutang Anggota

ORDER:
  1. Input checks (INVALID_PARAMETER)
  2. anggota.Gate.AssertCanTransact (ANGGOTA_KELUAR, ANGGOTA_NOT_FOUND)
  3. Journal posting, then the record append

  A rejected call writes nothing. On a store without WithTx a failed
  record append undoes the journal posting.

SEE ALSO:
  - anggota/gate.go: The gate
  - jurnal/jurnal.go: Posting
*/
package transaksi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/koperasi-engine/anggota"
	"github.com/warp/koperasi-engine/jurnal"
	"github.com/warp/koperasi-engine/koperasi"
)

type Service struct {
	Store  koperasi.Store
	Logger *zap.Logger
	Now    func() time.Time
}

func NewService(store koperasi.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:  store,
		Logger: logger.Named("transaksi"),
		Now:    time.Now,
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

type SetoranRequest struct {
	AnggotaID string
	Jenis     koperasi.JenisSimpanan
	Jumlah    decimal.Decimal
	Periode   string // wajib only, YYYY-MM
	Tanggal   string // today when empty
}

type PinjamanRequest struct {
	AnggotaID string
	Jumlah    decimal.Decimal
	Tanggal   string
}

type PenjualanRequest struct {
	AnggotaID string
	Total     decimal.Decimal
	Status    string // tunai or kredit
	Tanggal   string
}

type PembayaranRequest struct {
	AnggotaID string
	Jumlah    decimal.Decimal
	Tanggal   string
}

// =============================================================================
// WORKFLOWS
// =============================================================================

// SetorSimpanan records a pokok or wajib deposit.
func (s *Service) SetorSimpanan(ctx context.Context, actor string, req SetoranRequest) (_ *koperasi.Simpanan, err error) {
	defer koperasi.Guard(&err)

	if req.Jenis != koperasi.SimpananPokok && req.Jenis != koperasi.SimpananWajib {
		return nil, koperasi.Errorf(koperasi.CodeInvalidParameter, "jenis simpanan %q tidak valid", req.Jenis)
	}
	tanggal, err := s.prepare(req.AnggotaID, req.Jumlah, req.Tanggal)
	if err != nil {
		return nil, err
	}
	periode := strings.TrimSpace(req.Periode)
	if req.Jenis == koperasi.SimpananWajib && periode == "" {
		periode = tanggal.Time.Format("2006-01")
	}
	if req.Jenis == koperasi.SimpananPokok {
		periode = ""
	}

	rec := koperasi.Simpanan{
		ID:        uuid.NewString(),
		AnggotaID: req.AnggotaID,
		Jenis:     req.Jenis,
		Jumlah:    req.Jumlah,
		Periode:   periode,
		Tanggal:   tanggal,
	}
	kredit := koperasi.KodeSimpananPokok
	if req.Jenis == koperasi.SimpananWajib {
		kredit = koperasi.KodeSimpananWajib
	}
	b := jurnal.NewBuilder(tanggal, fmt.Sprintf("Setoran simpanan %s", req.Jenis)).
		Debit(koperasi.KodeKas, req.Jumlah).
		Kredit(kredit, req.Jumlah).
		Reference(rec.ID)

	err = s.run(ctx, actor, "setor simpanan", req.AnggotaID, b, func(tx koperasi.Store) error {
		return tx.AppendSimpanan(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CairkanPinjaman records a new active loan.
func (s *Service) CairkanPinjaman(ctx context.Context, actor string, req PinjamanRequest) (_ *koperasi.Pinjaman, err error) {
	defer koperasi.Guard(&err)

	tanggal, err := s.prepare(req.AnggotaID, req.Jumlah, req.Tanggal)
	if err != nil {
		return nil, err
	}
	rec := koperasi.Pinjaman{
		ID:        uuid.NewString(),
		AnggotaID: req.AnggotaID,
		Jumlah:    req.Jumlah,
		Status:    koperasi.PinjamanAktif,
		StatusRaw: string(koperasi.PinjamanAktif),
		Tanggal:   tanggal,
	}
	b := jurnal.NewBuilder(tanggal, "Pencairan pinjaman anggota").
		Debit(koperasi.KodePiutangAnggota, req.Jumlah).
		Kredit(koperasi.KodeKas, req.Jumlah).
		Reference(rec.ID)

	err = s.run(ctx, actor, "cairkan pinjaman", req.AnggotaID, b, func(tx koperasi.Store) error {
		return tx.AppendPinjaman(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CatatPenjualan records a POS sale. Kredit sales add to kewajiban lain.
func (s *Service) CatatPenjualan(ctx context.Context, actor string, req PenjualanRequest) (_ *koperasi.Penjualan, err error) {
	defer koperasi.Guard(&err)

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = koperasi.PenjualanTunai
	}
	if status != koperasi.PenjualanTunai && status != koperasi.PenjualanKredit {
		return nil, koperasi.Errorf(koperasi.CodeInvalidParameter, "status penjualan %q tidak valid", req.Status)
	}
	tanggal, err := s.prepare(req.AnggotaID, req.Total, req.Tanggal)
	if err != nil {
		return nil, err
	}
	rec := koperasi.Penjualan{
		ID:        uuid.NewString(),
		AnggotaID: req.AnggotaID,
		Total:     req.Total,
		Status:    status,
		Tanggal:   tanggal,
	}
	debit := koperasi.KodeKas
	if status == koperasi.PenjualanKredit {
		debit = koperasi.KodePiutangAnggota
	}
	b := jurnal.NewBuilder(tanggal, fmt.Sprintf("Penjualan %s", status)).
		Debit(debit, req.Total).
		Kredit(koperasi.KodePendapatan, req.Total).
		Reference(rec.ID)

	err = s.run(ctx, actor, "catat penjualan", req.AnggotaID, b, func(tx koperasi.Store) error {
		return tx.AppendPenjualan(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// BayarHutang records a settled payment against credit sales.
func (s *Service) BayarHutang(ctx context.Context, actor string, req PembayaranRequest) (_ *koperasi.PembayaranHutangPiutang, err error) {
	defer koperasi.Guard(&err)

	tanggal, err := s.prepare(req.AnggotaID, req.Jumlah, req.Tanggal)
	if err != nil {
		return nil, err
	}
	rec := koperasi.PembayaranHutangPiutang{
		ID:        uuid.NewString(),
		AnggotaID: req.AnggotaID,
		Jenis:     koperasi.JenisHutang,
		Jumlah:    req.Jumlah,
		Status:    koperasi.StatusSelesai,
		Tanggal:   tanggal,
	}
	b := jurnal.NewBuilder(tanggal, "Pembayaran hutang anggota").
		Debit(koperasi.KodeKas, req.Jumlah).
		Kredit(koperasi.KodePiutangAnggota, req.Jumlah).
		Reference(rec.ID)

	err = s.run(ctx, actor, "bayar hutang", req.AnggotaID, b, func(tx koperasi.Store) error {
		return tx.AppendPembayaran(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) prepare(anggotaID string, jumlah decimal.Decimal, tanggal string) (koperasi.Date, error) {
	if strings.TrimSpace(anggotaID) == "" {
		return koperasi.Date{}, koperasi.NewError(koperasi.CodeInvalidParameter, "anggotaId wajib diisi")
	}
	if !jumlah.IsPositive() {
		return koperasi.Date{}, koperasi.NewError(koperasi.CodeInvalidParameter, "jumlah harus lebih dari nol")
	}
	if strings.TrimSpace(tanggal) == "" {
		return koperasi.DateOf(s.now()), nil
	}
	d, err := koperasi.ParseDate(tanggal)
	if err != nil {
		return koperasi.Date{}, koperasi.Wrap(koperasi.CodeInvalidParameter, "format tanggal tidak valid", err)
	}
	return d, nil
}

// run gates, posts the journal built by b and appends the record.
func (s *Service) run(ctx context.Context, actor, op, anggotaID string, b *jurnal.Builder, appendRecord func(koperasi.Store) error) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = anggota.DefaultActor
	}

	err := koperasi.RunAtomic(ctx, s.Store, func(tx koperasi.Store) error {
		if err := anggota.NewGate(tx).AssertCanTransact(ctx, anggotaID); err != nil {
			return err
		}
		j, err := b.CreatedBy(actor, s.now().UTC()).Build()
		if err != nil {
			return err
		}
		posting, err := jurnal.Post(ctx, tx, j)
		if err != nil {
			return err
		}
		if err := appendRecord(tx); err != nil {
			if !koperasi.SupportsTx(s.Store) {
				if cerr := posting.Compensate(ctx, tx); cerr != nil {
					err = errors.Join(err, cerr)
				}
			}
			return koperasi.Wrap(koperasi.CodeUpdateFailed, "gagal menyimpan transaksi", err)
		}
		return nil
	})
	if err != nil {
		s.Logger.Warn(op+" rejected",
			zap.String("anggota_id", anggotaID),
			zap.String("actor", actor),
			zap.String("code", string(koperasi.CodeOf(err))),
		)
		return err
	}
	s.Logger.Info(op,
		zap.String("anggota_id", anggotaID),
		zap.String("actor", actor),
	)
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
