package pengembalian

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/koperasi-engine/jurnal"
	"github.com/warp/koperasi-engine/koperasi"
)

// DefaultActor is used when a caller passes an empty actor.
const DefaultActor = "system"

// ProcessRequest carries the operator's input for one settlement.
type ProcessRequest struct {
	AnggotaID         string
	MetodePembayaran  string
	TanggalPembayaran string // YYYY-MM-DD, today when empty
	Keterangan        string
}

// Hasil is what Process wrote.
type Hasil struct {
	Pengembalian koperasi.Pengembalian `json:"pengembalian"`
	Jurnal       *koperasi.Jurnal      `json:"jurnal,omitempty"`
	Anggota      koperasi.Anggota      `json:"anggota"`
}

// =============================================================================
// PROCESS
// =============================================================================

// Process settles the refund of a Keluar(Pending) member.
//
// Before validation runs it returns ANGGOTA_NOT_KELUAR for a member still
// Aktif and PENGEMBALIAN_ALREADY_PROCESSED for one already settled.
//
// Write order: journal, account balances, settlement record, member
// status, audit entry. The member never reads Selesai unless everything
// before it was written. On a TxStore the whole run is one transaction; on
// a plain store every completed write is undone when a later one fails.
func (s *Service) Process(ctx context.Context, actor string, req ProcessRequest) (_ *Hasil, err error) {
	defer koperasi.Guard(&err)

	if strings.TrimSpace(req.AnggotaID) == "" {
		return nil, koperasi.NewError(koperasi.CodeInvalidParameter, "anggotaId wajib diisi")
	}
	tanggal := koperasi.DateOf(s.now())
	if strings.TrimSpace(req.TanggalPembayaran) != "" {
		parsed, perr := koperasi.ParseDate(req.TanggalPembayaran)
		if perr != nil {
			return nil, koperasi.Wrap(koperasi.CodeInvalidParameter, "format tanggalPembayaran tidak valid", perr)
		}
		tanggal = parsed
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = DefaultActor
	}

	var hasil *Hasil
	err = koperasi.RunAtomic(ctx, s.Store, func(tx koperasi.Store) error {
		h, err := s.process(ctx, tx, actor, tanggal, req)
		if err != nil {
			return err
		}
		hasil = h
		return nil
	})
	if err != nil {
		s.Logger.Warn("pengembalian rejected",
			zap.String("anggota_id", req.AnggotaID),
			zap.String("actor", actor),
			zap.String("code", string(koperasi.CodeOf(err))),
			zap.Error(err),
		)
		return nil, err
	}

	s.Logger.Info("pengembalian processed",
		zap.String("anggota_id", req.AnggotaID),
		zap.String("pengembalian_id", hasil.Pengembalian.ID),
		zap.String("nomor_referensi", hasil.Pengembalian.NomorReferensi),
		zap.String("total", hasil.Pengembalian.TotalPengembalian.String()),
		zap.String("metode", string(hasil.Pengembalian.MetodePembayaran)),
		zap.String("actor", actor),
	)
	return hasil, nil
}

func (s *Service) process(ctx context.Context, tx koperasi.Store, actor string, tanggal koperasi.Date, req ProcessRequest) (*Hasil, error) {
	current, err := findAnggota(ctx, tx, req.AnggotaID)
	if err != nil {
		return nil, err
	}
	if !current.IsKeluar() {
		return nil, koperasi.Errorf(koperasi.CodeAnggotaNotKeluar,
			"anggota %s belum ditandai keluar", current.Nama)
	}
	if current.IsSettled() {
		return nil, koperasi.Errorf(koperasi.CodePengembalianAlreadyProcessed,
			"pengembalian simpanan anggota %s sudah diproses", current.Nama)
	}

	metode := req.MetodePembayaran
	v, err := validate(ctx, tx, req.AnggotaID, &metode)
	if err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, koperasi.NewError(koperasi.CodeValidationFailed, "validasi pengembalian gagal").
			WithData(map[string]any{"errors": v.Errors, "warnings": v.Warnings})
	}

	calc, err := calculate(ctx, tx, req.AnggotaID)
	if err != nil {
		return nil, koperasi.Wrap(koperasi.CodeCalculationFailed, "perhitungan pengembalian gagal", err)
	}

	// Everything is built before the first write.
	now := s.now().UTC()
	p := koperasi.Pengembalian{
		ID:                uuid.NewString(),
		AnggotaID:         current.ID,
		AnggotaNama:       current.Nama,
		Status:            koperasi.PengembalianSelesai,
		SimpananPokok:     calc.SimpananPokok,
		SimpananWajib:     calc.SimpananWajib,
		KewajibanLain:     calc.KewajibanLain,
		TotalSimpanan:     calc.TotalSimpanan,
		TotalPengembalian: calc.TotalPengembalian,
		MetodePembayaran:  koperasi.MetodePembayaran(metode),
		TanggalPembayaran: tanggal,
		Keterangan:        strings.TrimSpace(req.Keterangan),
		CreatedBy:         actor,
		CreatedAt:         now,
	}
	p.NomorReferensi = NomorReferensi(tanggal, p.ID)

	var entry *koperasi.Jurnal
	if calc.TotalSimpanan.IsPositive() {
		j, err := BuildJurnal(p, actor, now)
		if err != nil {
			return nil, err
		}
		entry = &j
		p.JurnalID = j.ID
	}

	next := current.Clone()
	selesai := koperasi.PengembalianSelesai
	next.PengembalianStatus = &selesai
	next.PengembalianID = &p.ID

	audit := s.Auditor.Entry(actor, koperasi.AuditProsesPengembalian, next, map[string]any{
		"pengembalianId":    p.ID,
		"nomorReferensi":    p.NomorReferensi,
		"totalPengembalian": p.TotalPengembalian,
		"metodePembayaran":  metode,
		"tanggalPembayaran": tanggal.String(),
	})

	// Writes. undo holds the compensations for a store without WithTx.
	var undo []func() error
	fail := func(code koperasi.Code, msg string, cause error) error {
		if !koperasi.SupportsTx(s.Store) {
			for i := len(undo) - 1; i >= 0; i-- {
				if uerr := undo[i](); uerr != nil {
					cause = errors.Join(cause, uerr)
				}
			}
		}
		return koperasi.Wrap(code, msg, cause)
	}

	if entry != nil {
		posting, err := jurnal.Post(ctx, tx, *entry)
		if err != nil {
			return nil, fail(koperasi.CodeOf(err), "gagal memposting jurnal pengembalian", err)
		}
		undo = append(undo, func() error { return posting.Compensate(ctx, tx) })
	}

	if err := tx.AppendPengembalian(ctx, p); err != nil {
		return nil, fail(koperasi.CodeUpdateFailed, "gagal menyimpan data pengembalian", err)
	}
	undo = append(undo, func() error { return tx.DeletePengembalian(ctx, p.ID) })

	if err := tx.SaveAnggota(ctx, next); err != nil {
		return nil, fail(koperasi.CodeUpdateFailed, "gagal memperbarui status anggota", err)
	}
	previous := *current
	undo = append(undo, func() error { return tx.SaveAnggota(ctx, previous) })

	if err := tx.AppendAudit(ctx, audit); err != nil {
		return nil, fail(koperasi.CodeUpdateFailed, "gagal mencatat audit log", err)
	}

	return &Hasil{Pengembalian: p, Jurnal: entry, Anggota: next}, nil
}

// =============================================================================
// JOURNAL
// =============================================================================

// BuildJurnal builds the settlement entry:
//
//	Dr 2-1100 Simpanan Pokok        simpananPokok
//	Dr 2-1200 Simpanan Wajib        simpananWajib
//	Cr 1-1200 Piutang Anggota       min(kewajibanLain, totalSimpanan)
//	Cr 1-1000 Kas / 1-1100 Bank     totalPengembalian, when positive
//
// The offset line keeps the entry balanced when the member still owes on
// credit sales.
func BuildJurnal(p koperasi.Pengembalian, actor string, at time.Time) (koperasi.Jurnal, error) {
	offset := decimal.Min(p.KewajibanLain, p.TotalSimpanan)
	cash := decimal.Max(decimal.Zero, p.TotalPengembalian)

	return jurnal.NewBuilder(p.TanggalPembayaran, fmt.Sprintf("Pengembalian Simpanan - %s", p.AnggotaNama)).
		Debit(koperasi.KodeSimpananPokok, p.SimpananPokok).
		Debit(koperasi.KodeSimpananWajib, p.SimpananWajib).
		Kredit(koperasi.KodePiutangAnggota, offset).
		Kredit(p.MetodePembayaran.KodeAkunKas(), cash).
		Reference(p.ID).
		CreatedBy(actor, at).
		Build()
}

// NomorReferensi formats the receipt number, e.g. PGB-20241204-1A2B3C4D.
func NomorReferensi(tanggal koperasi.Date, id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("PGB-%s-%s", tanggal.Compact(), strings.ToUpper(short))
}
