/*
Package anggota implements the member exit state machine and the
transaction gate.

STATES:
  Aktif ──MarkKeluar──▶ Keluar(Pending) ──pengembalian.Process──▶ Keluar(Selesai)
    ▲                        │
    └──────CancelKeluar──────┘

  Keluar(Selesai) is terminal: once cash has moved, exit cannot be
  cancelled.

EFFECTS:
  MarkKeluar sets statusKeanggotaan, tanggalKeluar, alasanKeluar (trimmed),
  pengembalianStatus=Pending and pengembalianId=null. CancelKeluar restores
  Aktif and nulls all four exit fields. No other member field is touched
  by either transition.

ATOMICITY:
  The member write and its audit entry run under koperasi.RunAtomic. On a
  store without WithTx, a failed audit append restores the member record
  before the error is returned.

SEE ALSO:
  - gate.go: AssertCanTransact, consulted by the transaksi workflows
  - pengembalian/poster.go: The Pending → Selesai transition
*/
package anggota

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/koperasi-engine/koperasi"
)

// DefaultActor is used when a caller passes an empty actor.
const DefaultActor = "system"

// Service runs member state transitions.
type Service struct {
	Store   koperasi.Store
	Auditor *koperasi.Auditor
	Logger  *zap.Logger
}

func NewService(store koperasi.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:   store,
		Auditor: koperasi.NewAuditor(),
		Logger:  logger.Named("anggota"),
	}
}

// Get returns one member.
func (s *Service) Get(ctx context.Context, anggotaID string) (_ *koperasi.Anggota, err error) {
	defer koperasi.Guard(&err)
	return findAnggota(ctx, s.Store, anggotaID)
}

func (s *Service) List(ctx context.Context) (_ []koperasi.Anggota, err error) {
	defer koperasi.Guard(&err)
	return s.Store.ListAnggota(ctx)
}

// =============================================================================
// MARK KELUAR
// =============================================================================

// MarkKeluar moves an active member to Keluar(Pending).
func (s *Service) MarkKeluar(ctx context.Context, actor, anggotaID, tanggalKeluar, alasanKeluar string) (_ *koperasi.Anggota, err error) {
	defer koperasi.Guard(&err)

	alasan := strings.TrimSpace(alasanKeluar)
	if strings.TrimSpace(anggotaID) == "" || strings.TrimSpace(tanggalKeluar) == "" || alasan == "" {
		return nil, koperasi.NewError(koperasi.CodeInvalidParameter,
			"anggotaId, tanggalKeluar dan alasanKeluar wajib diisi")
	}
	tanggal, perr := koperasi.ParseDate(tanggalKeluar)
	if perr != nil {
		return nil, koperasi.Wrap(koperasi.CodeInvalidParameter, "format tanggalKeluar tidak valid", perr)
	}
	actor = actorOrDefault(actor)

	var result koperasi.Anggota
	err = koperasi.RunAtomic(ctx, s.Store, func(tx koperasi.Store) error {
		current, err := findAnggota(ctx, tx, anggotaID)
		if err != nil {
			return err
		}
		if current.IsKeluar() {
			return koperasi.Errorf(koperasi.CodeAnggotaAlreadyKeluar,
				"anggota %s sudah berstatus keluar", current.Nama)
		}

		next := current.Clone()
		pending := koperasi.PengembalianPending
		next.StatusKeanggotaan = koperasi.KeanggotaanKeluar
		next.TanggalKeluar = &tanggal
		next.AlasanKeluar = &alasan
		next.PengembalianStatus = &pending
		next.PengembalianID = nil

		entry := s.Auditor.Entry(actor, koperasi.AuditMarkKeluar, next, map[string]any{
			"tanggalKeluar": tanggal.String(),
			"alasanKeluar":  alasan,
		})
		if err := s.commit(ctx, tx, *current, next, entry); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		s.Logger.Warn("mark keluar rejected",
			zap.String("anggota_id", anggotaID),
			zap.String("actor", actor),
			zap.String("code", string(koperasi.CodeOf(err))),
		)
		return nil, err
	}

	s.Logger.Info("anggota marked keluar",
		zap.String("anggota_id", anggotaID),
		zap.String("actor", actor),
		zap.String("tanggal_keluar", tanggal.String()),
	)
	return &result, nil
}

// =============================================================================
// CANCEL KELUAR
// =============================================================================

// CancelKeluar returns a Keluar(Pending) member to Aktif.
func (s *Service) CancelKeluar(ctx context.Context, actor, anggotaID string) (_ *koperasi.Anggota, err error) {
	defer koperasi.Guard(&err)

	if strings.TrimSpace(anggotaID) == "" {
		return nil, koperasi.NewError(koperasi.CodeInvalidParameter, "anggotaId wajib diisi")
	}
	actor = actorOrDefault(actor)

	var result koperasi.Anggota
	err = koperasi.RunAtomic(ctx, s.Store, func(tx koperasi.Store) error {
		current, err := findAnggota(ctx, tx, anggotaID)
		if err != nil {
			return err
		}
		if !current.IsKeluar() {
			return koperasi.Errorf(koperasi.CodeAnggotaNotKeluar,
				"anggota %s tidak berstatus keluar", current.Nama)
		}
		if current.IsSettled() {
			return koperasi.Errorf(koperasi.CodePengembalianAlreadyProcessed,
				"pengembalian simpanan anggota %s sudah diproses, pembatalan tidak dapat dilakukan", current.Nama)
		}

		next := current.Clone()
		next.StatusKeanggotaan = koperasi.KeanggotaanAktif
		next.TanggalKeluar = nil
		next.AlasanKeluar = nil
		next.PengembalianStatus = nil
		next.PengembalianID = nil

		payload := map[string]any{}
		if current.TanggalKeluar != nil {
			payload["tanggalKeluarSebelumnya"] = current.TanggalKeluar.String()
		}
		if current.AlasanKeluar != nil {
			payload["alasanKeluarSebelumnya"] = *current.AlasanKeluar
		}
		entry := s.Auditor.Entry(actor, koperasi.AuditCancelKeluar, next, payload)
		if err := s.commit(ctx, tx, *current, next, entry); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		s.Logger.Warn("cancel keluar rejected",
			zap.String("anggota_id", anggotaID),
			zap.String("actor", actor),
			zap.String("code", string(koperasi.CodeOf(err))),
		)
		return nil, err
	}

	s.Logger.Info("anggota keluar cancelled",
		zap.String("anggota_id", anggotaID),
		zap.String("actor", actor),
	)
	return &result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// commit writes the member and its audit entry. Without WithTx, a failed
// audit append puts the previous member record back.
func (s *Service) commit(ctx context.Context, tx koperasi.Store, previous, next koperasi.Anggota, entry koperasi.AuditEntry) error {
	if err := tx.SaveAnggota(ctx, next); err != nil {
		return koperasi.Wrap(koperasi.CodeUpdateFailed, "gagal menyimpan data anggota", err)
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		if !koperasi.SupportsTx(s.Store) {
			if rerr := tx.SaveAnggota(ctx, previous); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
		return koperasi.Wrap(koperasi.CodeUpdateFailed, "gagal mencatat audit log", err)
	}
	return nil
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

func actorOrDefault(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return DefaultActor
}
