package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/warp/koperasi-engine/koperasi"
)

// Summary counts what Load wrote.
type Summary struct {
	Anggota    int      `json:"anggota"`
	Simpanan   int      `json:"simpanan"`
	Pinjaman   int      `json:"pinjaman"`
	Penjualan  int      `json:"penjualan"`
	Pembayaran int      `json:"pembayaran"`
	Akun       int      `json:"akun"`
	Skipped    []string `json:"skipped,omitempty"`
}

// Load writes the dump into s. Members and accounts are upserted; ledger
// records are appended. On a TxStore the load is all-or-nothing.
func Load(ctx context.Context, s koperasi.Store, d *DumpJSON) (_ *Summary, err error) {
	defer koperasi.Guard(&err)

	var summary *Summary
	err = koperasi.RunAtomic(ctx, s, func(tx koperasi.Store) error {
		sum, err := load(ctx, tx, d)
		if err != nil {
			return err
		}
		summary = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func load(ctx context.Context, tx koperasi.Store, d *DumpJSON) (*Summary, error) {
	sum := &Summary{}

	known := make(map[string]bool)
	existing, err := tx.ListAnggota(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range existing {
		known[a.ID] = true
	}

	for _, aj := range d.Anggota {
		if err := aj.checkKeluar(); err != nil {
			return nil, koperasi.Errorf(koperasi.CodeInvalidParameter, "anggota %s: %s", aj.ID, err)
		}
		a := aj.ToAnggota()
		if err := tx.SaveAnggota(ctx, a); err != nil {
			return nil, fmt.Errorf("save anggota %s: %w", a.ID, err)
		}
		known[a.ID] = true
		sum.Anggota++
	}

	for _, aj := range d.COA {
		akun := koperasi.Akun{
			Kode:  strings.TrimSpace(aj.Kode),
			Nama:  aj.Nama,
			Tipe:  normalizeTipeAkun(aj.Tipe, aj.Kode),
			Saldo: aj.Saldo.Decimal,
		}
		if err := tx.SaveAkun(ctx, akun); err != nil {
			return nil, fmt.Errorf("save akun %s: %w", akun.Kode, err)
		}
		sum.Akun++
	}

	skip := func(kind, id, anggotaID string) {
		sum.Skipped = append(sum.Skipped, fmt.Sprintf("%s %s: anggota %q tidak dikenal", kind, id, anggotaID))
	}

	for _, group := range []struct {
		jenis   koperasi.JenisSimpanan
		records []SimpananJSON
	}{
		{koperasi.SimpananPokok, d.SimpananPokok},
		{koperasi.SimpananWajib, d.SimpananWajib},
	} {
		for _, sj := range group.records {
			if !known[sj.AnggotaID] {
				skip("simpanan "+string(group.jenis), sj.ID, sj.AnggotaID)
				continue
			}
			rec := koperasi.Simpanan{
				ID:        idOrNew(sj.ID),
				AnggotaID: sj.AnggotaID,
				Jenis:     group.jenis,
				Jumlah:    sj.Jumlah.Decimal,
				Periode:   sj.Periode,
				Tanggal:   sj.Tanggal,
			}
			if err := tx.AppendSimpanan(ctx, rec); err != nil {
				return nil, fmt.Errorf("append simpanan %s: %w", rec.ID, err)
			}
			sum.Simpanan++
		}
	}

	for _, pj := range d.Pinjaman {
		if !known[pj.AnggotaID] {
			skip("pinjaman", pj.ID, pj.AnggotaID)
			continue
		}
		rec := koperasi.Pinjaman{
			ID:        idOrNew(pj.ID),
			AnggotaID: pj.AnggotaID,
			Jumlah:    pj.Jumlah.Decimal,
			Status:    NormalizeStatusPinjaman(pj.Status),
			StatusRaw: pj.Status,
			Tanggal:   pj.Tanggal,
		}
		if err := tx.AppendPinjaman(ctx, rec); err != nil {
			return nil, fmt.Errorf("append pinjaman %s: %w", rec.ID, err)
		}
		sum.Pinjaman++
	}

	for _, pj := range d.Penjualan {
		if !known[pj.AnggotaID] {
			skip("penjualan", pj.ID, pj.AnggotaID)
			continue
		}
		rec := koperasi.Penjualan{
			ID:        idOrNew(pj.ID),
			AnggotaID: pj.AnggotaID,
			Total:     pj.Total.Decimal,
			Status:    strings.ToLower(strings.TrimSpace(pj.Status)),
			Tanggal:   pj.Tanggal,
		}
		if err := tx.AppendPenjualan(ctx, rec); err != nil {
			return nil, fmt.Errorf("append penjualan %s: %w", rec.ID, err)
		}
		sum.Penjualan++
	}

	for _, bj := range d.Pembayaran {
		if !known[bj.AnggotaID] {
			skip("pembayaran", bj.ID, bj.AnggotaID)
			continue
		}
		rec := koperasi.PembayaranHutangPiutang{
			ID:        idOrNew(bj.ID),
			AnggotaID: bj.AnggotaID,
			Jenis:     strings.ToLower(strings.TrimSpace(bj.Jenis)),
			Jumlah:    bj.Jumlah.Decimal,
			Status:    strings.ToLower(strings.TrimSpace(bj.Status)),
			Tanggal:   bj.Tanggal,
		}
		if err := tx.AppendPembayaran(ctx, rec); err != nil {
			return nil, fmt.Errorf("append pembayaran %s: %w", rec.ID, err)
		}
		sum.Pembayaran++
	}

	return sum, nil
}

func idOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}
