package pengembalian

import (
	"context"
	"encoding/csv"
	"io"
	"sort"

	"github.com/warp/koperasi-engine/koperasi"
)

// List returns every settlement, newest payment date first.
func (s *Service) List(ctx context.Context) (_ []koperasi.Pengembalian, err error) {
	defer koperasi.Guard(&err)

	out, err := s.Store.ListPengembalian(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TanggalPembayaran.After(out[j].TanggalPembayaran)
	})
	return out, nil
}

var exportHeader = []string{
	"Nomor Referensi", "Tanggal Pembayaran", "ID Anggota", "Nama Anggota",
	"Simpanan Pokok", "Simpanan Wajib", "Kewajiban Lain", "Total Pengembalian",
	"Metode Pembayaran", "Keterangan", "Diproses Oleh",
}

// ExportCSV writes the settlement report. Amounts are plain decimals so
// spreadsheets can sum them.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) (err error) {
	defer koperasi.Guard(&err)

	rows, err := s.List(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, p := range rows {
		record := []string{
			p.NomorReferensi,
			p.TanggalPembayaran.String(),
			p.AnggotaID,
			p.AnggotaNama,
			p.SimpananPokok.StringFixed(2),
			p.SimpananWajib.StringFixed(2),
			p.KewajibanLain.StringFixed(2),
			p.TotalPengembalian.StringFixed(2),
			string(p.MetodePembayaran),
			p.Keterangan,
			p.CreatedBy,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
