package pengembalian

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/warp/koperasi-engine/koperasi"
)

// Bukti is a rendered settlement receipt.
type Bukti struct {
	PengembalianID string `json:"pengembalianId"`
	NomorReferensi string `json:"nomorReferensi"`
	Filename       string `json:"filename"`
	HTML           string `json:"html"`
}

// GenerateBukti renders the printable receipt of one settlement. It writes
// nothing.
func (s *Service) GenerateBukti(ctx context.Context, pengembalianID string) (_ *Bukti, err error) {
	defer koperasi.Guard(&err)

	if strings.TrimSpace(pengembalianID) == "" {
		return nil, koperasi.NewError(koperasi.CodeInvalidParameter, "pengembalianId wajib diisi")
	}
	p, err := s.Store.GetPengembalian(ctx, pengembalianID)
	if errors.Is(err, koperasi.ErrNotFound) {
		return nil, koperasi.Errorf(koperasi.CodePengembalianNotFound, "pengembalian %s tidak ditemukan", pengembalianID)
	}
	if err != nil {
		return nil, err
	}
	a, err := s.Store.GetAnggota(ctx, p.AnggotaID)
	if errors.Is(err, koperasi.ErrNotFound) {
		return nil, koperasi.Errorf(koperasi.CodeAnggotaNotFound, "anggota %s tidak ditemukan", p.AnggotaID)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := buktiTemplate.Execute(&buf, buktiData{Pengembalian: *p, Anggota: *a}); err != nil {
		return nil, koperasi.Wrap(koperasi.CodeSystemError, "gagal membuat bukti pengembalian", err)
	}
	return &Bukti{
		PengembalianID: p.ID,
		NomorReferensi: p.NomorReferensi,
		Filename:       "bukti-" + strings.ToLower(p.NomorReferensi) + ".html",
		HTML:           buf.String(),
	}, nil
}

type buktiData struct {
	Pengembalian koperasi.Pengembalian
	Anggota      koperasi.Anggota
}

func (d buktiData) TanggalKeluar() string {
	if d.Anggota.TanggalKeluar == nil {
		return "-"
	}
	return d.Anggota.TanggalKeluar.Indonesian()
}

// =============================================================================
// FORMATTING
// =============================================================================

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount with Indonesian grouping, e.g.
// "Rp 1.500.000" or "Rp 1.500,50".
func FormatRupiah(d decimal.Decimal) string {
	return "Rp " + FormatAngka(d)
}

// FormatAngka renders the number without currency prefix.
func FormatAngka(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	out := sign + idPrinter.Sprintf("%d", d.IntPart())
	if frac := d.Sub(d.Truncate(0)); !frac.IsZero() {
		out += fmt.Sprintf(",%02d", frac.Shift(2).IntPart())
	}
	return out
}

var buktiTemplate = template.Must(template.New("bukti").Funcs(template.FuncMap{
	"rupiah":     FormatRupiah,
	"positive":   func(d decimal.Decimal) bool { return d.IsPositive() },
	"indonesian": func(d koperasi.Date) string { return d.Indonesian() },
}).Parse(buktiHTML))

const buktiHTML = `<!DOCTYPE html>
<html lang="id">
<head>
<meta charset="utf-8">
<title>Bukti Pengembalian Simpanan {{.Pengembalian.NomorReferensi}}</title>
<style>
  body { font-family: Arial, sans-serif; font-size: 12px; margin: 24px; }
  h1 { font-size: 16px; text-align: center; margin-bottom: 4px; }
  .ref { text-align: center; margin-bottom: 16px; }
  table { width: 100%; border-collapse: collapse; }
  td { padding: 4px 6px; }
  td.amount { text-align: right; }
  tr.total td { border-top: 1px solid #000; font-weight: bold; }
  .ttd { margin-top: 48px; width: 100%; }
  .ttd td { text-align: center; width: 50%; }
  .ttd .line { padding-top: 64px; }
</style>
</head>
<body>
<h1>BUKTI PENGEMBALIAN SIMPANAN ANGGOTA</h1>
<div class="ref">No. Referensi: {{.Pengembalian.NomorReferensi}}</div>

<table>
  <tr><td>Nama Anggota</td><td>: {{.Anggota.Nama}}</td></tr>
  <tr><td>NIK</td><td>: {{.Anggota.NIK}}</td></tr>
  <tr><td>No. Kartu</td><td>: {{.Anggota.NoKartu}}</td></tr>
  <tr><td>Tanggal Keluar</td><td>: {{.TanggalKeluar}}</td></tr>
</table>

<br>
<table>
  <tr><td>Simpanan Pokok</td><td class="amount">{{rupiah .Pengembalian.SimpananPokok}}</td></tr>
  <tr><td>Simpanan Wajib</td><td class="amount">{{rupiah .Pengembalian.SimpananWajib}}</td></tr>
  <tr><td>Total Simpanan</td><td class="amount">{{rupiah .Pengembalian.TotalSimpanan}}</td></tr>
{{- if positive .Pengembalian.KewajibanLain}}
  <tr><td>Dikurangi Kewajiban Lain</td><td class="amount">({{rupiah .Pengembalian.KewajibanLain}})</td></tr>
{{- end}}
  <tr class="total"><td>Total Pengembalian</td><td class="amount">{{rupiah .Pengembalian.TotalPengembalian}}</td></tr>
</table>

<br>
<table>
  <tr><td>Metode Pembayaran</td><td>: {{.Pengembalian.MetodePembayaran}}</td></tr>
  <tr><td>Tanggal Pembayaran</td><td>: {{indonesian .Pengembalian.TanggalPembayaran}}</td></tr>
{{- if .Pengembalian.Keterangan}}
  <tr><td>Keterangan</td><td>: {{.Pengembalian.Keterangan}}</td></tr>
{{- end}}
</table>

<table class="ttd">
  <tr><td>Penerima,</td><td>Petugas Koperasi,</td></tr>
  <tr><td class="line">( {{.Anggota.Nama}} )</td><td class="line">( {{.Pengembalian.CreatedBy}} )</td></tr>
</table>
</body>
</html>
`
