/*
Package ingest converts a JSON dump of the cooperative data into typed
records and loads it into a koperasi.Store.

PURPOSE:
  The front-end keeps its collections as JSON arrays. This package is the
  single boundary where that loosely typed data is normalized: amounts,
  dates, loan status and membership state.

JSON SCHEMA:
  {
    "anggota": [{"id": "A001", "nama": "Budi", "nik": "3201...", ...}],
    "simpananPokok": [{"id": "SP1", "anggotaId": "A001", "jumlah": 1000000}],
    "simpananWajib": [{"id": "SW1", "anggotaId": "A001", "jumlah": "50000", "periode": "2024-11"}],
    "pinjaman": [{"id": "P1", "anggotaId": "A001", "jumlah": 5000000, "status": "Aktif"}],
    "penjualan": [{"id": "J1", "anggotaId": "A001", "total": 150000, "status": "kredit"}],
    "pembayaranHutangPiutang": [{"id": "B1", "anggotaId": "A001", "jenis": "hutang", "jumlah": 50000, "status": "selesai"}],
    "coa": [{"kode": "1-1000", "nama": "Kas", "tipe": "Aset", "saldo": 50000000}]
  }

NORMALIZATION:
  - Amounts accept JSON numbers or numeric strings; null and "" are zero.
  - Loan status: "lunas" (any case) is Lunas, everything else is Aktif.
  - statusKeanggotaan: "keluar" (any case) is Keluar, everything else
    Aktif. Exit fields of an Aktif member are cleared.
  - A Keluar member needs tanggalKeluar and alasanKeluar; a Selesai refund
    needs pengembalianId. Parse rejects the dump otherwise.
  - Records without an id get a fresh UUID.
  - Records whose anggotaId is unknown are skipped and reported.

USAGE:
  ds, err := ingest.Parse(data)
  summary, err := ingest.Load(ctx, store, ds)

SEE ALSO:
  - koperasi/types.go: Target record types
  - api/handlers.go: POST /api/import
*/
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/koperasi-engine/koperasi"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DumpJSON is the JSON representation of the whole dataset.
type DumpJSON struct {
	Anggota       []AnggotaJSON    `json:"anggota"`
	SimpananPokok []SimpananJSON   `json:"simpananPokok"`
	SimpananWajib []SimpananJSON   `json:"simpananWajib"`
	Pinjaman      []PinjamanJSON   `json:"pinjaman"`
	Penjualan     []PenjualanJSON  `json:"penjualan"`
	Pembayaran    []PembayaranJSON `json:"pembayaranHutangPiutang"`
	COA           []AkunJSON       `json:"coa"`
}

type AnggotaJSON struct {
	ID                 string         `json:"id"`
	NIK                string         `json:"nik"`
	Nama               string         `json:"nama"`
	NoKartu            string         `json:"noKartu"`
	Departemen         string         `json:"departemen"`
	TipeAnggota        string         `json:"tipeAnggota"`
	Status             string         `json:"status"`
	Telepon            string         `json:"telepon"`
	Email              string         `json:"email"`
	Alamat             string         `json:"alamat"`
	TanggalDaftar      koperasi.Date  `json:"tanggalDaftar"`
	StatusKeanggotaan  string         `json:"statusKeanggotaan"`
	TanggalKeluar      *koperasi.Date `json:"tanggalKeluar"`
	AlasanKeluar       *string        `json:"alasanKeluar"`
	PengembalianStatus *string        `json:"pengembalianStatus"`
	PengembalianID     *string        `json:"pengembalianId"`
}

type SimpananJSON struct {
	ID        string        `json:"id"`
	AnggotaID string        `json:"anggotaId"`
	Jumlah    Amount        `json:"jumlah"`
	Periode   string        `json:"periode,omitempty"`
	Tanggal   koperasi.Date `json:"tanggal"`
}

type PinjamanJSON struct {
	ID        string        `json:"id"`
	AnggotaID string        `json:"anggotaId"`
	Jumlah    Amount        `json:"jumlah"`
	Status    string        `json:"status"`
	Tanggal   koperasi.Date `json:"tanggal"`
}

type PenjualanJSON struct {
	ID        string        `json:"id"`
	AnggotaID string        `json:"anggotaId"`
	Total     Amount        `json:"total"`
	Status    string        `json:"status"`
	Tanggal   koperasi.Date `json:"tanggal"`
}

type PembayaranJSON struct {
	ID        string        `json:"id"`
	AnggotaID string        `json:"anggotaId"`
	Jenis     string        `json:"jenis"`
	Jumlah    Amount        `json:"jumlah"`
	Status    string        `json:"status"`
	Tanggal   koperasi.Date `json:"tanggal"`
}

type AkunJSON struct {
	Kode  string `json:"kode"`
	Nama  string `json:"nama"`
	Tipe  string `json:"tipe"`
	Saldo Amount `json:"saldo"`
}

// Amount accepts 1500000, 1500000.5, "1500000" and "1500000.50".
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			a.Decimal = decimal.Zero
			return nil
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(b), err)
	}
	a.Decimal = d
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Parse decodes a dump. Unknown keys are ignored.
func Parse(data []byte) (*DumpJSON, error) {
	var d DumpJSON
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, koperasi.Wrap(koperasi.CodeInvalidParameter, "format data import tidak valid", err)
	}
	for i, a := range d.Anggota {
		if strings.TrimSpace(a.ID) == "" {
			return nil, koperasi.Errorf(koperasi.CodeInvalidParameter, "anggota #%d tidak memiliki id", i+1)
		}
		if err := a.checkKeluar(); err != nil {
			return nil, koperasi.Errorf(koperasi.CodeInvalidParameter, "anggota #%d (%s): %s", i+1, a.ID, err).
				WithData(map[string]any{"anggotaId": a.ID})
		}
	}
	for i, a := range d.COA {
		if strings.TrimSpace(a.Kode) == "" {
			return nil, koperasi.Errorf(koperasi.CodeInvalidParameter, "akun #%d tidak memiliki kode", i+1)
		}
	}
	return &d, nil
}

// NormalizeStatusPinjaman maps free-text loan status to the enum.
func NormalizeStatusPinjaman(raw string) koperasi.StatusPinjaman {
	if strings.EqualFold(strings.TrimSpace(raw), string(koperasi.PinjamanLunas)) {
		return koperasi.PinjamanLunas
	}
	return koperasi.PinjamanAktif
}

func normalizeTipeAkun(raw string, kode string) koperasi.TipeAkun {
	for _, t := range []koperasi.TipeAkun{
		koperasi.AkunAset, koperasi.AkunKewajiban, koperasi.AkunModal,
		koperasi.AkunPendapatan, koperasi.AkunBeban,
	} {
		if strings.EqualFold(strings.TrimSpace(raw), string(t)) {
			return t
		}
	}
	// Fall back to the leading digit of the code.
	switch {
	case strings.HasPrefix(kode, "1"):
		return koperasi.AkunAset
	case strings.HasPrefix(kode, "2"):
		return koperasi.AkunKewajiban
	case strings.HasPrefix(kode, "3"):
		return koperasi.AkunModal
	case strings.HasPrefix(kode, "4"):
		return koperasi.AkunPendapatan
	default:
		return koperasi.AkunBeban
	}
}

// checkKeluar rejects a Keluar member without exit date or reason, and a
// Selesai refund without its settlement id.
func (aj AnggotaJSON) checkKeluar() error {
	if !aj.isKeluar() {
		return nil
	}
	if aj.TanggalKeluar == nil || aj.TanggalKeluar.IsZero() {
		return fmt.Errorf("status Keluar tanpa tanggalKeluar")
	}
	if aj.AlasanKeluar == nil || strings.TrimSpace(*aj.AlasanKeluar) == "" {
		return fmt.Errorf("status Keluar tanpa alasanKeluar")
	}
	if aj.isSelesai() && (aj.PengembalianID == nil || strings.TrimSpace(*aj.PengembalianID) == "") {
		return fmt.Errorf("pengembalianStatus Selesai tanpa pengembalianId")
	}
	return nil
}

func (aj AnggotaJSON) isKeluar() bool {
	return strings.EqualFold(strings.TrimSpace(aj.StatusKeanggotaan), string(koperasi.KeanggotaanKeluar))
}

func (aj AnggotaJSON) isSelesai() bool {
	return aj.PengembalianStatus != nil &&
		strings.EqualFold(strings.TrimSpace(*aj.PengembalianStatus), string(koperasi.PengembalianSelesai))
}

// ToAnggota normalizes the membership state of one member.
func (aj AnggotaJSON) ToAnggota() koperasi.Anggota {
	a := koperasi.Anggota{
		ID:                strings.TrimSpace(aj.ID),
		NIK:               aj.NIK,
		Nama:              aj.Nama,
		NoKartu:           aj.NoKartu,
		Departemen:        aj.Departemen,
		TipeAnggota:       aj.TipeAnggota,
		Status:            aj.Status,
		Telepon:           aj.Telepon,
		Email:             aj.Email,
		Alamat:            aj.Alamat,
		TanggalDaftar:     aj.TanggalDaftar,
		StatusKeanggotaan: koperasi.KeanggotaanAktif,
	}
	if !aj.isKeluar() {
		return a
	}

	a.StatusKeanggotaan = koperasi.KeanggotaanKeluar
	if aj.TanggalKeluar != nil && !aj.TanggalKeluar.IsZero() {
		d := *aj.TanggalKeluar
		a.TanggalKeluar = &d
	}
	if aj.AlasanKeluar != nil {
		s := *aj.AlasanKeluar
		a.AlasanKeluar = &s
	}
	status := koperasi.PengembalianPending
	if aj.isSelesai() {
		status = koperasi.PengembalianSelesai
	}
	a.PengembalianStatus = &status
	if status == koperasi.PengembalianSelesai && aj.PengembalianID != nil && *aj.PengembalianID != "" {
		id := *aj.PengembalianID
		a.PengembalianID = &id
	}
	return a
}
