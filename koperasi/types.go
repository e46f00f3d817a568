/*
Package koperasi provides the core records and contracts of the koperasi
(cooperative) bookkeeping engine.

PURPOSE:
  Holds the domain records shared by every workflow: members (anggota),
  savings entries (simpanan), loans (pinjaman), credit sales and debt
  payments, the chart of accounts, journal entries, settlements
  (pengembalian) and the audit log. Workflow packages (anggota,
  pengembalian, transaksi, jurnal) operate on these records through the
  repository interfaces in store.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rupiah amounts: decimal.Decimal, integer rupiah in practice
  - Anggota: identity + membership state (Aktif / Keluar)
  - Simpanan, Pinjaman, Penjualan, PembayaranHutangPiutang: ledger inputs
  - Akun, Jurnal: chart of accounts and double-entry journal
  - Pengembalian: the immutable settlement record written on exit

MEMBERSHIP STATE:
  statusKeanggotaan = Keluar  <=>  tanggalKeluar and alasanKeluar are set
  pengembalianStatus = Selesai =>  statusKeanggotaan = Keluar, pengembalianId set

SEE ALSO:
  - errors.go: Error codes returned by every operation
  - store.go: Repository interfaces
  - ledger.go: Read-only sums over the ledgers
*/
package koperasi

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNTS
// =============================================================================

// Rp builds a rupiah amount from an integer.
func Rp(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// SumTolerance is the allowed rounding gap between debit and credit totals.
var SumTolerance = decimal.NewFromFloat(0.01)

// =============================================================================
// ANGGOTA - Cooperative member
// =============================================================================

type StatusKeanggotaan string

const (
	KeanggotaanAktif  StatusKeanggotaan = "Aktif"
	KeanggotaanKeluar StatusKeanggotaan = "Keluar"
)

type StatusPengembalian string

const (
	PengembalianPending StatusPengembalian = "Pending"
	PengembalianSelesai StatusPengembalian = "Selesai"
)

// Anggota is a member record. Pointer fields are null unless the member
// has exited; every other field is historical and never touched by the
// exit workflow.
type Anggota struct {
	ID            string `json:"id"`
	NIK           string `json:"nik"`
	Nama          string `json:"nama"`
	NoKartu       string `json:"noKartu"`
	Departemen    string `json:"departemen"`
	TipeAnggota   string `json:"tipeAnggota"`
	Status        string `json:"status"` // operational: Aktif, Nonaktif, Cuti
	Telepon       string `json:"telepon"`
	Email         string `json:"email"`
	Alamat        string `json:"alamat"`
	TanggalDaftar Date   `json:"tanggalDaftar"`

	StatusKeanggotaan  StatusKeanggotaan   `json:"statusKeanggotaan"`
	TanggalKeluar      *Date               `json:"tanggalKeluar"`
	AlasanKeluar       *string             `json:"alasanKeluar"`
	PengembalianStatus *StatusPengembalian `json:"pengembalianStatus"`
	PengembalianID     *string             `json:"pengembalianId"`
}

func (a *Anggota) IsKeluar() bool {
	return a.StatusKeanggotaan == KeanggotaanKeluar
}

func (a *Anggota) IsSettled() bool {
	return a.PengembalianStatus != nil && *a.PengembalianStatus == PengembalianSelesai
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (a Anggota) Clone() Anggota {
	c := a
	if a.TanggalKeluar != nil {
		d := *a.TanggalKeluar
		c.TanggalKeluar = &d
	}
	if a.AlasanKeluar != nil {
		s := *a.AlasanKeluar
		c.AlasanKeluar = &s
	}
	if a.PengembalianStatus != nil {
		s := *a.PengembalianStatus
		c.PengembalianStatus = &s
	}
	if a.PengembalianID != nil {
		s := *a.PengembalianID
		c.PengembalianID = &s
	}
	return c
}

// =============================================================================
// SIMPANAN - Savings entries (pokok and wajib share a shape)
// =============================================================================

type JenisSimpanan string

const (
	SimpananPokok JenisSimpanan = "pokok"
	SimpananWajib JenisSimpanan = "wajib"
)

// Simpanan is immutable once written.
type Simpanan struct {
	ID        string          `json:"id"`
	AnggotaID string          `json:"anggotaId"`
	Jenis     JenisSimpanan   `json:"jenis"`
	Jumlah    decimal.Decimal `json:"jumlah"`
	Periode   string          `json:"periode,omitempty"` // wajib only, e.g. "2024-11"
	Tanggal   Date            `json:"tanggal"`
}

// =============================================================================
// PINJAMAN - Loans
// =============================================================================

// StatusPinjaman is normalized at ingestion. Anything that is not "lunas"
// (case-insensitive) is Aktif.
type StatusPinjaman string

const (
	PinjamanAktif StatusPinjaman = "aktif"
	PinjamanLunas StatusPinjaman = "lunas"
)

type Pinjaman struct {
	ID        string          `json:"id"`
	AnggotaID string          `json:"anggotaId"`
	Jumlah    decimal.Decimal `json:"jumlah"`
	Status    StatusPinjaman  `json:"status"`
	StatusRaw string          `json:"statusRaw,omitempty"` // original free text
	Tanggal   Date            `json:"tanggal"`
}

func (p Pinjaman) IsAktif() bool {
	return p.Status != PinjamanLunas
}

// =============================================================================
// KEWAJIBAN LAIN - Credit sales and debt payments
// =============================================================================

const (
	PenjualanTunai  = "tunai"
	PenjualanKredit = "kredit"
)

// Penjualan is a POS sale. Only status=kredit sales create an obligation.
type Penjualan struct {
	ID        string          `json:"id"`
	AnggotaID string          `json:"anggotaId"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	Tanggal   Date            `json:"tanggal"`
}

const (
	JenisHutang   = "hutang"
	JenisPiutang  = "piutang"
	StatusSelesai = "selesai"
)

// PembayaranHutangPiutang is a payment against credit sales (hutang) or a
// receivable. Settled hutang payments reduce kewajiban lain.
type PembayaranHutangPiutang struct {
	ID        string          `json:"id"`
	AnggotaID string          `json:"anggotaId"`
	Jenis     string          `json:"jenis"`
	Jumlah    decimal.Decimal `json:"jumlah"`
	Status    string          `json:"status"`
	Tanggal   Date            `json:"tanggal"`
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

type TipeAkun string

const (
	AkunAset       TipeAkun = "Aset"
	AkunKewajiban  TipeAkun = "Kewajiban"
	AkunModal      TipeAkun = "Modal"
	AkunPendapatan TipeAkun = "Pendapatan"
	AkunBeban      TipeAkun = "Beban"
)

// Well-known account codes.
const (
	KodeKas            = "1-1000"
	KodeBank           = "1-1100"
	KodePiutangAnggota = "1-1200"
	KodeSimpananPokok  = "2-1100"
	KodeSimpananWajib  = "2-1200"
	KodeModal          = "3-1000"
	KodePendapatan     = "4-1000"
)

type Akun struct {
	Kode  string          `json:"kode"`
	Nama  string          `json:"nama"`
	Tipe  TipeAkun        `json:"tipe"`
	Saldo decimal.Decimal `json:"saldo"`
}

// NormalCredit reports whether the account grows with credits.
func (a Akun) NormalCredit() bool {
	switch a.Tipe {
	case AkunKewajiban, AkunModal, AkunPendapatan:
		return true
	}
	return false
}

// DefaultCOA is the chart of accounts seeded into an empty store.
func DefaultCOA() []Akun {
	return []Akun{
		{Kode: KodeKas, Nama: "Kas", Tipe: AkunAset, Saldo: decimal.Zero},
		{Kode: KodeBank, Nama: "Bank", Tipe: AkunAset, Saldo: decimal.Zero},
		{Kode: KodePiutangAnggota, Nama: "Piutang Anggota", Tipe: AkunAset, Saldo: decimal.Zero},
		{Kode: KodeSimpananPokok, Nama: "Simpanan Pokok", Tipe: AkunKewajiban, Saldo: decimal.Zero},
		{Kode: KodeSimpananWajib, Nama: "Simpanan Wajib", Tipe: AkunKewajiban, Saldo: decimal.Zero},
		{Kode: KodeModal, Nama: "Modal", Tipe: AkunModal, Saldo: decimal.Zero},
		{Kode: KodePendapatan, Nama: "Pendapatan Penjualan", Tipe: AkunPendapatan, Saldo: decimal.Zero},
	}
}

// =============================================================================
// JURNAL - Double-entry journal
// =============================================================================

// JurnalLine has exactly one nonzero side.
type JurnalLine struct {
	Akun   string          `json:"akun"`
	Debit  decimal.Decimal `json:"debit"`
	Kredit decimal.Decimal `json:"kredit"`
}

type Jurnal struct {
	ID          string       `json:"id"`
	Tanggal     Date         `json:"tanggal"`
	Keterangan  string       `json:"keterangan"`
	Entries     []JurnalLine `json:"entries"`
	ReferenceID string       `json:"referenceId,omitempty"` // e.g. settlement id
	ReversalOf  string       `json:"reversalOf,omitempty"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Totals returns Σdebit and Σkredit.
func (j Jurnal) Totals() (debit, kredit decimal.Decimal) {
	debit, kredit = decimal.Zero, decimal.Zero
	for _, e := range j.Entries {
		debit = debit.Add(e.Debit)
		kredit = kredit.Add(e.Kredit)
	}
	return debit, kredit
}

// =============================================================================
// PENGEMBALIAN - Settlement of savings on exit
// =============================================================================

type MetodePembayaran string

const (
	MetodeKas          MetodePembayaran = "Kas"
	MetodeTransferBank MetodePembayaran = "Transfer Bank"
)

// ValidMetode lists the accepted payment methods in display order.
func ValidMetode() []string {
	return []string{string(MetodeKas), string(MetodeTransferBank)}
}

// KodeAkunKas maps a payment method to the cash account it credits.
func (m MetodePembayaran) KodeAkunKas() string {
	if m == MetodeTransferBank {
		return KodeBank
	}
	return KodeKas
}

// Pengembalian is written once per posting and never modified.
type Pengembalian struct {
	ID                string             `json:"id"`
	AnggotaID         string             `json:"anggotaId"`
	AnggotaNama       string             `json:"anggotaNama"`
	Status            StatusPengembalian `json:"status"`
	SimpananPokok     decimal.Decimal    `json:"simpananPokok"`
	SimpananWajib     decimal.Decimal    `json:"simpananWajib"`
	KewajibanLain     decimal.Decimal    `json:"kewajibanLain"`
	TotalSimpanan     decimal.Decimal    `json:"totalSimpanan"`
	TotalPengembalian decimal.Decimal    `json:"totalPengembalian"`
	MetodePembayaran  MetodePembayaran   `json:"metodePembayaran"`
	TanggalPembayaran Date               `json:"tanggalPembayaran"`
	Keterangan        string             `json:"keterangan"`
	NomorReferensi    string             `json:"nomorReferensi"`
	JurnalID          string             `json:"jurnalId"`
	CreatedBy         string             `json:"createdBy"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditAction string

const (
	AuditMarkKeluar         AuditAction = "MARK_KELUAR"
	AuditCancelKeluar       AuditAction = "CANCEL_KELUAR"
	AuditProsesPengembalian AuditAction = "PROSES_PENGEMBALIAN"
)

// AuditEntry records who did what when. Append-only.
type AuditEntry struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	ActorID     string         `json:"actor"`
	Action      AuditAction    `json:"action"`
	AnggotaID   string         `json:"anggotaId"`
	AnggotaNama string         `json:"anggotaNama"`
	Payload     map[string]any `json:"payload,omitempty"`
}

type AuditFilter struct {
	AnggotaID *string
	Actions   []AuditAction
}
