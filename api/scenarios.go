/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built datasets that put the store into a state showing one
  path of the settlement workflow. Each dataset is a JSON dump in the
  same format POST /api/import accepts and is loaded through ingest.

AVAILABLE SCENARIOS:
  keluar-bersih:   Exited member with savings only, settles cleanly
  pinjaman-aktif:  Exited member with a running loan (ACTIVE_LOAN_EXISTS)
  hutang-kredit:   Exited member with unpaid credit sales (kewajiban lain)
  kas-kurang:      Cash account too small for the refund (INSUFFICIENT_BALANCE)

HOW SCENARIOS WORK:
 1. Reset the store (all collections, chart of accounts included)
 2. Parse the scenario JSON via ingest.Parse
 3. Load it via ingest.Load (one atomic unit)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "hutang-kredit"}

NOTE:
  Scenarios wipe the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Import endpoint, same loader
  - ingest/dump.go: JSON schema
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/koperasi-engine/ingest"
	"github.com/warp/koperasi-engine/koperasi"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	data string
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "keluar-bersih",
			Name:        "Keluar Bersih",
			Description: "Anggota keluar dengan simpanan pokok dan wajib, tanpa pinjaman atau hutang",
			Category:    "pengembalian",
		},
		data: keluarBersihJSON,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "pinjaman-aktif",
			Name:        "Pinjaman Aktif",
			Description: "Anggota keluar yang masih memiliki pinjaman berjalan",
			Category:    "pengembalian",
		},
		data: pinjamanAktifJSON,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "hutang-kredit",
			Name:        "Hutang Penjualan Kredit",
			Description: "Anggota keluar dengan sisa hutang penjualan kredit yang dipotong dari simpanan",
			Category:    "pengembalian",
		},
		data: hutangKreditJSON,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "kas-kurang",
			Name:        "Saldo Kas Kurang",
			Description: "Saldo kas koperasi lebih kecil dari total pengembalian",
			Category:    "pengembalian",
		},
		data: kasKurangJSON,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		list = append(list, s.ScenarioDTO)
	}
	writeData(w, http.StatusOK, list)
}

// GetCurrentScenario returns the loaded scenario, or null data.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if s, ok := findScenario(current); ok {
		writeData(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeData(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined dataset.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		h.writeError(w, r, koperasi.Errorf(koperasi.CodeInvalidParameter, "scenario tidak dikenal: %s", req.ScenarioID))
		return
	}

	summary, err := h.loadScenario(r.Context(), s)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", s.ID), zap.Int("anggota", summary.Anggota))
	writeData(w, http.StatusOK, map[string]any{
		"scenario": s.ScenarioDTO,
		"summary":  summary,
	})
}

// ResetDatabase wipes the store and seeds the default chart of accounts.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := seedCOA(r.Context(), h.Store); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeData(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) (*ingest.Summary, error) {
	dump, err := ingest.Parse([]byte(s.data))
	if err != nil {
		return nil, err
	}
	if err := h.reset(ctx); err != nil {
		return nil, err
	}
	return ingest.Load(ctx, h.Store, dump)
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(koperasi.Resettable)
	if !ok {
		return koperasi.NewError(koperasi.CodeSystemError, "store tidak mendukung reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return koperasi.Wrap(koperasi.CodeUpdateFailed, "gagal mereset data", err)
	}
	return nil
}

// seedCOA writes the default chart of accounts with zero balances.
func seedCOA(ctx context.Context, store koperasi.Store) error {
	for _, akun := range koperasi.DefaultCOA() {
		if err := store.SaveAkun(ctx, akun); err != nil {
			return koperasi.Wrap(koperasi.CodeUpdateFailed, fmt.Sprintf("gagal menyimpan akun %s", akun.Kode), err)
		}
	}
	return nil
}

// =============================================================================
// DATASETS
// =============================================================================

// coaJSON renders the default chart of accounts with the given balances.
func coaJSON(kas, piutang, pokok, wajib int64) string {
	return fmt.Sprintf(`[
		{"kode": "1-1000", "nama": "Kas", "tipe": "Aset", "saldo": %d},
		{"kode": "1-1100", "nama": "Bank", "tipe": "Aset", "saldo": 25000000},
		{"kode": "1-1200", "nama": "Piutang Anggota", "tipe": "Aset", "saldo": %d},
		{"kode": "2-1100", "nama": "Simpanan Pokok", "tipe": "Kewajiban", "saldo": %d},
		{"kode": "2-1200", "nama": "Simpanan Wajib", "tipe": "Kewajiban", "saldo": %d},
		{"kode": "3-1000", "nama": "Modal", "tipe": "Modal", "saldo": 0},
		{"kode": "4-1000", "nama": "Pendapatan Penjualan", "tipe": "Pendapatan", "saldo": 0}
	]`, kas, piutang, pokok, wajib)
}

var keluarBersihJSON = `{
	"anggota": [
		{"id": "A001", "nik": "3201010101800001", "nama": "Budi Santoso", "noKartu": "KOP-0001",
		 "departemen": "Produksi", "tipeAnggota": "Karyawan", "status": "Aktif",
		 "tanggalDaftar": "2020-01-15", "statusKeanggotaan": "Keluar",
		 "tanggalKeluar": "2024-12-01", "alasanKeluar": "Pensiun", "pengembalianStatus": "Pending"},
		{"id": "A002", "nik": "3201010101850002", "nama": "Siti Aminah", "noKartu": "KOP-0002",
		 "departemen": "Keuangan", "tipeAnggota": "Karyawan", "status": "Aktif",
		 "tanggalDaftar": "2021-03-01", "statusKeanggotaan": "Aktif"}
	],
	"simpananPokok": [
		{"id": "SP-A001", "anggotaId": "A001", "jumlah": 1000000, "tanggal": "2020-01-15"},
		{"id": "SP-A002", "anggotaId": "A002", "jumlah": 1000000, "tanggal": "2021-03-01"}
	],
	"simpananWajib": [
		{"id": "SW-A001-07", "anggotaId": "A001", "jumlah": 100000, "periode": "2024-07", "tanggal": "2024-07-25"},
		{"id": "SW-A001-08", "anggotaId": "A001", "jumlah": 100000, "periode": "2024-08", "tanggal": "2024-08-25"},
		{"id": "SW-A001-09", "anggotaId": "A001", "jumlah": "100000", "periode": "2024-09", "tanggal": "2024-09-25"},
		{"id": "SW-A001-10", "anggotaId": "A001", "jumlah": 100000, "periode": "2024-10", "tanggal": "2024-10-25"},
		{"id": "SW-A001-11", "anggotaId": "A001", "jumlah": 100000, "periode": "2024-11", "tanggal": "2024-11-25"},
		{"id": "SW-A002-11", "anggotaId": "A002", "jumlah": 100000, "periode": "2024-11", "tanggal": "2024-11-25"}
	],
	"coa": ` + coaJSON(50000000, 0, 2000000, 600000) + `
}`

var pinjamanAktifJSON = `{
	"anggota": [
		{"id": "A003", "nik": "3201010101820003", "nama": "Andi Wijaya", "noKartu": "KOP-0003",
		 "departemen": "Gudang", "tipeAnggota": "Karyawan", "status": "Aktif",
		 "tanggalDaftar": "2019-06-10", "statusKeanggotaan": "Keluar",
		 "tanggalKeluar": "2024-11-30", "alasanKeluar": "Pindah kerja", "pengembalianStatus": "Pending"}
	],
	"simpananPokok": [
		{"id": "SP-A003", "anggotaId": "A003", "jumlah": 1000000, "tanggal": "2019-06-10"}
	],
	"simpananWajib": [
		{"id": "SW-A003-09", "anggotaId": "A003", "jumlah": 100000, "periode": "2024-09", "tanggal": "2024-09-25"},
		{"id": "SW-A003-10", "anggotaId": "A003", "jumlah": 100000, "periode": "2024-10", "tanggal": "2024-10-25"},
		{"id": "SW-A003-11", "anggotaId": "A003", "jumlah": 100000, "periode": "2024-11", "tanggal": "2024-11-25"}
	],
	"pinjaman": [
		{"id": "PJ-A003-1", "anggotaId": "A003", "jumlah": 5000000, "status": "Berjalan", "tanggal": "2024-05-02"},
		{"id": "PJ-A003-0", "anggotaId": "A003", "jumlah": 2000000, "status": "Lunas", "tanggal": "2022-01-10"}
	],
	"coa": ` + coaJSON(50000000, 5000000, 1000000, 300000) + `
}`

var hutangKreditJSON = `{
	"anggota": [
		{"id": "A004", "nik": "3201010101880004", "nama": "Citra Lestari", "noKartu": "KOP-0004",
		 "departemen": "Pemasaran", "tipeAnggota": "Karyawan", "status": "Aktif",
		 "tanggalDaftar": "2022-02-01", "statusKeanggotaan": "Keluar",
		 "tanggalKeluar": "2024-12-02", "alasanKeluar": "Mengundurkan diri", "pengembalianStatus": "Pending"}
	],
	"simpananPokok": [
		{"id": "SP-A004", "anggotaId": "A004", "jumlah": 1000000, "tanggal": "2022-02-01"}
	],
	"simpananWajib": [
		{"id": "SW-A004-10", "anggotaId": "A004", "jumlah": 250000, "periode": "2024-10", "tanggal": "2024-10-25"},
		{"id": "SW-A004-11", "anggotaId": "A004", "jumlah": 250000, "periode": "2024-11", "tanggal": "2024-11-25"}
	],
	"penjualan": [
		{"id": "PN-A004-1", "anggotaId": "A004", "total": 250000, "status": "Kredit", "tanggal": "2024-10-03"},
		{"id": "PN-A004-2", "anggotaId": "A004", "total": 100000, "status": "kredit", "tanggal": "2024-11-12"},
		{"id": "PN-A004-3", "anggotaId": "A004", "total": 75000, "status": "tunai", "tanggal": "2024-11-20"}
	],
	"pembayaranHutangPiutang": [
		{"id": "BY-A004-1", "anggotaId": "A004", "jenis": "hutang", "jumlah": 50000, "status": "selesai", "tanggal": "2024-11-25"}
	],
	"coa": ` + coaJSON(50000000, 300000, 1000000, 500000) + `
}`

var kasKurangJSON = `{
	"anggota": [
		{"id": "A005", "nik": "3201010101900005", "nama": "Dewi Kartika", "noKartu": "KOP-0005",
		 "departemen": "Administrasi", "tipeAnggota": "Karyawan", "status": "Aktif",
		 "tanggalDaftar": "2021-08-16", "statusKeanggotaan": "Keluar",
		 "tanggalKeluar": "2024-12-03", "alasanKeluar": "Pensiun", "pengembalianStatus": "Pending"}
	],
	"simpananPokok": [
		{"id": "SP-A005", "anggotaId": "A005", "jumlah": 1000000, "tanggal": "2021-08-16"}
	],
	"simpananWajib": [
		{"id": "SW-A005-10", "anggotaId": "A005", "jumlah": 250000, "periode": "2024-10", "tanggal": "2024-10-25"},
		{"id": "SW-A005-11", "anggotaId": "A005", "jumlah": 250000, "periode": "2024-11", "tanggal": "2024-11-25"}
	],
	"coa": ` + coaJSON(500000, 0, 1000000, 500000) + `
}`
