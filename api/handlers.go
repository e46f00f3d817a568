/*
handlers.go - HTTP API handlers for the koperasi engine

PURPOSE:
  Exposes member exit, refund settlement and the gated member
  transactions via REST. Handlers parse the request, call one service
  method and render the envelope. No business rule lives here.

ENDPOINTS:
  Anggota:
    GET    /api/anggota                              List members
    GET    /api/anggota/{id}                         Get member
    POST   /api/anggota/{id}/keluar                  Mark member as exited
    POST   /api/anggota/{id}/batal-keluar            Cancel exit

  Pengembalian:
    GET    /api/anggota/{id}/pengembalian            Refund preview
    POST   /api/anggota/{id}/pengembalian/validasi   Pre-flight checks
    POST   /api/anggota/{id}/pengembalian            Process settlement
    GET    /api/pengembalian                         List settlements
    GET    /api/pengembalian/export.csv              CSV report
    GET    /api/pengembalian/{id}/bukti              Receipt (HTML)

  Transaksi (blocked for exited members):
    POST   /api/anggota/{id}/simpanan                Savings deposit
    POST   /api/anggota/{id}/pinjaman                Loan disbursement
    POST   /api/anggota/{id}/penjualan               POS sale
    POST   /api/anggota/{id}/pembayaran-hutang       Debt payment

  Reports and data:
    GET    /api/jurnal, /api/akun, /api/audit
    POST   /api/import                               Load a JSON dump

ACTOR:
  The acting user comes from the X-Actor header, falling back to
  Handler.DefaultActor.

ERROR HANDLING:
  Every error is rendered as {"success": false, "error": {...}} with the
  status from statusFor:
  - 400: INVALID_PARAMETER, PAYMENT_* codes
  - 404: *_NOT_FOUND
  - 409: state conflicts (already keluar, active loan, ...)
  - 422: VALIDATION_FAILED, UNBALANCED_JOURNAL
  - 500: UPDATE_FAILED, CALCULATION_FAILED, SYSTEM_ERROR

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/koperasi-engine/anggota"
	"github.com/warp/koperasi-engine/ingest"
	"github.com/warp/koperasi-engine/jurnal"
	"github.com/warp/koperasi-engine/koperasi"
	"github.com/warp/koperasi-engine/pengembalian"
	"github.com/warp/koperasi-engine/transaksi"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ActorHeader names the request header carrying the acting user.
const ActorHeader = "X-Actor"

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        koperasi.Store
	Anggota      *anggota.Service
	Pengembalian *pengembalian.Service
	Transaksi    *transaksi.Service
	Logger       *zap.Logger

	DefaultActor string
	MaxBodySize  int64

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the services over store.
func NewHandler(store koperasi.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:        store,
		Anggota:      anggota.NewService(store, logger),
		Pengembalian: pengembalian.NewService(store, logger),
		Transaksi:    transaksi.NewService(store, logger),
		Logger:       logger.Named("api"),
		DefaultActor: "admin",
		MaxBodySize:  10 << 20,
	}
}

// =============================================================================
// ANGGOTA ENDPOINTS
// =============================================================================

func (h *Handler) ListAnggota(w http.ResponseWriter, r *http.Request) {
	list, err := h.Anggota.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []koperasi.Anggota{}
	}
	writeData(w, http.StatusOK, list)
}

func (h *Handler) GetAnggota(w http.ResponseWriter, r *http.Request) {
	a, err := h.Anggota.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (h *Handler) MarkKeluar(w http.ResponseWriter, r *http.Request) {
	var req KeluarRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.Anggota.MarkKeluar(r.Context(), h.actor(r), chi.URLParam(r, "id"), req.TanggalKeluar, req.AlasanKeluar)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (h *Handler) CancelKeluar(w http.ResponseWriter, r *http.Request) {
	a, err := h.Anggota.CancelKeluar(r.Context(), h.actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

// =============================================================================
// PENGEMBALIAN ENDPOINTS
// =============================================================================

func (h *Handler) CalculatePengembalian(w http.ResponseWriter, r *http.Request) {
	calc, err := h.Pengembalian.Calculate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, calc)
}

// ValidatePengembalian accepts an empty body; metode_pembayaran is only
// checked when the key is present.
func (h *Handler) ValidatePengembalian(w http.ResponseWriter, r *http.Request) {
	var req ValidasiRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	v, err := h.Pengembalian.Validate(r.Context(), chi.URLParam(r, "id"), req.MetodePembayaran.Ptr())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidationResponse{
		Success:     true,
		Valid:       v.Valid,
		Errors:      v.Errors,
		Warnings:    v.Warnings,
		Perhitungan: v.Perhitungan,
	})
}

func (h *Handler) ProcessPengembalian(w http.ResponseWriter, r *http.Request) {
	var req ProsesPengembalianRequest
	if !h.decode(w, r, &req) {
		return
	}
	metode := ""
	if req.MetodePembayaran != nil {
		metode = *req.MetodePembayaran
	}
	hasil, err := h.Pengembalian.Process(r.Context(), h.actor(r), pengembalian.ProcessRequest{
		AnggotaID:         chi.URLParam(r, "id"),
		MetodePembayaran:  metode,
		TanggalPembayaran: req.TanggalPembayaran,
		Keterangan:        req.Keterangan,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, hasil)
}

func (h *Handler) ListPengembalian(w http.ResponseWriter, r *http.Request) {
	list, err := h.Pengembalian.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []koperasi.Pengembalian{}
	}
	writeData(w, http.StatusOK, list)
}

func (h *Handler) ExportPengembalian(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="pengembalian-%s.csv"`, time.Now().Format("20060102")))
	if err := h.Pengembalian.ExportCSV(r.Context(), w); err != nil {
		// Headers may already be sent; log only.
		h.Logger.Error("export pengembalian failed", zap.Error(err))
	}
}

func (h *Handler) GetBukti(w http.ResponseWriter, r *http.Request) {
	bukti, err := h.Pengembalian.GenerateBukti(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeData(w, http.StatusOK, bukti)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, bukti.Filename))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, bukti.HTML)
}

// =============================================================================
// TRANSAKSI ENDPOINTS
// =============================================================================

func (h *Handler) SetorSimpanan(w http.ResponseWriter, r *http.Request) {
	var req SetoranRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Transaksi.SetorSimpanan(r.Context(), h.actor(r), transaksi.SetoranRequest{
		AnggotaID: chi.URLParam(r, "id"),
		Jenis:     koperasi.JenisSimpanan(strings.ToLower(strings.TrimSpace(req.Jenis))),
		Jumlah:    req.Jumlah,
		Periode:   req.Periode,
		Tanggal:   req.Tanggal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

func (h *Handler) CairkanPinjaman(w http.ResponseWriter, r *http.Request) {
	var req PinjamanRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Transaksi.CairkanPinjaman(r.Context(), h.actor(r), transaksi.PinjamanRequest{
		AnggotaID: chi.URLParam(r, "id"),
		Jumlah:    req.Jumlah,
		Tanggal:   req.Tanggal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

func (h *Handler) CatatPenjualan(w http.ResponseWriter, r *http.Request) {
	var req PenjualanRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Transaksi.CatatPenjualan(r.Context(), h.actor(r), transaksi.PenjualanRequest{
		AnggotaID: chi.URLParam(r, "id"),
		Total:     req.Total,
		Status:    req.Status,
		Tanggal:   req.Tanggal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

func (h *Handler) BayarHutang(w http.ResponseWriter, r *http.Request) {
	var req PembayaranHutangRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.Transaksi.BayarHutang(r.Context(), h.actor(r), transaksi.PembayaranRequest{
		AnggotaID: chi.URLParam(r, "id"),
		Jumlah:    req.Jumlah,
		Tanggal:   req.Tanggal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

func (h *Handler) ListJurnal(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListJurnal(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []koperasi.Jurnal{}
	}
	writeData(w, http.StatusOK, JurnalListDTO{Entries: entries, Summary: jurnal.Summarize(entries)})
}

func (h *Handler) ListAkun(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListAkun(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []koperasi.Akun{}
	}
	writeData(w, http.StatusOK, list)
}

// ListAudit filters by ?anggota_id= and repeated ?action=.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	var f koperasi.AuditFilter
	q := r.URL.Query()
	if id := q.Get("anggota_id"); id != "" {
		f.AnggotaID = &id
	}
	for _, a := range q["action"] {
		f.Actions = append(f.Actions, koperasi.AuditAction(strings.ToUpper(a)))
	}
	entries, err := h.Store.QueryAudit(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []koperasi.AuditEntry{}
	}
	writeData(w, http.StatusOK, entries)
}

// Import loads a JSON dump. With ?replace=true the store is reset first.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize()))
	if err != nil {
		h.writeError(w, r, koperasi.Wrap(koperasi.CodeInvalidParameter, "gagal membaca body", err))
		return
	}
	dump, err := ingest.Parse(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("replace") == "true" {
		if err := h.reset(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
		if len(dump.COA) == 0 {
			if err := seedCOA(r.Context(), h.Store); err != nil {
				h.writeError(w, r, err)
				return
			}
		}
	}
	summary, err := ingest.Load(r.Context(), h.Store, dump)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Info("data imported",
		zap.Int("anggota", summary.Anggota),
		zap.Int("simpanan", summary.Simpanan),
		zap.Int("skipped", len(summary.Skipped)),
	)
	writeData(w, http.StatusOK, summary)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return h.DefaultActor
}

func (h *Handler) maxBodySize() int64 {
	if h.MaxBodySize > 0 {
		return h.MaxBodySize
	}
	return 10 << 20
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodySize())).Decode(dst); err != nil {
		h.writeError(w, r, koperasi.Wrap(koperasi.CodeInvalidParameter, "body JSON tidak valid", err))
		return false
	}
	return true
}

// decodeOptional treats an empty body as {}.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodySize())).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, koperasi.Wrap(koperasi.CodeInvalidParameter, "body JSON tidak valid", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := koperasi.AsError(err)
	status := statusFor(e.Code)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(e.Code)),
			zap.Error(err),
		)
	}
	writeJSON(w, status, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: e.Code, Message: e.Message, Data: e.Data},
	})
}

func statusFor(code koperasi.Code) int {
	switch code {
	case koperasi.CodeInvalidParameter, koperasi.CodePaymentMethodRequired, koperasi.CodeInvalidPaymentMethod:
		return http.StatusBadRequest
	case koperasi.CodeAnggotaNotFound, koperasi.CodePengembalianNotFound, koperasi.CodeAkunNotFound:
		return http.StatusNotFound
	case koperasi.CodeAnggotaAlreadyKeluar, koperasi.CodeAnggotaNotKeluar, koperasi.CodeAnggotaKeluar,
		koperasi.CodePengembalianAlreadyProcessed, koperasi.CodeActiveLoanExists, koperasi.CodeInsufficientBalance:
		return http.StatusConflict
	case koperasi.CodeValidationFailed, koperasi.CodeUnbalancedJournal:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
