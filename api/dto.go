/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Request bodies are decoded into *Request types here and handed to the
  services as plain values. Responses reuse the domain types, which carry
  their own camelCase JSON tags, wrapped in the envelope below.

ENVELOPE:
  Success:    {"success": true, "data": ...}
  Failure:    {"success": false, "error": {"code", "message", "data"}}
  Validation: {"success": true, "valid": bool, "errors": [...], "warnings": [...], "perhitungan": {...}}

OPTIONAL FIELDS:
  metode_pembayaran on the validation endpoint distinguishes "absent"
  (check skipped) from "null" or "" (PAYMENT_METHOD_REQUIRED). See
  OptionalString.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/warp/koperasi-engine/jurnal"
	"github.com/warp/koperasi-engine/koperasi"
	"github.com/warp/koperasi-engine/pengembalian"
)

// =============================================================================
// ENVELOPE
// =============================================================================

type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    koperasi.Code `json:"code"`
	Message string        `json:"message"`
	Data    any           `json:"data,omitempty"`
}

type ValidationResponse struct {
	Success     bool                      `json:"success"`
	Valid       bool                      `json:"valid"`
	Errors      []pengembalian.Issue      `json:"errors"`
	Warnings    []pengembalian.Issue      `json:"warnings"`
	Perhitungan *pengembalian.Perhitungan `json:"perhitungan,omitempty"`
}

// =============================================================================
// ANGGOTA
// =============================================================================

type KeluarRequest struct {
	TanggalKeluar string `json:"tanggal_keluar"`
	AlasanKeluar  string `json:"alasan_keluar"`
}

// OptionalString records whether the key was present at all. A JSON null
// counts as present with an empty value.
type OptionalString struct {
	Set   bool
	Value string
}

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// Ptr is nil when the key was absent.
func (o OptionalString) Ptr() *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

type ValidasiRequest struct {
	MetodePembayaran OptionalString `json:"metode_pembayaran"`
}

type ProsesPengembalianRequest struct {
	MetodePembayaran  *string `json:"metode_pembayaran"`
	TanggalPembayaran string  `json:"tanggal_pembayaran"`
	Keterangan        string  `json:"keterangan,omitempty"`
}

// =============================================================================
// TRANSAKSI
// =============================================================================

type SetoranRequest struct {
	Jenis   string          `json:"jenis"` // pokok or wajib
	Jumlah  decimal.Decimal `json:"jumlah"`
	Periode string          `json:"periode,omitempty"`
	Tanggal string          `json:"tanggal,omitempty"`
}

type PinjamanRequest struct {
	Jumlah  decimal.Decimal `json:"jumlah"`
	Tanggal string          `json:"tanggal,omitempty"`
}

type PenjualanRequest struct {
	Total   decimal.Decimal `json:"total"`
	Status  string          `json:"status"` // tunai or kredit
	Tanggal string          `json:"tanggal,omitempty"`
}

type PembayaranHutangRequest struct {
	Jumlah  decimal.Decimal `json:"jumlah"`
	Tanggal string          `json:"tanggal,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

type JurnalListDTO struct {
	Entries []koperasi.Jurnal `json:"entries"`
	Summary jurnal.Summary    `json:"summary"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
