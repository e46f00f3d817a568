package pengembalian

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/koperasi-engine/koperasi"
)

// Issue is one validation finding.
type Issue struct {
	Code    koperasi.Code  `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Validation aggregates every finding of one pre-flight run.
type Validation struct {
	Valid       bool         `json:"valid"`
	Errors      []Issue      `json:"errors"`
	Warnings    []Issue      `json:"warnings"`
	Perhitungan *Perhitungan `json:"perhitungan,omitempty"`
}

// Validate runs the settlement pre-flight checks. metode == nil means the
// caller did not pass a payment method and that check is skipped; a
// pointer to an empty or blank string is reported as missing.
//
// All applicable errors are returned in one pass. Validate writes nothing.
func (s *Service) Validate(ctx context.Context, anggotaID string, metode *string) (_ *Validation, err error) {
	defer koperasi.Guard(&err)
	return validate(ctx, s.Store, anggotaID, metode)
}

func validate(ctx context.Context, store koperasi.Store, anggotaID string, metode *string) (*Validation, error) {
	a, err := findAnggota(ctx, store, anggotaID)
	if err != nil {
		return nil, err
	}
	calc, err := calculate(ctx, store, anggotaID)
	if err != nil {
		return nil, err
	}

	v := &Validation{Errors: []Issue{}, Warnings: []Issue{}, Perhitungan: calc}

	if calc.HasPinjamanAktif {
		total := decimal.Zero
		for _, p := range calc.PinjamanAktif {
			total = total.Add(p.Jumlah)
		}
		v.Errors = append(v.Errors, Issue{
			Code:    koperasi.CodeActiveLoanExists,
			Message: "Anggota masih memiliki pinjaman aktif yang harus dilunasi terlebih dahulu",
			Data: map[string]any{
				"count": len(calc.PinjamanAktif),
				"total": total,
				"loans": calc.PinjamanAktif,
			},
		})
	}

	// Always checked against Kas, whichever method is chosen.
	if calc.TotalPengembalian.IsPositive() {
		available, err := koperasi.NewLedger(store).SaldoAkun(ctx, koperasi.KodeKas)
		if err != nil {
			return nil, err
		}
		if available.LessThan(calc.TotalPengembalian) {
			v.Errors = append(v.Errors, Issue{
				Code:    koperasi.CodeInsufficientBalance,
				Message: "Saldo kas tidak mencukupi untuk pengembalian simpanan",
				Data: map[string]any{
					"required":  calc.TotalPengembalian,
					"available": available,
					"shortfall": calc.TotalPengembalian.Sub(available),
				},
			})
		}
	}

	if metode != nil {
		if issue, ok := checkMetode(*metode); !ok {
			v.Errors = append(v.Errors, issue)
		}
	}

	if calc.TotalPengembalian.IsNegative() {
		v.Warnings = append(v.Warnings, Issue{
			Code:    "KEWAJIBAN_MELEBIHI_SIMPANAN",
			Message: "Kewajiban lain melebihi total simpanan, tidak ada dana yang dikembalikan",
			Data:    map[string]any{"selisih": calc.TotalPengembalian.Neg()},
		})
	}
	if !a.IsKeluar() {
		v.Warnings = append(v.Warnings, Issue{
			Code:    koperasi.CodeAnggotaNotKeluar,
			Message: "Anggota belum ditandai keluar",
		})
	} else if a.IsSettled() {
		v.Warnings = append(v.Warnings, Issue{
			Code:    koperasi.CodePengembalianAlreadyProcessed,
			Message: "Pengembalian simpanan anggota ini sudah diproses",
		})
	}

	v.Valid = len(v.Errors) == 0
	return v, nil
}

func checkMetode(metode string) (Issue, bool) {
	if strings.TrimSpace(metode) == "" {
		return Issue{
			Code:    koperasi.CodePaymentMethodRequired,
			Message: "Metode pembayaran wajib dipilih",
		}, false
	}
	for _, valid := range koperasi.ValidMetode() {
		if metode == valid {
			return Issue{}, true
		}
	}
	return Issue{
		Code:    koperasi.CodeInvalidPaymentMethod,
		Message: "Metode pembayaran tidak valid",
		Data: map[string]any{
			"provided":     metode,
			"validOptions": koperasi.ValidMetode(),
		},
	}, false
}

// Codes lists the error codes of v, in order.
func (v *Validation) Codes() []koperasi.Code {
	codes := make([]koperasi.Code, 0, len(v.Errors))
	for _, e := range v.Errors {
		codes = append(codes, e.Code)
	}
	return codes
}

// Find returns the first error with code, if any.
func (v *Validation) Find(code koperasi.Code) (Issue, bool) {
	for _, e := range v.Errors {
		if e.Code == code {
			return e, true
		}
	}
	return Issue{}, false
}
