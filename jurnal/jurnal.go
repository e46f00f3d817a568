/*
Package jurnal posts double-entry journal entries against the chart of
accounts.

PURPOSE:
  The journal is the only path by which account balances (saldo) change.
  Posting appends the entry and moves every touched account balance by
  the entry's lines. Nothing else in the engine calls SaveAkun.

INVARIANTS:
  1. Every line has exactly one nonzero side, and that side is positive.
  2. Σdebit = Σkredit for the whole entry (within koperasi.SumTolerance).
  3. Liability, equity and revenue accounts move by (kredit − debit);
     asset and expense accounts move by (debit − kredit).

CORRECTIONS:
  Entries are not edited. Reverse builds the mirror entry (sides swapped)
  which, once posted, restores every balance the original moved.

PARTIAL FAILURE:
  Post on a store without WithTx writes the journal first and the account
  balances after. If a balance write fails, Post undoes what it already
  wrote before returning. A successful Posting can be undone later with
  Compensate when a subsequent step of a larger workflow fails.

SEE ALSO:
  - pengembalian/poster.go: Builds the settlement entry and posts it
  - koperasi/types.go: Jurnal, JurnalLine, Akun
*/
package jurnal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/koperasi-engine/koperasi"
)

// =============================================================================
// BUILDING
// =============================================================================

// Builder accumulates lines for one entry.
type Builder struct {
	jurnal koperasi.Jurnal
}

func NewBuilder(tanggal koperasi.Date, keterangan string) *Builder {
	return &Builder{jurnal: koperasi.Jurnal{
		ID:         uuid.NewString(),
		Tanggal:    tanggal,
		Keterangan: keterangan,
	}}
}

// Debit adds a debit line. Non-positive amounts are skipped.
func (b *Builder) Debit(akun string, amount decimal.Decimal) *Builder {
	if amount.IsPositive() {
		b.jurnal.Entries = append(b.jurnal.Entries, koperasi.JurnalLine{Akun: akun, Debit: amount, Kredit: decimal.Zero})
	}
	return b
}

// Kredit adds a credit line. Non-positive amounts are skipped.
func (b *Builder) Kredit(akun string, amount decimal.Decimal) *Builder {
	if amount.IsPositive() {
		b.jurnal.Entries = append(b.jurnal.Entries, koperasi.JurnalLine{Akun: akun, Debit: decimal.Zero, Kredit: amount})
	}
	return b
}

func (b *Builder) Reference(id string) *Builder {
	b.jurnal.ReferenceID = id
	return b
}

func (b *Builder) CreatedBy(actor string, at time.Time) *Builder {
	b.jurnal.CreatedBy = actor
	b.jurnal.CreatedAt = at
	return b
}

// Build validates and returns the entry.
func (b *Builder) Build() (koperasi.Jurnal, error) {
	j := b.jurnal
	j.Entries = append([]koperasi.JurnalLine{}, b.jurnal.Entries...)
	if err := Validate(j); err != nil {
		return koperasi.Jurnal{}, err
	}
	return j, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the line shape and the double-entry balance.
func Validate(j koperasi.Jurnal) error {
	if len(j.Entries) == 0 {
		return koperasi.NewError(koperasi.CodeUnbalancedJournal, "jurnal tidak memiliki baris")
	}
	for i, e := range j.Entries {
		if e.Akun == "" {
			return koperasi.Errorf(koperasi.CodeUnbalancedJournal, "baris #%d: kode akun kosong", i+1)
		}
		if e.Debit.IsNegative() || e.Kredit.IsNegative() {
			return koperasi.Errorf(koperasi.CodeUnbalancedJournal, "baris #%d: nilai negatif", i+1)
		}
		if e.Debit.IsZero() == e.Kredit.IsZero() {
			return koperasi.Errorf(koperasi.CodeUnbalancedJournal, "baris #%d: harus tepat satu sisi debit atau kredit", i+1)
		}
	}
	debit, kredit := j.Totals()
	if debit.Sub(kredit).Abs().GreaterThan(koperasi.SumTolerance) {
		return koperasi.Errorf(koperasi.CodeUnbalancedJournal,
			"jurnal tidak seimbang: debit %s, kredit %s", debit.String(), kredit.String()).
			WithData(map[string]any{"debit": debit, "kredit": kredit})
	}
	return nil
}

// IsBalanced reports whether Σdebit = Σkredit within tolerance.
func IsBalanced(j koperasi.Jurnal) bool {
	debit, kredit := j.Totals()
	return debit.Sub(kredit).Abs().LessThanOrEqual(koperasi.SumTolerance)
}

// =============================================================================
// APPLYING TO ACCOUNTS
// =============================================================================

// Delta is the balance movement of one line on an account of the given kind.
func Delta(akun koperasi.Akun, line koperasi.JurnalLine) decimal.Decimal {
	if akun.NormalCredit() {
		return line.Kredit.Sub(line.Debit)
	}
	return line.Debit.Sub(line.Kredit)
}

// Apply computes updated balances for every account j touches, without
// writing. Accounts are returned in first-touch order.
func Apply(ctx context.Context, repo koperasi.AkunRepository, j koperasi.Jurnal) ([]koperasi.Akun, error) {
	var order []string
	updated := make(map[string]koperasi.Akun)
	for _, line := range j.Entries {
		akun, ok := updated[line.Akun]
		if !ok {
			current, err := repo.GetAkun(ctx, line.Akun)
			if errors.Is(err, koperasi.ErrNotFound) {
				return nil, koperasi.Errorf(koperasi.CodeAkunNotFound, "akun %s tidak ditemukan", line.Akun)
			}
			if err != nil {
				return nil, err
			}
			akun = *current
			order = append(order, line.Akun)
		}
		akun.Saldo = akun.Saldo.Add(Delta(akun, line))
		updated[line.Akun] = akun
	}

	out := make([]koperasi.Akun, 0, len(order))
	for _, kode := range order {
		out = append(out, updated[kode])
	}
	return out, nil
}

// =============================================================================
// POSTING
// =============================================================================

// Posting remembers what Post wrote so it can be undone.
type Posting struct {
	Jurnal   koperasi.Jurnal
	Previous []koperasi.Akun
	Updated  []koperasi.Akun
}

// Post validates j, appends it and moves account balances.
func Post(ctx context.Context, s koperasi.Store, j koperasi.Jurnal) (*Posting, error) {
	if err := Validate(j); err != nil {
		return nil, err
	}
	updated, err := Apply(ctx, s, j)
	if err != nil {
		return nil, err
	}
	previous := make([]koperasi.Akun, 0, len(updated))
	for _, u := range updated {
		current, err := s.GetAkun(ctx, u.Kode)
		if err != nil {
			return nil, err
		}
		previous = append(previous, *current)
	}

	p := &Posting{Jurnal: j, Previous: previous}
	if err := s.AppendJurnal(ctx, j); err != nil {
		return nil, fmt.Errorf("append jurnal: %w", err)
	}
	for _, a := range updated {
		if err := s.SaveAkun(ctx, a); err != nil {
			cause := fmt.Errorf("update saldo %s: %w", a.Kode, err)
			if cerr := p.Compensate(ctx, s); cerr != nil {
				return nil, errors.Join(cause, cerr)
			}
			return nil, cause
		}
		p.Updated = append(p.Updated, a)
	}
	return p, nil
}

// Compensate restores the previous balances of every account Post changed
// and deletes the journal entry. Best effort: all steps run, errors join.
func (p *Posting) Compensate(ctx context.Context, s koperasi.Store) error {
	var errs []error
	for _, prev := range p.Previous {
		if err := s.SaveAkun(ctx, prev); err != nil {
			errs = append(errs, fmt.Errorf("restore saldo %s: %w", prev.Kode, err))
		}
	}
	if err := s.DeleteJurnal(ctx, p.Jurnal.ID); err != nil && !errors.Is(err, koperasi.ErrNotFound) {
		errs = append(errs, fmt.Errorf("delete jurnal %s: %w", p.Jurnal.ID, err))
	}
	return errors.Join(errs...)
}

// =============================================================================
// REVERSAL
// =============================================================================

// Reverse builds the mirror of j. Posting it undoes j's balance movement
// while keeping both entries in the journal.
func Reverse(j koperasi.Jurnal, tanggal koperasi.Date, actor string, at time.Time) koperasi.Jurnal {
	r := koperasi.Jurnal{
		ID:          uuid.NewString(),
		Tanggal:     tanggal,
		Keterangan:  "Pembalikan: " + j.Keterangan,
		ReferenceID: j.ReferenceID,
		ReversalOf:  j.ID,
		CreatedBy:   actor,
		CreatedAt:   at,
	}
	for _, e := range j.Entries {
		r.Entries = append(r.Entries, koperasi.JurnalLine{Akun: e.Akun, Debit: e.Kredit, Kredit: e.Debit})
	}
	return r
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary aggregates the journal for reporting.
type Summary struct {
	Count       int             `json:"count"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalKredit decimal.Decimal `json:"totalKredit"`
	Unbalanced  []string        `json:"unbalanced,omitempty"`
}

func Summarize(entries []koperasi.Jurnal) Summary {
	s := Summary{TotalDebit: decimal.Zero, TotalKredit: decimal.Zero}
	for _, j := range entries {
		d, k := j.Totals()
		s.Count++
		s.TotalDebit = s.TotalDebit.Add(d)
		s.TotalKredit = s.TotalKredit.Add(k)
		if !IsBalanced(j) {
			s.Unbalanced = append(s.Unbalanced, j.ID)
		}
	}
	return s
}
