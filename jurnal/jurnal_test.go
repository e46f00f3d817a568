package jurnal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/koperasi-engine/jurnal"
	"github.com/warp/koperasi-engine/koperasi"
	"github.com/warp/koperasi-engine/koperasi/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var tanggal = koperasi.NewDate(2024, time.December, 4)

func newFundedStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryWithCOA()
	for kode, saldo := range map[string]int64{
		koperasi.KodeKas:           50000000,
		koperasi.KodeSimpananPokok: 1000000,
		koperasi.KodeSimpananWajib: 500000,
	} {
		akun, err := s.GetAkun(ctx, kode)
		require.NoError(t, err)
		akun.Saldo = koperasi.Rp(saldo)
		require.NoError(t, s.SaveAkun(ctx, *akun))
	}
	return s
}

func settlementEntry(t *testing.T) koperasi.Jurnal {
	t.Helper()
	j, err := jurnal.NewBuilder(tanggal, "Pengembalian Simpanan - Budi").
		Debit(koperasi.KodeSimpananPokok, koperasi.Rp(1000000)).
		Debit(koperasi.KodeSimpananWajib, koperasi.Rp(500000)).
		Kredit(koperasi.KodeKas, koperasi.Rp(1500000)).
		Reference("pgb-1").
		CreatedBy("admin", time.Date(2024, 12, 4, 10, 0, 0, 0, time.UTC)).
		Build()
	require.NoError(t, err)
	return j
}

func saldo(t *testing.T, s koperasi.Store, kode string) decimal.Decimal {
	t.Helper()
	akun, err := s.GetAkun(context.Background(), kode)
	require.NoError(t, err)
	return akun.Saldo
}

// =============================================================================
// BUILD AND VALIDATE
// =============================================================================

func TestBuilder_SkipsZeroLines(t *testing.T) {
	j, err := jurnal.NewBuilder(tanggal, "x").
		Debit(koperasi.KodeSimpananPokok, koperasi.Rp(1000)).
		Kredit(koperasi.KodePiutangAnggota, decimal.Zero).
		Kredit(koperasi.KodeKas, koperasi.Rp(1000)).
		Build()

	require.NoError(t, err)
	assert.Len(t, j.Entries, 2)
	assert.NotEmpty(t, j.ID)
}

func TestBuilder_RejectsUnbalanced(t *testing.T) {
	_, err := jurnal.NewBuilder(tanggal, "x").
		Debit(koperasi.KodeSimpananPokok, koperasi.Rp(1000)).
		Kredit(koperasi.KodeKas, koperasi.Rp(900)).
		Build()

	assert.Equal(t, koperasi.CodeUnbalancedJournal, koperasi.CodeOf(err))
}

func TestValidate_LineShape(t *testing.T) {
	tests := []struct {
		name    string
		entries []koperasi.JurnalLine
	}{
		{"empty", nil},
		{"missing akun", []koperasi.JurnalLine{{Akun: "", Debit: koperasi.Rp(1), Kredit: decimal.Zero}}},
		{"both sides", []koperasi.JurnalLine{{Akun: koperasi.KodeKas, Debit: koperasi.Rp(1), Kredit: koperasi.Rp(1)}}},
		{"neither side", []koperasi.JurnalLine{{Akun: koperasi.KodeKas, Debit: decimal.Zero, Kredit: decimal.Zero}}},
		{"negative", []koperasi.JurnalLine{
			{Akun: koperasi.KodeKas, Debit: koperasi.Rp(-1), Kredit: decimal.Zero},
			{Akun: koperasi.KodeBank, Debit: decimal.Zero, Kredit: koperasi.Rp(-1)},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := jurnal.Validate(koperasi.Jurnal{ID: "j", Entries: tt.entries})
			assert.Equal(t, koperasi.CodeUnbalancedJournal, koperasi.CodeOf(err))
		})
	}
}

func TestIsBalanced_WithinTolerance(t *testing.T) {
	j := koperasi.Jurnal{Entries: []koperasi.JurnalLine{
		{Akun: koperasi.KodeSimpananPokok, Debit: decimal.RequireFromString("100.005"), Kredit: decimal.Zero},
		{Akun: koperasi.KodeKas, Debit: decimal.Zero, Kredit: decimal.RequireFromString("100")},
	}}
	assert.True(t, jurnal.IsBalanced(j))
}

// =============================================================================
// APPLY AND POST
// =============================================================================

func TestDelta_FollowsNormalBalance(t *testing.T) {
	kas := koperasi.Akun{Kode: koperasi.KodeKas, Tipe: koperasi.AkunAset}
	pokok := koperasi.Akun{Kode: koperasi.KodeSimpananPokok, Tipe: koperasi.AkunKewajiban}
	debit := koperasi.JurnalLine{Debit: koperasi.Rp(100), Kredit: decimal.Zero}

	assert.True(t, jurnal.Delta(kas, debit).Equal(koperasi.Rp(100)))
	assert.True(t, jurnal.Delta(pokok, debit).Equal(koperasi.Rp(-100)))
}

func TestApply_DoesNotWrite(t *testing.T) {
	s := newFundedStore(t)
	j := settlementEntry(t)

	updated, err := jurnal.Apply(context.Background(), s, j)

	require.NoError(t, err)
	require.Len(t, updated, 3)
	assert.True(t, updated[2].Saldo.Equal(koperasi.Rp(48500000)))
	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(50000000)), "store untouched")
}

func TestApply_UnknownAkun(t *testing.T) {
	j, err := jurnal.NewBuilder(tanggal, "x").
		Debit("9-9999", koperasi.Rp(1)).
		Kredit(koperasi.KodeKas, koperasi.Rp(1)).
		Build()
	require.NoError(t, err)

	_, err = jurnal.Apply(context.Background(), store.NewMemoryWithCOA(), j)
	assert.Equal(t, koperasi.CodeAkunNotFound, koperasi.CodeOf(err))
}

func TestPost_MovesBalances(t *testing.T) {
	// GIVEN: Funded accounts and a balanced settlement entry
	ctx := context.Background()
	s := newFundedStore(t)

	// WHEN: Posting it
	posting, err := jurnal.Post(ctx, s, settlementEntry(t))

	// THEN: Savings accounts drop to zero and cash goes down by the refund
	require.NoError(t, err)
	assert.Len(t, posting.Updated, 3)
	assert.True(t, saldo(t, s, koperasi.KodeSimpananPokok).IsZero())
	assert.True(t, saldo(t, s, koperasi.KodeSimpananWajib).IsZero())
	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(48500000)))

	entries, err := s.ListJurnal(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pgb-1", entries[0].ReferenceID)
}

func TestPosting_CompensateRestoresEverything(t *testing.T) {
	ctx := context.Background()
	s := newFundedStore(t)
	posting, err := jurnal.Post(ctx, s, settlementEntry(t))
	require.NoError(t, err)

	require.NoError(t, posting.Compensate(ctx, s))

	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(50000000)))
	assert.True(t, saldo(t, s, koperasi.KodeSimpananPokok).Equal(koperasi.Rp(1000000)))
	entries, err := s.ListJurnal(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// failingSaveAkun fails the n-th SaveAkun call.
type failingSaveAkun struct {
	koperasi.Store
	failOn int
	calls  int
}

func (f *failingSaveAkun) SaveAkun(ctx context.Context, a koperasi.Akun) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("write failed")
	}
	return f.Store.SaveAkun(ctx, a)
}

func TestPost_PartialFailureIsCompensated(t *testing.T) {
	// GIVEN: A store whose second balance update fails
	ctx := context.Background()
	s := newFundedStore(t)
	failing := &failingSaveAkun{Store: s, failOn: 2}

	// WHEN: Posting
	_, err := jurnal.Post(ctx, failing, settlementEntry(t))

	// THEN: The first update is rolled back and the entry is gone
	require.Error(t, err)
	assert.True(t, saldo(t, s, koperasi.KodeSimpananPokok).Equal(koperasi.Rp(1000000)))
	entries, lerr := s.ListJurnal(ctx)
	require.NoError(t, lerr)
	assert.Empty(t, entries)
}

// =============================================================================
// REVERSAL AND SUMMARY
// =============================================================================

func TestReverse_UndoesBalanceMovement(t *testing.T) {
	ctx := context.Background()
	s := newFundedStore(t)
	original := settlementEntry(t)
	_, err := jurnal.Post(ctx, s, original)
	require.NoError(t, err)

	reversal := jurnal.Reverse(original, tanggal.AddDays(1), "admin", time.Now())
	_, err = jurnal.Post(ctx, s, reversal)
	require.NoError(t, err)

	assert.Equal(t, original.ID, reversal.ReversalOf)
	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(50000000)))

	entries, err := s.ListJurnal(ctx)
	require.NoError(t, err)
	summary := jurnal.Summarize(entries)
	assert.Equal(t, 2, summary.Count)
	assert.True(t, summary.TotalDebit.Equal(summary.TotalKredit))
	assert.Empty(t, summary.Unbalanced)
}
