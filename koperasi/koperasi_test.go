package koperasi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/koperasi-engine/koperasi"
	"github.com/warp/koperasi-engine/koperasi/store"
)

// =============================================================================
// ERRORS
// =============================================================================

func TestAsError_ForeignErrorBecomesSystemError(t *testing.T) {
	// GIVEN: A plain error from a lower layer
	cause := errors.New("disk full")

	// WHEN: Converting it
	kerr := koperasi.AsError(cause)

	// THEN: It is a SYSTEM_ERROR keeping the message and the cause
	assert.Equal(t, koperasi.CodeSystemError, kerr.Code)
	assert.Equal(t, "disk full", kerr.Message)
	assert.ErrorIs(t, kerr, cause)
	assert.Nil(t, koperasi.AsError(nil))
}

func TestError_WrapKeepsCodeAcrossFmtWrapping(t *testing.T) {
	base := koperasi.Wrap(koperasi.CodeUpdateFailed, "gagal menyimpan", koperasi.ErrDuplicateID)
	wrapped := fmt.Errorf("outer: %w", base)

	assert.Equal(t, koperasi.CodeUpdateFailed, koperasi.CodeOf(wrapped))
	assert.True(t, koperasi.IsCode(wrapped, koperasi.CodeUpdateFailed))
	assert.ErrorIs(t, wrapped, koperasi.ErrDuplicateID)
	assert.ErrorIs(t, wrapped, koperasi.NewError(koperasi.CodeUpdateFailed, "other message"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, koperasi.IsNotFound(koperasi.ErrNotFound))
	assert.True(t, koperasi.IsNotFound(koperasi.NewError(koperasi.CodeAnggotaNotFound, "x")))
	assert.False(t, koperasi.IsNotFound(koperasi.NewError(koperasi.CodeInvalidParameter, "x")))
	assert.False(t, koperasi.IsNotFound(nil))
}

func TestGuard_RecoversPanic(t *testing.T) {
	// GIVEN: An operation that panics
	op := func() (err error) {
		defer koperasi.Guard(&err)
		panic("boom")
	}

	// WHEN: Calling it
	err := op()

	// THEN: The panic surfaces as SYSTEM_ERROR instead of crashing
	require.Error(t, err)
	assert.Equal(t, koperasi.CodeSystemError, koperasi.CodeOf(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestError_WithDataIsRendered(t *testing.T) {
	err := koperasi.NewError(koperasi.CodeInsufficientBalance, "saldo kurang").
		WithData(map[string]any{"shortfall": 1000})

	b, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	assert.JSONEq(t, `{"code":"INSUFFICIENT_BALANCE","message":"saldo kurang","data":{"shortfall":1000}}`, string(b))
}

// =============================================================================
// DATE
// =============================================================================

func TestParseDate_AcceptsDayAndTimestamp(t *testing.T) {
	d, err := koperasi.ParseDate("2024-12-04")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-04", d.String())

	ts, err := koperasi.ParseDate("2024-12-04T15:30:00Z")
	require.NoError(t, err)
	assert.True(t, d.Equal(ts), "time of day is truncated")

	_, err = koperasi.ParseDate("04/12/2024")
	assert.Error(t, err)
}

func TestDate_Formats(t *testing.T) {
	d := koperasi.NewDate(2024, time.December, 4)

	assert.Equal(t, "20241204", d.Compact())
	assert.Equal(t, "4 Desember 2024", d.Indonesian())
	assert.Equal(t, "-", koperasi.Date{}.Indonesian())
	assert.Equal(t, "", koperasi.Date{}.String())
	assert.Equal(t, "2024-12-05", d.AddDays(1).String())
}

func TestDate_JSON(t *testing.T) {
	var payload struct {
		Tanggal koperasi.Date  `json:"tanggal"`
		Keluar  *koperasi.Date `json:"keluar"`
		Kosong  koperasi.Date  `json:"kosong"`
	}
	err := json.Unmarshal([]byte(`{"tanggal":"2024-12-01","keluar":null,"kosong":""}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, "2024-12-01", payload.Tanggal.String())
	assert.Nil(t, payload.Keluar)
	assert.True(t, payload.Kosong.IsZero())

	b, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tanggal":"2024-12-01","keluar":null,"kosong":null}`, string(b))
}

// =============================================================================
// TYPES
// =============================================================================

func TestMetodePembayaran_KodeAkunKas(t *testing.T) {
	assert.Equal(t, koperasi.KodeKas, koperasi.MetodeKas.KodeAkunKas())
	assert.Equal(t, koperasi.KodeBank, koperasi.MetodeTransferBank.KodeAkunKas())
	assert.Equal(t, []string{"Kas", "Transfer Bank"}, koperasi.ValidMetode())
}

func TestAnggota_CloneDoesNotAlias(t *testing.T) {
	tanggal := koperasi.NewDate(2024, time.December, 1)
	alasan := "Pensiun"
	pending := koperasi.PengembalianPending
	a := koperasi.Anggota{
		ID:                 "A001",
		StatusKeanggotaan:  koperasi.KeanggotaanKeluar,
		TanggalKeluar:      &tanggal,
		AlasanKeluar:       &alasan,
		PengembalianStatus: &pending,
	}

	c := a.Clone()
	*c.AlasanKeluar = "Pindah"
	*c.PengembalianStatus = koperasi.PengembalianSelesai

	assert.Equal(t, "Pensiun", *a.AlasanKeluar)
	assert.False(t, a.IsSettled())
	assert.True(t, c.IsSettled())
}

func TestJurnal_Totals(t *testing.T) {
	j := koperasi.Jurnal{Entries: []koperasi.JurnalLine{
		{Akun: koperasi.KodeSimpananPokok, Debit: koperasi.Rp(1000000), Kredit: decimal.Zero},
		{Akun: koperasi.KodeKas, Debit: decimal.Zero, Kredit: koperasi.Rp(1000000)},
	}}
	debit, kredit := j.Totals()
	assert.True(t, debit.Equal(koperasi.Rp(1000000)))
	assert.True(t, kredit.Equal(koperasi.Rp(1000000)))
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_Sums(t *testing.T) {
	// GIVEN: A member with savings, credit sales, payments and loans
	ctx := context.Background()
	s := store.NewMemoryWithCOA()
	require.NoError(t, s.SaveAnggota(ctx, koperasi.Anggota{ID: "A001", Nama: "Budi"}))

	require.NoError(t, s.AppendSimpanan(ctx, koperasi.Simpanan{ID: "sp1", AnggotaID: "A001", Jenis: koperasi.SimpananPokok, Jumlah: koperasi.Rp(1000000)}))
	require.NoError(t, s.AppendSimpanan(ctx, koperasi.Simpanan{ID: "sw1", AnggotaID: "A001", Jenis: koperasi.SimpananWajib, Jumlah: koperasi.Rp(250000)}))
	require.NoError(t, s.AppendSimpanan(ctx, koperasi.Simpanan{ID: "sw2", AnggotaID: "A001", Jenis: koperasi.SimpananWajib, Jumlah: koperasi.Rp(250000)}))
	require.NoError(t, s.AppendSimpanan(ctx, koperasi.Simpanan{ID: "sw3", AnggotaID: "A002", Jenis: koperasi.SimpananWajib, Jumlah: koperasi.Rp(999)}))

	require.NoError(t, s.AppendPenjualan(ctx, koperasi.Penjualan{ID: "j1", AnggotaID: "A001", Total: koperasi.Rp(250000), Status: "Kredit"}))
	require.NoError(t, s.AppendPenjualan(ctx, koperasi.Penjualan{ID: "j2", AnggotaID: "A001", Total: koperasi.Rp(100000), Status: "kredit"}))
	require.NoError(t, s.AppendPenjualan(ctx, koperasi.Penjualan{ID: "j3", AnggotaID: "A001", Total: koperasi.Rp(75000), Status: "tunai"}))
	require.NoError(t, s.AppendPembayaran(ctx, koperasi.PembayaranHutangPiutang{ID: "b1", AnggotaID: "A001", Jenis: "hutang", Jumlah: koperasi.Rp(50000), Status: "selesai"}))
	require.NoError(t, s.AppendPembayaran(ctx, koperasi.PembayaranHutangPiutang{ID: "b2", AnggotaID: "A001", Jenis: "hutang", Jumlah: koperasi.Rp(50000), Status: "pending"}))

	require.NoError(t, s.AppendPinjaman(ctx, koperasi.Pinjaman{ID: "p1", AnggotaID: "A001", Jumlah: koperasi.Rp(5000000), Status: koperasi.PinjamanAktif}))
	require.NoError(t, s.AppendPinjaman(ctx, koperasi.Pinjaman{ID: "p2", AnggotaID: "A001", Jumlah: koperasi.Rp(2000000), Status: koperasi.PinjamanLunas}))

	l := koperasi.NewLedger(s)

	// WHEN/THEN: Each sum only counts the member's own matching records
	pokok, err := l.SimpananPokok(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, pokok.Equal(koperasi.Rp(1000000)))

	wajib, err := l.SimpananWajib(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, wajib.Equal(koperasi.Rp(500000)))

	kewajiban, err := l.KewajibanLain(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, kewajiban.Equal(koperasi.Rp(300000)), "kredit 350000 minus settled payment 50000, got %s", kewajiban)

	aktif, err := l.PinjamanAktif(ctx, "A001")
	require.NoError(t, err)
	require.Len(t, aktif, 1)
	assert.Equal(t, "p1", aktif[0].ID)
}

func TestLedger_KewajibanLainFlooredAtZero(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.AppendPenjualan(ctx, koperasi.Penjualan{ID: "j1", AnggotaID: "A001", Total: koperasi.Rp(100000), Status: "kredit"}))
	require.NoError(t, s.AppendPembayaran(ctx, koperasi.PembayaranHutangPiutang{ID: "b1", AnggotaID: "A001", Jenis: "hutang", Jumlah: koperasi.Rp(150000), Status: "selesai"}))

	kewajiban, err := koperasi.NewLedger(s).KewajibanLain(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, kewajiban.IsZero())
}

func TestLedger_SaldoAkunUnknownIsZero(t *testing.T) {
	saldo, err := koperasi.NewLedger(store.NewMemory()).SaldoAkun(context.Background(), koperasi.KodeKas)
	require.NoError(t, err)
	assert.True(t, saldo.IsZero())
}

// =============================================================================
// ATOMICITY
// =============================================================================

func TestRunAtomic_RollsBackOnTxStore(t *testing.T) {
	// GIVEN: A transactional store
	ctx := context.Background()
	s := store.NewMemory()
	require.True(t, koperasi.SupportsTx(s))

	// WHEN: fn writes and then fails
	err := koperasi.RunAtomic(ctx, s, func(tx koperasi.Store) error {
		require.NoError(t, tx.SaveAnggota(ctx, koperasi.Anggota{ID: "A001"}))
		return errors.New("later step failed")
	})

	// THEN: Nothing fn wrote is visible
	require.Error(t, err)
	_, gerr := s.GetAnggota(ctx, "A001")
	assert.ErrorIs(t, gerr, koperasi.ErrNotFound)
}

type plainStore struct{ koperasi.Store }

func TestSupportsTx_PlainStore(t *testing.T) {
	assert.False(t, koperasi.SupportsTx(plainStore{store.NewMemory()}))
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAuditor_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	fixed := time.Date(2024, 12, 4, 9, 0, 0, 0, time.UTC)
	a := &koperasi.Auditor{Now: func() time.Time { return fixed }}

	budi := koperasi.Anggota{ID: "A001", Nama: "Budi"}
	siti := koperasi.Anggota{ID: "A002", Nama: "Siti"}
	require.NoError(t, a.Record(ctx, s, "admin", koperasi.AuditMarkKeluar, budi, nil))
	require.NoError(t, a.Record(ctx, s, "admin", koperasi.AuditCancelKeluar, budi, nil))
	require.NoError(t, a.Record(ctx, s, "admin", koperasi.AuditMarkKeluar, siti, nil))

	id := "A001"
	entries, err := s.QueryAudit(ctx, koperasi.AuditFilter{AnggotaID: &id, Actions: []koperasi.AuditAction{koperasi.AuditMarkKeluar}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Budi", entries[0].AnggotaNama)
	assert.Equal(t, "admin", entries[0].ActorID)
	assert.Equal(t, fixed, entries[0].Timestamp)

	all, err := s.QueryAudit(ctx, koperasi.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
