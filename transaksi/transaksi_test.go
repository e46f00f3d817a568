package transaksi_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/koperasi-engine/koperasi"
	"github.com/warp/koperasi-engine/koperasi/store"
	"github.com/warp/koperasi-engine/transaksi"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestService(t *testing.T) (*transaksi.Service, *store.Memory) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryWithCOA()
	require.NoError(t, s.SaveAnggota(ctx, koperasi.Anggota{
		ID: "A001", Nama: "Siti Aminah", StatusKeanggotaan: koperasi.KeanggotaanAktif,
	}))
	tanggal := koperasi.NewDate(2024, time.December, 1)
	pending := koperasi.PengembalianPending
	require.NoError(t, s.SaveAnggota(ctx, koperasi.Anggota{
		ID: "A002", Nama: "Budi Santoso", StatusKeanggotaan: koperasi.KeanggotaanKeluar,
		TanggalKeluar: &tanggal, PengembalianStatus: &pending,
	}))
	akun, err := s.GetAkun(ctx, koperasi.KodeKas)
	require.NoError(t, err)
	akun.Saldo = koperasi.Rp(10000000)
	require.NoError(t, s.SaveAkun(ctx, *akun))

	svc := transaksi.NewService(s, nil)
	svc.Now = func() time.Time { return time.Date(2024, time.November, 25, 8, 0, 0, 0, time.UTC) }
	return svc, s
}

func saldo(t *testing.T, s koperasi.Store, kode string) decimal.Decimal {
	t.Helper()
	akun, err := s.GetAkun(context.Background(), kode)
	require.NoError(t, err)
	return akun.Saldo
}

func journalCount(t *testing.T, s koperasi.Store) int {
	t.Helper()
	entries, err := s.ListJurnal(context.Background())
	require.NoError(t, err)
	return len(entries)
}

// =============================================================================
// SIMPANAN
// =============================================================================

func TestSetorSimpanan_Wajib(t *testing.T) {
	// GIVEN: An active member
	svc, s := newTestService(t)
	ctx := context.Background()

	// WHEN: Depositing simpanan wajib without a periode
	rec, err := svc.SetorSimpanan(ctx, "kasir", transaksi.SetoranRequest{
		AnggotaID: "A001",
		Jenis:     koperasi.SimpananWajib,
		Jumlah:    koperasi.Rp(100000),
	})

	// THEN: The periode defaults to the deposit month
	require.NoError(t, err)
	assert.Equal(t, "2024-11", rec.Periode)
	assert.Equal(t, "2024-11-25", rec.Tanggal.String())

	// AND: Kas and the wajib account both grow
	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(10100000)))
	assert.True(t, saldo(t, s, koperasi.KodeSimpananWajib).Equal(koperasi.Rp(100000)))

	wajib, err := koperasi.NewLedger(s).SimpananWajib(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, wajib.Equal(koperasi.Rp(100000)))
}

func TestSetorSimpanan_PokokHasNoPeriode(t *testing.T) {
	svc, s := newTestService(t)

	rec, err := svc.SetorSimpanan(context.Background(), "kasir", transaksi.SetoranRequest{
		AnggotaID: "A001", Jenis: koperasi.SimpananPokok, Jumlah: koperasi.Rp(1000000), Periode: "2024-11",
	})

	require.NoError(t, err)
	assert.Empty(t, rec.Periode)
	assert.True(t, saldo(t, s, koperasi.KodeSimpananPokok).Equal(koperasi.Rp(1000000)))
}

func TestSetorSimpanan_InvalidInput(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  transaksi.SetoranRequest
	}{
		{"unknown jenis", transaksi.SetoranRequest{AnggotaID: "A001", Jenis: "sukarela", Jumlah: koperasi.Rp(1)}},
		{"zero jumlah", transaksi.SetoranRequest{AnggotaID: "A001", Jenis: koperasi.SimpananWajib, Jumlah: decimal.Zero}},
		{"negative jumlah", transaksi.SetoranRequest{AnggotaID: "A001", Jenis: koperasi.SimpananWajib, Jumlah: koperasi.Rp(-5)}},
		{"missing anggota", transaksi.SetoranRequest{Jenis: koperasi.SimpananWajib, Jumlah: koperasi.Rp(1)}},
		{"bad tanggal", transaksi.SetoranRequest{AnggotaID: "A001", Jenis: koperasi.SimpananWajib, Jumlah: koperasi.Rp(1), Tanggal: "kemarin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetorSimpanan(ctx, "kasir", tt.req)
			assert.Equal(t, koperasi.CodeInvalidParameter, koperasi.CodeOf(err))
		})
	}
	assert.Zero(t, journalCount(t, s))
}

// =============================================================================
// GATE
// =============================================================================

func TestTransactions_BlockedForKeluarMember(t *testing.T) {
	// GIVEN: A member who has exited
	svc, s := newTestService(t)
	ctx := context.Background()

	// WHEN: Attempting every gated transaction
	_, errSimpanan := svc.SetorSimpanan(ctx, "kasir", transaksi.SetoranRequest{AnggotaID: "A002", Jenis: koperasi.SimpananWajib, Jumlah: koperasi.Rp(100000)})
	_, errPinjaman := svc.CairkanPinjaman(ctx, "kasir", transaksi.PinjamanRequest{AnggotaID: "A002", Jumlah: koperasi.Rp(1000000)})
	_, errPenjualan := svc.CatatPenjualan(ctx, "kasir", transaksi.PenjualanRequest{AnggotaID: "A002", Total: koperasi.Rp(50000)})
	_, errBayar := svc.BayarHutang(ctx, "kasir", transaksi.PembayaranRequest{AnggotaID: "A002", Jumlah: koperasi.Rp(50000)})

	// THEN: All are rejected with ANGGOTA_KELUAR
	for _, err := range []error{errSimpanan, errPinjaman, errPenjualan, errBayar} {
		assert.Equal(t, koperasi.CodeAnggotaKeluar, koperasi.CodeOf(err))
	}

	// AND: Nothing was written
	assert.Zero(t, journalCount(t, s))
	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(10000000)))
	loans, err := s.ListPinjaman(ctx, "A002")
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestTransactions_UnknownMember(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CairkanPinjaman(context.Background(), "kasir", transaksi.PinjamanRequest{AnggotaID: "A999", Jumlah: koperasi.Rp(1)})

	assert.Equal(t, koperasi.CodeAnggotaNotFound, koperasi.CodeOf(err))
}

// =============================================================================
// PINJAMAN, PENJUALAN, PEMBAYARAN
// =============================================================================

func TestCairkanPinjaman(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	rec, err := svc.CairkanPinjaman(ctx, "kasir", transaksi.PinjamanRequest{AnggotaID: "A001", Jumlah: koperasi.Rp(2000000), Tanggal: "2024-11-02"})

	require.NoError(t, err)
	assert.True(t, rec.IsAktif())
	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(8000000)))
	assert.True(t, saldo(t, s, koperasi.KodePiutangAnggota).Equal(koperasi.Rp(2000000)))

	aktif, err := koperasi.NewLedger(s).PinjamanAktif(ctx, "A001")
	require.NoError(t, err)
	assert.Len(t, aktif, 1)
}

func TestCatatPenjualan_KreditThenBayar(t *testing.T) {
	// GIVEN: A credit sale of 250.000
	svc, s := newTestService(t)
	ctx := context.Background()
	sale, err := svc.CatatPenjualan(ctx, "kasir", transaksi.PenjualanRequest{AnggotaID: "A001", Total: koperasi.Rp(250000), Status: "Kredit"})
	require.NoError(t, err)
	assert.Equal(t, koperasi.PenjualanKredit, sale.Status)
	assert.True(t, saldo(t, s, koperasi.KodePiutangAnggota).Equal(koperasi.Rp(250000)))
	assert.True(t, saldo(t, s, koperasi.KodePendapatan).Equal(koperasi.Rp(250000)))

	// WHEN: Paying 100.000 of it
	pay, err := svc.BayarHutang(ctx, "kasir", transaksi.PembayaranRequest{AnggotaID: "A001", Jumlah: koperasi.Rp(100000)})
	require.NoError(t, err)

	// THEN: Kewajiban lain and the receivable both drop
	assert.Equal(t, koperasi.JenisHutang, pay.Jenis)
	assert.Equal(t, koperasi.StatusSelesai, pay.Status)
	kewajiban, err := koperasi.NewLedger(s).KewajibanLain(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, kewajiban.Equal(koperasi.Rp(150000)))
	assert.True(t, saldo(t, s, koperasi.KodePiutangAnggota).Equal(koperasi.Rp(150000)))
	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(10100000)))
	assert.Equal(t, 2, journalCount(t, s))
}

func TestCatatPenjualan_TunaiDefault(t *testing.T) {
	svc, s := newTestService(t)

	sale, err := svc.CatatPenjualan(context.Background(), "kasir", transaksi.PenjualanRequest{AnggotaID: "A001", Total: koperasi.Rp(75000)})

	require.NoError(t, err)
	assert.Equal(t, koperasi.PenjualanTunai, sale.Status)
	assert.True(t, saldo(t, s, koperasi.KodeKas).Equal(koperasi.Rp(10075000)))
}

func TestCatatPenjualan_InvalidStatus(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CatatPenjualan(context.Background(), "kasir", transaksi.PenjualanRequest{AnggotaID: "A001", Total: koperasi.Rp(1), Status: "cicil"})

	assert.Equal(t, koperasi.CodeInvalidParameter, koperasi.CodeOf(err))
}

// failingAppend is a non-transactional store that cannot append loans.
type failingAppend struct{ koperasi.Store }

func (failingAppend) AppendPinjaman(context.Context, koperasi.Pinjaman) error {
	return errors.New("table locked")
}

func TestCairkanPinjaman_AppendFailureCompensatesJournal(t *testing.T) {
	// GIVEN: A plain store whose record append fails
	_, mem := newTestService(t)
	svc := transaksi.NewService(failingAppend{mem}, nil)

	// WHEN: Disbursing a loan
	_, err := svc.CairkanPinjaman(context.Background(), "kasir", transaksi.PinjamanRequest{AnggotaID: "A001", Jumlah: koperasi.Rp(1000000)})

	// THEN: UPDATE_FAILED and the posted journal is undone
	assert.Equal(t, koperasi.CodeUpdateFailed, koperasi.CodeOf(err))
	assert.Zero(t, journalCount(t, mem))
	assert.True(t, saldo(t, mem, koperasi.KodeKas).Equal(koperasi.Rp(10000000)))
	assert.True(t, saldo(t, mem, koperasi.KodePiutangAnggota).IsZero())
}
