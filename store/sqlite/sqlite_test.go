package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/koperasi-engine/koperasi"
	"github.com/warp/koperasi-engine/pengembalian"
	"github.com/warp/koperasi-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCOA(t *testing.T, s koperasi.Store) {
	t.Helper()
	for _, a := range koperasi.DefaultCOA() {
		require.NoError(t, s.SaveAkun(context.Background(), a))
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestAnggota_RoundTripWithExitFields(t *testing.T) {
	// GIVEN: A member in Keluar(Pending)
	store := newTestStore(t)
	ctx := context.Background()
	tanggal := koperasi.NewDate(2024, time.December, 1)
	alasan := "Pensiun"
	pending := koperasi.PengembalianPending
	a := koperasi.Anggota{
		ID:                 "A001",
		NIK:                "3201010101800001",
		Nama:               "Budi Santoso",
		NoKartu:            "KOP-0001",
		Departemen:         "Produksi",
		Status:             "Aktif",
		TanggalDaftar:      koperasi.NewDate(2020, time.January, 15),
		StatusKeanggotaan:  koperasi.KeanggotaanKeluar,
		TanggalKeluar:      &tanggal,
		AlasanKeluar:       &alasan,
		PengembalianStatus: &pending,
	}

	// WHEN: Saving and reading it back
	require.NoError(t, store.SaveAnggota(ctx, a))
	got, err := store.GetAnggota(ctx, "A001")

	// THEN: Every field survives, nil pointers stay nil
	require.NoError(t, err)
	assert.Equal(t, a, *got)
	assert.Nil(t, got.PengembalianID)

	// AND: Saving again upserts instead of duplicating
	a.AlasanKeluar = nil
	require.NoError(t, store.SaveAnggota(ctx, a))
	list, err := store.ListAnggota(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].AlasanKeluar)
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetAnggota(ctx, "nope")
	assert.ErrorIs(t, err, koperasi.ErrNotFound)

	_, err = store.GetAkun(ctx, "9-9999")
	assert.ErrorIs(t, err, koperasi.ErrNotFound)

	_, err = store.GetPengembalian(ctx, "nope")
	assert.ErrorIs(t, err, koperasi.ErrNotFound)

	assert.ErrorIs(t, store.DeleteJurnal(ctx, "nope"), koperasi.ErrNotFound)
}

func TestSimpanan_FiltersAndKeepsPrecision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AppendSimpanan(ctx, koperasi.Simpanan{ID: "s1", AnggotaID: "A001", Jenis: koperasi.SimpananWajib, Jumlah: decimal.RequireFromString("100000.55"), Periode: "2024-11"}))
	require.NoError(t, store.AppendSimpanan(ctx, koperasi.Simpanan{ID: "s2", AnggotaID: "A001", Jenis: koperasi.SimpananPokok, Jumlah: koperasi.Rp(1000000)}))
	require.NoError(t, store.AppendSimpanan(ctx, koperasi.Simpanan{ID: "s3", AnggotaID: "A002", Jenis: koperasi.SimpananWajib, Jumlah: koperasi.Rp(1)}))

	wajib, err := store.ListSimpanan(ctx, "A001", koperasi.SimpananWajib)

	require.NoError(t, err)
	require.Len(t, wajib, 1)
	assert.Equal(t, "s1", wajib[0].ID)
	assert.Equal(t, "2024-11", wajib[0].Periode)
	assert.True(t, wajib[0].Jumlah.Equal(decimal.RequireFromString("100000.55")))
}

func TestCorruptAmount_SurfacesError(t *testing.T) {
	// GIVEN: A file-backed database whose amount columns were edited by hand
	path := filepath.Join(t.TempDir(), "koperasi.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.SaveAnggota(ctx, koperasi.Anggota{ID: "A001", Nama: "Budi", StatusKeanggotaan: koperasi.KeanggotaanAktif}))
	require.NoError(t, store.AppendSimpanan(ctx, koperasi.Simpanan{ID: "sp", AnggotaID: "A001", Jenis: koperasi.SimpananPokok, Jumlah: koperasi.Rp(1000000)}))
	require.NoError(t, store.SaveAkun(ctx, koperasi.Akun{Kode: koperasi.KodeKas, Nama: "Kas", Tipe: koperasi.AkunAset, Saldo: koperasi.Rp(5000000)}))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.ExecContext(ctx, "UPDATE simpanan SET jumlah = '1.000.000' WHERE id = 'sp'")
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, "UPDATE akun SET saldo = 'Rp5jt' WHERE kode = ?", koperasi.KodeKas)
	require.NoError(t, err)

	// WHEN: Reading the ledgers back
	_, listErr := store.ListSimpanan(ctx, "A001", koperasi.SimpananPokok)
	_, pokokErr := koperasi.NewLedger(store).SimpananPokok(ctx, "A001")
	_, calcErr := pengembalian.NewService(store, nil).Calculate(ctx, "A001")
	_, akunErr := store.GetAkun(ctx, koperasi.KodeKas)
	_, akunListErr := store.ListAkun(ctx)

	// THEN: Every read fails instead of reporting zero
	require.Error(t, listErr)
	assert.Contains(t, listErr.Error(), "1.000.000")
	assert.Error(t, pokokErr)
	require.Error(t, calcErr)
	assert.Equal(t, koperasi.CodeSystemError, koperasi.CodeOf(calcErr))
	require.Error(t, akunErr)
	assert.Contains(t, akunErr.Error(), "Rp5jt")
	assert.Error(t, akunListErr)
}

func TestAppend_DuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := koperasi.Pinjaman{ID: "p1", AnggotaID: "A001", Jumlah: koperasi.Rp(1), Status: koperasi.PinjamanAktif}
	require.NoError(t, store.AppendPinjaman(ctx, rec))

	err := store.AppendPinjaman(ctx, rec)

	assert.ErrorIs(t, err, koperasi.ErrDuplicateID)
}

func TestJurnal_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	j := koperasi.Jurnal{
		ID:          "j1",
		Tanggal:     koperasi.NewDate(2024, time.December, 4),
		Keterangan:  "Pengembalian Simpanan - Budi",
		ReferenceID: "pgb-1",
		Entries: []koperasi.JurnalLine{
			{Akun: koperasi.KodeSimpananPokok, Debit: koperasi.Rp(1000000), Kredit: decimal.Zero},
			{Akun: koperasi.KodeKas, Debit: decimal.Zero, Kredit: koperasi.Rp(1000000)},
		},
		CreatedBy: "admin",
		CreatedAt: time.Date(2024, 12, 4, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.AppendJurnal(ctx, j))

	list, err := store.ListJurnal(ctx)

	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, "pgb-1", got.ReferenceID)
	assert.Equal(t, "2024-12-04", got.Tanggal.String())
	assert.True(t, got.CreatedAt.Equal(j.CreatedAt))
	require.Len(t, got.Entries, 2)
	assert.True(t, got.Entries[0].Debit.Equal(koperasi.Rp(1000000)))
	assert.Equal(t, koperasi.KodeKas, got.Entries[1].Akun)
}

func TestAkun_ListedByKode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveAkun(ctx, koperasi.Akun{Kode: "4-1000", Nama: "Pendapatan", Tipe: koperasi.AkunPendapatan, Saldo: decimal.Zero}))
	require.NoError(t, store.SaveAkun(ctx, koperasi.Akun{Kode: "1-1000", Nama: "Kas", Tipe: koperasi.AkunAset, Saldo: koperasi.Rp(5)}))

	list, err := store.ListAkun(ctx)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1-1000", list[0].Kode)
	assert.True(t, list[0].Saldo.Equal(koperasi.Rp(5)))
}

func TestAudit_QueryFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	auditor := koperasi.NewAuditor()
	budi := koperasi.Anggota{ID: "A001", Nama: "Budi"}
	require.NoError(t, auditor.Record(ctx, store, "admin", koperasi.AuditMarkKeluar, budi, map[string]any{"alasanKeluar": "Pensiun"}))
	require.NoError(t, auditor.Record(ctx, store, "admin", koperasi.AuditProsesPengembalian, budi, nil))
	require.NoError(t, auditor.Record(ctx, store, "admin", koperasi.AuditMarkKeluar, koperasi.Anggota{ID: "A002"}, nil))

	id := "A001"
	got, err := store.QueryAudit(ctx, koperasi.AuditFilter{
		AnggotaID: &id,
		Actions:   []koperasi.AuditAction{koperasi.AuditMarkKeluar, koperasi.AuditCancelKeluar},
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Pensiun", got[0].Payload["alasanKeluar"])
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that writes and then fails
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx koperasi.Store) error {
		require.NoError(t, tx.SaveAnggota(ctx, koperasi.Anggota{ID: "A001", Nama: "Budi"}))
		require.NoError(t, tx.AppendSimpanan(ctx, koperasi.Simpanan{ID: "s1", AnggotaID: "A001", Jenis: koperasi.SimpananPokok, Jumlah: koperasi.Rp(1)}))
		return errors.New("abort")
	})

	// THEN: Nothing is persisted
	require.EqualError(t, err, "abort")
	_, gerr := store.GetAnggota(ctx, "A001")
	assert.ErrorIs(t, gerr, koperasi.ErrNotFound)
	list, lerr := store.ListSimpanan(ctx, "A001", koperasi.SimpananPokok)
	require.NoError(t, lerr)
	assert.Empty(t, list)
}

func TestWithTx_Commit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx koperasi.Store) error {
		return tx.SaveAnggota(ctx, koperasi.Anggota{ID: "A001", Nama: "Budi"})
	})

	require.NoError(t, err)
	got, err := store.GetAnggota(ctx, "A001")
	require.NoError(t, err)
	assert.Equal(t, "Budi", got.Nama)
}

func TestReset_ClearsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedCOA(t, store)
	require.NoError(t, store.SaveAnggota(ctx, koperasi.Anggota{ID: "A001"}))

	require.NoError(t, store.Reset(ctx))

	members, err := store.ListAnggota(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)
	accounts, err := store.ListAkun(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

// =============================================================================
// END TO END
// =============================================================================

func TestProcessPengembalian_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A file-backed database with an exited member
	path := filepath.Join(t.TempDir(), "koperasi.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	ctx := context.Background()
	seedCOA(t, store)

	pending := koperasi.PengembalianPending
	require.NoError(t, store.SaveAnggota(ctx, koperasi.Anggota{
		ID: "A001", Nama: "Budi", StatusKeanggotaan: koperasi.KeanggotaanKeluar, PengembalianStatus: &pending,
	}))
	require.NoError(t, store.AppendSimpanan(ctx, koperasi.Simpanan{ID: "sp", AnggotaID: "A001", Jenis: koperasi.SimpananPokok, Jumlah: koperasi.Rp(1000000)}))
	require.NoError(t, store.SaveAkun(ctx, koperasi.Akun{Kode: koperasi.KodeKas, Nama: "Kas", Tipe: koperasi.AkunAset, Saldo: koperasi.Rp(5000000)}))
	require.NoError(t, store.SaveAkun(ctx, koperasi.Akun{Kode: koperasi.KodeSimpananPokok, Nama: "Simpanan Pokok", Tipe: koperasi.AkunKewajiban, Saldo: koperasi.Rp(1000000)}))

	// WHEN: Processing the refund and reopening the database
	hasil, err := pengembalian.NewService(store, nil).Process(ctx, "admin", pengembalian.ProcessRequest{
		AnggotaID: "A001", MetodePembayaran: "Kas", TanggalPembayaran: "2024-12-04",
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	// THEN: The settlement and its effects are durable
	p, err := reopened.GetPengembalian(ctx, hasil.Pengembalian.ID)
	require.NoError(t, err)
	assert.Equal(t, hasil.Pengembalian.NomorReferensi, p.NomorReferensi)
	assert.True(t, p.TotalPengembalian.Equal(koperasi.Rp(1000000)))

	a, err := reopened.GetAnggota(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, a.IsSettled())

	kas, err := reopened.GetAkun(ctx, koperasi.KodeKas)
	require.NoError(t, err)
	assert.True(t, kas.Saldo.Equal(koperasi.Rp(4000000)))
}
