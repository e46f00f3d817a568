/*
Package sqlite provides a SQLite-backed implementation of koperasi.Store.

PURPOSE:
  Persists every koperasi collection in one database file. The browser
  front-end kept these as JSON arrays in local storage; here each one is a
  table and the settlement workflow gets real transactions.

INTERFACES IMPLEMENTED:
  koperasi.Store:      All repositories
  koperasi.TxStore:    WithTx over sql.Tx
  koperasi.Resettable: Reset (demo scenarios, tests)

KEY TABLES:
  anggota:                   Member records, upserted by id
  simpanan:                  Pokok and wajib deposits (jenis column)
  pinjaman:                  Loans, status normalized at ingestion
  penjualan:                 POS sales
  pembayaran_hutang_piutang: Debt payments
  akun:                      Chart of accounts with running saldo
  jurnal:                    Journal entries, lines in entries_json
  pengembalian:              Settlement records
  audit_log:                 Append-only audit trail

ENCODING:
  Amounts are TEXT holding decimal strings so no precision is lost.
  Calendar dates are TEXT YYYY-MM-DD; timestamps are RFC3339Nano UTC.
  List order is insertion order (rowid).

CONCURRENCY:
  The pool is capped at one connection. SQLite serializes writers anyway,
  and with ":memory:" every connection would otherwise see its own empty
  database. Inside WithTx all statements go through the sql.Tx.

USAGE:
  store, err := sqlite.New("./data/koperasi.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - koperasi/store.go: Interface definitions
  - koperasi/store/memory.go: In-memory implementation for unit tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/koperasi-engine/koperasi"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements koperasi.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
}

// queries holds every repository method. Store runs them on the pool,
// WithTx on the transaction.
type queries struct {
	q querier
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS anggota (
		id TEXT PRIMARY KEY,
		nik TEXT NOT NULL DEFAULT '',
		nama TEXT NOT NULL DEFAULT '',
		no_kartu TEXT NOT NULL DEFAULT '',
		departemen TEXT NOT NULL DEFAULT '',
		tipe_anggota TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		telepon TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		alamat TEXT NOT NULL DEFAULT '',
		tanggal_daftar TEXT NOT NULL DEFAULT '',
		status_keanggotaan TEXT NOT NULL DEFAULT 'Aktif',
		tanggal_keluar TEXT,
		alasan_keluar TEXT,
		pengembalian_status TEXT,
		pengembalian_id TEXT
	);

	CREATE TABLE IF NOT EXISTS simpanan (
		id TEXT PRIMARY KEY,
		anggota_id TEXT NOT NULL,
		jenis TEXT NOT NULL,
		jumlah TEXT NOT NULL,
		periode TEXT NOT NULL DEFAULT '',
		tanggal TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_simpanan_anggota_jenis
		ON simpanan(anggota_id, jenis);

	CREATE TABLE IF NOT EXISTS pinjaman (
		id TEXT PRIMARY KEY,
		anggota_id TEXT NOT NULL,
		jumlah TEXT NOT NULL,
		status TEXT NOT NULL,
		status_raw TEXT NOT NULL DEFAULT '',
		tanggal TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_pinjaman_anggota
		ON pinjaman(anggota_id);

	CREATE TABLE IF NOT EXISTS penjualan (
		id TEXT PRIMARY KEY,
		anggota_id TEXT NOT NULL,
		total TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		tanggal TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_penjualan_anggota
		ON penjualan(anggota_id);

	CREATE TABLE IF NOT EXISTS pembayaran_hutang_piutang (
		id TEXT PRIMARY KEY,
		anggota_id TEXT NOT NULL,
		jenis TEXT NOT NULL DEFAULT '',
		jumlah TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		tanggal TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_pembayaran_anggota
		ON pembayaran_hutang_piutang(anggota_id);

	CREATE TABLE IF NOT EXISTS akun (
		kode TEXT PRIMARY KEY,
		nama TEXT NOT NULL,
		tipe TEXT NOT NULL,
		saldo TEXT NOT NULL DEFAULT '0'
	);

	-- Journal entries are never updated; corrections are reversal entries.
	CREATE TABLE IF NOT EXISTS jurnal (
		id TEXT PRIMARY KEY,
		tanggal TEXT NOT NULL,
		keterangan TEXT NOT NULL DEFAULT '',
		entries_json TEXT NOT NULL,
		reference_id TEXT,
		reversal_of TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jurnal_reference
		ON jurnal(reference_id) WHERE reference_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS pengembalian (
		id TEXT PRIMARY KEY,
		anggota_id TEXT NOT NULL,
		anggota_nama TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		simpanan_pokok TEXT NOT NULL,
		simpanan_wajib TEXT NOT NULL,
		kewajiban_lain TEXT NOT NULL,
		total_simpanan TEXT NOT NULL,
		total_pengembalian TEXT NOT NULL,
		metode_pembayaran TEXT NOT NULL,
		tanggal_pembayaran TEXT NOT NULL,
		keterangan TEXT NOT NULL DEFAULT '',
		nomor_referensi TEXT NOT NULL,
		jurnal_id TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pengembalian_anggota
		ON pengembalian(anggota_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		anggota_id TEXT NOT NULL,
		anggota_nama TEXT NOT NULL DEFAULT '',
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_anggota
		ON audit_log(anggota_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The transaction is
// rolled back when fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(koperasi.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// ANGGOTA
// =============================================================================

const anggotaColumns = `id, nik, nama, no_kartu, departemen, tipe_anggota, status, telepon, email, alamat,
	tanggal_daftar, status_keanggotaan, tanggal_keluar, alasan_keluar, pengembalian_status, pengembalian_id`

func (r *queries) GetAnggota(ctx context.Context, id string) (*koperasi.Anggota, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+anggotaColumns+" FROM anggota WHERE id = ?", id)
	a, err := scanAnggota(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, koperasi.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *queries) ListAnggota(ctx context.Context) ([]koperasi.Anggota, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+anggotaColumns+" FROM anggota ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.Anggota
	for rows.Next() {
		a, err := scanAnggota(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *queries) SaveAnggota(ctx context.Context, a koperasi.Anggota) error {
	var pengembalianStatus *string
	if a.PengembalianStatus != nil {
		s := string(*a.PengembalianStatus)
		pengembalianStatus = &s
	}
	var tanggalKeluar *string
	if a.TanggalKeluar != nil {
		s := a.TanggalKeluar.String()
		tanggalKeluar = &s
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO anggota (`+anggotaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nik = excluded.nik,
			nama = excluded.nama,
			no_kartu = excluded.no_kartu,
			departemen = excluded.departemen,
			tipe_anggota = excluded.tipe_anggota,
			status = excluded.status,
			telepon = excluded.telepon,
			email = excluded.email,
			alamat = excluded.alamat,
			tanggal_daftar = excluded.tanggal_daftar,
			status_keanggotaan = excluded.status_keanggotaan,
			tanggal_keluar = excluded.tanggal_keluar,
			alasan_keluar = excluded.alasan_keluar,
			pengembalian_status = excluded.pengembalian_status,
			pengembalian_id = excluded.pengembalian_id
	`,
		a.ID, a.NIK, a.Nama, a.NoKartu, a.Departemen, a.TipeAnggota, a.Status,
		a.Telepon, a.Email, a.Alamat, a.TanggalDaftar.String(), string(a.StatusKeanggotaan),
		nullPtr(tanggalKeluar), nullPtr(a.AlasanKeluar), nullPtr(pengembalianStatus), nullPtr(a.PengembalianID),
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnggota(row scanner) (koperasi.Anggota, error) {
	var (
		a                                                          koperasi.Anggota
		tanggalDaftar, status                                      string
		tanggalKeluar, alasanKeluar, pengembalianStatus, pengembID sql.NullString
	)
	err := row.Scan(&a.ID, &a.NIK, &a.Nama, &a.NoKartu, &a.Departemen, &a.TipeAnggota, &a.Status,
		&a.Telepon, &a.Email, &a.Alamat, &tanggalDaftar, &status,
		&tanggalKeluar, &alasanKeluar, &pengembalianStatus, &pengembID)
	if err != nil {
		return a, err
	}
	a.TanggalDaftar = parseDate(tanggalDaftar)
	a.StatusKeanggotaan = koperasi.StatusKeanggotaan(status)
	if tanggalKeluar.Valid {
		d := parseDate(tanggalKeluar.String)
		a.TanggalKeluar = &d
	}
	if alasanKeluar.Valid {
		s := alasanKeluar.String
		a.AlasanKeluar = &s
	}
	if pengembalianStatus.Valid {
		s := koperasi.StatusPengembalian(pengembalianStatus.String)
		a.PengembalianStatus = &s
	}
	if pengembID.Valid {
		s := pengembID.String
		a.PengembalianID = &s
	}
	return a, nil
}

// =============================================================================
// MEMBER LEDGERS
// =============================================================================

func (r *queries) ListSimpanan(ctx context.Context, anggotaID string, jenis koperasi.JenisSimpanan) ([]koperasi.Simpanan, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, anggota_id, jenis, jumlah, periode, tanggal
		FROM simpanan WHERE anggota_id = ? AND jenis = ? ORDER BY rowid
	`, anggotaID, string(jenis))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.Simpanan
	for rows.Next() {
		var s koperasi.Simpanan
		var jenisCol, jumlah, tanggal string
		if err := rows.Scan(&s.ID, &s.AnggotaID, &jenisCol, &jumlah, &s.Periode, &tanggal); err != nil {
			return nil, err
		}
		s.Jenis = koperasi.JenisSimpanan(jenisCol)
		if s.Jumlah, err = parseDecimal("simpanan", s.ID, jumlah); err != nil {
			return nil, err
		}
		s.Tanggal = parseDate(tanggal)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *queries) AppendSimpanan(ctx context.Context, s koperasi.Simpanan) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO simpanan (id, anggota_id, jenis, jumlah, periode, tanggal)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.AnggotaID, string(s.Jenis), s.Jumlah.String(), s.Periode, s.Tanggal.String())
	return insertError(err)
}

func (r *queries) ListPinjaman(ctx context.Context, anggotaID string) ([]koperasi.Pinjaman, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, anggota_id, jumlah, status, status_raw, tanggal
		FROM pinjaman WHERE anggota_id = ? ORDER BY rowid
	`, anggotaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.Pinjaman
	for rows.Next() {
		var p koperasi.Pinjaman
		var jumlah, status, tanggal string
		if err := rows.Scan(&p.ID, &p.AnggotaID, &jumlah, &status, &p.StatusRaw, &tanggal); err != nil {
			return nil, err
		}
		if p.Jumlah, err = parseDecimal("pinjaman", p.ID, jumlah); err != nil {
			return nil, err
		}
		p.Status = koperasi.StatusPinjaman(status)
		p.Tanggal = parseDate(tanggal)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *queries) AppendPinjaman(ctx context.Context, p koperasi.Pinjaman) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO pinjaman (id, anggota_id, jumlah, status, status_raw, tanggal)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.AnggotaID, p.Jumlah.String(), string(p.Status), p.StatusRaw, p.Tanggal.String())
	return insertError(err)
}

func (r *queries) ListPenjualan(ctx context.Context, anggotaID string) ([]koperasi.Penjualan, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, anggota_id, total, status, tanggal
		FROM penjualan WHERE anggota_id = ? ORDER BY rowid
	`, anggotaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.Penjualan
	for rows.Next() {
		var p koperasi.Penjualan
		var total, tanggal string
		if err := rows.Scan(&p.ID, &p.AnggotaID, &total, &p.Status, &tanggal); err != nil {
			return nil, err
		}
		if p.Total, err = parseDecimal("penjualan", p.ID, total); err != nil {
			return nil, err
		}
		p.Tanggal = parseDate(tanggal)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *queries) AppendPenjualan(ctx context.Context, p koperasi.Penjualan) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO penjualan (id, anggota_id, total, status, tanggal)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.AnggotaID, p.Total.String(), p.Status, p.Tanggal.String())
	return insertError(err)
}

func (r *queries) ListPembayaran(ctx context.Context, anggotaID string) ([]koperasi.PembayaranHutangPiutang, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, anggota_id, jenis, jumlah, status, tanggal
		FROM pembayaran_hutang_piutang WHERE anggota_id = ? ORDER BY rowid
	`, anggotaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.PembayaranHutangPiutang
	for rows.Next() {
		var p koperasi.PembayaranHutangPiutang
		var jumlah, tanggal string
		if err := rows.Scan(&p.ID, &p.AnggotaID, &p.Jenis, &jumlah, &p.Status, &tanggal); err != nil {
			return nil, err
		}
		if p.Jumlah, err = parseDecimal("pembayaran_hutang_piutang", p.ID, jumlah); err != nil {
			return nil, err
		}
		p.Tanggal = parseDate(tanggal)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *queries) AppendPembayaran(ctx context.Context, p koperasi.PembayaranHutangPiutang) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO pembayaran_hutang_piutang (id, anggota_id, jenis, jumlah, status, tanggal)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.AnggotaID, p.Jenis, p.Jumlah.String(), p.Status, p.Tanggal.String())
	return insertError(err)
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

func (r *queries) GetAkun(ctx context.Context, kode string) (*koperasi.Akun, error) {
	var a koperasi.Akun
	var tipe, saldo string
	err := r.q.QueryRowContext(ctx, "SELECT kode, nama, tipe, saldo FROM akun WHERE kode = ?", kode).
		Scan(&a.Kode, &a.Nama, &tipe, &saldo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, koperasi.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Tipe = koperasi.TipeAkun(tipe)
	if a.Saldo, err = parseDecimal("akun", a.Kode, saldo); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *queries) ListAkun(ctx context.Context) ([]koperasi.Akun, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT kode, nama, tipe, saldo FROM akun ORDER BY kode")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.Akun
	for rows.Next() {
		var a koperasi.Akun
		var tipe, saldo string
		if err := rows.Scan(&a.Kode, &a.Nama, &tipe, &saldo); err != nil {
			return nil, err
		}
		a.Tipe = koperasi.TipeAkun(tipe)
		if a.Saldo, err = parseDecimal("akun", a.Kode, saldo); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *queries) SaveAkun(ctx context.Context, a koperasi.Akun) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO akun (kode, nama, tipe, saldo) VALUES (?, ?, ?, ?)
		ON CONFLICT(kode) DO UPDATE SET
			nama = excluded.nama,
			tipe = excluded.tipe,
			saldo = excluded.saldo
	`, a.Kode, a.Nama, string(a.Tipe), a.Saldo.String())
	return err
}

// =============================================================================
// JOURNAL
// =============================================================================

func (r *queries) AppendJurnal(ctx context.Context, j koperasi.Jurnal) error {
	entries, err := json.Marshal(j.Entries)
	if err != nil {
		return fmt.Errorf("marshal jurnal entries: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO jurnal (id, tanggal, keterangan, entries_json, reference_id, reversal_of, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Tanggal.String(), j.Keterangan, string(entries),
		nullString(j.ReferenceID), nullString(j.ReversalOf), j.CreatedBy, formatTime(j.CreatedAt))
	return insertError(err)
}

func (r *queries) ListJurnal(ctx context.Context) ([]koperasi.Jurnal, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, tanggal, keterangan, entries_json, reference_id, reversal_of, created_by, created_at
		FROM jurnal ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.Jurnal
	for rows.Next() {
		var (
			j                     koperasi.Jurnal
			tanggal, entries, at  string
			referenceID, reversal sql.NullString
		)
		if err := rows.Scan(&j.ID, &tanggal, &j.Keterangan, &entries, &referenceID, &reversal, &j.CreatedBy, &at); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(entries), &j.Entries); err != nil {
			return nil, fmt.Errorf("unmarshal jurnal %s entries: %w", j.ID, err)
		}
		j.Tanggal = parseDate(tanggal)
		j.ReferenceID = referenceID.String
		j.ReversalOf = reversal.String
		j.CreatedAt = parseTime(at)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *queries) DeleteJurnal(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "jurnal", id)
}

// =============================================================================
// PENGEMBALIAN
// =============================================================================

const pengembalianColumns = `id, anggota_id, anggota_nama, status, simpanan_pokok, simpanan_wajib,
	kewajiban_lain, total_simpanan, total_pengembalian, metode_pembayaran, tanggal_pembayaran,
	keterangan, nomor_referensi, jurnal_id, created_by, created_at`

func (r *queries) AppendPengembalian(ctx context.Context, p koperasi.Pengembalian) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO pengembalian (`+pengembalianColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.AnggotaID, p.AnggotaNama, string(p.Status),
		p.SimpananPokok.String(), p.SimpananWajib.String(), p.KewajibanLain.String(),
		p.TotalSimpanan.String(), p.TotalPengembalian.String(),
		string(p.MetodePembayaran), p.TanggalPembayaran.String(), p.Keterangan,
		p.NomorReferensi, nullString(p.JurnalID), p.CreatedBy, formatTime(p.CreatedAt),
	)
	return insertError(err)
}

func (r *queries) GetPengembalian(ctx context.Context, id string) (*koperasi.Pengembalian, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+pengembalianColumns+" FROM pengembalian WHERE id = ?", id)
	p, err := scanPengembalian(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, koperasi.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *queries) ListPengembalian(ctx context.Context) ([]koperasi.Pengembalian, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+pengembalianColumns+" FROM pengembalian ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.Pengembalian
	for rows.Next() {
		p, err := scanPengembalian(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *queries) DeletePengembalian(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "pengembalian", id)
}

func scanPengembalian(row scanner) (koperasi.Pengembalian, error) {
	var (
		p                                  koperasi.Pengembalian
		status, metode, tanggal, at        string
		pokok, wajib, kewajiban, simp, tot string
		jurnalID                           sql.NullString
	)
	err := row.Scan(&p.ID, &p.AnggotaID, &p.AnggotaNama, &status, &pokok, &wajib,
		&kewajiban, &simp, &tot, &metode, &tanggal,
		&p.Keterangan, &p.NomorReferensi, &jurnalID, &p.CreatedBy, &at)
	if err != nil {
		return p, err
	}
	p.Status = koperasi.StatusPengembalian(status)
	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&p.SimpananPokok, pokok},
		{&p.SimpananWajib, wajib},
		{&p.KewajibanLain, kewajiban},
		{&p.TotalSimpanan, simp},
		{&p.TotalPengembalian, tot},
	} {
		if *f.dst, err = parseDecimal("pengembalian", p.ID, f.raw); err != nil {
			return p, err
		}
	}
	p.MetodePembayaran = koperasi.MetodePembayaran(metode)
	p.TanggalPembayaran = parseDate(tanggal)
	p.JurnalID = jurnalID.String
	p.CreatedAt = parseTime(at)
	return p, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (r *queries) AppendAudit(ctx context.Context, e koperasi.AuditEntry) error {
	var payload sql.NullString
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor, action, anggota_id, anggota_nama, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, formatTime(e.Timestamp), e.ActorID, string(e.Action), e.AnggotaID, e.AnggotaNama, payload)
	return insertError(err)
}

func (r *queries) QueryAudit(ctx context.Context, f koperasi.AuditFilter) ([]koperasi.AuditEntry, error) {
	query := "SELECT id, timestamp, actor, action, anggota_id, anggota_nama, payload_json FROM audit_log WHERE 1=1"
	var args []any
	if f.AnggotaID != nil {
		query += " AND anggota_id = ?"
		args = append(args, *f.AnggotaID)
	}
	if len(f.Actions) > 0 {
		placeholders := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		query += " AND action IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY rowid"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []koperasi.AuditEntry
	for rows.Next() {
		var (
			e          koperasi.AuditEntry
			ts, action string
			payload    sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &action, &e.AnggotaID, &e.AnggotaNama, &payload); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		e.Action = koperasi.AuditAction(action)
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal audit %s payload: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

var tables = []string{
	"audit_log", "pengembalian", "jurnal", "akun", "pembayaran_hutang_piutang",
	"penjualan", "pinjaman", "simpanan", "anggota",
}

func deleteByID(ctx context.Context, q querier, table, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return koperasi.ErrNotFound
	}
	return nil
}

func insertError(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", koperasi.ErrDuplicateID, err)
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// parseDecimal reads an amount column. A value that does not parse is an
// error, never zero.
func parseDecimal(table, id, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %s: invalid amount %q: %w", table, id, s, err)
	}
	return d, nil
}

func parseDate(s string) koperasi.Date {
	if s == "" {
		return koperasi.Date{}
	}
	d, err := koperasi.ParseDate(s)
	if err != nil {
		return koperasi.Date{}
	}
	return d
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
