// Package store persists committed application state and the transaction
// log in SQLite. Every Commit writes one snapshot row keyed by height; the
// node restarts from the newest one. The database file is backed up to
// timestamped copies and recovered from them when it cannot be opened.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile        = "lkn.db"
	defaultBackupDirName = "backups"
	maxBusyTimeoutMs     = 5000
	defaultMaxBackups    = 20
)

var (
	errNoBackups = errors.New("no database backups available")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// Snapshot is one committed state.
type Snapshot struct {
	Height    int64     `json:"height"`
	AppHash   []byte    `json:"app_hash"`
	State     []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TxRecord is the outcome of one delivered transaction.
type TxRecord struct {
	ID        string    `json:"id"`
	Height    int64     `json:"height"`
	Signer    string    `json:"signer"`
	Type      string    `json:"type"`
	Code      uint32    `json:"code"`
	Log       string    `json:"log"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the SQLite database file.
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	file      string
	backupDir string
	updates   chan struct{}
}

type backupInfo struct {
	path      string
	timestamp int64
}

// NewStore opens or creates the database at filePath.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	s := &Store{
		file:      absPath,
		backupDir: filepath.Join(filepath.Dir(absPath), defaultBackupDirName),
		updates:   make(chan struct{}, 1),
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	if err := s.tryOpenOrRecover(); err != nil {
		return nil, err
	}

	if err := s.ensureSchema(); err != nil {
		_ = s.closeDB()
		return nil, err
	}

	return s, nil
}

// Updates receives a value whenever a snapshot is saved.
func (s *Store) Updates() <-chan struct{} {
	return s.updates
}

func (s *Store) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Path returns the absolute database file path.
func (s *Store) Path() string { return s.file }

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeDB()
}

func (s *Store) tryOpenOrRecover() error {
	if err := s.openDB(); err != nil {
		if recErr := s.recoverDatabase(err); recErr != nil {
			return recErr
		}
	}
	return nil
}

func (s *Store) openDB() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(s.file)))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	// a corrupt file only fails once a page is actually read
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}
	var n int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return fmt.Errorf("read schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) recoverDatabase(openErr error) error {
	if err := s.restoreLatestBackup(); err != nil {
		if errors.Is(err, errNoBackups) {
			if cleanErr := s.resetDatabaseFiles(); cleanErr != nil {
				return fmt.Errorf("reset database after %v: %w", openErr, cleanErr)
			}
			if err := s.openDB(); err != nil {
				return fmt.Errorf("create fresh database after %v: %w", openErr, err)
			}
			return nil
		}
		return fmt.Errorf("restore database after %v: %w", openErr, err)
	}
	return nil
}

func (s *Store) closeDB() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) resetDatabaseFiles() error {
	_ = s.closeDB()

	var firstErr error
	for _, path := range []string{s.file, s.file + "-wal", s.file + "-shm"} {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", filepath.Base(path), err)
			}
		}
	}
	return firstErr
}

func (s *Store) backupPrefix() (prefix, ext string) {
	base := filepath.Base(s.file)
	ext = filepath.Ext(base)
	prefix = strings.TrimSuffix(base, ext)
	if prefix == "" {
		prefix = base
	}
	return prefix, ext
}

func (s *Store) restoreLatestBackup() error {
	prefix, ext := s.backupPrefix()
	backups, err := listBackups(s.backupDir, prefix, ext)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return errNoBackups
	}

	latest := backups[len(backups)-1]
	if err := s.resetDatabaseFiles(); err != nil {
		return err
	}
	if err := copyFile(latest.path, s.file); err != nil {
		return fmt.Errorf("copy backup %s: %w", filepath.Base(latest.path), err)
	}
	return s.openDB()
}

// listBackups returns the backups of prefix in dir, oldest first. The
// timestamp comes from the file name, or from the modification time when
// the name carries none.
func listBackups(dir, prefix, ext string) ([]backupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []backupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"-") || (ext != "" && !strings.HasSuffix(name, ext)) {
			continue
		}

		tsPart := strings.TrimPrefix(strings.TrimSuffix(name, ext), prefix+"-")
		ts, parseErr := strconv.ParseInt(tsPart, 10, 64)
		if parseErr != nil {
			info, statErr := entry.Info()
			if statErr != nil {
				continue
			}
			ts = info.ModTime().Unix()
		}

		backups = append(backups, backupInfo{path: filepath.Join(dir, name), timestamp: ts})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].timestamp == backups[j].timestamp {
			return backups[i].path < backups[j].path
		}
		return backups[i].timestamp < backups[j].timestamp
	})
	return backups, nil
}

func pruneBackups(dir, prefix, ext string, maxBackups int) {
	if maxBackups <= 0 {
		return
	}
	backups, err := listBackups(dir, prefix, ext)
	if err != nil || len(backups) <= maxBackups {
		return
	}
	for _, b := range backups[:len(backups)-maxBackups] {
		_ = os.Remove(b.path)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		height INTEGER PRIMARY KEY,
		app_hash BLOB NOT NULL,
		state BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create snapshots table: %w", err)
	}

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS txs (
		id TEXT PRIMARY KEY,
		height INTEGER NOT NULL,
		signer TEXT,
		type TEXT,
		code INTEGER NOT NULL,
		log TEXT,
		created_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create txs table: %w", err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS txs_height ON txs(height)`); err != nil {
		return fmt.Errorf("create txs index: %w", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	return nil
}

// SaveSnapshot stores the state committed at height. Saving the same
// height twice replaces the earlier row.
func (s *Store) SaveSnapshot(height int64, appHash, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO snapshots (height, app_hash, state, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(height) DO UPDATE SET
			app_hash = excluded.app_hash,
			state = excluded.state,
			created_at = excluded.created_at`,
		height, appHash, state, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save snapshot %d: %w", height, err)
	}
	s.notify()
	return nil
}

// LatestSnapshot returns the snapshot with the greatest height, or
// ErrNotFound on a fresh database.
func (s *Store) LatestSnapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT height, app_hash, state, created_at FROM snapshots
		ORDER BY height DESC LIMIT 1`)
	var (
		snap    Snapshot
		created sql.NullString
	)
	if err := row.Scan(&snap.Height, &snap.AppHash, &snap.State, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read latest snapshot: %w", err)
	}
	snap.CreatedAt = parseTime(created.String)
	return &snap, nil
}

// PruneSnapshots keeps only the newest keep snapshots.
func (s *Store) PruneSnapshots(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM snapshots WHERE height NOT IN (
		SELECT height FROM snapshots ORDER BY height DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecordTx appends the outcome of a delivered transaction. A replayed
// block records the same id again, which overwrites the earlier row.
func (s *Store) RecordTx(rec TxRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO txs (id, height, signer, type, code, log, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			height = excluded.height,
			signer = excluded.signer,
			type = excluded.type,
			code = excluded.code,
			log = excluded.log,
			created_at = excluded.created_at`,
		rec.ID, rec.Height, rec.Signer, rec.Type, rec.Code, rec.Log, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("record tx %s: %w", rec.ID, err)
	}
	return nil
}

// RecentTxs returns up to limit transactions, newest first. A non-empty
// signer filters by signer.
func (s *Store) RecentTxs(signer string, limit int) ([]TxRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, height, signer, type, code, log, created_at FROM txs`
	args := []any{}
	if signer != "" {
		query += ` WHERE signer = ?`
		args = append(args, signer)
	}
	query += ` ORDER BY height DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query txs: %w", err)
	}
	defer rows.Close()

	out := []TxRecord{}
	for rows.Next() {
		rec, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TxByID returns one recorded transaction.
func (s *Store) TxByID(id string) (*TxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT id, height, signer, type, code, log, created_at FROM txs WHERE id = ?`, id)
	rec, err := scanTx(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func scanTx(scanner interface{ Scan(dest ...any) error }) (TxRecord, error) {
	var (
		rec                         TxRecord
		signer, typ, txLog, created sql.NullString
	)
	if err := scanner.Scan(&rec.ID, &rec.Height, &signer, &typ, &rec.Code, &txLog, &created); err != nil {
		return TxRecord{}, err
	}
	rec.Signer = signer.String
	rec.Type = typ.String
	rec.Log = txLog.String
	rec.CreatedAt = parseTime(created.String)
	return rec, nil
}

// BackupCurrent writes a copy of the database to a timestamped file and
// prunes old backups beyond maxBackups. It returns an empty path when the
// database file does not exist.
func (s *Store) BackupCurrent(maxBackups int) (string, error) {
	data, err := s.ExportSnapshot()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backup directory: %w", err)
	}

	prefix, ext := s.backupPrefix()
	backupPath := uniqueBackupPath(s.backupDir, prefix, ext)
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	pruneBackups(s.backupDir, prefix, ext, maxBackups)
	return backupPath, nil
}

// ExportSnapshot returns a consistent copy of the database file.
func (s *Store) ExportSnapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.file); errors.Is(err, os.ErrNotExist) {
		return nil, os.ErrNotExist
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.file), "lkn-export-*.db")
	if err != nil {
		return nil, fmt.Errorf("create temp export file: %w", err)
	}
	tempPath := tempFile.Name()
	tempFile.Close()

	escaped := strings.ReplaceAll(tempPath, "'", "''")
	if _, err := s.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("vacuum into temp file: %w", err)
	}

	data, err := os.ReadFile(tempPath)
	os.Remove(tempPath)
	if err != nil {
		return nil, fmt.Errorf("read export file: %w", err)
	}
	return data, nil
}

func uniqueBackupPath(dir, prefix, ext string) string {
	timestamp := time.Now().Unix()
	for {
		path := filepath.Join(dir, fmt.Sprintf("%s-%d%s", prefix, timestamp, ext))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		timestamp++
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}
