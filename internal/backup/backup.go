// Package backup snapshots and restores the SQLite habitual database.
//
// Snapshots live next to the database in a backups directory and are named
// habitual-YYYYMMDD-HHMMSS[-N][-prerestore].db. Regular snapshots are pruned
// to constants.MaxBackups; the safety copies taken before a restore are
// pruned separately so routine backups never push them out.
package backup

import (
	"cmp"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	_ "modernc.org/sqlite"
)

const (
	stampLayout      = "20060102-150405"
	preRestoreSuffix = "-prerestore"
	maxPreRestore    = 3
	maxSeq           = 100
)

var (
	log         = logger.With("backup")
	namePattern = regexp.MustCompile(`^` + regexp.QuoteMeta(constants.BackupFilePrefix) +
		`(\d{8}-\d{6})(?:-(\d+))?(` + preRestoreSuffix + `)?` + regexp.QuoteMeta(constants.BackupFileSuffix) + `$`)
)

// BackupInfo describes one snapshot on disk.
type BackupInfo struct {
	Path       string
	Timestamp  time.Time
	Size       int64
	PreRestore bool

	seq int
}

// Manager creates, lists and restores snapshots of a single database file.
type Manager struct {
	dbPath    string
	backupDir string
	now       func() time.Time
}

func NewManager(dbPath string) *Manager {
	return &Manager{
		dbPath:    dbPath,
		backupDir: filepath.Join(filepath.Dir(dbPath), constants.BackupDirName),
		now:       time.Now,
	}
}

func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

// CreateBackup writes a snapshot of the database and prunes old ones.
func (m *Manager) CreateBackup() (string, error) {
	path, err := m.snapshot(false)
	if err != nil {
		return "", err
	}
	if err := m.prune(); err != nil {
		log.Warn("failed to prune old backups", "dir", m.backupDir, "error", err)
	}
	return path, nil
}

func (m *Manager) snapshot(preRestore bool) (string, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("database does not exist: %s", m.dbPath)
		}
		return "", err
	}
	if err := os.MkdirAll(m.backupDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	dest, err := m.nextName(m.now(), preRestore)
	if err != nil {
		return "", err
	}
	if err := vacuumInto(m.dbPath, dest); err != nil {
		return "", fmt.Errorf("failed to backup database: %w", err)
	}
	log.Debug("snapshot written", "path", filepath.Base(dest), "prerestore", preRestore)
	return dest, nil
}

// nextName picks the first free file name for a snapshot taken at t. Several
// snapshots within one second get an increasing sequence number.
func (m *Manager) nextName(t time.Time, preRestore bool) (string, error) {
	kind := ""
	if preRestore {
		kind = preRestoreSuffix
	}
	stamp := t.Format(stampLayout)
	for seq := 0; seq < maxSeq; seq++ {
		name := constants.BackupFilePrefix + stamp
		if seq > 0 {
			name += "-" + strconv.Itoa(seq)
		}
		path := filepath.Join(m.backupDir, name+kind+constants.BackupFileSuffix)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique backup filename for %s", stamp)
}

// vacuumInto copies src to dest through VACUUM INTO, which produces a
// compacted, consistent file even while a WAL is active. Older SQLite builds
// without VACUUM INTO fall back to a plain file copy.
func vacuumInto(src, dest string) error {
	db, err := sql.Open("sqlite", src+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	if err := quickCheck(db); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}
	if _, err := db.Exec("VACUUM INTO ?", dest); err != nil {
		log.Debug("VACUUM INTO unavailable, copying file", "error", err)
		return copyFile(src, dest)
	}
	return nil
}

// ListBackups returns every recognised snapshot, newest first.
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(m.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, ok := parseName(e.Name())
		if !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		b.Path = filepath.Join(m.backupDir, e.Name())
		b.Size = fi.Size()
		backups = append(backups, b)
	}

	slices.SortFunc(backups, func(a, b BackupInfo) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	return backups, nil
}

func parseName(name string) (BackupInfo, bool) {
	match := namePattern.FindStringSubmatch(name)
	if match == nil {
		return BackupInfo{}, false
	}
	ts, err := time.ParseInLocation(stampLayout, match[1], time.Local)
	if err != nil {
		return BackupInfo{}, false
	}
	b := BackupInfo{Timestamp: ts, PreRestore: match[3] != ""}
	if match[2] != "" {
		b.seq, _ = strconv.Atoi(match[2])
	}
	return b, true
}

func (m *Manager) prune() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	var regular, safety int
	var errs []error
	for _, b := range backups {
		keep := constants.MaxBackups
		n := &regular
		if b.PreRestore {
			keep, n = maxPreRestore, &safety
		}
		*n++
		if *n <= keep {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove old backup %s: %w", b.Path, err))
			continue
		}
		log.Debug("pruned backup", "path", filepath.Base(b.Path))
	}
	return errors.Join(errs...)
}

// RestoreBackup replaces the database with the snapshot at backupPath. The
// current database, when present, is first saved as a pre-restore snapshot.
// Callers must close every connection to the database beforehand.
func (m *Manager) RestoreBackup(backupPath string) error {
	if _, err := os.Stat(backupPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup file does not exist: %s", backupPath)
	}
	if err := m.verifyBackup(backupPath); err != nil {
		return fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	if _, err := os.Stat(m.dbPath); err == nil {
		saved, err := m.snapshot(true)
		if err != nil {
			return fmt.Errorf("failed to backup current database before restore: %w", err)
		}
		log.Info("created pre-restore backup", "path", filepath.Base(saved))
		if err := m.prune(); err != nil {
			log.Warn("failed to prune old backups", "dir", m.backupDir, "error", err)
		}
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(backupPath, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to copy backup file: %w", err)
	}
	// A leftover journal from the old database would be replayed on top of
	// the restored file.
	for _, side := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.dbPath + side); err != nil && !errors.Is(err, os.ErrNotExist) {
			os.Remove(tmp)
			return fmt.Errorf("failed to remove %s file: %w", side, err)
		}
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			log.Warn("failed to remove temporary restore file", "path", tmp, "error", rmErr)
		}
		return fmt.Errorf("failed to restore database: %w", err)
	}
	log.Info("database restored", "from", filepath.Base(backupPath))
	return nil
}

func (m *Manager) verifyBackup(path string) error {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	return quickCheck(db)
}

func quickCheck(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("quick_check: %s", result)
	}
	return nil
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
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
