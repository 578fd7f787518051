package pipeline

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteWriter stores URLs in a single-column table, one transaction per batch.
type SQLiteWriter struct {
	db      *sql.DB
	table   string
	created bool
	mu      sync.Mutex
}

// NewSQLiteWriter opens (or creates) the database at dbPath. The table is
// created lazily by the first Write.
func NewSQLiteWriter(dbPath, table string) (*SQLiteWriter, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &SQLiteWriter{db: db, table: table}, nil
}

// Write inserts urls in one transaction. On error nothing from the batch is kept.
func (sw *SQLiteWriter) Write(urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	batch, err := sw.stage(urls)
	if err != nil {
		return err
	}
	return batch.commit()
}

// stagedBatch is an inserted but uncommitted batch. It holds the writer's lock
// until commit or rollback.
type stagedBatch struct {
	sw *SQLiteWriter
	tx *sql.Tx
}

// stage inserts urls inside an open transaction and leaves it uncommitted.
func (sw *SQLiteWriter) stage(urls []string) (*stagedBatch, error) {
	sw.mu.Lock()

	tx, err := sw.db.Begin()
	if err != nil {
		sw.mu.Unlock()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	if err := sw.insert(tx, urls); err != nil {
		rbErr := tx.Rollback()
		sw.mu.Unlock()
		if rbErr != nil {
			return nil, fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return nil, err
	}
	return &stagedBatch{sw: sw, tx: tx}, nil
}

func (b *stagedBatch) commit() error {
	defer b.sw.mu.Unlock()
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	b.sw.created = true
	return nil
}

func (b *stagedBatch) rollback() error {
	defer b.sw.mu.Unlock()
	if err := b.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback batch: %w", err)
	}
	return nil
}

func (sw *SQLiteWriter) insert(tx *sql.Tx, urls []string) error {
	if !sw.created {
		if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s(url VARCHAR)", sw.table)); err != nil {
			return fmt.Errorf("create table %s: %w", sw.table, err)
		}
	}

	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s(url) VALUES (?)", sw.table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range urls {
		if _, err := stmt.Exec(u); err != nil {
			return fmt.Errorf("insert url: %w", err)
		}
	}
	return nil
}

// Location returns the table name.
func (sw *SQLiteWriter) Location() string {
	return sw.table
}

// Close closes the database connection.
func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}
