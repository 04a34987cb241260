package accesslog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"

	"github.com/sarchlab/csim/cache"
)

const defaultBatchSize = 10000

// SQLiteSink writes entries into the accesses table of a new SQLite
// database. Rows are buffered and inserted in one transaction per batch.
// Addresses and tags are stored as hex text since SQLite integers are
// signed.
type SQLiteSink struct {
	*sql.DB
	statement *sql.Stmt

	path      string
	runID     string
	pending   []Entry
	batchSize int
}

// NewSQLiteSink creates the database at path. An empty path creates
// csim_trace_<run id>.sqlite3 in the working directory. The file must not
// exist yet.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	s := &SQLiteSink{
		path:      path,
		runID:     xid.New().String(),
		batchSize: defaultBatchSize,
	}

	if s.path == "" {
		s.path = "csim_trace_" + s.runID + ".sqlite3"
	}

	if _, err := os.Stat(s.path); err == nil {
		return nil, fmt.Errorf("access log %s already exists", s.path)
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open access log database: %w", err)
	}
	s.DB = db

	if err := s.createTable(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := s.prepareStatement(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file name.
func (s *SQLiteSink) Path() string {
	return s.path
}

// RunID returns the identifier stored with every row of this sink.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

func (s *SQLiteSink) createTable() error {
	stmts := []string{
		`create table if not exists accesses
		(
			run_id      varchar(20) not null,
			seq         integer     not null,
			line        integer     not null,
			kind        varchar(1)  not null,
			address     varchar(18) not null,
			size        integer     not null,
			set_index   integer     not null,
			tag         varchar(18) not null,
			way         integer     not null,
			outcome     varchar(16) not null,
			evicted_tag varchar(18)
		);`,
		`create index if not exists accesses_outcome_index
			on accesses (outcome);`,
		`create index if not exists accesses_set_index_index
			on accesses (set_index);`,
	}

	for _, stmt := range stmts {
		if _, err := s.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create accesses table: %w", err)
		}
	}

	return nil
}

func (s *SQLiteSink) prepareStatement() error {
	stmt, err := s.Prepare(`
		insert into accesses (
			run_id, seq, line, kind, address, size,
			set_index, tag, way, outcome, evicted_tag
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.statement = stmt

	return nil
}

// Write buffers an entry, flushing when the batch is full.
func (s *SQLiteSink) Write(e Entry) error {
	s.pending = append(s.pending, e)
	if len(s.pending) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// Flush inserts all buffered entries.
func (s *SQLiteSink) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(s.statement)
	for _, e := range s.pending {
		var evicted any
		if e.Result.Outcome == cache.MissWithEviction {
			evicted = hex(e.Result.EvictedTag)
		}

		_, err := stmt.Exec(
			s.runID,
			int64(e.Seq),
			e.Line,
			e.Kind.String(),
			hex(e.Address),
			e.Size,
			int64(e.Result.Address.Index),
			hex(e.Result.Address.Tag),
			e.Result.Way,
			e.Result.Outcome.String(),
			evicted,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert access %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accesses: %w", err)
	}

	s.pending = nil

	return nil
}

// Close flushes buffered entries and closes the database. The database is
// closed even when the flush fails.
func (s *SQLiteSink) Close() error {
	return errors.Join(
		s.Flush(),
		s.statement.Close(),
		s.DB.Close(),
	)
}
