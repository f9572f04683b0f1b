package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/db"
	"github.com/openmined/syftfiles/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS containers (
    address TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    latest_version INTEGER NOT NULL,
    created_at TEXT NOT NULL -- Store as RFC3339 string
);

CREATE TABLE IF NOT EXISTS snapshots (
    address TEXT NOT NULL REFERENCES containers(address),
    version INTEGER NOT NULL,
    entries BLOB NOT NULL,
    published_at TEXT NOT NULL,
    PRIMARY KEY (address, version)
);

CREATE TABLE IF NOT EXISTS blobs (
    address TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    data BLOB NOT NULL
);
`

type dbSnapshot struct {
	Address     string `db:"address"`
	Version     uint64 `db:"version"`
	Entries     []byte `db:"entries"`
	PublishedAt string `db:"published_at"`
}

// Store keeps containers, their full version history and blobs in one
// sqlite database.
type Store struct {
	db *sqlx.DB
}

const storePragma = `
PRAGMA journal_mode=WAL;
PRAGMA synchronous=NORMAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

// Open creates or opens the database at path. ":memory:" gives a throwaway
// store.
func Open(path string) (*Store, error) {
	// pragmas run once, on the only connection, which is kept idle for the
	// store's lifetime
	sqlDB, err := db.NewSqliteDB(
		db.WithPath(path),
		db.WithPragmas(storePragma),
		db.WithMaxOpenConns(1),
		db.WithMaxIdleConns(1),
		db.WithMigrations(schema),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Store{db: sqlDB}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		slog.Error("failed to close store database", "error", err)
		return err
	}
	return nil
}

func (s *Store) Create(ctx context.Context, params *store.CreateParams) (address.Address, error) {
	if err := container.ValidateFileMap(params.Entries); err != nil {
		return address.Undef, err
	}
	addr := params.AssignAddress()

	data, err := container.MarshalFileMap(0, params.Entries)
	if err != nil {
		return address.Undef, err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM containers WHERE address = ?", addr.Key()); err != nil {
			return fmt.Errorf("failed to query container %s: %w", addr, err)
		}
		if exists > 0 {
			return fmt.Errorf("container %s: %w", addr, store.ErrAlreadyExists)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO containers (address, name, latest_version, created_at) VALUES (?, ?, 0, ?)",
			addr.Key(), params.ID, now,
		); err != nil {
			return fmt.Errorf("failed to insert container %s: %w", addr, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshots (address, version, entries, published_at) VALUES (?, 0, ?, ?)",
			addr.Key(), data, now,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot %s@0: %w", addr, err)
		}
		return nil
	})
	if err != nil {
		return address.Undef, err
	}

	slog.Debug("container created", "address", addr, "entries", len(params.Entries))
	return addr, nil
}

func (s *Store) Read(ctx context.Context, addr address.Address) (*container.Snapshot, error) {
	var row dbSnapshot
	err := s.db.GetContext(ctx, &row, `
		SELECT s.address, s.version, s.entries, s.published_at
		FROM snapshots s JOIN containers c ON c.address = s.address AND c.latest_version = s.version
		WHERE s.address = ?`, addr.Key())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("container %s: %w", addr, store.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to query container %s: %w", addr, err)
	}
	return decodeSnapshot(addr, &row)
}

func (s *Store) ReadVersion(ctx context.Context, addr address.Address, version uint64) (*container.Snapshot, error) {
	var row dbSnapshot
	err := s.db.GetContext(ctx, &row,
		"SELECT address, version, entries, published_at FROM snapshots WHERE address = ? AND version = ?",
		addr.Key(), version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("container %s version %d: %w", addr, version, store.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to query container %s version %d: %w", addr, version, err)
	}
	return decodeSnapshot(addr, &row)
}

func (s *Store) Publish(ctx context.Context, params *store.PublishParams) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	addr := params.Address
	next := params.ExpectedVersion + 1

	data, err := container.MarshalFileMap(next, params.Entries)
	if err != nil {
		return 0, err
	}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var current uint64
		err := tx.GetContext(ctx, &current, "SELECT latest_version FROM containers WHERE address = ?", addr.Key())
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("container %s: %w", addr, store.ErrNotFound)
		} else if err != nil {
			return fmt.Errorf("failed to query container %s: %w", addr, err)
		}

		if current != params.ExpectedVersion {
			return &container.ConflictError{Address: addr, Expected: params.ExpectedVersion, Current: current}
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshots (address, version, entries, published_at) VALUES (?, ?, ?, ?)",
			addr.Key(), next, data, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to insert snapshot %s@%d: %w", addr, next, err)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE containers SET latest_version = ? WHERE address = ? AND latest_version = ?",
			next, addr.Key(), params.ExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to advance container %s: %w", addr, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return &container.ConflictError{Address: addr, Expected: params.ExpectedVersion, Current: current}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Debug("container published", "address", addr, "version", next, "entries", len(params.Entries))
	return next, nil
}

func (s *Store) Put(ctx context.Context, data []byte) (address.Address, error) {
	addr := address.OfBlob(data)
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO blobs (address, size, data) VALUES (?, ?, ?)",
		addr.Key(), len(data), data,
	)
	if err != nil {
		return address.Undef, fmt.Errorf("failed to put blob %s: %w", addr, err)
	}
	return addr, nil
}

func (s *Store) Get(ctx context.Context, addr address.Address) ([]byte, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, "SELECT data FROM blobs WHERE address = ?", addr.Key())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", addr, store.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to query blob %s: %w", addr, err)
	}
	return data, nil
}

func (s *Store) Has(ctx context.Context, addr address.Address) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM blobs WHERE address = ?", addr.Key()); err != nil {
		return false, fmt.Errorf("failed to query blob %s: %w", addr, err)
	}
	return count > 0, nil
}

// Versions lists the published versions of a container, oldest first.
func (s *Store) Versions(ctx context.Context, addr address.Address) ([]uint64, error) {
	var versions []uint64
	err := s.db.SelectContext(ctx, &versions, "SELECT version FROM snapshots WHERE address = ? ORDER BY version", addr.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to query versions of %s: %w", addr, err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("container %s: %w", addr, store.ErrNotFound)
	}
	return versions, nil
}

func decodeSnapshot(addr address.Address, row *dbSnapshot) (*container.Snapshot, error) {
	version, entries, err := container.UnmarshalFileMap(row.Entries)
	if err != nil {
		return nil, fmt.Errorf("container %s version %d: %w", addr, row.Version, err)
	}
	if version != row.Version {
		return nil, fmt.Errorf("%w: container %s row version %d holds document version %d",
			container.ErrInvalidFileMap, addr, row.Version, version)
	}
	return &container.Snapshot{
		Address: addr,
		Version: row.Version,
		Entries: entries,
	}, nil
}

var (
	_ store.ContentStore   = (*Store)(nil)
	_ store.ContainerStore = (*Store)(nil)
)
