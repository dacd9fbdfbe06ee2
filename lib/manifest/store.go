// Package manifest tracks downloaded archives in a small sqlite database
// inside the cache root. Repeat runs consult it to skip re-hashing
// multi-gigabyte archives whose size has not changed.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// OpenDB opens (or creates) the manifest database at path and applies the
// schema. Use ":memory:" in tests.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(Schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

type Entry struct {
	Scenario     string
	FileName     string
	Md5Checksum  string
	SizeBytes    int64
	DownloadedAt time.Time
	VerifiedAt   time.Time
}

// Record upserts the entry for an archive that was downloaded and passed
// checksum verification.
func (s Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into archives
		    (scenario, file_name, md5_checksum, size_bytes, downloaded_at, verified_at)
		 values (?, ?, ?, ?, ?, ?)
		 on conflict (scenario) do update set
		    file_name = excluded.file_name,
		    md5_checksum = excluded.md5_checksum,
		    size_bytes = excluded.size_bytes,
		    downloaded_at = excluded.downloaded_at,
		    verified_at = excluded.verified_at`,
		e.Scenario,
		e.FileName,
		e.Md5Checksum,
		e.SizeBytes,
		e.DownloadedAt.Unix(),
		e.VerifiedAt.Unix(),
	)
	return err
}

// Touch refreshes verified_at on an existing entry.
func (s Store) Touch(ctx context.Context, scenario string, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`update archives set verified_at = ? where scenario = ?`,
		at.Unix(), scenario,
	)
	return err
}

// Lookup returns the entry for a scenario; the bool reports whether one
// exists.
func (s Store) Lookup(ctx context.Context, scenario string) (Entry, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`select scenario, file_name, md5_checksum, size_bytes, downloaded_at, verified_at
		 from archives where scenario = ?`,
		scenario,
	)

	var e Entry
	var downloadedAt, verifiedAt int64
	err := row.Scan(
		&e.Scenario, &e.FileName, &e.Md5Checksum,
		&e.SizeBytes, &downloadedAt, &verifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.DownloadedAt = time.Unix(downloadedAt, 0)
	e.VerifiedAt = time.Unix(verifiedAt, 0)
	return e, true, nil
}

func (s Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select scenario, file_name, md5_checksum, size_bytes, downloaded_at, verified_at
		 from archives order by scenario`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var downloadedAt, verifiedAt int64
		err := rows.Scan(
			&e.Scenario, &e.FileName, &e.Md5Checksum,
			&e.SizeBytes, &downloadedAt, &verifiedAt,
		)
		if err != nil {
			return nil, err
		}
		e.DownloadedAt = time.Unix(downloadedAt, 0)
		e.VerifiedAt = time.Unix(verifiedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the entry for one scenario.
func (s Store) Delete(ctx context.Context, scenario string) error {
	_, err := s.db.ExecContext(ctx, `delete from archives where scenario = ?`, scenario)
	return err
}

// Purge empties the manifest.
func (s Store) Purge(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `delete from archives`)
	return err
}
