// Package fetch downloads, verifies and extracts published scenario
// archives into a two-tier cache:
//
//	<cache>/
//	├── archives/    downloaded zip files
//	├── extracted/   one directory per scenario, containing json/ + labels.csv
//	└── manifest.db  download bookkeeping
package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"screwdata/lib/manifest"
	"screwdata/lib/scenario"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
)

var ErrDownload = errors.New("download failed")
var ErrChecksum = errors.New("checksum mismatch")
var ErrExtraction = errors.New("archive extraction failed")

// ErrTraversal is returned when an archive entry tries to escape the
// extraction directory.
var ErrTraversal = errors.New("path traversal attempt in archive")

const chunkSize = 2 * 1024 * 1024

// DefaultCacheDir returns <user cache dir>/screwdata.
func DefaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "screwdata"), nil
}

type Options struct {
	// CacheDir defaults to DefaultCacheDir().
	CacheDir string
	// Force re-downloads and re-extracts even when cached copies exist.
	Force bool
	// Client defaults to the package client (see SetRestyInstrumentOutput).
	Client *resty.Client
	// Manifest is optional; without it every reuse of a cached archive
	// re-hashes the file.
	Manifest *manifest.Store
	// DownloadUrl overrides the scenario's record URL. Tests point this at
	// an httptest server.
	DownloadUrl string
}

type Fetcher struct {
	scenario *scenario.Scenario
	opts     Options

	archiveDir string
	extractDir string
}

func New(s *scenario.Scenario, opts Options) (*Fetcher, error) {
	if opts.CacheDir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		opts.CacheDir = dir
	}
	if opts.Client == nil {
		opts.Client = client
	}
	if opts.DownloadUrl == "" {
		opts.DownloadUrl = s.DownloadUrl()
	}

	f := &Fetcher{
		scenario:   s,
		opts:       opts,
		archiveDir: filepath.Join(opts.CacheDir, "archives"),
		extractDir: filepath.Join(opts.CacheDir, "extracted"),
	}
	for _, dir := range []string{f.archiveDir, f.extractDir} {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Fetcher) ArchivePath() string {
	return filepath.Join(f.archiveDir, f.scenario.Data.FileName)
}

// DataDir is where the scenario's files live after extraction.
func (f *Fetcher) DataDir() string {
	return filepath.Join(f.extractDir, f.scenario.FullName())
}

// Fetch ensures a verified archive and an extracted data directory,
// downloading and extracting only what is missing, and returns the data
// directory.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()
	span.SetAttributes(attribute.String("scenario", f.scenario.Names.Short))

	archivePath, downloaded, err := f.ensureArchive(ctx)
	if err != nil {
		return "", err
	}

	dataDir, err := f.ensureExtracted(ctx, archivePath)
	if errors.Is(err, ErrExtraction) && !downloaded {
		// a cached archive can slip past the manifest shortcut without
		// being readable, get a fresh copy once
		slog.WarnContext(
			ctx, "cached archive failed extraction, downloading fresh copy",
			"path", archivePath,
			"err", err,
		)
		os.Remove(archivePath)
		archivePath, _, err = f.ensureArchive(ctx)
		if err != nil {
			return "", err
		}
		return f.ensureExtracted(ctx, archivePath)
	}
	return dataDir, err
}

// ensureArchive returns the path of a checksum-verified archive and
// whether it was downloaded by this call. A cached file failing
// verification is deleted and downloaded once more.
func (f *Fetcher) ensureArchive(ctx context.Context) (string, bool, error) {
	archivePath := f.ArchivePath()

	if !f.opts.Force {
		ok, err := f.reuseCached(ctx, archivePath)
		if err != nil {
			return "", false, err
		}
		if ok {
			return archivePath, false, nil
		}
	}

	err := f.download(ctx, archivePath)
	if err != nil {
		return "", false, err
	}
	err = f.verifyChecksum(ctx, archivePath)
	if err != nil {
		os.Remove(archivePath)
		return "", false, err
	}
	err = verifyArchive(archivePath)
	if err != nil {
		os.Remove(archivePath)
		return "", false, err
	}
	f.recordManifest(ctx, archivePath)
	return archivePath, true, nil
}

// reuseCached reports whether the cached archive can be used as-is. A
// matching manifest entry (same file, same size) skips the hash.
func (f *Fetcher) reuseCached(ctx context.Context, archivePath string) (bool, error) {
	info, err := os.Stat(archivePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		os.Remove(archivePath)
		return false, nil
	}

	if f.opts.Manifest != nil {
		entry, ok, err := f.opts.Manifest.Lookup(ctx, f.scenario.Names.Short)
		if err != nil {
			slog.WarnContext(ctx, "manifest lookup failed", "err", err)
		} else if ok &&
			entry.FileName == f.scenario.Data.FileName &&
			entry.Md5Checksum == f.scenario.Data.Md5Checksum &&
			entry.SizeBytes == info.Size() {
			slog.DebugContext(
				ctx, "archive verified via manifest",
				"scenario", f.scenario.Names.Short,
				"size", info.Size(),
			)
			f.opts.Manifest.Touch(ctx, f.scenario.Names.Short, time.Now())
			return true, nil
		}
	}

	err = f.verifyChecksum(ctx, archivePath)
	if errors.Is(err, ErrChecksum) {
		slog.WarnContext(
			ctx, "cached archive failed checksum verification, will download fresh copy",
			"path", archivePath,
		)
		os.Remove(archivePath)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	slog.InfoContext(ctx, "using existing verified archive", "path", archivePath)
	f.recordManifest(ctx, archivePath)
	return true, nil
}

func (f *Fetcher) recordManifest(ctx context.Context, archivePath string) {
	if f.opts.Manifest == nil {
		return
	}
	info, err := os.Stat(archivePath)
	if err != nil {
		return
	}
	now := time.Now()
	err = f.opts.Manifest.Record(ctx, manifest.Entry{
		Scenario:     f.scenario.Names.Short,
		FileName:     f.scenario.Data.FileName,
		Md5Checksum:  f.scenario.Data.Md5Checksum,
		SizeBytes:    info.Size(),
		DownloadedAt: now,
		VerifiedAt:   now,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record manifest entry", "err", err)
	}
}

// download streams the archive to a temp file and atomically renames it
// into place.
func (f *Fetcher) download(ctx context.Context, archivePath string) error {
	ctx, span := tracer.Start(ctx, "download")
	defer span.End()

	slog.InfoContext(
		ctx, "downloading archive",
		"file", f.scenario.Data.FileName,
		"url", f.opts.DownloadUrl,
	)

	res, err := f.opts.Client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(f.opts.DownloadUrl)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownload, f.scenario.Data.FileName, err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != 200 {
		return fmt.Errorf(
			"%w: %s: unexpected status %d",
			ErrDownload, f.scenario.Data.FileName, res.StatusCode(),
		)
	}

	tempPath := archivePath + ".tmp"
	out, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}

	total := res.RawResponse.ContentLength
	written, err := copyWithProgress(ctx, out, body, total)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: %s: %v", ErrDownload, f.scenario.Data.FileName, err)
	}

	err = os.Rename(tempPath, archivePath)
	if err != nil {
		os.Remove(tempPath)
		return err
	}

	slog.InfoContext(ctx, "download completed", "bytes", written)
	return nil
}

// copyWithProgress copies in fixed chunks, logging roughly every 64MB.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64) (int64, error) {
	buf := make([]byte, chunkSize)
	var written, lastLogged int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			_, err := dst.Write(buf[:n])
			if err != nil {
				return written, err
			}
			written += int64(n)
			if written-lastLogged >= 64*1024*1024 {
				lastLogged = written
				slog.Info("downloading", "bytes", written, "total", total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func (f *Fetcher) verifyChecksum(ctx context.Context, archivePath string) error {
	slog.DebugContext(ctx, "verifying md5 checksum", "path", archivePath)

	got, err := fileMd5(archivePath)
	if err != nil {
		return err
	}
	want := f.scenario.Data.Md5Checksum
	if got != want {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksum, archivePath, want, got)
	}
	return nil
}

func fileMd5(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	_, err = io.Copy(hash, file)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
