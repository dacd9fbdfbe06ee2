package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ensureExtracted extracts the archive into the scenario's data directory
// unless a previous extraction is already there, and returns that
// directory. Extraction is all-or-nothing: a partial result is removed.
func (f *Fetcher) ensureExtracted(ctx context.Context, archivePath string) (string, error) {
	ctx, span := tracer.Start(ctx, "extract")
	defer span.End()

	dataDir := f.DataDir()
	jsonDir := filepath.Join(dataDir, "json")

	if !f.opts.Force && hasContents(jsonDir) {
		slog.InfoContext(ctx, "using existing extracted data", "path", dataDir)
		return dataDir, nil
	}

	err := os.RemoveAll(dataDir)
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(dataDir, 0750)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "extracting archive", "archive", archivePath, "to", dataDir)
	err = extractArchive(archivePath, dataDir)
	if err != nil {
		os.RemoveAll(dataDir)
		return "", err
	}

	if !hasContents(jsonDir) {
		os.RemoveAll(dataDir)
		return "", fmt.Errorf("%w: expected json directory not found in %s", ErrExtraction, archivePath)
	}

	slog.InfoContext(ctx, "extraction completed", "path", dataDir)
	return dataDir, nil
}

func hasContents(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// verifyArchive walks the zip and reads every entry through, which checks
// the per-entry CRC32 without holding more than one buffer in memory.
func verifyArchive(archivePath string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtraction, archivePath, err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrExtraction, entry.Name, err)
		}
		_, err = io.Copy(io.Discard, rc)
		closeErr := rc.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("%w: corrupted entry %s: %v", ErrExtraction, entry.Name, err)
		}
	}
	return nil
}

// checkEntryName rejects absolute paths and parent-directory escapes.
// Zip entries always use forward slashes regardless of platform.
func checkEntryName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return fmt.Errorf("%w: %q", ErrTraversal, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return fmt.Errorf("%w: %q", ErrTraversal, name)
		}
	}
	return nil
}

func extractArchive(archivePath, target string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtraction, archivePath, err)
	}
	defer reader.Close()

	// validate every entry before touching the filesystem
	for _, entry := range reader.File {
		err := checkEntryName(entry.Name)
		if err != nil {
			return err
		}
	}

	for _, entry := range reader.File {
		err := extractEntry(entry, target)
		if err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(entry *zip.File, target string) error {
	dest := filepath.Join(target, filepath.FromSlash(entry.Name))

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0750)
	}

	err := os.MkdirAll(filepath.Dir(dest), 0750)
	if err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtraction, entry.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, rc)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtraction, entry.Name, err)
	}
	return nil
}
