package output

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JakeFAU/company-signals/internal/crawler"
)

// Default artifact names.
const (
	DefaultProfilesName = "output_profiles.csv"
	DefaultLogsName     = "scraping_logs.csv"
	DefaultArchiveName  = "scraping_output.zip"
)

// Bundle describes where run artifacts are written.
type Bundle struct {
	Dir          string
	ProfilesName string
	LogsName     string
	ArchiveName  string
	// KeepIntermediate leaves the CSV files next to the archive.
	KeepIntermediate bool
}

func (b Bundle) withDefaults() Bundle {
	if b.Dir == "" {
		b.Dir = "."
	}
	if b.ProfilesName == "" {
		b.ProfilesName = DefaultProfilesName
	}
	if b.LogsName == "" {
		b.LogsName = DefaultLogsName
	}
	if b.ArchiveName == "" {
		b.ArchiveName = DefaultArchiveName
	}
	return b
}

// Write renders both CSVs into Dir, zips them and removes the CSVs unless
// KeepIntermediate is set. It returns the archive path.
func (b Bundle) Write(run crawler.Run) (string, error) {
	b = b.withDefaults()
	if err := os.MkdirAll(b.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	profilesPath := filepath.Join(b.Dir, b.ProfilesName)
	logsPath := filepath.Join(b.Dir, b.LogsName)
	archivePath := filepath.Join(b.Dir, b.ArchiveName)

	if err := writeFile(profilesPath, func(w io.Writer) error { return WriteProfiles(w, run.Profiles) }); err != nil {
		return "", err
	}
	if err := writeFile(logsPath, func(w io.Writer) error { return WriteLogs(w, run.Logs) }); err != nil {
		return "", err
	}
	if err := writeFile(archivePath, func(w io.Writer) error {
		return zipFiles(w, profilesPath, logsPath)
	}); err != nil {
		return "", err
	}

	if !b.KeepIntermediate {
		if err := errors.Join(os.Remove(profilesPath), os.Remove(logsPath)); err != nil {
			return archivePath, fmt.Errorf("remove intermediate csv: %w", err)
		}
	}
	return archivePath, nil
}

// Archive renders the run as an in-memory zip holding both CSVs.
func (b Bundle) Archive(run crawler.Run) ([]byte, error) {
	b = b.withDefaults()
	var profiles, logs bytes.Buffer
	if err := WriteProfiles(&profiles, run.Profiles); err != nil {
		return nil, err
	}
	if err := WriteLogs(&logs, run.Logs); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range []struct {
		name string
		data []byte
	}{
		{b.ProfilesName, profiles.Bytes()},
		{b.LogsName, logs.Bytes()},
	} {
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", entry.name, err)
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is built from configured output settings
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return render(f)
}

func zipFiles(w io.Writer, paths ...string) error {
	zw := zip.NewWriter(w)
	for _, p := range paths {
		if err := addFile(zw, p); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path) //nolint:gosec // path was written by this package
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", path, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy %s into zip: %w", path, err)
	}
	return nil
}
