// =============================================================================
// SENA Material Requisitions - File Manager Utility
// =============================================================================
//
// This module provides file management utilities shared by the store and
// the exporters, including:
//   - Export file naming with an embedded ISO date
//   - Atomic whole-file replacement (temp file + rename)
//   - Input discovery for commands that accept files or directories
//
// WRITE STRATEGY:
//   Every snapshot and export is written to a temporary file in the target
//   directory and renamed over the destination, so a crash mid-write never
//   leaves a partial file behind.
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// FILE NAMING
// =============================================================================

// ExportFileName builds "<prefix>_<YYYY-MM-DD><ext>".
//
// PARAMETERS:
//   - prefix: The file name prefix (e.g. "SENA_Envio_Materiales").
//   - ext:    The extension including the dot (e.g. ".json").
//   - now:    The export time; only its date is used.
//
// EXAMPLE:
//
//	ExportFileName("Consolidado_Materiales_SENA", ".csv", now)
//	-> "Consolidado_Materiales_SENA_2024-01-15.csv"
func ExportFileName(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, now.Format("2006-01-02"), ext)
}

// =============================================================================
// ATOMIC WRITES
// =============================================================================

// WriteFileAtomic replaces path with data.
//
// PARAMETERS:
//   - path: The destination file. Its directory is created if missing.
//   - data: The complete file contents.
//   - perm: The permission bits of the final file.
//
// RETURNS:
//   - An error if any step fails. On error the destination is untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Remove the temp file on any failure path.
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	committed = true
	return nil
}

// =============================================================================
// INPUT DISCOVERY
// =============================================================================

// DiscoverInputFiles expands the given paths into a list of files.
//
// PARAMETERS:
//   - paths: Files and/or directories. Files are kept as given, whatever
//     their extension; directories are scanned (non-recursively) for files
//     with the extension ext.
//   - ext:   The extension to look for inside directories (e.g. ".json").
//
// RETURNS:
//   - The files in argument order, directory entries sorted by name.
//   - An error if a path does not exist or a directory cannot be read.
func DiscoverInputFiles(paths []string, ext string) ([]string, error) {
	var files []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}

		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(e.Name()), ext) {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	return files, nil
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
