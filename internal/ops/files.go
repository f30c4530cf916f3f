package ops

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/tempo/internal/config"
	"github.com/hpungsan/tempo/internal/errors"
)

// ExportOutput contains the result of a file export.
type ExportOutput struct {
	Path       string `json:"path"`
	Tasks      int    `json:"tasks"`
	Events     int    `json:"events"`
	Notes      int    `json:"notes"`
	ExportedAt int64  `json:"exported_at"`
	ExportID   string `json:"export_id,omitempty"`
}

// DefaultExportPath returns ~/.tempo/exports/<prefix>-<timestamp><ext>.
// The timestamp has millisecond resolution.
func DefaultExportPath(prefix, ext string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", prefix, now.UTC().Format("2006-01-02T150405.000"), ext)), nil
}

// exportTime is the millisecond instant encoded in the export id, falling back
// to exported_at for ids that are not ULIDs.
func exportTime(doc *Document) time.Time {
	if id, err := ulid.ParseStrict(doc.ExportID); err == nil {
		return ulid.Time(id.Time())
	}
	return time.Unix(doc.ExportedAt, 0)
}

// ExportFile writes doc to path (or a default path under ~/.tempo/exports).
func ExportFile(doc *Document, cfg *config.Config, path string) (*ExportOutput, error) {
	if path == "" {
		var err error
		path, err = DefaultExportPath("tempo", ExtDocument, exportTime(doc))
		if err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(path, PathCheckWrite, ExtDocument, cfg); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := writeAtomic(path, append(data, '\n')); err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       path,
		Tasks:      len(doc.Tasks),
		Events:     len(doc.Events),
		Notes:      len(doc.Notes),
		ExportedAt: doc.ExportedAt,
		ExportID:   doc.ExportID,
	}, nil
}

// ReadDocumentFile reads and validates an export document from path.
// Nothing is applied; pass the result to Commit.
func ReadDocumentFile(cfg *config.Config, path string) (*Collections, error) {
	data, err := readImportFile(cfg, path, ExtDocument)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

// ExportTasksFile writes text (uncompleted tasks, one per line) to path.
func ExportTasksFile(text string, cfg *config.Config, path string, now time.Time) (*ExportOutput, error) {
	if path == "" {
		var err error
		path, err = DefaultExportPath("tasks", ExtTasks, now)
		if err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(path, PathCheckWrite, ExtTasks, cfg); err != nil {
		return nil, err
	}

	count := 0
	if text != "" {
		count = strings.Count(text, "\n") + 1
		text += "\n"
	}
	if err := writeAtomic(path, []byte(text)); err != nil {
		return nil, err
	}
	return &ExportOutput{Path: path, Tasks: count, ExportedAt: now.Unix()}, nil
}

// ReadTasksFile returns the contents of a plain-text task list.
func ReadTasksFile(cfg *config.Config, path string) (string, error) {
	data, err := readImportFile(cfg, path, ExtTasks)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readImportFile(cfg *config.Config, path, ext string) ([]byte, error) {
	if err := ValidatePath(path, PathCheckRead, ext, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := err.(*errors.TempoError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewValidation(fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}
	return data, nil
}

// writeAtomic writes data to a temp file next to path, then renames it into
// place so an existing file survives a failed write.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails if the destination exists; the existing file is kept.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewValidation("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
