package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Kind is the encoding of a panel file
type Kind string

const (
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
)

var (
	// ErrUnsupportedFileType is returned for extensions that cannot hold a panel
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrTemporaryFile is returned for Excel lock files such as "~$prices.xlsx"
	ErrTemporaryFile = errors.New("temporary Excel file")
	// ErrEmptyFile is returned for zero-length inputs
	ErrEmptyFile = errors.New("file is empty")
)

// FileValidator checks panel inputs and export destinations
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// KindOf maps a file name to the panel encoding it holds
func KindOf(name string) (Kind, error) {
	if strings.HasPrefix(filepath.Base(name), "~$") {
		return "", fmt.Errorf("%w: %s", ErrTemporaryFile, filepath.Base(name))
	}

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt", "":
		return KindCSV, nil
	case ".xlsx", ".xlsm":
		return KindXLSX, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedFileType, ext)
	}
}

// ValidateUpload checks the name and size of an uploaded panel
func (v *FileValidator) ValidateUpload(name string, size int64) (Kind, error) {
	kind, err := KindOf(name)
	if err != nil {
		v.logger.Warn("Rejected upload",
			slog.String("file", name),
			slog.String("error", err.Error()))
		return "", err
	}
	if size == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	return kind, nil
}

// ValidateInputFile checks that path is a readable, non-empty panel file
func (v *FileValidator) ValidateInputFile(path string) (Kind, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Input file does not exist",
			slog.String("file", path))
		return "", fmt.Errorf("input file %s does not exist", path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	kind, err := KindOf(path)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Input file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("Input file validated",
		slog.String("file", path),
		slog.String("kind", string(kind)),
		slog.Int64("size", info.Size()))
	return kind, nil
}

// ValidateOutputPath ensures the directory of path exists and is writable
func (v *FileValidator) ValidateOutputPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	tmp.Close()
	os.Remove(tmp.Name())

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return nil
}
