package tempfiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"media-analyzer/internal/shared/util"
)

var (
	// ErrNotStaged is returned when a job's source file is not present in the temp directory.
	ErrNotStaged = errors.New("source file not staged")
	// ErrOutsideStore is returned by Release for paths the store did not stage.
	ErrOutsideStore = errors.New("path outside temp dir")
)

// Store stages job media under a single directory as {jobID}_{fileName}.
type Store struct {
	baseDir string
}

// New creates a store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.baseDir }

// Ensure creates the root directory if needed.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("mkdir temp dir: %w", err)
	}
	return nil
}

// Path returns where the source for jobID and fileName lives, without checking it exists.
func (s *Store) Path(jobID, fileName string) (string, error) {
	id, err := util.SanitizeFileName(jobID)
	if err != nil {
		return "", fmt.Errorf("sanitize job id: %w", err)
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return filepath.Join(s.baseDir, id+"_"+name), nil
}

// Acquire writes r to the job's staging path and returns the path, size and sniffed content type.
func (s *Store) Acquire(ctx context.Context, jobID, fileName string, r io.Reader) (string, int64, string, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}
	fullPath, err := s.Path(jobID, fileName)
	if err != nil {
		return "", 0, "", err
	}
	if err := s.Ensure(); err != nil {
		return "", 0, "", err
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var sniff [512]byte
	n, readErr := io.ReadFull(r, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		os.Remove(fullPath)
		return "", 0, "", fmt.Errorf("read sniff: %w", readErr)
	}
	mimeType := http.DetectContentType(sniff[:n])

	size := int64(0)
	if n > 0 {
		if _, err := f.Write(sniff[:n]); err != nil {
			os.Remove(fullPath)
			return "", 0, "", fmt.Errorf("write sniff: %w", err)
		}
		size += int64(n)
	}
	written, err := io.Copy(f, r)
	if err != nil {
		os.Remove(fullPath)
		return "", 0, "", fmt.Errorf("write body: %w", err)
	}
	size += written
	return fullPath, size, mimeType, nil
}

// Resolve returns the staging path of a file placed in the directory by another process.
func (s *Store) Resolve(jobID, fileName string) (string, error) {
	fullPath, err := s.Path(jobID, fileName)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotStaged, filepath.Base(fullPath))
	}
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotStaged, filepath.Base(fullPath))
	}
	return fullPath, nil
}

// Contains reports whether path names a file directly or transitively under the root directory.
func (s *Store) Contains(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

// Release removes a staged file. A file that is already gone is not an error;
// a path outside the root directory is never removed.
func (s *Store) Release(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if !s.Contains(path) {
		return fmt.Errorf("%w: %s", ErrOutsideStore, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}
