package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

var statementExtensions = []string{".xlsx", ".xlsm", ".csv"}

// PathImport is the outcome of importing a file or a directory of statements
type PathImport struct {
	Files    map[string]*ImportSummary `json:"files"`
	Failed   []string                  `json:"failed,omitempty"`
	Combined *ImportSummary            `json:"combined"`
}

// ImportPath imports a single statement, or every statement file directly
// inside a directory in name order. A fatal error on one file of a directory
// is recorded and the next file is tried.
func (l *Ledger) ImportPath(ctx context.Context, path string) (*PathImport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat path: %w", ErrFatal, err)
	}

	result := &PathImport{
		Files:    map[string]*ImportSummary{},
		Combined: newImportSummary(),
	}

	if !info.IsDir() {
		summary, err := l.importFile(ctx, path)
		if summary != nil {
			result.Files[path] = summary
			result.Combined.merge(summary)
		}
		return result, err
	}

	files, err := statementFiles(path)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"dir": path, "files": len(files)}).Info("scanning statements")

	for _, file := range files {
		summary, err := l.importFile(ctx, file)
		if summary != nil {
			result.Files[file] = summary
			result.Combined.merge(summary)
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrFatal) {
			result.Combined.Aborted = true
			return result, err
		}
		log.WithError(err).WithField("file", file).Warn("statement skipped")
		result.Failed = append(result.Failed, fmt.Sprintf("%s: %v", filepath.Base(file), err))
	}
	return result, nil
}

func (l *Ledger) importFile(ctx context.Context, path string) (*ImportSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file: %w", ErrFatal, err)
	}
	defer f.Close()
	return l.ImportStatement(ctx, f, path)
}

func statementFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read directory: %w", ErrFatal, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(statementExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *ImportSummary) merge(other *ImportSummary) {
	s.RowsAttempted += other.RowsAttempted
	s.Added += other.Added
	s.DuplicatesSkipped += other.DuplicatesSkipped
	s.NonUpiOrWithdrawalSkipped += other.NonUpiOrWithdrawalSkipped
	s.UnparseableSkipped += other.UnparseableSkipped
	s.Errors += other.Errors
	s.AmountPosted = s.AmountPosted.Add(other.AmountPosted)
	s.Aborted = s.Aborted || other.Aborted
	for _, handle := range other.UnknownHandles {
		if !s.seen[handle] {
			s.seen[handle] = true
			s.UnknownHandles = append(s.UnknownHandles, handle)
		}
	}
	s.UnknownHandleRows += other.UnknownHandleRows
}
