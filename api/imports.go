package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/aqlanhadi/kisht/ledger"
	log "github.com/sirupsen/logrus"
)

// ImportState is the phase of the server's statement import
type ImportState string

const (
	ImportIdle    ImportState = "idle"
	ImportLoading ImportState = "loading"
	ImportSuccess ImportState = "success"
	ImportError   ImportState = "error"
)

// ImportStatus is reported by GET /import/status
type ImportStatus struct {
	State      ImportState           `json:"state"`
	File       string                `json:"file,omitempty"`
	Summary    *ledger.ImportSummary `json:"summary,omitempty"`
	Message    string                `json:"message,omitempty"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
}

// importTracker allows one import at a time per server
type importTracker struct {
	mu     sync.Mutex
	status ImportStatus
}

func (t *importTracker) current() ImportStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State == "" {
		return ImportStatus{State: ImportIdle}
	}
	return t.status
}

// begin moves Idle to Loading. Otherwise it reports the state in the way.
func (t *importTracker) begin(file string) (ImportState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State != "" && t.status.State != ImportIdle {
		return t.status.State, false
	}
	now := time.Now()
	t.status = ImportStatus{State: ImportLoading, File: file, StartedAt: &now}
	return ImportLoading, true
}

func (t *importTracker) finish(summary *ledger.ImportSummary, message string, err error) ImportStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.status.FinishedAt = &now
	t.status.Summary = summary
	t.status.Message = message
	t.status.State = ImportSuccess
	if err != nil {
		t.status.State = ImportError
	}
	return t.status
}

// reset returns a finished import to Idle. A running import cannot be reset.
func (t *importTracker) reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State == ImportLoading {
		return false
	}
	t.status = ImportStatus{State: ImportIdle}
	return true
}

// handleImport runs a statement import for the uploaded multipart "file".
// The import is bound to the request, so a client that disconnects cancels
// it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not parse multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not get uploaded file: "+err.Error())
		return
	}
	defer file.Close()

	if state, ok := s.imports.begin(header.Filename); !ok {
		if state == ImportLoading {
			writeMessage(w, http.StatusConflict, "an import is already running")
		} else {
			writeMessage(w, http.StatusConflict, "reset the previous import first")
		}
		return
	}

	logger := log.WithField("file", header.Filename)
	logger.Info("import started")

	summary, err := s.ledger.ImportStatement(r.Context(), file, header.Filename)
	switch {
	case err == nil:
		status := s.imports.finish(summary, s.ledger.FormatSummary(summary), nil)
		writeJSON(w, http.StatusOK, status)
	case errors.Is(err, ledger.ErrFatal):
		logger.WithError(err).Warn("import failed")
		status := s.imports.finish(nil, err.Error(), err)
		writeJSON(w, http.StatusUnprocessableEntity, status)
	default:
		logger.WithError(err).Warn("import interrupted")
		message := err.Error()
		if summary != nil {
			message = s.ledger.FormatSummary(summary)
		}
		status := s.imports.finish(summary, message, err)
		writeJSON(w, http.StatusServiceUnavailable, status)
	}
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.imports.current())
}

func (s *Server) handleImportReset(w http.ResponseWriter, r *http.Request) {
	if !s.imports.reset() {
		writeMessage(w, http.StatusConflict, "an import is still running")
		return
	}
	writeJSON(w, http.StatusOK, s.imports.current())
}
