package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/export"
	"github.com/dgallion1/examconv/internal/pipeline"
)

type createSessionRequest struct {
	Category string `json:"category"`
}

type editRequest struct {
	Filename string         `json:"filename"`
	Rows     []exam.EditRow `json:"rows"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	sess, err := s.orchestrator.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	sess := s.orchestrator.CreateSession(strings.TrimSpace(req.Category))
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"category":   sess.Category,
		"files_url":  fmt.Sprintf("/api/sessions/%s/files", sess.ID),
	})
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleEditQuestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req editRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := sess.ApplyEdits(sanitizeFilename(req.Filename), req.Rows)
	if errors.Is(err, pipeline.ErrUnknownFile) {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("edits applied",
		zap.String("session_id", sess.ID),
		zap.String("file", req.Filename),
		zap.Int("rows", len(req.Rows)),
		zap.Bool("valid", outcome.Valid()))
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      outcome.Valid(),
		"violations": outcome.Violations,
		"session":    sess.Snapshot(),
	})
}

func (s *Server) handleExport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.session(w, r)
		if !ok {
			return
		}
		f, err := export.ParseFormat(format)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var buf bytes.Buffer
		err = export.Write(&buf, sess, sess.Category, f)
		if errors.Is(err, export.ErrNotValid) {
			msg := "session has files that are not valid; fix them before exporting"
			if conflicts := sess.Conflicts(); len(conflicts) > 0 {
				msg = "question numbers repeat across files; renumber before exporting:\n" + exam.Describe(conflicts)
			}
			jsonError(w, msg, http.StatusConflict)
			return
		}
		if err != nil {
			s.log.Error("export failed", zap.String("session_id", sess.ID), zap.Error(err))
			jsonError(w, "export failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="questions.%s"`, f))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

// debugFile exposes the signal and generator exchange of one file verbatim.
type debugFile struct {
	Filename     string              `json:"filename"`
	ContentHash  string              `json:"content_hash"`
	Signal       any                 `json:"signal"`
	Detections   any                 `json:"detections"`
	RawResponses []string            `json:"raw_responses"`
	Violations   []exam.Violation    `json:"violations"`
	Transitions  []string            `json:"transitions"`
	Error        *pipeline.FileError `json:"error,omitempty"`
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	files := sess.Files()
	out := make([]debugFile, 0, len(files))
	for _, f := range files {
		d := debugFile{
			Filename:     f.Filename,
			ContentHash:  f.ContentHash,
			Signal:       f.Signal,
			Detections:   f.Detections,
			RawResponses: []string{},
			Violations:   []exam.Violation{},
			Transitions:  []string{},
			Error:        f.Err,
		}
		if f.Outcome != nil {
			d.RawResponses = append(d.RawResponses, f.Outcome.RawResponses...)
			d.Violations = append(d.Violations, f.Outcome.Violations...)
			for _, t := range f.Outcome.Transitions {
				d.Transitions = append(d.Transitions, string(t))
			}
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sess.ID, "files": out})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.DeleteSession(chi.URLParam(r, "sessionID")); err != nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
