package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgallion1/examconv/internal/parser"
	"github.com/dgallion1/examconv/internal/pipeline"
)

// fileResponse is the per-file outcome of an upload.
type fileResponse struct {
	Filename       string               `json:"filename"`
	Valid          bool                 `json:"valid"`
	State          string               `json:"state,omitempty"`
	QuestionCount  int                  `json:"question_count"`
	RepairAttempts int                  `json:"repair_attempts"`
	DecodeFailure  bool                 `json:"decode_failure"`
	Kind           pipeline.FailureKind `json:"failure_kind,omitempty"`
	Error          string               `json:"error,omitempty"`
}

func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.orchestrator.Session(sessionID); err != nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var (
		inputs   []pipeline.Input
		rejected []fileResponse
	)
	for _, fh := range headers {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			rejected = append(rejected, fileResponse{
				Filename: filename,
				Kind:     pipeline.ExtractionFailure,
				Error:    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			rejected = append(rejected, fileResponse{Filename: filename, Kind: pipeline.ExtractionFailure, Error: "failed to open file"})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			rejected = append(rejected, fileResponse{
				Filename: filename,
				Kind:     pipeline.ExtractionFailure,
				Error:    fmt.Sprintf("file too large or read error (max %d bytes)", s.cfg.MaxUploadBytes),
			})
			continue
		}
		inputs = append(inputs, pipeline.Input{Filename: filename, Data: data})
	}

	var results []*pipeline.FileResult
	if len(inputs) > 0 {
		var err error
		results, err = s.orchestrator.Submit(r.Context(), sessionID, inputs)
		if err != nil {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	out := make([]fileResponse, 0, len(results)+len(rejected))
	for _, res := range results {
		out = append(out, toFileResponse(res))
	}
	out = append(out, rejected...)

	s.log.Info("files processed",
		zap.String("session_id", sessionID),
		zap.Int("submitted", len(inputs)),
		zap.Int("rejected", len(rejected)))
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "files": out})
}

func toFileResponse(res *pipeline.FileResult) fileResponse {
	fr := fileResponse{
		Filename:      res.Filename,
		Valid:         res.Valid(),
		QuestionCount: len(res.Questions),
		DecodeFailure: res.DecodeFailure,
	}
	if res.Outcome != nil {
		fr.State = string(res.Outcome.State)
		fr.RepairAttempts = res.Outcome.RepairAttempts
	}
	if res.Err != nil {
		fr.Kind = res.Err.Kind
		fr.Error = res.Err.Error()
	}
	return fr
}
