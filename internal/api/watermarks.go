package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ejneale/inkpress/internal/pool"
	"github.com/ejneale/inkpress/internal/watermark"
)

// maxBodySize caps watermark request bodies. Base64 inflates payloads by a
// third, so this allows source images of roughly 24 MB.
const maxBodySize = 32 << 20

// createWatermarkRequest is the JSON body for POST /v1/watermarks.
// Image carries the source image as base64, optionally in a data URL.
type createWatermarkRequest struct {
	Image   string            `json:"image"`
	Options watermark.Options `json:"options"`
}

// createBatchRequest is the JSON body for POST /v1/watermarks/batch.
type createBatchRequest struct {
	Images  []string          `json:"images"`
	Options watermark.Options `json:"options"`
}

// batchItemResponse is one slot of the batch response, aligned with the
// request's images array. Exactly one of Data or Error is set.
type batchItemResponse struct {
	JobID string `json:"job_id"`
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// batchResponse wraps the collect-all batch outcome.
type batchResponse struct {
	BatchID string              `json:"batch_id"`
	Results []batchItemResponse `json:"results"`
}

func (s *Server) handleCreateWatermark(w http.ResponseWriter, r *http.Request) {
	var req createWatermarkRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Image == "" {
		s.writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	input, err := watermark.DecodeDataURL(req.Image)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := req.Options.Normalize()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, job, err := s.service.Process(r.Context(), input, cfg)
	if err != nil {
		s.writeTaskError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Job-Id", job.ID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write watermark response", "job_id", job.ID, "error", err)
	}
}

func (s *Server) handleCreateWatermarkBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if len(req.Images) == 0 {
		s.writeError(w, http.StatusBadRequest, "images is required")
		return
	}

	inputs := make([][]byte, len(req.Images))
	for i, img := range req.Images {
		data, err := watermark.DecodeDataURL(img)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("image %d: %v", i, err))
			return
		}
		inputs[i] = data
	}

	cfg, err := req.Options.Normalize()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, jobs, err := s.service.ProcessBatch(r.Context(), inputs, cfg)
	if err != nil {
		s.logger.Error("process batch", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to process batch")
		return
	}

	resp := batchResponse{
		BatchID: jobs[0].BatchID,
		Results: make([]batchItemResponse, len(results)),
	}
	for i, res := range results {
		item := batchItemResponse{JobID: jobs[i].ID}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			item.Data = base64.StdEncoding.EncodeToString(res.Data)
		}
		resp.Results[i] = item
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// writeTaskError maps a settled task error onto an HTTP status: rejected
// submissions mean the pool is gone (503), engine failures are the caller's
// payload problem (422).
func (s *Server) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pool.ErrTerminated):
		s.writeError(w, http.StatusServiceUnavailable, "pool terminated")
	case errors.Is(err, watermark.ErrUnsupportedInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		var taskErr *pool.TaskError
		if errors.As(err, &taskErr) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("process watermark", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to process watermark")
	}
}
