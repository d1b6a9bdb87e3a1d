package server

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bdougie/swingvision/internal/embeddings"
	"github.com/bdougie/swingvision/internal/overlay"
	"github.com/bdougie/swingvision/internal/pose"
	"github.com/bdougie/swingvision/internal/storage"
	"github.com/bdougie/swingvision/internal/swing"
)

// DefaultSimilarLimit is the number of similar swings returned without ?limit
const DefaultSimilarLimit = 5

const maxSimilarLimit = 50

// ErrorResponse is the JSON body of failed requests
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// uploadSwing analyzes a multipart upload with a "video" file and an optional
// "club" field
func (s *Server) uploadSwing(c echo.Context) error {
	fh, err := c.FormFile("video")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "A video file is required.")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read the uploaded video.")
	}
	defer f.Close()

	rec, err := s.analyzer.ProcessReader(c.Request().Context(), f, fh.Filename, c.FormValue("club"), nil)
	if err != nil {
		return s.analysisError(c, err)
	}

	s.recent.SetDefault(rec.ID.String(), rec)
	return c.JSON(http.StatusCreated, withoutSequence(rec))
}

// analysisError maps a pipeline failure to a status code and reason
func (s *Server) analysisError(c echo.Context, err error) error {
	reason := pose.FailureReason(err)
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, swing.ErrEmptySequence):
		status, reason = http.StatusUnprocessableEntity, "no-pose"
	case reason == pose.ReasonLoad, reason == pose.ReasonNoDuration:
		status = http.StatusUnprocessableEntity
	case reason == pose.ReasonDetector:
		status = http.StatusServiceUnavailable
	case reason == pose.ReasonCancelled:
		status = http.StatusRequestTimeout
	}

	s.logger.Warn("analysis failed", "reason", reason, "status", status, "error", err)
	return c.JSON(status, ErrorResponse{Error: err.Error(), Reason: reason})
}

// getSwing returns a stored analysis. The pose sequence is included only
// with ?sequence=true.
func (s *Server) getSwing(c echo.Context) error {
	rec, err := s.lookup(c)
	if err != nil {
		return err
	}
	if c.QueryParam("sequence") == "true" {
		return c.JSON(http.StatusOK, rec)
	}
	return c.JSON(http.StatusOK, withoutSequence(rec))
}

// getOverlay renders the skeleton closest to ?t= as a transparent PNG
func (s *Server) getOverlay(c echo.Context) error {
	rec, err := s.lookup(c)
	if err != nil {
		return err
	}
	if rec.Sequence == nil || rec.Sequence.Len() == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "No pose sequence stored for this swing.")
	}

	t, err := floatParam(c, "t", 0)
	if err != nil || !(t >= 0) || math.IsInf(t, 0) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid time parameter.")
	}
	w, errW := intParam(c, "w", s.config.OverlayWidth)
	h, errH := intParam(c, "h", s.config.OverlayHeight)
	if errW != nil || errH != nil || w <= 0 || h <= 0 || w > 4096 || h > 4096 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid overlay size.")
	}

	canvas := overlay.NewCanvas(w, h, s.config.OverlayScale)
	r := overlay.NewRenderer(canvas, overlay.ClockFunc(func() float64 { return t }), overlay.WithLogger(s.logger))
	r.Update(overlay.Input{Sequence: rec.Sequence, CurrentTime: t, Visible: true})
	r.Close()

	var buf bytes.Buffer
	if err := canvas.PNG(&buf); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to encode overlay: "+err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// getSimilar lists the swings closest to this one by metric embedding
func (s *Server) getSimilar(c echo.Context) error {
	if s.searcher == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Similar swing search requires the postgres store.")
	}

	limit, err := intParam(c, "limit", DefaultSimilarLimit)
	if err != nil || limit <= 0 || limit > maxSimilarLimit {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit.")
	}

	rec, err := s.lookup(c)
	if err != nil {
		return err
	}

	query := rec.Embedding
	if len(query) != embeddings.Dimensions {
		query = embeddings.FromMetrics(rec.Metrics)
	}

	results, err := s.searcher.SearchSimilar(c.Request().Context(), query, rec.ID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to search similar swings: "+err.Error())
	}
	if results == nil {
		results = []storage.SearchResult{}
	}
	return c.JSON(http.StatusOK, results)
}

// lookup resolves :id from the recent cache, then the store
func (s *Server) lookup(c echo.Context) (storage.Record, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return storage.Record{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid swing ID.")
	}

	if cached, ok := s.recent.Get(id.String()); ok {
		return cached.(storage.Record), nil
	}

	rec, err := s.finder.Find(c.Request().Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return storage.Record{}, echo.NewHTTPError(http.StatusNotFound, "Swing not found.")
	case errors.Is(err, context.Canceled):
		return storage.Record{}, echo.NewHTTPError(http.StatusRequestTimeout, "Request cancelled.")
	case err != nil:
		return storage.Record{}, echo.NewHTTPError(http.StatusInternalServerError, "Failed to load swing: "+err.Error())
	}

	s.recent.SetDefault(id.String(), rec)
	return rec, nil
}

func withoutSequence(rec storage.Record) storage.Record {
	rec.Sequence = nil
	return rec
}

func intParam(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func floatParam(c echo.Context, name string, def float64) (float64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}
