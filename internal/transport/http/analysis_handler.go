package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"agripulse/internal/analysis"
	apierrors "agripulse/internal/errors"
	"agripulse/internal/services"
	"agripulse/internal/store"
)

// AnalysisHandler handles analysis-related HTTP requests
type AnalysisHandler struct {
	service      *services.AnalysisService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *services.AnalysisService, logger *slog.Logger) *AnalysisHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &AnalysisHandler{
		service:      service,
		logger:       logger,
		errorHandler: apierrors.NewErrorHandler(logger),
		validate:     v,
	}
}

// RegisterRoutes registers the analysis routes
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Route("/analysis", func(r chi.Router) {
		r.Post("/aggregate", h.Aggregate)
		r.Post("/margin", h.Margin)
		r.Post("/anomalies", h.Anomalies)
		r.Post("/summary", h.Summary)
	})
	r.Get("/facets/options", h.Options)
}

// selectionRequest is the wire form of a FacetSelection.
type selectionRequest struct {
	From       string   `json:"from" validate:"required,datetime=2006-01-02"`
	To         string   `json:"to" validate:"required,datetime=2006-01-02"`
	Commodity  string   `json:"commodity" validate:"required"`
	Variety    string   `json:"variety"`
	Grade      string   `json:"grade"`
	SurveyType string   `json:"survey_type" validate:"omitempty,oneof=wholesale retail"`
	Regions    []string `json:"regions"`
	Markets    []string `json:"markets"`
}

func (req selectionRequest) toSelection() analysis.FacetSelection {
	start, _ := time.Parse("2006-01-02", req.From)
	end, _ := time.Parse("2006-01-02", req.To)

	sel := analysis.FacetSelection{
		DateRange: analysis.DateRange{Start: start, End: end},
		Commodity: req.Commodity,
		Variety:   req.Variety,
		Grade:     req.Grade,
		Regions:   req.Regions,
		Markets:   req.Markets,
	}
	if req.SurveyType != "" {
		st := store.ParseSurveyType(req.SurveyType)
		sel.SurveyType = &st
	}
	return sel
}

// decodeSelection parses and validates the request body into a selection.
func (h *AnalysisHandler) decodeSelection(w http.ResponseWriter, r *http.Request, req *selectionRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		var details []apierrors.ValidationError
		for _, fe := range err.(validator.ValidationErrors) {
			details = append(details, apierrors.ValidationError{
				Field:   fe.Field(),
				Message: fe.Tag(),
			})
		}
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", details))
		return false
	}
	return true
}

type aggregateRequest struct {
	selectionRequest
	Kind string `json:"kind" validate:"required,oneof=date_survey_type date_region date_market month_region month_market"`
}

// Aggregate returns the grouped mean-price series for a selection.
func (h *AnalysisHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if !h.decodeSelection(w, r, &req.selectionRequest) {
		return
	}
	// Kind is outside the embedded struct, validate the full request
	if err := h.validate.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("kind", "unknown aggregation kind"))
		return
	}

	kind, _ := analysis.ParseKeyKind(req.Kind)
	result, err := h.service.Aggregate(r.Context(), req.toSelection(), kind)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Margin returns daily and monthly retail-minus-wholesale margins.
func (h *AnalysisHandler) Margin(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !h.decodeSelection(w, r, &req) {
		return
	}

	result, err := h.service.MarginReport(r.Context(), req.toSelection())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Anomalies returns the rolling-band annotated wholesale series.
func (h *AnalysisHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !h.decodeSelection(w, r, &req) {
		return
	}

	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("window", "must be a positive integer"))
			return
		}
		window = parsed
	}

	result, err := h.service.DetectAnomalies(r.Context(), req.toSelection(), window)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Summary returns the headline indicators for a selection.
func (h *AnalysisHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !h.decodeSelection(w, r, &req) {
		return
	}

	result, err := h.service.Summary(r.Context(), req.toSelection())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Options returns the cascading facet option lists for query parameters.
func (h *AnalysisHandler) Options(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := selectionRequest{
		From:      q.Get("from"),
		To:        q.Get("to"),
		Commodity: q.Get("commodity"),
		Variety:   q.Get("variety"),
		Grade:     q.Get("grade"),
	}

	// Default to the store's full date range when unspecified.
	if req.From == "" || req.To == "" {
		start, end, ok := h.service.Store().DateRange()
		if !ok {
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError("observation data"))
			return
		}
		if req.From == "" {
			req.From = start.Format("2006-01-02")
		}
		if req.To == "" {
			req.To = end.Format("2006-01-02")
		}
	}

	if err := h.validate.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("query", "from/to must be YYYY-MM-DD and commodity is required"))
		return
	}

	result, err := h.service.Options(r.Context(), req.toSelection())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}
