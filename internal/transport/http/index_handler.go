package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "priceindex/internal/errors"
	"priceindex/internal/exporter"
	"priceindex/internal/middleware"
	"priceindex/internal/multilateral"
	"priceindex/internal/panel"
	"priceindex/internal/services"
	"priceindex/internal/validation"
)

const (
	defaultListLimit = 20
	maxListLimit     = 1000
	// multipart parts beyond this are spooled to disk by net/http
	uploadMemory = 8 << 20
)

// ComputeIndexRequest is the JSON body of POST /api/indexes
type ComputeIndexRequest struct {
	Method string `json:"method" validate:"required"`
	// Characteristics names the observation characteristics used by TDH
	Characteristics []string `json:"characteristics,omitempty" validate:"dive,required,column"`
	// GroupBy computes one index per distinct value of this characteristic
	GroupBy      string              `json:"group_by,omitempty" validate:"column"`
	Observations []panel.Observation `json:"observations" validate:"required,min=1,dive"`
}

// IndexHandler handles index computation requests with RFC 7807 error handling
type IndexHandler struct {
	service      IndexServiceInterface
	columns      panel.Columns
	validator    *validator.Validate
	query        *middleware.QueryParamValidator
	files        *validation.FileValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewIndexHandler creates a new index handler. columns supplies the default
// column names for uploaded files.
func NewIndexHandler(service IndexServiceInterface, columns panel.Columns, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *IndexHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexHandler{
		service:      service,
		columns:      columns,
		validator:    middleware.NewValidator(),
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		files:        validation.NewFileValidator(logger),
		logger:       logger.With(slog.String("handler", "index")),
		errorHandler: errorHandler,
	}
}

// Routes returns the index routes
func (h *IndexHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.ContentTypeValidator("application/json")).Post("/", h.Compute)
	r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/upload", h.Upload)
	r.Get("/", h.List)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/export", h.Export)
	})

	return r
}

// Compute handles POST /api/indexes
func (h *IndexHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req ComputeIndexRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := middleware.ValidateStruct(h.validator, req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	// an unsupported method is reported before the observations are read
	if _, err := multilateral.ParseMethod(req.Method); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	cols := panel.DefaultColumns()
	cols.Characteristics = req.Characteristics

	var extra []string
	if req.GroupBy != "" {
		extra = append(extra, req.GroupBy)
	}
	p, err := panel.FromObservations(req.Observations, cols, extra...)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, services.ComputeRequest{Method: req.Method, Panel: p, Source: "api"}, req.GroupBy)
}

// Upload handles POST /api/indexes/upload. The multipart form carries the
// panel as "file" (CSV or XLSX) plus method, sheet, column overrides,
// characteristics (comma separated) and group_by.
func (h *IndexHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "file is required"))
		return
	}
	defer file.Close()

	cols := h.columns
	for field, dst := range map[string]*string{
		"price":    &cols.Price,
		"quantity": &cols.Quantity,
		"date":     &cols.Date,
		"id":       &cols.ProductID,
	} {
		if v := strings.TrimSpace(r.FormValue(field)); v != "" {
			*dst = v
		}
	}
	if v := r.FormValue("characteristics"); v != "" {
		cols.Characteristics = splitList(v)
	}

	method := r.FormValue("method")
	if method == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("method", "method is required"))
		return
	}
	if _, err := multilateral.ParseMethod(method); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	kind, err := h.files.ValidateUpload(header.Filename, header.Size)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", err.Error()))
		return
	}

	var p *panel.Panel
	if kind == validation.KindXLSX {
		p, err = panel.ReadXLSX(file, r.FormValue("sheet"), cols)
	} else {
		p, err = panel.ReadCSV(file, cols)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "panel uploaded",
		slog.String("file", header.Filename),
		slog.Int64("size", header.Size),
		slog.Int("observations", p.Len()),
	)

	h.respond(w, r, services.ComputeRequest{Method: method, Panel: p, Source: header.Filename}, r.FormValue("group_by"))
}

func (h *IndexHandler) respond(w http.ResponseWriter, r *http.Request, req services.ComputeRequest, groupBy string) {
	if groupBy != "" {
		grouped, err := h.service.ComputeGrouped(r.Context(), req, groupBy)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, grouped)
		return
	}

	run, err := h.service.Compute(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, run)
}

// List handles GET /api/indexes
func (h *IndexHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxListLimit, defaultListLimit)
	if !ok {
		return
	}

	runs, err := h.service.List(limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*services.IndexRun{}
	}

	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// Get handles GET /api/indexes/{id}. The id may name a run or a grouped
// computation; ?base=<period> rebases the returned tables on that period.
func (h *IndexHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	base := r.URL.Query().Get("base")

	run, err := h.service.Get(id)
	if err == nil {
		if run.Table, err = rebase(run.Table, base); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("base", err.Error()))
			return
		}
		render.JSON(w, r, run)
		return
	}
	if !errors.Is(err, services.ErrRunNotFound) {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	grouped, gerr := h.service.GetGroup(id)
	if gerr != nil {
		h.errorHandler.HandleError(w, r, gerr)
		return
	}
	for _, run := range grouped.Runs {
		if run.Table, err = rebase(run.Table, base); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("base", err.Error()))
			return
		}
	}
	render.JSON(w, r, grouped)
}

func rebase(table *multilateral.IndexTable, base string) (*multilateral.IndexTable, error) {
	if base == "" || table == nil {
		return table, nil
	}
	return table.Rebased(base)
}

// Export handles GET /api/indexes/{id}/export?format=csv|xlsx|json
func (h *IndexHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	name, ok := h.query.ValidateEnum(w, r, "format",
		[]string{string(exporter.FormatCSV), string(exporter.FormatXLSX), string(exporter.FormatJSON)},
		string(exporter.FormatCSV))
	if !ok {
		return
	}
	format := exporter.Format(name)

	// buffer so a failed export can still produce an error response
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf, id, format); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="index-%s%s"`, id, format.Extension()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
