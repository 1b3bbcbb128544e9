package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"census/internal/citizens/models"
	"census/internal/citizens/validation"
	dErrors "census/pkg/domain-errors"
	"census/pkg/platform/httputil"
	"census/pkg/requestcontext"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 64 << 20

// Service defines the citizen operations the handler exposes.
type Service interface {
	ImportCitizens(ctx context.Context, records []validation.Record) (int64, error)
	PatchCitizen(ctx context.Context, importID, citizenID int64, rec validation.Record) (*models.Citizen, error)
	ListCitizens(ctx context.Context, importID int64) ([]models.Citizen, error)
	Birthdays(ctx context.Context, importID int64) (models.Birthdays, error)
	TownAgePercentiles(ctx context.Context, importID int64) ([]models.TownAgeStats, error)
}

// Handler wires the import endpoints to the citizens service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	maxBodyBytes int64
}

// New constructs a handler. A non-positive maxBodyBytes uses
// DefaultMaxBodyBytes.
func New(service Service, logger *slog.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{service: service, logger: logger, maxBodyBytes: maxBodyBytes}
}

// Register mounts the import endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/imports", h.HandleImport)
	r.Route("/imports/{importID}", func(r chi.Router) {
		r.Get("/citizens", h.HandleListCitizens)
		r.Get("/citizens/birthdays", h.HandleBirthdays)
		r.Patch("/citizens/{citizenID}", h.HandlePatchCitizen)
		r.Get("/towns/stat/percentile/age", h.HandleTownAgePercentiles)
	})
}

// HandleImport handles POST /imports.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeImport(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.fail(ctx, w, "import request rejected", err)
		return
	}

	importID, err := h.service.ImportCitizens(ctx, req.Citizens)
	if err != nil {
		h.fail(ctx, w, "import rejected", err, "citizens", len(req.Citizens))
		return
	}

	h.logger.InfoContext(ctx, "import created",
		"request_id", requestcontext.RequestID(ctx),
		"import_id", importID,
		"citizens", len(req.Citizens),
	)
	httputil.WriteData(w, http.StatusCreated, models.ImportCreated{ImportID: importID})
}

// HandlePatchCitizen handles PATCH /imports/{importID}/citizens/{citizenID}.
func (h *Handler) HandlePatchCitizen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	importID, err := pathID(r, "importID")
	if err != nil {
		h.fail(ctx, w, "bad import id", err)
		return
	}
	citizenID, err := pathID(r, "citizenID")
	if err != nil {
		h.fail(ctx, w, "bad citizen id", err)
		return
	}

	rec, err := decodePatch(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.fail(ctx, w, "patch request rejected", err, "import_id", importID, "citizen_id", citizenID)
		return
	}

	citizen, err := h.service.PatchCitizen(ctx, importID, citizenID, rec)
	if err != nil {
		h.fail(ctx, w, "patch rejected", err, "import_id", importID, "citizen_id", citizenID)
		return
	}
	httputil.WriteData(w, http.StatusOK, citizen)
}

// HandleListCitizens handles GET /imports/{importID}/citizens.
func (h *Handler) HandleListCitizens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	importID, err := pathID(r, "importID")
	if err != nil {
		h.fail(ctx, w, "bad import id", err)
		return
	}

	citizens, err := h.service.ListCitizens(ctx, importID)
	if err != nil {
		h.fail(ctx, w, "list citizens failed", err, "import_id", importID)
		return
	}
	httputil.WriteData(w, http.StatusOK, citizens)
}

// HandleBirthdays handles GET /imports/{importID}/citizens/birthdays.
func (h *Handler) HandleBirthdays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	importID, err := pathID(r, "importID")
	if err != nil {
		h.fail(ctx, w, "bad import id", err)
		return
	}

	report, err := h.service.Birthdays(ctx, importID)
	if err != nil {
		h.fail(ctx, w, "birthdays report failed", err, "import_id", importID)
		return
	}
	httputil.WriteData(w, http.StatusOK, report)
}

// HandleTownAgePercentiles handles GET /imports/{importID}/towns/stat/percentile/age.
func (h *Handler) HandleTownAgePercentiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	importID, err := pathID(r, "importID")
	if err != nil {
		h.fail(ctx, w, "bad import id", err)
		return
	}

	stats, err := h.service.TownAgePercentiles(ctx, importID)
	if err != nil {
		h.fail(ctx, w, "age percentiles failed", err, "import_id", importID)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}

// fail logs at error level for internal failures and at info level for
// rejected input, then writes the mapped response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", requestcontext.RequestID(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	)
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.InfoContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// pathID parses a non-negative integer path parameter. Anything else cannot
// name an import or citizen, so it is NotFound.
func pathID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	if raw == "" || raw[0] < '0' || raw[0] > '9' {
		return 0, dErrors.Newf(dErrors.CodeNotFound, "%s %q is not an id", param, raw)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeNotFound, "%s %q is not an id", param, raw)
	}
	return id, nil
}
