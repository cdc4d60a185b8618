package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/floralens/identify/internal/adapters/inbound/http/middleware"
	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/usecases"
	"github.com/floralens/identify/internal/usecases/commands"
	"github.com/floralens/identify/internal/usecases/queries"
	"github.com/go-chi/chi/v5"
)

const imageFormField = "image"

// IdentificationHandler serves the identification endpoints.
type IdentificationHandler struct {
	app           *usecases.WebApplication
	maxImageBytes int64
}

func NewIdentificationHandler(app *usecases.WebApplication, maxImageBytes int64) *IdentificationHandler {
	return &IdentificationHandler{
		app:           app,
		maxImageBytes: maxImageBytes,
	}
}

// CreateIdentification handles POST /identifications. The image arrives
// either as a multipart "image" part or as the raw request body.
func (h *IdentificationHandler) CreateIdentification(w http.ResponseWriter, r *http.Request) {
	image, err := h.readImage(r)
	if err != nil {
		if errors.Is(err, errImageTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "image exceeds the size limit")

			return
		}

		writeError(w, http.StatusBadRequest, "INVALID_IMAGE", "request carries no readable image")

		return
	}

	if len(image) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_IMAGE", "request carries no readable image")

		return
	}

	includeDiseases, _ := strconv.ParseBool(r.URL.Query().Get("include_diseases"))

	result, err := h.app.Queries.IdentifyPlant.Execute(r.Context(), queries.IdentifyPlantQuery{
		Image:           image,
		IncludeDiseases: includeDiseases,
		CorrelationID:   middleware.GetCorrelationID(r.Context()),
	})
	if err != nil {
		h.writeIdentifyError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, EnvelopedResponse{
		Data: result,
		Meta: NewMeta(r),
	})
}

// DeleteIdentification handles DELETE /identifications/{fingerprint}:
// it purges every cached result for the fingerprint.
func (h *IdentificationHandler) DeleteIdentification(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	if fp == "" {
		writeError(w, http.StatusBadRequest, "INVALID_FINGERPRINT", "fingerprint path parameter is required")

		return
	}

	result, err := h.app.Commands.PurgeIdentifications.Handle(r.Context(), commands.PurgeIdentificationsCommand{
		Fingerprint: fp,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "PURGE_FAILED", "failed to purge cached identifications")

		return
	}

	writeJSON(w, http.StatusOK, EnvelopedResponse{
		Data: map[string]int64{"removed": result.Removed},
		Meta: NewMeta(r),
	})
}

// GetHealth handles GET /health.
func (h *IdentificationHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchHealthReport.Execute(r.Context(), queries.FetchHealthReportQuery{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "HEALTH_CHECK_FAILED", "failed to build health report")

		return
	}

	status := http.StatusOK
	if report.Status == model.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, report)
}

var errImageTooLarge = errors.New("image too large")

func (h *IdentificationHandler) readImage(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxImageBytes)

	contentType := r.Header.Get("Content-Type")
	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
			return nil, mapBodyError(err)
		}

		file, _, err := r.FormFile(imageFormField)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		image, err := io.ReadAll(file)
		if err != nil {
			return nil, mapBodyError(err)
		}

		return image, nil
	}

	image, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, mapBodyError(err)
	}

	return image, nil
}

func mapBodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errImageTooLarge
	}

	return err
}

func (h *IdentificationHandler) writeIdentifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNoImage):
		writeError(w, http.StatusBadRequest, "INVALID_IMAGE", "request carries no readable image")
	case errors.Is(err, model.ErrAllProvidersFailed):
		writeError(w, http.StatusBadGateway, "PROVIDERS_UNAVAILABLE", "no identification provider produced a result")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
