package handler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/middleware"
	"github.com/tfinance/tfinance-api/internal/storage"
)

// AppArchiveName is the filename the client saves the download as.
const AppArchiveName = "T-Finance.zip"

// FilesService is the download behaviour the handlers need.
type FilesService interface {
	OpenAppArchive(ctx context.Context, userID int64) (io.ReadCloser, storage.Object, error)
}

// FilesHandler serves premium downloads.
type FilesHandler struct {
	service FilesService
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(svc FilesService) *FilesHandler {
	return &FilesHandler{service: svc}
}

// HandleAppArchive handles GET /api/files/app requests.
func (h *FilesHandler) HandleAppArchive(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse(msgUnauthorized))
		return
	}

	rc, obj, err := h.service.OpenAppArchive(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": AppArchiveName}))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("key", obj.Key).Msg("archive download interrupted")
	}
}
