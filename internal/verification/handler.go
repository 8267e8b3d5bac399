package verification

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vaultd-io/vaultd/internal/platform/httpx"
	"github.com/vaultd-io/vaultd/internal/snapshot"
)

const codesSnapshotFile = "verification_codes.json"

// Handler wires HTTP endpoints for the verification-code flow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	sink      *snapshot.Sink
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sink *snapshot.Sink) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		sink:      sink,
		validator: validator.New(),
	}
}

// MountRoutes registers verification routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/send-code/", h.handleSendCode)
	r.Post("/check-code", h.handleCheckCode)
	r.Get("/get_codes_db", h.handleListCodes)
}

type sendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type checkCodeRequest struct {
	Email    string `json:"email" validate:"required,email"`
	UserCode string `json:"user_code" validate:"required,len=6,numeric"`
}

type entrySnapshot struct {
	Email     string  `json:"email"`
	Code      string  `json:"code"`
	CreatedAt *string `json:"created_at"`
	IsUsed    bool    `json:"is_used"`
}

func (h *Handler) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	if _, err := h.service.Issue(r.Context(), req.Email); err != nil {
		h.logger.Error("issue verification code", slog.String("email", req.Email), slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "success", "email": req.Email})
}

func (h *Handler) handleCheckCode(w http.ResponseWriter, r *http.Request) {
	var req checkCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "email and a six-digit user_code are required")
		return
	}

	if err := h.service.Validate(r.Context(), req.Email, req.UserCode); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Code verified successfully",
	})
}

func (h *Handler) handleListCodes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list verification codes", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	snapshots := make([]entrySnapshot, 0, len(entries))
	for _, e := range entries {
		snap := entrySnapshot{Email: e.Email, Code: e.Code, IsUsed: e.IsUsed}
		if !e.CreatedAt.IsZero() {
			formatted := e.CreatedAt.Format(time.RFC3339)
			snap.CreatedAt = &formatted
		}
		snapshots = append(snapshots, snap)
	}

	if err := h.sink.Mirror(codesSnapshotFile, snapshots); err != nil {
		h.logger.Warn("mirror codes snapshot", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, snapshots)
}
