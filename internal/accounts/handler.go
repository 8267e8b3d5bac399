package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vaultd-io/vaultd/internal/platform/httpx"
	"github.com/vaultd-io/vaultd/internal/snapshot"
)

const usersSnapshotFile = "account.json"

// Handler wires HTTP endpoints for account flows.
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

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/user_registration", h.handleRegister)
	r.Post("/user_login", h.handleLogin)
	r.Post("/user_logout", h.handleLogout)
	r.Get("/update_balance", h.handleUpdateBalance)
	r.Post("/update_balance", h.handleUpdateBalance)
	r.Get("/get_users_db", h.handleListUsers)
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type logoutRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type balanceRequest struct {
	Email  string           `json:"email" validate:"required,email"`
	Amount *decimal.Decimal `json:"amount"`
}

type userSnapshot struct {
	Email          string          `json:"email"`
	PasswordDigest string          `json:"password_digest"`
	Balance        decimal.Decimal `json:"balance"`
	IsLoggedIn     bool            `json:"is_logged_in"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if err := h.service.Register(r.Context(), req.Email, req.Password); err != nil {
		h.logger.Warn("register failed", slog.String("email", req.Email), slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "success", "email": req.Email})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"email": user.Email, "balance": user.Balance})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.service.EndSession(r.Context(), req.Email); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": req.Email, "status": "disconnected"})
}

func (h *Handler) handleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseBalanceRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, err.Error())
		return
	}

	newBalance, err := h.service.AdjustBalance(r.Context(), req.Email, *req.Amount)
	if err != nil {
		h.logger.Warn("balance update failed", slog.String("email", req.Email), slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"email":       req.Email,
		"new_balance": newBalance,
	})
}

// parseBalanceRequest accepts either a JSON body (POST) or email/amount query
// parameters (GET), matching the two shapes the endpoint has always served.
func (h *Handler) parseBalanceRequest(r *http.Request) (*balanceRequest, error) {
	var req balanceRequest
	if r.Method == http.MethodGet {
		req.Email = r.URL.Query().Get("email")
		if raw := r.URL.Query().Get("amount"); raw != "" {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, errInvalidAmount
			}
			req.Amount = &amount
		}
	} else if err := httpx.DecodeJSON(r, &req); err != nil {
		return nil, errInvalidBody
	}
	if err := h.validator.Struct(req); err != nil || req.Amount == nil {
		return nil, errMissingBalanceFields
	}
	return &req, nil
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}

	snapshots := make([]userSnapshot, 0, len(users))
	for _, u := range users {
		snapshots = append(snapshots, userSnapshot{
			Email:          u.Email,
			PasswordDigest: u.PasswordHash,
			Balance:        u.Balance,
			IsLoggedIn:     u.IsLoggedIn,
		})
	}

	if err := h.sink.Mirror(usersSnapshotFile, snapshots); err != nil {
		h.logger.Warn("mirror users snapshot", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, snapshots)
}

var (
	errInvalidBody          = validationError("invalid request body")
	errInvalidAmount        = validationError("amount must be a decimal number")
	errMissingBalanceFields = validationError("email and amount are required")
)

type validationError string

func (e validationError) Error() string { return string(e) }
