// Package httpapi exposes the authentication core over HTTP/JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/qrcode"
	"github.com/dmitrijs2005/cofrapauth/internal/server/services"
)

const maxBodyBytes = 1 << 16

type Provisioner interface {
	Provision(ctx context.Context, username string) (*services.ProvisionResult, error)
}

type Enroller interface {
	Enroll(ctx context.Context, username string) (*services.EnrollResult, error)
}

type AuthService interface {
	Authenticate(ctx context.Context, req services.AuthRequest) (services.AuthResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	provisioner Provisioner
	enroller    Enroller
	auth        AuthService
	pinger      Pinger
	qrSize      int
	log         logging.Logger
}

func NewHandler(p Provisioner, e Enroller, a AuthService, pinger Pinger, qrSize int, log logging.Logger) *Handler {
	return &Handler{
		provisioner: p,
		enroller:    e,
		auth:        a,
		pinger:      pinger,
		qrSize:      qrSize,
		log:         log.With("module", "httpapi"),
	}
}

type usernameRequest struct {
	Username string `json:"username"`
}

type passwordResponse struct {
	Username     string `json:"username"`
	QRCodeBase64 string `json:"qrcode_base64"`
}

type mfaResponse struct {
	Username        string `json:"username"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCodeBase64    string `json:"qrcode_base64"`
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

type authResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Passwords handles POST /v1/passwords. The generated password only leaves
// the service as a QR code.
func (h *Handler) Passwords(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.provisioner.Provision(r.Context(), req.Username)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	png, err := qrcode.GenerateBase64(res.Password, h.qrSize)
	if err != nil {
		h.log.Error(r.Context(), "qr rendering failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, passwordResponse{Username: res.Username, QRCodeBase64: png})
}

// MFA handles POST /v1/mfa.
func (h *Handler) MFA(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.enroller.Enroll(r.Context(), req.Username)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	png, err := qrcode.GenerateBase64(res.ProvisioningURI, h.qrSize)
	if err != nil {
		h.log.Error(r.Context(), "qr rendering failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, mfaResponse{
		Username:        res.Username,
		ProvisioningURI: res.ProvisioningURI,
		QRCodeBase64:    png,
	})
}

// Auth handles POST /v1/auth.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	result, err := h.auth.Authenticate(r.Context(), services.AuthRequest{
		Username: req.Username,
		Password: req.Password,
		OTP:      req.OTP,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, authStatus(result), authResponse{Result: result.String()})
}

// Ping handles GET /ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.log.Warn(r.Context(), "store ping failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func authStatus(r services.AuthResult) int {
	switch r.Err() {
	case nil:
		return http.StatusOK
	case common.ErrorNotFound:
		return http.StatusNotFound
	case common.ErrorPasswordExpired:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorInvalidInput):
		writeError(w, http.StatusBadRequest, "username is required")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, common.ErrorStore):
		writeError(w, http.StatusInternalServerError, "store unavailable")
	default:
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
