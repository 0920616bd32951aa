package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/server/services"
)

type fakeProvisioner struct {
	res *services.ProvisionResult
	err error
	got string
}

func (f *fakeProvisioner) Provision(_ context.Context, username string) (*services.ProvisionResult, error) {
	f.got = username
	return f.res, f.err
}

type fakeEnroller struct {
	res *services.EnrollResult
	err error
}

func (f *fakeEnroller) Enroll(context.Context, string) (*services.EnrollResult, error) {
	return f.res, f.err
}

type fakeAuth struct {
	result services.AuthResult
	err    error
	got    services.AuthRequest
	panic  bool
}

func (f *fakeAuth) Authenticate(_ context.Context, req services.AuthRequest) (services.AuthResult, error) {
	if f.panic {
		panic("boom")
	}
	f.got = req
	return f.result, f.err
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type deps struct {
	prov   *fakeProvisioner
	enrol  *fakeEnroller
	auth   *fakeAuth
	pinger *fakePinger
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestRouter(t *testing.T) (http.Handler, *deps) {
	t.Helper()
	d := &deps{
		prov:   &fakeProvisioner{res: &services.ProvisionResult{Username: "alice", Password: "S3cret!pass", GeneratedAt: 1}},
		enrol:  &fakeEnroller{res: &services.EnrollResult{Username: "alice", ProvisioningURI: "otpauth://totp/CofrapAuth:alice?secret=ABC&issuer=CofrapAuth"}},
		auth:   &fakeAuth{result: services.Authenticated},
		pinger: &fakePinger{},
	}
	h := NewHandler(d.prov, d.enrol, d.auth, d.pinger, 128, discardLogger())
	return NewRouter(h, []string{"https://app.example"}, discardLogger()), d
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func assertPNG(t *testing.T, b64 string) {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")))
}

func TestPasswords(t *testing.T) {
	h, d := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/v1/passwords", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "alice", d.prov.got)

	resp := decodeBody[passwordResponse](t, rec)
	assert.Equal(t, "alice", resp.Username)
	assertPNG(t, resp.QRCodeBase64)
	assert.NotContains(t, rec.Body.String(), "S3cret!pass")
}

func TestPasswords_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
		{name: "invalid input", body: `{"username":""}`, err: common.ErrorInvalidInput, want: http.StatusBadRequest},
		{name: "store", body: `{"username":"a"}`, err: errors.Join(common.ErrorStore, errors.New("down")), want: http.StatusInternalServerError},
		{name: "other", body: `{"username":"a"}`, err: errors.New("weird"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, d := newTestRouter(t)
			d.prov.err = tt.err
			d.prov.res = nil

			rec := do(t, h, http.MethodPost, "/v1/passwords", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeBody[errorResponse](t, rec).Error)
		})
	}
}

func TestMFA(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/v1/mfa", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[mfaResponse](t, rec)
	assert.Equal(t, "alice", resp.Username)
	assert.True(t, strings.HasPrefix(resp.ProvisioningURI, "otpauth://totp/"))
	assertPNG(t, resp.QRCodeBase64)
}

func TestMFA_UnknownUser(t *testing.T) {
	h, d := newTestRouter(t)
	d.enrol.res, d.enrol.err = nil, common.ErrorNotFound

	rec := do(t, h, http.MethodPost, "/v1/mfa", `{"username":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth_StatusMapping(t *testing.T) {
	tests := []struct {
		result services.AuthResult
		want   int
	}{
		{services.Authenticated, http.StatusOK},
		{services.UserNotFound, http.StatusNotFound},
		{services.PasswordExpired, http.StatusForbidden},
		{services.InvalidPassword, http.StatusUnauthorized},
		{services.MfaNotEnrolled, http.StatusUnauthorized},
		{services.InvalidOtp, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.result.String(), func(t *testing.T) {
			h, d := newTestRouter(t)
			d.auth.result = tt.result

			rec := do(t, h, http.MethodPost, "/v1/auth", `{"username":"alice","password":"pw","otp":"123456"}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.result.String(), decodeBody[authResponse](t, rec).Result)
			assert.Equal(t, services.AuthRequest{Username: "alice", Password: "pw", OTP: "123456"}, d.auth.got)
		})
	}
}

func TestAuth_Errors(t *testing.T) {
	h, d := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/v1/auth", `{"password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/auth", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	d.auth.err = errors.Join(common.ErrorStore, errors.New("db error: gone"))
	rec = do(t, h, http.MethodPost, "/v1/auth", `{"username":"alice","password":"pw","otp":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db error")
}

func TestAuth_TrimsUsername(t *testing.T) {
	h, d := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/v1/auth", `{"username":"  alice ","password":"pw","otp":"123456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", d.auth.got.Username)

	d.auth.got = services.AuthRequest{}
	rec = do(t, h, http.MethodPost, "/v1/auth", `{"username":"   ","password":"pw","otp":"123456"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, d.auth.got.Username)
}

func TestAuth_PanicIsRecovered(t *testing.T) {
	h, d := newTestRouter(t)
	d.auth.panic = true

	rec := do(t, h, http.MethodPost, "/v1/auth", `{"username":"alice"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuth_BodyTooLarge(t *testing.T) {
	h, _ := newTestRouter(t)

	big := `{"username":"` + strings.Repeat("a", maxBodyBytes+1) + `"}`
	rec := do(t, h, http.MethodPost, "/v1/auth", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPing(t *testing.T) {
	h, d := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())

	d.pinger.err = errors.New("refused")
	rec = do(t, h, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouting(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/v1/auth", "").Code)
}
