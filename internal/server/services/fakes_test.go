package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/cofrapauth/internal/common"
	"github.com/dmitrijs2005/cofrapauth/internal/cryptox"
	"github.com/dmitrijs2005/cofrapauth/internal/dbx"
	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/passwords"
	"github.com/dmitrijs2005/cofrapauth/internal/server/models"
	"github.com/dmitrijs2005/cofrapauth/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/cofrapauth/internal/totpx"
)

// t0 sits exactly on a 30s step boundary.
var t0 = time.Unix(1_700_000_010, 0)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func bufferLogger() (logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))), &buf
}

// --- store fakes ---

type memRepo struct {
	mu      sync.Mutex
	records map[string]*models.Credential

	getErr     error
	upsertErr  error
	expiredErr error
	mfaErr     error

	setExpiredCalls int
	setMFACalls     int
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]*models.Credential{}}
}

func (r *memRepo) GetByUsername(_ context.Context, username string) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	rec, ok := r.records[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rec
	if rec.MFASecretEncrypted != nil {
		s := *rec.MFASecretEncrypted
		cp.MFASecretEncrypted = &s
	}
	return &cp, nil
}

func (r *memRepo) UpsertPassword(_ context.Context, username, hash string, generatedAt int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	rec, ok := r.records[username]
	if !ok {
		rec = &models.Credential{ID: int64(len(r.records) + 1), Username: username}
		r.records[username] = rec
	}
	rec.PasswordHash = hash
	rec.GeneratedAt = generatedAt
	rec.Expired = false
	return nil
}

func (r *memRepo) SetExpired(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setExpiredCalls++
	if r.expiredErr != nil {
		return r.expiredErr
	}
	rec, ok := r.records[username]
	if !ok {
		return common.ErrorNotFound
	}
	rec.Expired = true
	return nil
}

func (r *memRepo) SetMFASecret(_ context.Context, username, ciphertext string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setMFACalls++
	if r.mfaErr != nil {
		return r.mfaErr
	}
	rec, ok := r.records[username]
	if !ok {
		return common.ErrorNotFound
	}
	rec.MFASecretEncrypted = &ciphertext
	return nil
}

func (r *memRepo) record(t *testing.T, username string) *models.Credential {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[username]
	require.True(t, ok, "record %q missing", username)
	return rec
}

type fakeRepoManager struct{ repo credentials.Repository }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Credentials(dbx.DBTX) credentials.Repository { return m.repo }

// staticConnector hands out a fixed *sql.DB so dbx.WithTx can begin and commit;
// the fake repository ignores the handle.
type staticConnector struct {
	db  *sql.DB
	err error
}

func newStaticConnector(t *testing.T) *staticConnector {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &staticConnector{db: db}
}

func (c *staticConnector) Conn(context.Context) (*sql.DB, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.db, nil
}

// --- crypto fakes ---

// countingPasswords wraps the real manager and counts hashing work.
type countingPasswords struct {
	*passwords.Manager
	hashCalls   atomic.Int32
	verifyCalls atomic.Int32
}

func newCountingPasswords(t *testing.T) *countingPasswords {
	t.Helper()
	pm, err := passwords.NewManager(bcrypt.MinCost, passwords.DefaultValidityDays)
	require.NoError(t, err)
	return &countingPasswords{Manager: pm}
}

func (c *countingPasswords) Hash(plain string) (string, error) {
	c.hashCalls.Add(1)
	return c.Manager.Hash(plain)
}

func (c *countingPasswords) Verify(plain, hash string) bool {
	c.verifyCalls.Add(1)
	return c.Manager.Verify(plain, hash)
}

func newCodec(t *testing.T, fill byte) *cryptox.Codec {
	t.Helper()
	c, err := cryptox.NewCodec(bytes.Repeat([]byte{fill}, cryptox.KeySize))
	require.NoError(t, err)
	return c
}

func testOpts() totpx.Options {
	return totpx.DefaultOptions("CofrapAuth")
}

// fixture wires the three services over one in-memory store and a shared clock.
type fixture struct {
	repo   *memRepo
	conn   *staticConnector
	pm     *countingPasswords
	codec  *cryptox.Codec
	clock  time.Time
	otpHit atomic.Int32

	prov  *ProvisioningService
	enrol *EnrollmentService
	auth  *Authenticator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  newMemRepo(),
		conn:  newStaticConnector(t),
		pm:    newCountingPasswords(t),
		codec: newCodec(t, 1),
		clock: t0,
	}
	rm := &fakeRepoManager{repo: f.repo}
	now := func() time.Time { return f.clock }

	f.prov = NewProvisioningService(f.conn, rm, f.pm, passwords.DefaultLength, discardLogger())
	f.prov.now = now

	f.enrol = NewEnrollmentService(f.conn, rm, f.codec, testOpts(), discardLogger())

	f.auth = NewAuthenticator(f.conn, rm, f.pm, f.codec, testOpts(), discardLogger())
	f.auth.now = now
	f.auth.validateOTP = func(code, secret string, at time.Time, opts totpx.Options) bool {
		f.otpHit.Add(1)
		return totpx.Validate(code, secret, at, opts)
	}

	return f
}

// seed returns the plaintext TOTP secret currently stored for username.
func (f *fixture) seed(t *testing.T, username string) string {
	t.Helper()
	rec := f.repo.record(t, username)
	require.NotNil(t, rec.MFASecretEncrypted)
	s, err := f.codec.Decrypt(*rec.MFASecretEncrypted)
	require.NoError(t, err)
	return s
}

func (f *fixture) code(t *testing.T, seed string, at time.Time) string {
	t.Helper()
	c, err := totpx.Code(seed, at, testOpts())
	require.NoError(t, err)
	return c
}
