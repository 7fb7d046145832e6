package faculty

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/config"
	"ClassRoutineTracker/internal/core"
)

type memStore struct {
	mu   sync.Mutex
	byID map[string]*Faculty
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]*Faculty{}}
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*Faculty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.byID {
		if f.Email == email {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*Faculty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.byID[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) CreateFaculty(_ context.Context, f *Faculty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.byID[f.IDHex()] = &cp
	return nil
}

func (m *memStore) UpdateFaculty(_ context.Context, f *Faculty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.byID[f.IDHex()] = &cp
	return nil
}

func (m *memStore) List(_ context.Context, department string) ([]*Faculty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Faculty
	for _, f := range m.byID {
		if department == "" || f.Department == department {
			out = append(out, f)
		}
	}
	return out, nil
}

type sentMail struct {
	to      []string
	subject string
	html    string
}

type recordingMailer struct {
	sent []sentMail
}

func (r *recordingMailer) Send(_ context.Context, to []string, subject, html string) error {
	r.sent = append(r.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

func newTestService(t *testing.T) (*FacultyService, *memStore, *recordingMailer) {
	t.Helper()
	s := &config.Settings{JWTKey: []byte("test-key"), JWTTTL: time.Hour, PublicURL: "http://ui.test"}
	store := newMemStore()
	mailer := &recordingMailer{}
	return NewFacultyService(store, NewTokenIssuer(s), mailer, s, zap.NewNop()), store, mailer
}

func registerReq(email, role string) RegisterRequest {
	return RegisterRequest{Name: "Asha Rao", Email: email, Password: "password123", Role: role, Department: "Nursing"}
}

func TestRegister(t *testing.T) {
	hod := &core.Actor{ID: "h1", Role: core.RoleHOD}
	faculty := &core.Actor{ID: "f1", Role: core.RoleFaculty}

	tests := []struct {
		name     string
		role     string
		by       *core.Actor
		wantRole string
		wantKind core.Kind
	}{
		{name: "self registration", role: "", by: nil, wantRole: core.RoleFaculty},
		{name: "hod requested anonymously", role: core.RoleHOD, by: nil, wantKind: core.KindForbidden},
		{name: "hod requested by faculty", role: core.RoleHOD, by: faculty, wantKind: core.KindForbidden},
		{name: "hod created by hod", role: core.RoleHOD, by: hod, wantRole: core.RoleHOD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			f, err := svc.Register(context.Background(), registerReq("Asha@Example.com ", tt.role), tt.by)
			if tt.wantKind != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, f.Role)
			assert.Equal(t, "asha@example.com", f.Email)
			assert.NotEqual(t, "password123", f.PasswordHash)
			assert.NotNil(t, f.SubjectsKnown)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Register(context.Background(), registerReq("a@example.com", ""), nil)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), registerReq("a@example.com", ""), nil)
	assert.True(t, core.IsConflict(err))
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	f, err := svc.Register(context.Background(), registerReq("a@example.com", ""), nil)
	require.NoError(t, err)

	token, got, err := svc.Authenticate(context.Background(), Credential{Email: "A@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	claims, err := svc.issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, f.IDHex(), claims.Subject)
	assert.Equal(t, core.RoleFaculty, claims.Role)
	assert.Equal(t, "Nursing", claims.Actor().Department)

	_, _, err = svc.Authenticate(context.Background(), Credential{Email: "a@example.com", Password: "wrong"})
	assert.Equal(t, errInvalidCredentials, err)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, store, mailer := newTestService(t)
	f, err := svc.Register(ctx, registerReq("a@example.com", ""), nil)
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, "a@example.com"))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"a@example.com"}, mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].html, "http://ui.test/reset-password?token=")

	stored, _ := store.FindByID(ctx, f.IDHex())
	token := stored.ResetToken
	require.NotEmpty(t, token)

	// A reset link is not a session.
	_, err = svc.issuer.Parse(token)
	assert.Error(t, err)
	_, _, err = svc.issuer.Identify(token)
	assert.Error(t, err)

	require.NoError(t, svc.ResetPassword(ctx, token, "newpassword1"))
	_, _, err = svc.Authenticate(ctx, Credential{Email: "a@example.com", Password: "newpassword1"})
	require.NoError(t, err)

	// The token is single use.
	err = svc.ResetPassword(ctx, token, "another-password")
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestResetPassword_RejectsSessionToken(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	f, err := svc.Register(ctx, registerReq("a@example.com", ""), nil)
	require.NoError(t, err)

	// Even stored as the outstanding reset token, a session token cannot reset.
	session, err := svc.issuer.Issue(f, 0)
	require.NoError(t, err)
	stored, _ := store.FindByID(ctx, f.IDHex())
	stored.ResetToken = session
	require.NoError(t, store.UpdateFaculty(ctx, stored))

	err = svc.ResetPassword(ctx, session, "newpassword1")
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	svc, _, mailer := newTestService(t)
	require.NoError(t, svc.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Empty(t, mailer.sent)
}

func TestTokenIssuer_Identify(t *testing.T) {
	svc, _, _ := newTestService(t)
	f, err := svc.Register(context.Background(), registerReq("a@example.com", ""), nil)
	require.NoError(t, err)
	token, err := svc.issuer.Issue(f, 0)
	require.NoError(t, err)

	id, role, err := svc.issuer.Identify(token)
	require.NoError(t, err)
	assert.Equal(t, f.IDHex(), id)
	assert.Equal(t, core.RoleFaculty, role)

	_, _, err = svc.issuer.Identify(token + "x")
	assert.Error(t, err)
}
