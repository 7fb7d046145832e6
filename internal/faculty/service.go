package faculty

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/config"
	"ClassRoutineTracker/internal/core"
)

const resetTokenTTL = 15 * time.Minute

var errInvalidCredentials = core.NewValidationError("Invalid Credentials")

// Store is the persistence FacultyService needs; FacultyRepository implements it.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Faculty, error)
	FindByID(ctx context.Context, id string) (*Faculty, error)
	CreateFaculty(ctx context.Context, f *Faculty) error
	UpdateFaculty(ctx context.Context, f *Faculty) error
	List(ctx context.Context, department string) ([]*Faculty, error)
}

// FacultyService manages accounts and sessions.
type FacultyService struct {
	repo      Store
	issuer    *TokenIssuer
	mailer    config.Mailer
	publicURL string
	logger    *zap.Logger
}

// NewFacultyService creates a new service for faculty accounts.
func NewFacultyService(repo Store, issuer *TokenIssuer, mailer config.Mailer, s *config.Settings, logger *zap.Logger) *FacultyService {
	return &FacultyService{repo: repo, issuer: issuer, mailer: mailer, publicURL: s.PublicURL, logger: logger}
}

// Register creates an account. Self-registration always yields the faculty
// role; only an HOD may create another HOD.
func (s *FacultyService) Register(ctx context.Context, req RegisterRequest, by *core.Actor) (*Faculty, error) {
	role := core.RoleFaculty
	if req.Role == core.RoleHOD {
		if by == nil || !by.IsHOD() {
			return nil, core.Forbidden("only an HOD can create HOD accounts")
		}
		role = core.RoleHOD
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, core.Conflict(nil, "email already registered")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	f := &Faculty{
		ID:            primitive.NewObjectID(),
		EmployeeID:    req.EmployeeID,
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		Department:    req.Department,
		SubjectsKnown: req.SubjectsKnown,
		CreatedAt:     time.Now().UTC(),
	}
	if f.SubjectsKnown == nil {
		f.SubjectsKnown = []string{}
	}
	if err := s.repo.CreateFaculty(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info("faculty registered", zap.String("faculty_id", f.IDHex()), zap.String("role", role))
	return f, nil
}

// Authenticate checks credentials and issues a session token.
func (s *FacultyService) Authenticate(ctx context.Context, cred Credential) (string, *Faculty, error) {
	f, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(cred.Email)))
	if err != nil {
		return "", nil, err
	}
	if f == nil || !CheckPasswordHash(cred.Password, f.PasswordHash) {
		return "", nil, errInvalidCredentials
	}
	token, err := s.issuer.Issue(f, 0)
	if err != nil {
		return "", nil, errors.Wrap(err, "issue token")
	}
	return token, f, nil
}

// ForgotPassword mails a single-use reset link. Unknown addresses succeed
// silently so the endpoint cannot be used to probe accounts.
func (s *FacultyService) ForgotPassword(ctx context.Context, email string) error {
	f, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || f == nil {
		return err
	}
	token, err := s.issuer.IssueReset(f, resetTokenTTL)
	if err != nil {
		return errors.Wrap(err, "issue reset token")
	}
	f.ResetToken = token
	if err := s.repo.UpdateFaculty(ctx, f); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.publicURL, url.QueryEscape(token))
	body := fmt.Sprintf("<p>Hello %s,</p><p>Use <a href=\"%s\">this link</a> to reset your password. It expires in 15 minutes.</p>", f.Name, link)
	if err := s.mailer.Send(ctx, []string{f.Email}, "Password Reset", body); err != nil {
		s.logger.Error("reset email failed", zap.String("faculty_id", f.IDHex()), zap.Error(err))
		return errors.New("failed to send reset password email")
	}
	return nil
}

// ResetPassword sets a new password when token is the outstanding reset token.
func (s *FacultyService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.issuer.ParseReset(token)
	if err != nil {
		return core.NewValidationError("Invalid Token")
	}
	f, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if f == nil || f.ResetToken == "" || f.ResetToken != token {
		return core.NewValidationError("Invalid Token")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	f.PasswordHash = hash
	f.ResetToken = ""
	return s.repo.UpdateFaculty(ctx, f)
}

// Profile returns an account or NotFound.
func (s *FacultyService) Profile(ctx context.Context, id string) (*Faculty, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, core.NotFound("faculty not found")
	}
	return f, nil
}

// List returns faculty members, optionally for one department.
func (s *FacultyService) List(ctx context.Context, department string) ([]*Faculty, error) {
	out, err := s.repo.List(ctx, department)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Faculty{}
	}
	return out, nil
}
