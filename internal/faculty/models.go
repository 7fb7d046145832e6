package faculty

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Faculty is a staff account; Role is core.RoleFaculty or core.RoleHOD.
type Faculty struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EmployeeID    string             `bson:"employee_id" json:"employeeId"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	Role          string             `bson:"role" json:"role"`
	Department    string             `bson:"department" json:"department"`
	SubjectsKnown []string           `bson:"subjects_known" json:"subjectsKnown"`
	ResetToken    string             `bson:"reset_token,omitempty" json:"-"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
}

// IDHex returns the id as used in tokens and references.
func (f *Faculty) IDHex() string {
	return f.ID.Hex()
}

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	EmployeeID    string   `json:"employeeId"`
	Name          string   `json:"name" validate:"required"`
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required,min=8"`
	Role          string   `json:"role" validate:"omitempty,oneof=faculty hod"`
	Department    string   `json:"department" validate:"required"`
	SubjectsKnown []string `json:"subjectsKnown"`
}

// Credential is the body of a login call.
type Credential struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}
