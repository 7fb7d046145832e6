package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Date  string `json:"date" validate:"required,date"`
	Email string `json:"email" validate:"omitempty,email"`
	Skip  string `json:"-" validate:"omitempty,min=3"`
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		in     sample
		fields map[string]string
	}{
		{name: "valid", in: sample{Date: "2025-03-10"}},
		{name: "missing date", in: sample{}, fields: map[string]string{"date": "this field is required"}},
		{name: "bad date", in: sample{Date: "10-03-2025"}, fields: map[string]string{"date": "must be a date formatted as YYYY-MM-DD"}},
		{name: "impossible date", in: sample{Date: "2025-02-30"}, fields: map[string]string{"date": "must be a date formatted as YYYY-MM-DD"}},
		{name: "bad email", in: sample{Date: "2025-03-10", Email: "nope"}, fields: map[string]string{"email": "email must be a valid email address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.in)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.fields, v.Translate(verrs))
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain", err: errors.New("boom"), want: 0},
		{name: "not found", err: NotFound("routine %s not found", "x"), want: KindNotFound},
		{name: "wrapped conflict", err: errors.Wrap(Conflict(nil, "taken"), "mark"), want: KindConflict},
		{name: "forbidden", err: Forbidden("no"), want: KindForbidden},
		{name: "validation", err: NewValidationError("bad"), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}

	err := Conflict(map[string]string{"conflictType": "regular_class"}, "busy at %s", "09:00")
	assert.EqualError(t, err, "busy at 09:00")
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestActor_CanActFor(t *testing.T) {
	hod := Actor{ID: "h", Role: RoleHOD}
	fac := Actor{ID: "f", Role: RoleFaculty}

	assert.True(t, hod.CanActFor("anyone"))
	assert.True(t, fac.CanActFor("f"))
	assert.False(t, fac.CanActFor("g"))
	assert.False(t, Actor{Role: RoleFaculty}.CanActFor(""))
}

func TestRoles_HODHoldsFaculty(t *testing.T) {
	assert.Equal(t, []string{RoleHOD, RoleFaculty}, Actor{Role: RoleHOD}.Roles())
	assert.Equal(t, []string{RoleFaculty}, Actor{Role: RoleFaculty}.Roles())

	assert.True(t, HasRole(RoleHOD, RoleFaculty))
	assert.True(t, HasRole(RoleFaculty, RoleFaculty))
	assert.False(t, HasRole(RoleFaculty, RoleHOD))

	assert.ElementsMatch(t, []string{RoleFaculty, RoleHOD}, RolesHolding(RoleFaculty))
	assert.Equal(t, []string{RoleHOD}, RolesHolding(RoleHOD))
}
