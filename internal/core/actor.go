package core

const (
	RoleFaculty = "faculty"
	RoleHOD     = "hod"
)

// Actor is the authenticated caller, passed explicitly to every service
// operation that depends on who is asking.
type Actor struct {
	ID         string
	Name       string
	Role       string
	Department string
}

func (a Actor) IsHOD() bool { return a.Role == RoleHOD }

// Roles lists every role a holds, its own first. An HOD also holds the
// faculty role, matching the role hierarchy used for route authorization.
func (a Actor) Roles() []string {
	if a.IsHOD() {
		return []string{RoleHOD, RoleFaculty}
	}
	return []string{a.Role}
}

// HasRole reports whether a caller with role held also holds want.
func HasRole(held, want string) bool {
	return held == want || (held == RoleHOD && want == RoleFaculty)
}

// RolesHolding lists the roles whose holders also hold want.
func RolesHolding(want string) []string {
	if want == RoleFaculty {
		return []string{RoleFaculty, RoleHOD}
	}
	return []string{want}
}

// CanActFor reports whether a may read or write data owned by facultyID.
func (a Actor) CanActFor(facultyID string) bool {
	return a.IsHOD() || (a.ID != "" && a.ID == facultyID)
}
