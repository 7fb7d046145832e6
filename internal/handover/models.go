package handover

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the state of a handover request.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ParseStatus accepts any casing of the three statuses.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	}
	return "", fmt.Errorf("unknown handover status %q", s)
}

// UnmarshalJSON accepts any casing; an empty string leaves the status unset.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*s = ""
		return nil
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// UnmarshalBSONValue normalizes stored statuses to their canonical form.
func (s *Status) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		*s = ""
		return nil
	}
	if st, err := ParseStatus(raw); err == nil {
		*s = st
		return nil
	}
	*s = Status(raw)
	return nil
}

const (
	ConflictRegularClass       = "regular_class"
	ConflictHandoverAssignment = "handover_assignment"
	ConflictApprovedHandover   = "approved_handover"
)

// Handover is a request to hand one class occurrence to a substitute.
type Handover struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FacultyID      string             `bson:"faculty_id" json:"facultyId"`
	FacultyName    string             `bson:"faculty_name" json:"facultyName"`
	DateOfClass    string             `bson:"date_of_class" json:"dateOfClass"`
	Day            string             `bson:"day" json:"day"`
	TimeSlot       string             `bson:"time_slot" json:"timeSlot"`
	Subject        string             `bson:"subject" json:"subject"`
	Course         string             `bson:"course" json:"course"`
	ClassID        string             `bson:"class_id,omitempty" json:"classId,omitempty"`
	RoutineID      string             `bson:"routine_id,omitempty" json:"routineId,omitempty"`
	Reason         string             `bson:"reason" json:"reason"`
	SubstituteID   string             `bson:"substitute_id" json:"substituteId"`
	SubstituteName string             `bson:"substitute_name" json:"substituteName"`
	Status         Status             `bson:"status" json:"status"`
	Remarks        string             `bson:"remarks,omitempty" json:"remarks,omitempty"`
	DecidedBy      string             `bson:"decided_by,omitempty" json:"decidedBy,omitempty"`
	DecidedAt      *time.Time         `bson:"decided_at,omitempty" json:"decidedAt,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Conflict describes the first clash found in a substitute's schedule.
type Conflict struct {
	ConflictType string `json:"conflictType"`
	Subject      string `json:"subject"`
	Course       string `json:"course,omitempty"`
	Day          string `json:"day"`
	TimeSlot     string `json:"timeSlot"`
}

// Availability reports whether a substitute is free for a slot.
type Availability struct {
	Available bool `json:"available"`
	*Conflict
}

// Candidate is a possible substitute for a class.
type Candidate struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Department    string   `json:"department"`
	SubjectsKnown []string `json:"subjectsKnown"`
	Qualified     bool     `json:"qualified"`
	Availability
}

// SubmitRequest is the body of a handover request.
type SubmitRequest struct {
	FacultyID    string `json:"facultyId"`
	DateOfClass  string `json:"dateOfClass" validate:"required,date"`
	TimeSlot     string `json:"timeSlot" validate:"required"`
	Subject      string `json:"subject" validate:"required"`
	Course       string `json:"course" validate:"required"`
	SubstituteID string `json:"substituteId" validate:"required"`
	Reason       string `json:"reason" validate:"required"`
	ClassID      string `json:"classId"`
	RoutineID    string `json:"routineId"`
}

// SubmitResult is the stored handover and its qualification hint.
type SubmitResult struct {
	Handover  *Handover `json:"handover"`
	Qualified bool      `json:"qualified"`
	Warning   string    `json:"warning,omitempty"`
}

// DecideRequest is an HOD decision on a handover.
type DecideRequest struct {
	Status       Status `json:"status" validate:"required"`
	Remarks      string `json:"remarks"`
	SubstituteID string `json:"substituteId"`
}

// Decision is the state change written by Decide.
type Decision struct {
	Status         Status
	Remarks        string
	DecidedBy      string
	At             time.Time
	SubstituteID   string
	SubstituteName string
}

// Filter narrows List. Involving matches either side of a handover.
type Filter struct {
	FacultyID    string
	SubstituteID string
	Involving    string
	Status       Status
	Date         string
}
