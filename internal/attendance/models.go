package attendance

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ClassRoutineTracker/internal/schedule"
)

// Record is the attendance taken for one class occurrence. ClassID is the
// routine entry id, or the handover id when a substitute took the class.
type Record struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FacultyID      string             `bson:"faculty_id" json:"facultyId"`
	FacultyName    string             `bson:"faculty_name,omitempty" json:"facultyName,omitempty"`
	Department     string             `bson:"department,omitempty" json:"department,omitempty"`
	Date           string             `bson:"date" json:"date"`
	ClassID        string             `bson:"class_id" json:"classId"`
	RoutineID      string             `bson:"routine_id,omitempty" json:"routineId,omitempty"`
	Subject        string             `bson:"subject" json:"subject"`
	TimeSlot       string             `bson:"time_slot" json:"timeSlot"`
	Course         string             `bson:"course,omitempty" json:"course,omitempty"`
	Status         schedule.Status    `bson:"status" json:"status"`
	AbsentStudents []string           `bson:"absent_students" json:"absentStudents"`
	PresentCount   int                `bson:"present_count" json:"presentCount"`
	MarkedBy       string             `bson:"marked_by" json:"markedBy"`
	MarkedAt       time.Time          `bson:"marked_at" json:"markedAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
	Override       bool               `bson:"override" json:"override"`
	OverrideReason string             `bson:"override_reason,omitempty" json:"overrideReason,omitempty"`
}

// MarkRequest is the body of a mark-attendance call.
type MarkRequest struct {
	FacultyID      string   `json:"facultyId"`
	ClassID        string   `json:"classId" validate:"required"`
	RoutineID      string   `json:"routineId"`
	Date           string   `json:"date" validate:"required,date"`
	AbsentStudents []string `json:"absentStudents"`
	PresentCount   int      `json:"presentCount" validate:"gte=0"`
}

// OverrideRequest is an HOD correction of a recorded status.
type OverrideRequest struct {
	FacultyID      string          `json:"facultyId" validate:"required"`
	ClassID        string          `json:"classId" validate:"required"`
	Date           string          `json:"date" validate:"required,date"`
	Status         schedule.Status `json:"status" validate:"required"`
	Reason         string          `json:"reason" validate:"required"`
	AbsentStudents []string        `json:"absentStudents"`
	PresentCount   int             `json:"presentCount" validate:"gte=0"`
	Subject        string          `json:"subject"`
	TimeSlot       string          `json:"timeSlot"`
}

// RecordSummary is the part of a record shown next to a class.
type RecordSummary struct {
	Status       schedule.Status `json:"status"`
	AbsentCount  int             `json:"absentCount"`
	PresentCount int             `json:"presentCount"`
	MarkedAt     time.Time       `json:"markedAt"`
	Override     bool            `json:"override"`
}

// ClassStatus is one class occurrence as a dashboard shows it.
type ClassStatus struct {
	ClassID        string          `json:"classId"`
	RoutineID      string          `json:"routineId,omitempty"`
	FacultyID      string          `json:"facultyId"`
	FacultyName    string          `json:"facultyName,omitempty"`
	Date           string          `json:"date"`
	Day            string          `json:"day"`
	TimeSlot       string          `json:"timeSlot"`
	Subject        string          `json:"subject"`
	Course         string          `json:"course,omitempty"`
	RoomNumber     string          `json:"roomNumber,omitempty"`
	Department     string          `json:"department,omitempty"`
	Status         schedule.Status `json:"status"`
	WindowOpensAt  time.Time       `json:"windowOpensAt"`
	WindowClosesAt time.Time       `json:"windowClosesAt"`
	CanMark        bool            `json:"canMark"`

	// Handover is set when this faculty is covering the class for someone else.
	Handover          bool   `json:"handover"`
	HandoverID        string `json:"handoverId,omitempty"`
	HandoverStatus    string `json:"handoverStatus,omitempty"`
	SubstituteID      string `json:"substituteId,omitempty"`
	SubstituteName    string `json:"substituteName,omitempty"`
	OriginalFacultyID string `json:"originalFacultyId,omitempty"`
	OriginalFaculty   string `json:"originalFaculty,omitempty"`

	Record *RecordSummary `json:"record,omitempty"`
}

// AbsentFilter narrows the absent-students report.
type AbsentFilter struct {
	From       string
	To         string
	Department string
	FacultyID  string
}
