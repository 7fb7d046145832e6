package routine

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ClassRoutineTracker/internal/schedule"
)

const (
	TypeWeekly  = "weekly"
	TypeMonthly = "monthly"
)

// A routine document starts as a draft, becomes published once the faculty's
// head points at it, and is superseded when a newer version is published.
const (
	StateDraft      = "draft"
	StatePublished  = "published"
	StateSuperseded = "superseded"
)

// Entry is one weekly class in a routine.
type Entry struct {
	ID               string          `bson:"id" json:"id"`
	Day              string          `bson:"day" json:"day"`
	TimeSlot         string          `bson:"time_slot" json:"timeSlot"`
	Subject          string          `bson:"subject" json:"subject"`
	RoomNumber       string          `bson:"room_number" json:"roomNumber"`
	Department       string          `bson:"department" json:"department"`
	Course           string          `bson:"course,omitempty" json:"course,omitempty"`
	Status           schedule.Status `bson:"status" json:"status"`
	AttendanceStatus schedule.Status `bson:"attendance_status" json:"attendanceStatus"`
	LastUpdated      *time.Time      `bson:"-" json:"lastUpdated,omitempty"`
}

// Routine is one immutable version in a faculty's routine chain.
type Routine struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FacultyID         string              `bson:"faculty_id" json:"facultyId"`
	RoutineType       string              `bson:"routine_type" json:"routineType"`
	Entries           []Entry             `bson:"entries" json:"entries"`
	Version           int                 `bson:"version" json:"version"`
	PreviousVersionID *primitive.ObjectID `bson:"previous_version_id" json:"previousVersionId"`
	RestoredFromID    *primitive.ObjectID `bson:"restored_from_id,omitempty" json:"restoredFromId,omitempty"`
	IsLatest          bool                `bson:"is_latest" json:"isLatest"`
	State             string              `bson:"state" json:"state"`
	StartDate         time.Time           `bson:"start_date" json:"startDate"`
	EndDate           time.Time           `bson:"end_date" json:"endDate"`
	CreatedBy         string              `bson:"created_by" json:"createdBy"`
	CreatedAt         time.Time           `bson:"created_at" json:"createdAt"`
}

// Head is the authoritative pointer to a faculty's latest published routine.
type Head struct {
	FacultyID string             `bson:"_id"`
	LatestID  primitive.ObjectID `bson:"latest_id"`
	Version   int                `bson:"version"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// HistoryItem summarizes an earlier routine version.
type HistoryItem struct {
	ID         primitive.ObjectID `json:"id"`
	Version    int                `json:"version"`
	CreatedAt  time.Time          `json:"createdAt"`
	EntryCount int                `json:"entryCount"`
}

// Mark is an attendance fact overlaid onto today's entries.
type Mark struct {
	ClassID   string
	RoutineID string
	Status    schedule.Status
	UpdatedAt time.Time
}

// EntryInput is a class as submitted by the HOD.
type EntryInput struct {
	ID         string          `json:"id"`
	Day        string          `json:"day" validate:"required"`
	TimeSlot   string          `json:"timeSlot" validate:"required"`
	Subject    string          `json:"subject" validate:"required"`
	RoomNumber string          `json:"roomNumber"`
	Department string          `json:"department"`
	Course     string          `json:"course"`
	Status     schedule.Status `json:"status"`
}

// PublishRequest is the body of a publish or update call.
type PublishRequest struct {
	FacultyID       string       `json:"facultyId" validate:"required"`
	RoutineType     string       `json:"routineType" validate:"omitempty,oneof=weekly monthly"`
	Entries         []EntryInput `json:"entries" validate:"required,min=1,dive"`
	IsUpdate        bool         `json:"isUpdate"`
	UpdateRoutineID string       `json:"updateRoutineId"`
}

// PublishResult identifies the version that was published.
type PublishResult struct {
	RoutineID string `json:"routineId"`
	Version   int    `json:"version"`
}

// TodayView is a routine narrowed to one date.
type TodayView struct {
	Date    string  `json:"date"`
	Day     string  `json:"day"`
	Entries []Entry `json:"entries"`
}

// RepairResult counts what a repair run changed.
type RepairResult struct {
	Faculties int   `json:"faculties"`
	Fixed     int64 `json:"fixed"`
	Discarded int64 `json:"discarded"`
}
