package attendance

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/routine"
)

// AttendanceRepository stores attendance records.
type AttendanceRepository struct {
	collection *mongo.Collection
}

// NewAttendanceRepository creates a new repository for attendance records.
func NewAttendanceRepository(db *mongo.Database) *AttendanceRepository {
	return &AttendanceRepository{collection: db.Collection("attendance")}
}

// Insert creates the record for a class occurrence. The unique index on
// (faculty_id, date, class_id) turns a second submission into a conflict.
func (r *AttendanceRepository) Insert(ctx context.Context, rec *Record) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.Conflict(nil, "attendance already marked for this class")
		}
		return errors.Wrap(err, "insert attendance")
	}
	return nil
}

// Upsert writes rec over whatever exists for the same class occurrence and
// returns the stored document.
func (r *AttendanceRepository) Upsert(ctx context.Context, rec *Record) (*Record, error) {
	filter := bson.M{"faculty_id": rec.FacultyID, "date": rec.Date, "class_id": rec.ClassID}
	update := bson.M{
		"$set": bson.M{
			"faculty_name":    rec.FacultyName,
			"department":      rec.Department,
			"routine_id":      rec.RoutineID,
			"subject":         rec.Subject,
			"time_slot":       rec.TimeSlot,
			"course":          rec.Course,
			"status":          rec.Status,
			"absent_students": rec.AbsentStudents,
			"present_count":   rec.PresentCount,
			"marked_by":       rec.MarkedBy,
			"updated_at":      rec.UpdatedAt,
			"override":        rec.Override,
			"override_reason": rec.OverrideReason,
		},
		"$setOnInsert": bson.M{"marked_at": rec.MarkedAt},
	}
	var out Record
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return nil, errors.Wrap(err, "upsert attendance")
	}
	return &out, nil
}

// ForDate returns the records for date, limited to one faculty when
// facultyID is set.
func (r *AttendanceRepository) ForDate(ctx context.Context, date, facultyID string) ([]*Record, error) {
	filter := bson.M{"date": date}
	if facultyID != "" {
		filter["faculty_id"] = facultyID
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "find attendance")
	}
	var out []*Record
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode attendance")
	}
	return out, nil
}

// MarksFor implements routine.AttendanceOverlay.
func (r *AttendanceRepository) MarksFor(ctx context.Context, facultyID, date string) ([]routine.Mark, error) {
	records, err := r.ForDate(ctx, date, facultyID)
	if err != nil {
		return nil, err
	}
	marks := make([]routine.Mark, 0, len(records))
	for _, rec := range records {
		marks = append(marks, routine.Mark{
			ClassID:   rec.ClassID,
			RoutineID: rec.RoutineID,
			Status:    rec.Status,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return marks, nil
}

// AbsentRecords lists records with at least one absent student, newest date
// first.
func (r *AttendanceRepository) AbsentRecords(ctx context.Context, f AbsentFilter) ([]*Record, error) {
	filter := bson.M{"absent_students.0": bson.M{"$exists": true}}
	dates := bson.M{}
	if f.From != "" {
		dates["$gte"] = f.From
	}
	if f.To != "" {
		dates["$lte"] = f.To
	}
	if len(dates) > 0 {
		filter["date"] = dates
	}
	if f.Department != "" {
		filter["department"] = f.Department
	}
	if f.FacultyID != "" {
		filter["faculty_id"] = f.FacultyID
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "marked_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find absent records")
	}
	var out []*Record
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode absent records")
	}
	return out, nil
}
