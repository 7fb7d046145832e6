package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
	"ClassRoutineTracker/internal/handover"
	"ClassRoutineTracker/internal/live"
	"ClassRoutineTracker/internal/metrics"
	"ClassRoutineTracker/internal/notification"
	"ClassRoutineTracker/internal/routine"
	"ClassRoutineTracker/internal/schedule"
)

// Store is the persistence the attendance service needs.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Upsert(ctx context.Context, rec *Record) (*Record, error)
	ForDate(ctx context.Context, date, facultyID string) ([]*Record, error)
	AbsentRecords(ctx context.Context, f AbsentFilter) ([]*Record, error)
}

// RoutineSource provides the latest routines.
type RoutineSource interface {
	Latest(ctx context.Context, facultyID string) (*routine.Routine, error)
	ListLatest(ctx context.Context) ([]*routine.Routine, error)
}

// HandoverSource provides the handovers that touch a date.
type HandoverSource interface {
	Get(ctx context.Context, id string) (*handover.Handover, error)
	OnDate(ctx context.Context, date, facultyID string) ([]*handover.Handover, error)
}

// Directory looks up faculty members.
type Directory interface {
	FindByID(ctx context.Context, id string) (*faculty.Faculty, error)
	List(ctx context.Context, department string) ([]*faculty.Faculty, error)
}

// Notifier stores in-app notifications.
type Notifier interface {
	Create(ctx context.Context, msg notification.Message) (*notification.Notification, error)
}

// Publisher pushes live events to connected clients.
type Publisher interface {
	Publish(t live.Target, e live.Event)
}

// AttendanceService marks attendance and derives class statuses.
type AttendanceService struct {
	repo      Store
	routines  RoutineSource
	handovers HandoverSource
	directory Directory
	notifier  Notifier
	publisher Publisher
	policy    schedule.Policy
	logger    *zap.Logger
}

// NewAttendanceService creates a new service for attendance.
func NewAttendanceService(repo Store, routines RoutineSource, handovers HandoverSource, directory Directory, notifier Notifier, publisher Publisher, policy schedule.Policy, logger *zap.Logger) *AttendanceService {
	return &AttendanceService{
		repo:      repo,
		routines:  routines,
		handovers: handovers,
		directory: directory,
		notifier:  notifier,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}
}

// class is a class occurrence resolved from a routine entry or an approved
// handover.
type class struct {
	id        string
	routineID string
	subject   string
	timeSlot  string
	course    string
	room      string
	dept      string
	entry     schedule.Status
}

// resolveClass finds the class facultyID is expected to take on day: one of
// their own entries that was not handed over, or a handover they were
// approved to cover.
func (s *AttendanceService) resolveClass(ctx context.Context, facultyID, classID string, day time.Time) (*class, error) {
	date := s.policy.FormatDate(day)
	doc, err := s.routines.Latest(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		for _, e := range routine.EntriesOn(doc, day.Weekday()) {
			if e.ID != classID {
				continue
			}
			given, err := s.handovers.OnDate(ctx, date, facultyID)
			if err != nil {
				return nil, err
			}
			if h := handedOver(given, facultyID, e); h != nil {
				return nil, core.Conflict(nil, "class was handed over to %s", h.SubstituteName)
			}
			return &class{id: e.ID, routineID: doc.ID.Hex(), subject: e.Subject, timeSlot: e.TimeSlot,
				course: e.Course, room: e.RoomNumber, dept: e.Department, entry: e.Status}, nil
		}
	}

	h, err := s.handovers.Get(ctx, classID)
	if err != nil {
		return nil, err
	}
	if h != nil && h.Status == handover.StatusApproved && h.SubstituteID == facultyID && h.DateOfClass == date {
		return &class{id: h.ID.Hex(), routineID: h.RoutineID, subject: h.Subject, timeSlot: h.TimeSlot, course: h.Course}, nil
	}
	return nil, core.NotFound("no class %s scheduled for this faculty on %s", classID, date)
}

// handedOver returns the approved handover that gave entry away, if any.
func handedOver(list []*handover.Handover, facultyID string, e routine.Entry) *handover.Handover {
	for _, h := range list {
		if h.FacultyID != facultyID || h.Status != handover.StatusApproved {
			continue
		}
		if h.ClassID == e.ID || (h.ClassID == "" && h.TimeSlot == e.TimeSlot && h.Subject == e.Subject) {
			return h
		}
	}
	return nil
}

// Mark records attendance for a class while its window is open.
func (s *AttendanceService) Mark(ctx context.Context, by core.Actor, req MarkRequest, now time.Time) (*Record, error) {
	facultyID := req.FacultyID
	if facultyID == "" {
		facultyID = by.ID
	}
	if !by.CanActFor(facultyID) {
		return nil, core.Forbidden("cannot mark attendance for another faculty")
	}
	day, err := s.policy.ParseDate(req.Date, now)
	if err != nil {
		return nil, core.NewValidationError("date must be YYYY-MM-DD", core.FieldError{Field: "date", Error: err.Error()})
	}
	cl, err := s.resolveClass(ctx, facultyID, req.ClassID, day)
	if err != nil {
		return nil, err
	}
	if !schedule.WindowOpen(cl.timeSlot, day, now, s.policy) {
		_, closes := schedule.ParseSlot(cl.timeSlot, s.policy).Window(day, s.policy)
		if now.After(closes) {
			return nil, core.Conflict(nil, "attendance window for %s closed at %s", cl.subject, closes.Format("15:04"))
		}
		return nil, core.Conflict(nil, "attendance window for %s is not open yet", cl.subject)
	}

	fac, err := s.directory.FindByID(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		FacultyID:      facultyID,
		Department:     cl.dept,
		Date:           s.policy.FormatDate(day),
		ClassID:        cl.id,
		RoutineID:      cl.routineID,
		Subject:        cl.subject,
		TimeSlot:       cl.timeSlot,
		Course:         cl.course,
		Status:         schedule.StatusTaken,
		AbsentStudents: nonNil(req.AbsentStudents),
		PresentCount:   req.PresentCount,
		MarkedBy:       by.ID,
		MarkedAt:       now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	if fac != nil {
		rec.FacultyName = fac.Name
		if rec.Department == "" {
			rec.Department = fac.Department
		}
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}
	metrics.AttendanceMarked.WithLabelValues("faculty").Inc()
	s.logger.Info("attendance marked",
		zap.String("faculty_id", facultyID),
		zap.String("class_id", rec.ClassID),
		zap.String("date", rec.Date),
		zap.Int("absent", len(rec.AbsentStudents)),
	)
	s.publish(rec)
	return rec, nil
}

// Override lets an HOD set the record of any class occurrence, creating it if
// needed.
func (s *AttendanceService) Override(ctx context.Context, hod core.Actor, req OverrideRequest, now time.Time) (*Record, error) {
	if !hod.IsHOD() {
		return nil, core.Forbidden("only an HOD can override attendance")
	}
	if !req.Status.Valid() {
		return nil, core.NewValidationError("unknown status", core.FieldError{Field: "status", Error: "unknown class status"})
	}
	day, err := s.policy.ParseDate(req.Date, now)
	if err != nil {
		return nil, core.NewValidationError("date must be YYYY-MM-DD", core.FieldError{Field: "date", Error: err.Error()})
	}
	rec := &Record{
		FacultyID:      req.FacultyID,
		Date:           s.policy.FormatDate(day),
		ClassID:        req.ClassID,
		Subject:        req.Subject,
		TimeSlot:       req.TimeSlot,
		Status:         req.Status,
		AbsentStudents: nonNil(req.AbsentStudents),
		PresentCount:   req.PresentCount,
		MarkedBy:       hod.ID,
		MarkedAt:       now.UTC(),
		UpdatedAt:      now.UTC(),
		Override:       true,
		OverrideReason: req.Reason,
	}
	// Prefer the scheduled details when the class can still be resolved.
	if cl, err := s.resolveClass(ctx, req.FacultyID, req.ClassID, day); err == nil {
		rec.RoutineID, rec.Subject, rec.TimeSlot, rec.Course, rec.Department = cl.routineID, cl.subject, cl.timeSlot, cl.course, cl.dept
	}
	if fac, err := s.directory.FindByID(ctx, req.FacultyID); err == nil && fac != nil {
		rec.FacultyName = fac.Name
		if rec.Department == "" {
			rec.Department = fac.Department
		}
	}

	stored, err := s.repo.Upsert(ctx, rec)
	if err != nil {
		return nil, err
	}
	metrics.AttendanceMarked.WithLabelValues("override").Inc()
	s.logger.Info("attendance overridden",
		zap.String("faculty_id", stored.FacultyID),
		zap.String("class_id", stored.ClassID),
		zap.String("status", string(stored.Status)),
		zap.String("hod_id", hod.ID),
	)

	_, err = s.notifier.Create(ctx, notification.Message{
		To:    notification.ToUser(stored.FacultyID),
		Title: "Attendance Updated",
		Description: fmt.Sprintf("Attendance for %s on %s was set to %s by the HOD. Reason: %s",
			stored.Subject, stored.Date, stored.Status, req.Reason),
		Type:      notification.TypeAttendance,
		Ref:       map[string]string{"classId": stored.ClassID, "date": stored.Date, "subject": stored.Subject},
		CreatedBy: hod.ID,
	})
	if err != nil {
		s.logger.Warn("attendance override notification failed", zap.String("faculty_id", stored.FacultyID), zap.Error(err))
	}
	s.publish(stored)
	return stored, nil
}

func (s *AttendanceService) publish(rec *Record) {
	e := live.Event{Type: live.EventAttendance, Payload: rec}
	s.publisher.Publish(live.ToUser(rec.FacultyID), e)
	s.publisher.Publish(live.ToRole(core.RoleHOD), e)
}

// ClassesFor derives the status of every class facultyID has on day: own
// entries (including those handed over) and handovers they cover.
func (s *AttendanceService) ClassesFor(ctx context.Context, viewer core.Actor, facultyID string, day, now time.Time) ([]ClassStatus, error) {
	if facultyID == "" {
		facultyID = viewer.ID
	}
	if !viewer.CanActFor(facultyID) {
		return nil, core.Forbidden("cannot view another faculty's classes")
	}
	day = s.policy.Day(day)
	date := s.policy.FormatDate(day)

	doc, err := s.routines.Latest(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ForDate(ctx, date, facultyID)
	if err != nil {
		return nil, err
	}
	handovers, err := s.handovers.OnDate(ctx, date, facultyID)
	if err != nil {
		return nil, err
	}
	return s.derive(facultyID, "", doc, records, handovers, day, now), nil
}

// DepartmentClasses is the HOD view over every faculty with a routine,
// optionally restricted to one department.
func (s *AttendanceService) DepartmentClasses(ctx context.Context, hod core.Actor, department string, day, now time.Time) ([]ClassStatus, error) {
	if !hod.IsHOD() {
		return nil, core.Forbidden("only an HOD can view department classes")
	}
	day = s.policy.Day(day)
	date := s.policy.FormatDate(day)

	staff, err := s.directory.List(ctx, department)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(staff))
	for _, f := range staff {
		names[f.IDHex()] = f.Name
	}
	docs, err := s.routines.ListLatest(ctx)
	if err != nil {
		return nil, err
	}
	routines := make(map[string]*routine.Routine, len(docs))
	for _, d := range docs {
		routines[d.FacultyID] = d
	}
	records, err := s.repo.ForDate(ctx, date, "")
	if err != nil {
		return nil, err
	}
	handovers, err := s.handovers.OnDate(ctx, date, "")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []ClassStatus{}
	for _, id := range ids {
		out = append(out, s.derive(id, names[id], routines[id], records, handovers, day, now)...)
	}
	return out, nil
}

// MissedClasses lists the classes of day that are missed as of now.
func (s *AttendanceService) MissedClasses(ctx context.Context, hod core.Actor, department string, day, now time.Time) ([]ClassStatus, error) {
	all, err := s.DepartmentClasses(ctx, hod, department, day, now)
	if err != nil {
		return nil, err
	}
	out := []ClassStatus{}
	for _, c := range all {
		if c.Status == schedule.StatusMissed {
			out = append(out, c)
		}
	}
	return out, nil
}

// AbsentRecords lists records with absent students. HOD only.
func (s *AttendanceService) AbsentRecords(ctx context.Context, hod core.Actor, f AbsentFilter) ([]*Record, error) {
	if !hod.IsHOD() {
		return nil, core.Forbidden("only an HOD can view absent records")
	}
	out, err := s.repo.AbsentRecords(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Record{}
	}
	return out, nil
}

// derive builds the class list of one faculty from preloaded data. records
// and handovers may contain other faculties' documents.
func (s *AttendanceService) derive(facultyID, name string, doc *routine.Routine, records []*Record, handovers []*handover.Handover, day, now time.Time) []ClassStatus {
	date := s.policy.FormatDate(day)
	recordFor := func(classID string) *Record {
		for _, r := range records {
			if r.FacultyID == facultyID && r.ClassID == classID {
				return r
			}
		}
		return nil
	}

	out := []ClassStatus{}
	add := func(cs ClassStatus, in schedule.Input) {
		rec := recordFor(cs.ClassID)
		if rec != nil {
			in.RecordStatus = rec.Status
			cs.Record = &RecordSummary{
				Status:       rec.Status,
				AbsentCount:  len(rec.AbsentStudents),
				PresentCount: rec.PresentCount,
				MarkedAt:     rec.MarkedAt,
				Override:     rec.Override,
			}
		}
		res := schedule.Derive(in, now, s.policy)
		cs.Status = res.Status
		cs.WindowOpensAt, cs.WindowClosesAt = res.Opens, res.Closes
		cs.CanMark = rec == nil && !in.HandedOver && !now.Before(res.Opens) && !now.After(res.Closes)
		cs.FacultyID, cs.FacultyName, cs.Date, cs.Day = facultyID, name, date, day.Weekday().String()
		out = append(out, cs)
	}

	if doc != nil {
		for _, e := range routine.EntriesOn(doc, day.Weekday()) {
			cs := ClassStatus{
				ClassID:    e.ID,
				RoutineID:  doc.ID.Hex(),
				TimeSlot:   e.TimeSlot,
				Subject:    e.Subject,
				Course:     e.Course,
				RoomNumber: e.RoomNumber,
				Department: e.Department,
			}
			in := schedule.Input{TimeSlot: e.TimeSlot, Date: day}
			if h := handedOver(handovers, facultyID, e); h != nil {
				in.HandedOver = true
				cs.HandoverID, cs.HandoverStatus = h.ID.Hex(), "Handed Over"
				cs.SubstituteID, cs.SubstituteName = h.SubstituteID, h.SubstituteName
			}
			add(cs, in)
		}
	}
	for _, h := range handovers {
		if h.SubstituteID != facultyID || h.Status != handover.StatusApproved || h.DateOfClass != date {
			continue
		}
		cs := ClassStatus{
			ClassID:           h.ID.Hex(),
			RoutineID:         h.RoutineID,
			TimeSlot:          h.TimeSlot,
			Subject:           h.Subject,
			Course:            h.Course,
			Handover:          true,
			HandoverID:        h.ID.Hex(),
			HandoverStatus:    string(h.Status),
			OriginalFacultyID: h.FacultyID,
			OriginalFaculty:   h.FacultyName,
		}
		add(cs, schedule.Input{TimeSlot: h.TimeSlot, Date: day, Handover: true})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].WindowOpensAt.Before(out[j].WindowOpensAt) })
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
