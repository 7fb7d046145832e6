package handover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/faculty"
	"ClassRoutineTracker/internal/live"
	"ClassRoutineTracker/internal/metrics"
	"ClassRoutineTracker/internal/notification"
	"ClassRoutineTracker/internal/routine"
	"ClassRoutineTracker/internal/schedule"
)

// Store is the persistence the handover service needs.
type Store interface {
	Insert(ctx context.Context, h *Handover) error
	FindByID(ctx context.Context, id string) (*Handover, error)
	List(ctx context.Context, f Filter) ([]*Handover, error)
	Decide(ctx context.Context, id string, d Decision) (*Handover, error)
}

// RoutineSource provides the latest routines.
type RoutineSource interface {
	Latest(ctx context.Context, facultyID string) (*routine.Routine, error)
}

// Directory looks up faculty accounts; *faculty.FacultyRepository implements it.
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

// HandoverService negotiates substitutes for classes.
type HandoverService struct {
	repo      Store
	routines  RoutineSource
	directory Directory
	notifier  Notifier
	publisher Publisher
	policy    schedule.Policy
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandoverService creates a new service for handovers.
func NewHandoverService(repo Store, routines RoutineSource, directory Directory, notifier Notifier, publisher Publisher, policy schedule.Policy, logger *zap.Logger) *HandoverService {
	return &HandoverService{
		repo:      repo,
		routines:  routines,
		directory: directory,
		notifier:  notifier,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *HandoverService) parseDate(date string) (time.Time, error) {
	if date == "" {
		return time.Time{}, core.NewValidationError("date is required",
			core.FieldError{Field: "date", Error: "this field is required"})
	}
	day, err := s.policy.ParseDate(date, s.now())
	if err != nil {
		return time.Time{}, core.NewValidationError("date must be YYYY-MM-DD",
			core.FieldError{Field: "date", Error: "must be a date formatted as YYYY-MM-DD"})
	}
	return day, nil
}

// CheckSubstituteAvailability reports the first clash in the substitute's
// schedule at date/timeSlot: a regular class in their latest routine, a
// pending handover they were asked to cover, or an approved one. The handover
// identified by exclude is ignored.
func (s *HandoverService) CheckSubstituteAvailability(ctx context.Context, substituteID, date, timeSlot, exclude string) (*Availability, error) {
	if substituteID == "" || timeSlot == "" {
		return nil, core.NewValidationError("substituteId, date and timeSlot are required")
	}
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	slot := schedule.ParseSlot(timeSlot, s.policy)

	doc, err := s.routines.Latest(ctx, substituteID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		for _, e := range routine.EntriesOn(doc, day.Weekday()) {
			if schedule.ParseSlot(e.TimeSlot, s.policy).Overlaps(slot) {
				return &Availability{Conflict: &Conflict{
					ConflictType: ConflictRegularClass,
					Subject:      e.Subject,
					Course:       e.Course,
					Day:          e.Day,
					TimeSlot:     e.TimeSlot,
				}}, nil
			}
		}
	}

	assigned, err := s.repo.List(ctx, Filter{SubstituteID: substituteID, Date: date})
	if err != nil {
		return nil, err
	}
	for _, want := range []struct {
		status Status
		kind   string
	}{
		{StatusPending, ConflictHandoverAssignment},
		{StatusApproved, ConflictApprovedHandover},
	} {
		for _, h := range assigned {
			if h.ID.Hex() == exclude || h.Status != want.status {
				continue
			}
			if schedule.ParseSlot(h.TimeSlot, s.policy).Overlaps(slot) {
				return &Availability{Conflict: &Conflict{
					ConflictType: want.kind,
					Subject:      h.Subject,
					Course:       h.Course,
					Day:          h.Day,
					TimeSlot:     h.TimeSlot,
				}}, nil
			}
		}
	}
	return &Availability{Available: true}, nil
}

// Candidates lists every other faculty member for the class, annotated with
// whether they know the subject and whether they are free. Neither is
// enforced.
func (s *HandoverService) Candidates(ctx context.Context, viewer core.Actor, date, timeSlot, subject string) ([]Candidate, error) {
	all, err := s.directory.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(all))
	for _, f := range all {
		id := f.IDHex()
		if id == viewer.ID {
			continue
		}
		avail, err := s.CheckSubstituteAvailability(ctx, id, date, timeSlot, "")
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{
			ID:            id,
			Name:          f.Name,
			Department:    f.Department,
			SubjectsKnown: f.SubjectsKnown,
			Qualified:     knowsSubject(f, subject),
			Availability:  *avail,
		})
	}
	return out, nil
}

func knowsSubject(f *faculty.Faculty, subject string) bool {
	subject = strings.TrimSpace(subject)
	for _, known := range f.SubjectsKnown {
		if strings.EqualFold(strings.TrimSpace(known), subject) {
			return true
		}
	}
	return false
}

// Submit records a Pending handover request and alerts the HODs.
func (s *HandoverService) Submit(ctx context.Context, by core.Actor, req SubmitRequest) (*SubmitResult, error) {
	facultyID := req.FacultyID
	if facultyID == "" {
		facultyID = by.ID
	}
	if !by.CanActFor(facultyID) {
		return nil, core.Forbidden("cannot request a handover for another faculty")
	}
	if req.SubstituteID == facultyID {
		return nil, core.NewValidationError("substitute must be someone else",
			core.FieldError{Field: "substituteId", Error: "must differ from facultyId"})
	}
	day, err := s.parseDate(req.DateOfClass)
	if err != nil {
		return nil, err
	}

	requester, err := s.directory.FindByID(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, core.NotFound("faculty %s not found", facultyID)
	}
	substitute, err := s.directory.FindByID(ctx, req.SubstituteID)
	if err != nil {
		return nil, err
	}
	if substitute == nil {
		return nil, core.NotFound("substitute %s not found", req.SubstituteID)
	}

	avail, err := s.CheckSubstituteAvailability(ctx, req.SubstituteID, req.DateOfClass, req.TimeSlot, "")
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, core.Conflict(avail, "%s is not available at that time", substitute.Name)
	}

	now := s.now().UTC()
	h := &Handover{
		FacultyID:      facultyID,
		FacultyName:    requester.Name,
		DateOfClass:    req.DateOfClass,
		Day:            day.Weekday().String(),
		TimeSlot:       req.TimeSlot,
		Subject:        req.Subject,
		Course:         req.Course,
		ClassID:        req.ClassID,
		RoutineID:      req.RoutineID,
		Reason:         req.Reason,
		SubstituteID:   substitute.IDHex(),
		SubstituteName: substitute.Name,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info("handover requested",
		zap.String("handover_id", h.ID.Hex()),
		zap.String("faculty_id", h.FacultyID),
		zap.String("substitute_id", h.SubstituteID),
	)

	_, err = s.notifier.Create(ctx, notification.Message{
		To:    notification.ToRole(core.RoleHOD),
		Title: "New Handover Request",
		Description: fmt.Sprintf("%s requested %s to take %s (%s) on %s at %s. Reason: %s",
			h.FacultyName, h.SubstituteName, h.Subject, h.Course, h.DateOfClass, h.TimeSlot, h.Reason),
		Type:      notification.TypeHandover,
		Ref:       ref(h),
		CreatedBy: by.ID,
	})
	if err != nil {
		s.logger.Warn("handover notification failed", zap.String("handover_id", h.ID.Hex()), zap.Error(err))
	}
	s.publisher.Publish(live.ToRole(core.RoleHOD), live.Event{Type: live.EventHandoverUpdated, Payload: h})

	res := &SubmitResult{Handover: h, Qualified: knowsSubject(substitute, h.Subject)}
	if !res.Qualified {
		res.Warning = fmt.Sprintf("%s has not listed %s among the subjects they teach", substitute.Name, h.Subject)
	}
	return res, nil
}

// Decide approves or rejects a Pending handover, optionally reassigning the
// substitute on approval.
func (s *HandoverService) Decide(ctx context.Context, hod core.Actor, id string, req DecideRequest) (*Handover, error) {
	if !hod.IsHOD() {
		return nil, core.Forbidden("only an HOD can decide handovers")
	}
	if req.Status != StatusApproved && req.Status != StatusRejected {
		return nil, core.NewValidationError("status must be Approved or Rejected",
			core.FieldError{Field: "status", Error: "must be Approved or Rejected"})
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, core.NotFound("handover %s not found", id)
	}
	if current.Status != StatusPending {
		return nil, core.Conflict(nil, "handover already %s", current.Status)
	}

	d := Decision{Status: req.Status, Remarks: req.Remarks, DecidedBy: hod.ID, At: s.now().UTC()}
	if req.Status == StatusApproved && req.SubstituteID != "" && req.SubstituteID != current.SubstituteID {
		if req.SubstituteID == current.FacultyID {
			return nil, core.NewValidationError("substitute must be someone else",
				core.FieldError{Field: "substituteId", Error: "must differ from the requesting faculty"})
		}
		sub, err := s.directory.FindByID(ctx, req.SubstituteID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, core.NotFound("substitute %s not found", req.SubstituteID)
		}
		avail, err := s.CheckSubstituteAvailability(ctx, req.SubstituteID, current.DateOfClass, current.TimeSlot, id)
		if err != nil {
			return nil, err
		}
		if !avail.Available {
			return nil, core.Conflict(avail, "%s is not available at that time", sub.Name)
		}
		d.SubstituteID, d.SubstituteName = sub.IDHex(), sub.Name
	}

	h, err := s.repo.Decide(ctx, id, d)
	if err != nil {
		return nil, err
	}
	metrics.HandoverDecisions.WithLabelValues(string(h.Status)).Inc()
	s.logger.Info("handover decided",
		zap.String("handover_id", id),
		zap.String("status", string(h.Status)),
		zap.String("decided_by", hod.ID),
	)
	s.notifyDecision(ctx, hod, h)
	return h, nil
}

func (s *HandoverService) notifyDecision(ctx context.Context, hod core.Actor, h *Handover) {
	var msgs []notification.Message
	switch h.Status {
	case StatusApproved:
		msgs = append(msgs,
			notification.Message{
				To:    notification.ToUser(h.FacultyID),
				Title: "Handover Approved",
				Description: fmt.Sprintf("Your handover of %s on %s at %s was approved. %s will take the class.",
					h.Subject, h.DateOfClass, h.TimeSlot, h.SubstituteName),
				Type: notification.TypeApproval,
			},
			notification.Message{
				To:    notification.ToUser(h.SubstituteID),
				Title: "Class Assigned",
				Description: fmt.Sprintf("You will take %s (%s) on %s at %s for %s.",
					h.Subject, h.Course, h.DateOfClass, h.TimeSlot, h.FacultyName),
				Type: notification.TypeHandover,
			},
		)
	case StatusRejected:
		reason := h.Remarks
		if reason == "" {
			reason = "no reason given"
		}
		msgs = append(msgs, notification.Message{
			To:    notification.ToUser(h.FacultyID),
			Title: "Handover Rejected",
			Description: fmt.Sprintf("Your handover of %s on %s at %s was rejected. Reason: %s",
				h.Subject, h.DateOfClass, h.TimeSlot, reason),
			Type: notification.TypeRejection,
		})
	}

	var errs error
	for _, msg := range msgs {
		msg.Ref = ref(h)
		msg.CreatedBy = hod.ID
		_, err := s.notifier.Create(ctx, msg)
		errs = multierr.Append(errs, err)
		s.publisher.Publish(live.Target{UserID: msg.To.UserID}, live.Event{Type: live.EventHandoverUpdated, Payload: h})
	}
	if errs != nil {
		s.logger.Warn("handover decision notifications failed", zap.String("handover_id", h.ID.Hex()), zap.Error(errs))
	}
}

func ref(h *Handover) map[string]string {
	return map[string]string{
		"handoverId":  h.ID.Hex(),
		"dateOfClass": h.DateOfClass,
		"timeSlot":    h.TimeSlot,
		"subject":     h.Subject,
	}
}

// List returns handovers matching f. Faculty only ever see requests they made
// or were asked to cover.
func (s *HandoverService) List(ctx context.Context, viewer core.Actor, f Filter) ([]*Handover, error) {
	if !viewer.IsHOD() {
		if (f.FacultyID != "" && f.FacultyID != viewer.ID) || (f.SubstituteID != "" && f.SubstituteID != viewer.ID) {
			return nil, core.Forbidden("cannot view another faculty's handovers")
		}
		if f.FacultyID == "" && f.SubstituteID == "" {
			f.Involving = viewer.ID
		}
	}
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Handover{}
	}
	return out, nil
}

// Get returns one handover or NotFound.
func (s *HandoverService) Get(ctx context.Context, id string) (*Handover, error) {
	return s.repo.FindByID(ctx, id)
}

// OnDate returns every handover for date, or only those involving facultyID
// when it is set.
func (s *HandoverService) OnDate(ctx context.Context, date, facultyID string) ([]*Handover, error) {
	return s.repo.List(ctx, Filter{Date: date, Involving: facultyID})
}
