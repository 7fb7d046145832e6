package routine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/live"
	"ClassRoutineTracker/internal/metrics"
	"ClassRoutineTracker/internal/notification"
	"ClassRoutineTracker/internal/schedule"
)

const (
	maxPublishAttempts = 5
	// staleDraftAge is how long a draft may exist without becoming the head
	// before it is treated as abandoned.
	staleDraftAge  = time.Minute
	cleanupTimeout = 5 * time.Second
)

// Store is the persistence the routine service needs.
type Store interface {
	Insert(ctx context.Context, doc *Routine) error
	FindByID(ctx context.Context, id string) (*Routine, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Routine, error)
	Head(ctx context.Context, facultyID string) (*Head, error)
	Heads(ctx context.Context) ([]*Head, error)
	AdvanceHead(ctx context.Context, facultyID string, expect int, latestID primitive.ObjectID, version int, at time.Time) (bool, error)
	Promote(ctx context.Context, facultyID string, id primitive.ObjectID, version int) (int64, error)
	History(ctx context.Context, facultyID string, exclude primitive.ObjectID) ([]HistoryItem, error)
	DiscardDraft(ctx context.Context, id primitive.ObjectID) error
	DiscardStaleDrafts(ctx context.Context, facultyID string, keep primitive.ObjectID, before time.Time) (int64, error)
}

// Notifier stores an in-app notification for the affected faculty.
type Notifier interface {
	Create(ctx context.Context, msg notification.Message) (*notification.Notification, error)
}

// Publisher pushes live events to connected clients.
type Publisher interface {
	Publish(t live.Target, e live.Event)
}

// AttendanceOverlay supplies the attendance already recorded for a faculty on
// a date (YYYY-MM-DD).
type AttendanceOverlay interface {
	MarksFor(ctx context.Context, facultyID, date string) ([]Mark, error)
}

// RoutineService owns the per-faculty routine chains.
type RoutineService struct {
	repo      Store
	overlay   AttendanceOverlay
	notifier  Notifier
	publisher Publisher
	policy    schedule.Policy
	logger    *zap.Logger
	now       func() time.Time
}

// NewRoutineService creates a new service for routine chains.
func NewRoutineService(repo Store, overlay AttendanceOverlay, notifier Notifier, publisher Publisher, policy schedule.Policy, logger *zap.Logger) *RoutineService {
	return &RoutineService{
		repo:      repo,
		overlay:   overlay,
		notifier:  notifier,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// PublishOrUpdate appends a new version to the faculty's routine chain and
// moves the latest pointer to it.
//
// The new version always follows the current latest one. When the request
// names an update target that is not the current latest, the new document
// records it as RestoredFromID. A target that cannot be resolved is logged and
// ignored: the new document still continues the chain from the current latest
// version and no fresh version 1 is started.
//
// A draft that fails to become the head is removed. Drafts abandoned by an
// earlier failed publish are cleared once they are older than staleDraftAge,
// so a version number is never blocked for good.
func (s *RoutineService) PublishOrUpdate(ctx context.Context, by core.Actor, req PublishRequest) (*PublishResult, error) {
	if !by.IsHOD() {
		return nil, core.Forbidden("only an HOD can publish routines")
	}
	if strings.TrimSpace(req.FacultyID) == "" || len(req.Entries) == 0 {
		return nil, core.NewValidationError("facultyId and entries are required")
	}
	routineType := req.RoutineType
	if routineType == "" {
		routineType = TypeWeekly
	}
	if routineType != TypeWeekly && routineType != TypeMonthly {
		return nil, core.NewValidationError("routineType must be weekly or monthly",
			core.FieldError{Field: "routineType", Error: "must be weekly or monthly"})
	}

	var restoredFrom *primitive.ObjectID
	if req.IsUpdate && req.UpdateRoutineID != "" {
		base, err := s.repo.FindByID(ctx, req.UpdateRoutineID)
		switch {
		case err != nil:
			s.logger.Warn("previous routine lookup failed", zap.String("routine_id", req.UpdateRoutineID), zap.Error(err))
		case base == nil || base.FacultyID != req.FacultyID:
			s.logger.Warn("previous routine not found", zap.String("routine_id", req.UpdateRoutineID), zap.String("faculty_id", req.FacultyID))
		default:
			restoredFrom = &base.ID
		}
	}

	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	if routineType == TypeWeekly {
		end = start.AddDate(0, 0, 7)
	}
	entries := buildEntries(req.Entries)

	for attempt := 0; attempt < maxPublishAttempts; attempt++ {
		head, err := s.repo.Head(ctx, req.FacultyID)
		if err != nil {
			return nil, err
		}
		doc := &Routine{
			ID:          primitive.NewObjectID(),
			FacultyID:   req.FacultyID,
			RoutineType: routineType,
			Entries:     entries,
			Version:     1,
			State:       StateDraft,
			StartDate:   start,
			EndDate:     end,
			CreatedBy:   by.ID,
			CreatedAt:   now,
		}
		expect := 0
		if head != nil {
			expect = head.Version
			prev := head.LatestID
			doc.Version = head.Version + 1
			doc.PreviousVersionID = &prev
			if restoredFrom != nil && *restoredFrom != head.LatestID {
				doc.RestoredFromID = restoredFrom
			}
		}

		if err := s.repo.Insert(ctx, doc); err != nil {
			if core.IsConflict(err) {
				s.clearStaleDrafts(ctx, head, req.FacultyID, now)
				continue
			}
			return nil, err
		}
		ok, err := s.repo.AdvanceHead(ctx, req.FacultyID, expect, doc.ID, doc.Version, now)
		if err != nil {
			if !s.settleFailedAdvance(ctx, doc) {
				return nil, err
			}
			ok = true
		}
		if !ok {
			s.discard(ctx, doc)
			continue
		}
		if _, err := s.repo.Promote(ctx, req.FacultyID, doc.ID, doc.Version); err != nil {
			s.logger.Warn("routine flags left for repair", zap.String("routine_id", doc.ID.Hex()), zap.Error(err))
		}

		s.afterPublish(ctx, by, doc, req.IsUpdate)
		return &PublishResult{RoutineID: doc.ID.Hex(), Version: doc.Version}, nil
	}
	return nil, core.Conflict(nil, "routine for %s changed concurrently, please retry", req.FacultyID)
}

// settleFailedAdvance decides the outcome of an AdvanceHead call that returned
// an error. The write may still have landed, so the head is read back; if it
// points at doc the publish went through. Otherwise doc is discarded.
func (s *RoutineService) settleFailedAdvance(ctx context.Context, doc *Routine) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	head, err := s.repo.Head(ctx, doc.FacultyID)
	if err == nil && head != nil && head.LatestID == doc.ID {
		return true
	}
	s.discard(ctx, doc)
	return false
}

func (s *RoutineService) discard(ctx context.Context, doc *Routine) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.repo.DiscardDraft(ctx, doc.ID); err != nil {
		s.logger.Warn("routine draft left for repair",
			zap.String("faculty_id", doc.FacultyID),
			zap.String("routine_id", doc.ID.Hex()),
			zap.Error(err),
		)
	}
}

func (s *RoutineService) clearStaleDrafts(ctx context.Context, head *Head, facultyID string, now time.Time) {
	var keep primitive.ObjectID
	if head != nil {
		keep = head.LatestID
	}
	n, err := s.repo.DiscardStaleDrafts(ctx, facultyID, keep, now.Add(-staleDraftAge))
	if err != nil {
		s.logger.Warn("stale routine drafts not cleared", zap.String("faculty_id", facultyID), zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Warn("stale routine drafts cleared", zap.String("faculty_id", facultyID), zap.Int64("drafts", n))
	}
}

func (s *RoutineService) afterPublish(ctx context.Context, by core.Actor, doc *Routine, isUpdate bool) {
	kind, title, desc := "new", "New Routine Published", "A new class routine has been published for you."
	if isUpdate {
		kind, title, desc = "update", "Routine Updated", "Your class routine has been updated."
	}
	metrics.RoutinesPublished.WithLabelValues(kind).Inc()
	s.logger.Info("routine published",
		zap.String("faculty_id", doc.FacultyID),
		zap.String("routine_id", doc.ID.Hex()),
		zap.Int("version", doc.Version),
	)

	_, err := s.notifier.Create(ctx, notification.Message{
		To:          notification.ToUser(doc.FacultyID),
		Title:       title,
		Description: desc,
		Type:        notification.TypeRoutine,
		Ref:         map[string]string{"routineId": doc.ID.Hex()},
		CreatedBy:   by.ID,
	})
	if err != nil {
		s.logger.Warn("routine notification failed", zap.String("faculty_id", doc.FacultyID), zap.Error(err))
	}
	s.publisher.Publish(live.ToUser(doc.FacultyID), live.Event{
		Type:    live.EventRoutine,
		Payload: PublishResult{RoutineID: doc.ID.Hex(), Version: doc.Version},
	})
}

func buildEntries(in []EntryInput) []Entry {
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		status := e.Status
		if status == "" {
			status = schedule.StatusPending
		}
		out = append(out, Entry{
			ID:               uuid.NewString(),
			Day:              strings.TrimSpace(e.Day),
			TimeSlot:         strings.TrimSpace(e.TimeSlot),
			Subject:          strings.TrimSpace(e.Subject),
			RoomNumber:       e.RoomNumber,
			Department:       e.Department,
			Course:           e.Course,
			Status:           status,
			AttendanceStatus: status,
		})
	}
	return out
}

// Latest returns the faculty's current routine, or nil when none was ever
// published.
func (s *RoutineService) Latest(ctx context.Context, facultyID string) (*Routine, error) {
	head, err := s.repo.Head(ctx, facultyID)
	if err != nil || head == nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, head.LatestID.Hex())
}

// GetLatest returns the faculty's current routine, or NotFound when none exists.
func (s *RoutineService) GetLatest(ctx context.Context, viewer core.Actor, facultyID string) (*Routine, error) {
	if !viewer.CanActFor(facultyID) {
		return nil, core.Forbidden("cannot view another faculty's routine")
	}
	doc, err := s.Latest(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, core.NotFound("no routine found for faculty %s", facultyID)
	}
	return doc, nil
}

// GetHistory lists the faculty's earlier versions, newest first. The current
// version is not included.
func (s *RoutineService) GetHistory(ctx context.Context, viewer core.Actor, facultyID string) ([]HistoryItem, error) {
	if !viewer.CanActFor(facultyID) {
		return nil, core.Forbidden("cannot view another faculty's routine")
	}
	var exclude primitive.ObjectID
	head, err := s.repo.Head(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	if head != nil {
		exclude = head.LatestID
	}
	items, err := s.repo.History(ctx, facultyID, exclude)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []HistoryItem{}
	}
	return items, nil
}

// GetByID returns any version, latest or not.
func (s *RoutineService) GetByID(ctx context.Context, viewer core.Actor, id string) (*Routine, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, core.NotFound("routine %s not found", id)
	}
	if !viewer.CanActFor(doc.FacultyID) {
		return nil, core.Forbidden("cannot view another faculty's routine")
	}
	return doc, nil
}

// TodayEntries lists the latest routine's entries scheduled on day's weekday,
// with that day's attendance overlaid. Nothing is written back.
func (s *RoutineService) TodayEntries(ctx context.Context, viewer core.Actor, facultyID string, day time.Time) (*TodayView, error) {
	if !viewer.CanActFor(facultyID) {
		return nil, core.Forbidden("cannot view another faculty's routine")
	}
	day = s.policy.Day(day)
	view := &TodayView{Date: s.policy.FormatDate(day), Day: day.Weekday().String(), Entries: []Entry{}}

	doc, err := s.Latest(ctx, facultyID)
	if err != nil || doc == nil {
		return view, err
	}
	marks, err := s.overlay.MarksFor(ctx, facultyID, view.Date)
	if err != nil {
		return nil, err
	}
	for _, e := range EntriesOn(doc, day.Weekday()) {
		for _, m := range marks {
			if m.ClassID == e.ID || m.RoutineID == e.ID {
				at := m.UpdatedAt
				e.Status = m.Status
				e.AttendanceStatus = m.Status
				e.LastUpdated = &at
				break
			}
		}
		view.Entries = append(view.Entries, e)
	}
	return view, nil
}

// EntriesOn returns copies of the routine's entries scheduled on wd.
func EntriesOn(doc *Routine, wd time.Weekday) []Entry {
	var out []Entry
	for _, e := range doc.Entries {
		if schedule.MatchesDay(e.Day, wd) {
			out = append(out, e)
		}
	}
	return out
}

// ListLatest returns the latest routine of every faculty that has one.
func (s *RoutineService) ListLatest(ctx context.Context) ([]*Routine, error) {
	heads, err := s.repo.Heads(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(heads))
	for _, h := range heads {
		ids = append(ids, h.LatestID)
	}
	out, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Routine{}
	}
	return out, nil
}

// Repair brings every faculty's document flags in line with its head: the
// head's document is the only published latest one. Abandoned drafts are
// removed on the way.
func (s *RoutineService) Repair(ctx context.Context) (*RepairResult, error) {
	heads, err := s.repo.Heads(ctx)
	if err != nil {
		return nil, err
	}
	res := &RepairResult{Faculties: len(heads)}
	cutoff := s.now().UTC().Add(-staleDraftAge)
	for _, h := range heads {
		n, err := s.repo.Promote(ctx, h.FacultyID, h.LatestID, h.Version)
		if err != nil {
			return res, err
		}
		res.Fixed += n
		d, err := s.repo.DiscardStaleDrafts(ctx, h.FacultyID, h.LatestID, cutoff)
		if err != nil {
			return res, err
		}
		res.Discarded += d
	}
	if res.Fixed > 0 {
		metrics.RoutineRepairs.Add(float64(res.Fixed))
		s.logger.Warn("routine latest flags repaired", zap.Int64("documents", res.Fixed))
	}
	if res.Discarded > 0 {
		s.logger.Warn("abandoned routine drafts removed", zap.Int64("drafts", res.Discarded))
	}
	return res, nil
}
