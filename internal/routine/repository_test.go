package routine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"ClassRoutineTracker/internal/core"
)

var _ Store = (*RoutineRepository)(nil)

func TestRoutineRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	newRepo := func(mt *mtest.T) *RoutineRepository {
		return &RoutineRepository{routines: mt.Coll, heads: mt.Coll}
	}
	ns := func(mt *mtest.T) string {
		return mt.Coll.Database().Name() + "." + mt.Coll.Name()
	}
	duplicate := mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"})

	mt.Run("advance head guards on the read version", func(mt *mtest.T) {
		repo := newRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		ok, err := repo.AdvanceHead(ctx, "F1", 2, id, 3, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(t, "F1", cmd.Lookup("updates", "0", "q", "_id").StringValue())
		assert.EqualValues(t, 2, cmd.Lookup("updates", "0", "q", "version").AsInt64())
		assert.EqualValues(t, 3, cmd.Lookup("updates", "0", "u", "$set", "version").AsInt64())
		assert.Equal(t, id, cmd.Lookup("updates", "0", "u", "$set", "latest_id").ObjectID())
	})

	mt.Run("advance head loses race", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		ok, err := repo.AdvanceHead(ctx, "F1", 2, primitive.NewObjectID(), 3, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	mt.Run("first head already created", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(duplicate)

		ok, err := repo.AdvanceHead(ctx, "F1", 0, primitive.NewObjectID(), 1, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "insert", mt.GetStartedEvent().CommandName)
	})

	mt.Run("advance head failure", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad value", Name: "BadValue"}))

		_, err := repo.AdvanceHead(ctx, "F1", 2, primitive.NewObjectID(), 3, time.Now())
		assert.Error(t, err)
	})

	mt.Run("insert taken version is a conflict", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(duplicate)

		err := repo.Insert(ctx, &Routine{ID: primitive.NewObjectID(), FacultyID: "F1", Version: 2, State: StateDraft})
		assert.True(t, core.IsConflict(err))
	})

	mt.Run("promote supersedes older versions", func(mt *mtest.T) {
		repo := newRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		changed, err := repo.Promote(ctx, "F1", id, 4)
		require.NoError(t, err)
		assert.EqualValues(t, 3, changed)

		supersede := mt.GetStartedEvent().Command
		q := supersede.Lookup("updates", "0", "q")
		assert.Equal(t, id, q.Document().Lookup("_id", "$ne").ObjectID())
		assert.EqualValues(t, 4, q.Document().Lookup("version", "$lt").AsInt64())
		or, err := q.Document().LookupErr("$or")
		require.NoError(t, err)
		values, err := or.Array().Values()
		require.NoError(t, err)
		assert.Len(t, values, 2)
		assert.Equal(t, StateSuperseded, supersede.Lookup("updates", "0", "u", "$set", "state").StringValue())
		assert.True(t, supersede.Lookup("updates", "0", "multi").Boolean())

		assert.Equal(t, "aggregate", mt.GetStartedEvent().CommandName)
		promote := mt.GetStartedEvent().Command
		assert.Equal(t, StatePublished, promote.Lookup("updates", "0", "u", "$set", "state").StringValue())
		assert.True(t, promote.Lookup("updates", "0", "u", "$set", "is_latest").Boolean())
	})

	mt.Run("promote demotes when a newer version is published", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		changed, err := repo.Promote(ctx, "F1", primitive.NewObjectID(), 2)
		require.NoError(t, err)
		assert.EqualValues(t, 1, changed)

		mt.GetStartedEvent()
		mt.GetStartedEvent()
		demote := mt.GetStartedEvent().Command
		assert.Equal(t, StateSuperseded, demote.Lookup("updates", "0", "u", "$set", "state").StringValue())
		assert.False(t, demote.Lookup("updates", "0", "u", "$set", "is_latest").Boolean())
	})

	mt.Run("history decodes projected rows", func(mt *mtest.T) {
		repo := newRepo(mt)
		id := primitive.NewObjectID()
		created := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "version", Value: 2},
			{Key: "created_at", Value: created},
			{Key: "entry_count", Value: 5},
		}))

		items, err := repo.History(ctx, "F1", primitive.NewObjectID())
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, HistoryItem{ID: id, Version: 2, CreatedAt: created, EntryCount: 5}, items[0])
	})

	mt.Run("stale drafts are matched by state and age", func(mt *mtest.T) {
		repo := newRepo(mt)
		keep := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))

		n, err := repo.DiscardStaleDrafts(ctx, "F1", keep, time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		q := mt.GetStartedEvent().Command.Lookup("deletes", "0", "q").Document()
		assert.Equal(t, StateDraft, q.Lookup("state").StringValue())
		assert.Equal(t, keep, q.Lookup("_id", "$ne").ObjectID())
		_, err = q.LookupErr("created_at", "$lt")
		assert.NoError(t, err)
	})

	mt.Run("discard draft only removes drafts", func(mt *mtest.T) {
		repo := newRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		require.NoError(t, repo.DiscardDraft(ctx, primitive.NewObjectID()))
		q := mt.GetStartedEvent().Command.Lookup("deletes", "0", "q").Document()
		assert.Equal(t, StateDraft, q.Lookup("state").StringValue())
	})
}
