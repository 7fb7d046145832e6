package handover

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

func TestHandoverRepository_Decide(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	decision := Decision{Status: StatusApproved, Remarks: "ok", DecidedBy: "hod-1", At: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	ns := func(mt *mtest.T) string {
		return mt.Coll.Database().Name() + "." + mt.Coll.Name()
	}

	mt.Run("pending handover is decided", func(mt *mtest.T) {
		repo := &HandoverRepository{collection: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "faculty_id", Value: "F1"},
			{Key: "status", Value: "Approved"},
			{Key: "remarks", Value: "ok"},
		}}))

		h, err := repo.Decide(ctx, id.Hex(), decision)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, h.Status)
		assert.Equal(t, "ok", h.Remarks)

		q := mt.GetStartedEvent().Command.Lookup("query").Document()
		assert.Equal(t, string(StatusPending), q.Lookup("status").StringValue())
	})

	mt.Run("missing handover is not found", func(mt *mtest.T) {
		repo := &HandoverRepository{collection: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
		)

		_, err := repo.Decide(ctx, primitive.NewObjectID().Hex(), decision)
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})

	mt.Run("already decided handover is a conflict", func(mt *mtest.T) {
		repo := &HandoverRepository{collection: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
				{Key: "_id", Value: id},
				{Key: "status", Value: "Rejected"},
			}),
		)

		_, err := repo.Decide(ctx, id.Hex(), decision)
		assert.True(t, core.IsConflict(err), "got %v", err)
		assert.Contains(t, err.Error(), "Rejected")
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		repo := &HandoverRepository{collection: mt.Coll}
		_, err := repo.Decide(ctx, "nope", decision)
		assert.True(t, core.IsNotFound(err))
	})
}
