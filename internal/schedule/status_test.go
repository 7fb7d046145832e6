package schedule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "taken", want: StatusTaken},
		{in: "Taken", want: StatusTaken},
		{in: "Handed Over", want: StatusHandedOver},
		{in: "handed_over", want: StatusHandedOver},
		{in: "handed-over", want: StatusHandedOver},
		{in: "window_open", want: StatusWindowOpen},
		{in: " Window-Open ", want: StatusWindowOpen},
		{in: "HANDOVER", want: StatusHandover},
		{in: "done", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestStatus_boundaryNormalization(t *testing.T) {
	var payload struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"Handed Over"}`), &payload))
	assert.Equal(t, StatusHandedOver, payload.Status)

	require.NoError(t, json.Unmarshal([]byte(`{"status":""}`), &payload))
	assert.Equal(t, Status(""), payload.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"whatever"}`), &payload))

	out, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{StatusHandedOver})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"handed over"}`, string(out))

	var doc struct {
		Status Status `bson:"status"`
	}
	raw, err := bson.Marshal(bson.M{"status": "Taken"})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, StatusTaken, doc.Status)

	raw, err = bson.Marshal(bson.M{"status": "legacy-value"})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, Status("legacy-value"), doc.Status)
	assert.False(t, doc.Status.Valid())
}
