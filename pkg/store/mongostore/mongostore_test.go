package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/store"
	"github.com/harrisonrobin/taskpilot/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	uri := os.Getenv("TASKPILOT_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TASKPILOT_TEST_MONGODB_URI not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := Open(ctx, Config{URI: uri, Database: "taskpilot_test", Collection: "tasks_" + uuid.NewString()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.coll.Drop(context.Background()) })
		return s
	})
}

func TestOpenRequiresURI(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestFilterDoc(t *testing.T) {
	q := filterDoc(store.Filter{
		Statuses: []model.Status{model.StatusNotStarted},
		Assignee: "ana",
		DueTo:    "2025-04-30",
	})
	assert.Equal(t, bson.M{"$in": []model.Status{model.StatusNotStarted}}, q["status"])
	assert.Equal(t, "ana", q["assignee"])
	assert.Equal(t, bson.M{"$gt": "", "$lte": "2025-04-30"}, q["due_date"])
	assert.NotContains(t, q, "category")

	assert.Empty(t, filterDoc(store.Filter{}))
}

func TestUpdatePipelineOnlyTouchesGivenFields(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	p := updatePipeline(store.Update{AddHours: 2, At: at})
	require.Len(t, p, 1)
	set := p[0][0].Value.(bson.D)
	keys := make([]string, 0, len(set))
	for _, e := range set {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"last_updated", "actual_hours"}, keys)

	status := model.StatusCompleted
	p = updatePipeline(store.Update{Status: &status, At: at})
	set = p[0][0].Value.(bson.D)
	keys = keys[:0]
	for _, e := range set {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"last_updated", "status", "completion_date"}, keys)
}
