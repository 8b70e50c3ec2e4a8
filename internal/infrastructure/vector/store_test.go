package vector

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProjectFilter(t *testing.T) {
	// 空项目 ID 不构建过滤条件
	assert.Nil(t, buildProjectFilter(""))

	filter := buildProjectFilter("proj-1")
	require.NotNil(t, filter)
	assert.Len(t, filter.Must, 1)
}

func TestExtractStringValue(t *testing.T) {
	assert.Equal(t, "", extractStringValue(nil))

	val := &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: "proj-1"}}
	assert.Equal(t, "proj-1", extractStringValue(val))

	intVal := &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: 42}}
	assert.Equal(t, "", extractStringValue(intVal))
}

func TestScoredPointToHit(t *testing.T) {
	point := &qdrant.ScoredPoint{
		Id:    qdrant.NewID("11111111-2222-3333-4444-555555555555"),
		Score: 0.87,
		Payload: map[string]*qdrant.Value{
			"project_id": {Kind: &qdrant.Value_StringValue{StringValue: "proj-1"}},
			"task_id":    {Kind: &qdrant.Value_StringValue{StringValue: "task-1"}},
			"text":       {Kind: &qdrant.Value_StringValue{StringValue: "登录接口已完成"}},
		},
	}

	hit := scoredPointToHit(point)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", hit.ID)
	assert.Equal(t, float32(0.87), hit.Score)
	assert.Equal(t, "proj-1", hit.ProjectID)
	assert.Equal(t, "task-1", hit.TaskID)
	assert.Equal(t, "登录接口已完成", hit.Text)
}
