package tracking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_MarkAndCheck(t *testing.T) {
	ctx := WithRecorder(context.Background())

	assert.False(t, IsRecorded(ctx, "prod-1", nil))

	MarkRecorded(ctx, "prod-1", nil)
	assert.True(t, IsRecorded(ctx, "prod-1", nil))

	// Different item, same context.
	assert.False(t, IsRecorded(ctx, "prod-2", nil))
}

func TestRecorder_VariationDistinctFromProduct(t *testing.T) {
	ctx := WithRecorder(context.Background())
	varID := "var-1"

	MarkRecorded(ctx, "prod-1", &varID)

	assert.True(t, IsRecorded(ctx, "prod-1", &varID))
	assert.False(t, IsRecorded(ctx, "prod-1", nil))
}

func TestRecorder_NotSharedAcrossContexts(t *testing.T) {
	ctx1 := WithRecorder(context.Background())
	ctx2 := WithRecorder(context.Background())

	MarkRecorded(ctx1, "prod-1", nil)

	assert.True(t, IsRecorded(ctx1, "prod-1", nil))
	assert.False(t, IsRecorded(ctx2, "prod-1", nil))
}

func TestRecorder_NoRecorderInContext(t *testing.T) {
	ctx := context.Background()

	// MarkRecorded without a recorder must not panic, and nothing is recorded.
	MarkRecorded(ctx, "prod-1", nil)
	assert.False(t, IsRecorded(ctx, "prod-1", nil))
}

func TestWithRecorder_Idempotent(t *testing.T) {
	ctx := WithRecorder(context.Background())
	MarkRecorded(ctx, "prod-1", nil)

	// A second WithRecorder keeps the existing recorder.
	ctx2 := WithRecorder(ctx)
	assert.True(t, IsRecorded(ctx2, "prod-1", nil))
}
