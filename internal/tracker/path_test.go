package tracker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathRecorder_SampleGating(t *testing.T) {
	t.Parallel()
	r := NewPathRecorder()

	assert.False(t, r.Sample(false, NewPosition(1, 0, 0)))
	assert.Equal(t, 0, r.Len())

	assert.True(t, r.Sample(true, NewPosition(1, 0, 0)))
	assert.True(t, r.Sample(true, NewPosition(1, 0, 0)))
	assert.Equal(t, 2, r.Len())
}

func TestPathRecorder_Flush(t *testing.T) {
	t.Parallel()
	r := NewPathRecorder()

	empty := r.Flush()
	require.NotNil(t, empty)
	assert.Empty(t, empty)

	r.Sample(true, NewPosition(1, 2, 3))
	r.Sample(true, NewPosition(4, 5, 6))
	path := r.Flush()

	assert.Equal(t, []Position{NewPosition(1, 2, 3), NewPosition(4, 5, 6)}, path)
	assert.Equal(t, 0, r.Len())

	// The flushed slice must not be reused by later samples.
	r.Sample(true, NewPosition(7, 8, 9))
	assert.Equal(t, NewPosition(1, 2, 3), path[0])
}

func TestPathRecorder_PathIsCopy(t *testing.T) {
	t.Parallel()
	r := NewPathRecorder()
	r.Sample(true, NewPosition(1, 1, 1))

	p := r.Path()
	p[0] = NewPosition(9, 9, 9)
	assert.Equal(t, NewPosition(1, 1, 1), r.Path()[0])
}

func TestSetLogWriters(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	tr := New(DefaultConfig(), nil)
	tr.OnPose(NewPosition(0, 0, 0))
	tr.OnGoalStatus([]StatusCode{CodeMoving})
	tr.OnTick()
	tr.OnGoalStatus(nil)

	assert.True(t, strings.Contains(diag.String(), "following new goal 1"), diag.String())
	assert.True(t, strings.Contains(trace.String(), "recorded"), trace.String())
	assert.True(t, strings.Contains(ops.String(), "no entries"), ops.String())
	assert.True(t, strings.HasPrefix(ops.String(), "[tracker] "))
}
