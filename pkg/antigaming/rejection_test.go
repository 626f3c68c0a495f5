package antigaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectionTracker_NoBadFaithBelowThreshold(t *testing.T) {
	tr := NewRejectionTracker()
	status := tr.RecordRejection("a", "cp", 0, 0.6)
	assert.False(t, status.BadFaithDetected)
	status = tr.RecordRejection("a", "cp", 1, 0.6)
	assert.False(t, status.BadFaithDetected)
}

func TestRejectionTracker_BadFaithAtThreeRejectionsWithBidGap(t *testing.T) {
	tr := NewRejectionTracker()
	tr.RecordRejection("a", "cp", 0, 0.6)
	tr.RecordRejection("a", "cp", 1, 0.6)
	status := tr.RecordRejection("a", "cp", 2, 0.6)

	assert.True(t, status.BadFaithDetected)
	assert.Equal(t, "BAD_FAITH_BIDDING", status.Flag)
	assert.Greater(t, status.PenaltyMultiplier, 1.0)
}

func TestRejectionTracker_SmallBidGapDoesNotCount(t *testing.T) {
	tr := NewRejectionTracker()
	tr.RecordRejection("a", "cp", 0, 0.1)
	tr.RecordRejection("a", "cp", 1, 0.1)
	status := tr.RecordRejection("a", "cp", 2, 0.1)
	assert.False(t, status.BadFaithDetected)
}

func TestRejectionTracker_WindowExpires(t *testing.T) {
	tr := NewRejectionTracker()
	tr.RecordRejection("a", "cp", 0, 0.6)
	tr.RecordRejection("a", "cp", 1, 0.6)
	status := tr.RecordRejection("a", "cp", rejectionWindowMs+2, 0.6)
	assert.False(t, status.BadFaithDetected)
}

func TestRejectionTracker_IsolatedByPair(t *testing.T) {
	tr := NewRejectionTracker()
	tr.RecordRejection("a", "cp1", 0, 0.6)
	tr.RecordRejection("a", "cp1", 1, 0.6)
	status := tr.RecordRejection("a", "cp2", 2, 0.6)
	assert.False(t, status.BadFaithDetected)
}

func TestRejectionTracker_StatusDoesNotRecord(t *testing.T) {
	tr := NewRejectionTracker()
	tr.RecordRejection("a", "cp", 0, 0.6)
	before := tr.Status("a", "cp", 1)
	after := tr.Status("a", "cp", 1)
	assert.Equal(t, before, after)
}
