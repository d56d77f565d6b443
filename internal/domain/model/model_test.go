package model

import "testing"

func TestValidSegment(t *testing.T) {
	for _, s := range SegmentNames {
		if !ValidSegment(s) {
			t.Errorf("expected %q to be a valid segment", s)
		}
	}
	for _, s := range []string{"", "FAJR", "night", "tahajjud"} {
		if ValidSegment(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestDailyBucketClone(t *testing.T) {
	b := NewDailyBucket("u1", "2025-01-01")
	b.Segments[SegmentFajr] = 3
	b.Total = 3

	c := b.Clone()
	c.Segments[SegmentFajr] = 99

	if b.Segments[SegmentFajr] != 3 {
		t.Error("clone should not share the segments map")
	}
}

func TestDailyBucketSumSegments(t *testing.T) {
	b := NewDailyBucket("u1", "2025-01-01")
	b.Segments[SegmentFajr] = 2
	b.Segments[SegmentIsha] = 5

	if got := b.SumSegments(); got != 7 {
		t.Errorf("expected sum 7, got %d", got)
	}
}

func TestSessionOpen(t *testing.T) {
	s := Session{ID: "s1"}
	if !s.Open() {
		t.Error("session without EndedAt should be open")
	}
}

func TestGoalCompleted(t *testing.T) {
	g := Goal{Status: GoalActive}
	if g.Completed() {
		t.Error("active goal should not report completed")
	}
	g.Status = GoalCompleted
	if !g.Completed() {
		t.Error("completed goal should report completed")
	}
}
