package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	s.Set("sensors/temp", 42)
	v, ok := s.Get("sensors/temp")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	s := New()
	_, ok := s.Get("does/not/exist")
	if ok {
		t.Error("expected missing path to report ok=false")
	}
}

func TestAncestorSubscriberSeesDescendantChange(t *testing.T) {
	s := New()
	var got []ChangeEvent
	s.Subscribe("sensors", DefaultSubscribeOptions(), func(events []ChangeEvent) {
		got = append(got, events...)
	})
	s.Set("sensors/room1/temp", 20)

	require.Len(t, got, 1)
	assert.Equal(t, "sensors/room1/temp", got[0].Path)
	assert.Equal(t, 20, got[0].New)
}

func TestNonRecursiveSubscriberIgnoresDescendants(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe("sensors", SubscribeOptions{Recursive: false}, func(events []ChangeEvent) {
		calls++
	})
	s.Set("sensors/room1/temp", 20)
	assert.Equal(t, 0, calls)

	s.Set("sensors", "direct")
	assert.Equal(t, 1, calls)
}

func TestGroupBatchesUntilOutermostClose(t *testing.T) {
	s := New()
	var batches [][]ChangeEvent
	s.Subscribe("a", DefaultSubscribeOptions(), func(events []ChangeEvent) {
		batches = append(batches, events)
	})

	outer := s.Group("test", true)
	inner := outer.Group("", true)
	inner.Set("a/x", 1)
	inner.Set("a/y", 2)
	assert.Empty(t, batches, "no flush until outermost scope closes")
	inner.Close()
	assert.Empty(t, batches, "inner close is not the outermost")
	outer.Close()

	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestGroupNotifyFalseSuppressesDescendantEvents(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe("a", DefaultSubscribeOptions(), func(events []ChangeEvent) {
		calls++
	})

	outer := s.Group("test", true)
	inner := outer.Group("", false)
	inner.Set("a/x", 1)
	inner.Close()
	outer.Close()

	assert.Equal(t, 0, calls, "events created under a notify=false scope are dropped, not just delayed")
}

func TestIgnoreSourceFiltersMatchingWrites(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe("a", SubscribeOptions{Recursive: true, IgnoreSource: "self"}, func(events []ChangeEvent) {
		calls++
	})

	sc := s.Group("self", true)
	sc.Set("a/x", 1)
	sc.Close()
	assert.Equal(t, 0, calls)

	sc2 := s.Group("other", true)
	sc2.Set("a/x", 2)
	sc2.Close()
	assert.Equal(t, 1, calls)
}

func TestExcludeFiltersMatchingPaths(t *testing.T) {
	s := New()
	var got []ChangeEvent
	s.Subscribe("a", SubscribeOptions{Recursive: true, Exclude: []string{"a/secret"}}, func(events []ChangeEvent) {
		got = append(got, events...)
	})

	s.Set("a/secret", 1)
	assert.Empty(t, got, "excluded subtree must not notify")

	s.Set("a/secret/nested", 2)
	assert.Empty(t, got, "exclude applies to descendants of the excluded path too")

	s.Set("a/visible", 3)
	require.Len(t, got, 1)
	assert.Equal(t, "a/visible", got[0].Path)
}

func TestExcludeAppliesToExactSubscriptionPath(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe("a", SubscribeOptions{Recursive: true, Exclude: []string{"a"}}, func(events []ChangeEvent) {
		calls++
	})

	s.Set("a", "direct")
	assert.Equal(t, 0, calls, "exclude must be honored even for an event matching the subscription path itself")

	s.Set("a/child", 1)
	assert.Equal(t, 1, calls)
}

func TestSetSameValueDoesNotNotify(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe("a", DefaultSubscribeOptions(), func(events []ChangeEvent) {
		calls++
	})

	s.Set("a/x", 1)
	assert.Equal(t, 1, calls)
	s.Set("a/x", 1)
	assert.Equal(t, 1, calls, "re-setting an unchanged value must not notify")
	s.Set("a/x", 2)
	assert.Equal(t, 2, calls)
}

func TestAppendedNilValueDoesNotNotify(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe("items", DefaultSubscribeOptions(), func(events []ChangeEvent) {
		calls++
	})

	s.At("items").Nav("#")
	assert.Equal(t, 0, calls, "a freshly created node's implicit nil value must not notify")
}

func TestAppendAssignsIncreasingIndices(t *testing.T) {
	s := New()
	p0 := s.Append("queue")
	p1 := s.Append("queue")
	assert.Equal(t, "queue/#0", p0)
	assert.Equal(t, "queue/#1", p1)
}

func TestChildrenSorted(t *testing.T) {
	s := New()
	s.Set("a/z", 1)
	s.Set("a/b", 2)
	s.Set("a/m", 3)
	got := s.Children("a")
	want := []string{"b", "m", "z"}
	assert.Equal(t, want, got)
}

func TestRemoveDeletesSubtree(t *testing.T) {
	s := New()
	s.Set("a/b/c", 1)
	s.Remove("a/b")
	_, ok := s.Get("a/b/c")
	assert.False(t, ok)
}

func TestCursorNavAppendAndLastCreated(t *testing.T) {
	s := New()
	root := s.At("items")
	first := root.Nav("#")
	second := root.Nav("#")
	assert.Equal(t, "items/#0", first.Path())
	assert.Equal(t, "items/#1", second.Path())

	last := root.Nav(".")
	assert.Equal(t, "items/#1", last.Path())
}

func TestCursorNavPrefixedLastCreated(t *testing.T) {
	s := New()
	root := s.At("jobs")
	root.Nav("worker#")
	root.Nav("worker#")
	last := root.Nav("worker.")
	assert.Equal(t, "jobs/worker#1", last.Path())
}

func TestSubtreeDumpNested(t *testing.T) {
	s := New()
	s.Set("a/b", 1)
	s.Set("a/c", 2)
	dump := s.At("a").Dump()
	assert.Equal(t, 1, dump["b"])
	assert.Equal(t, 2, dump["c"])
}
