package catalyst

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktonic/tasktonic/pkg/ledger"
	"github.com/tasktonic/tasktonic/pkg/tonic"
)

func TestEnqueueRunsInFIFOOrder(t *testing.T) {
	l := ledger.New()
	c, err := NewMain(l, nil, nil)
	require.NoError(t, err)
	c.RunAsync()
	defer c.Stop()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		c.Enqueue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 5
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestExtraSparklesDrainLIFO(t *testing.T) {
	l := ledger.New()
	c, err := NewMain(l, nil, nil)
	require.NoError(t, err)
	c.RunAsync()
	defer c.Stop()

	var mu sync.Mutex
	var order []string
	record := func(label string) func() {
		return func() {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
		}
	}

	c.Enqueue(func() {
		mu.Lock()
		order = append(order, "main")
		mu.Unlock()
		c.PushExtra(record("a"))
		c.PushExtra(record("b"))
		c.PushExtra(record("c"))
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 4
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"main", "c", "b", "a"}, order)
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	l := ledger.New()
	c, err := NewMain(l, nil, nil)
	require.NoError(t, err)
	c.RunAsync()
	defer c.Stop()

	var mu sync.Mutex
	var fired []string

	second, err := c.NewTimer("second", nil, OneShot, 0, nil)
	require.NoError(t, err)
	second.callback = func() {
		mu.Lock()
		fired = append(fired, "second")
		mu.Unlock()
	}

	first, err := c.NewTimer("first", nil, OneShot, 0, nil)
	require.NoError(t, err)
	first.callback = func() {
		mu.Lock()
		fired = append(fired, "first")
		mu.Unlock()
	}

	second.Start(40 * time.Millisecond)
	first.Start(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, fired)
}

func TestRepeatingTimerRearmsAfterFire(t *testing.T) {
	l := ledger.New()
	c, err := NewMain(l, nil, nil)
	require.NoError(t, err)
	c.RunAsync()
	defer c.Stop()

	var count int
	var mu sync.Mutex
	tm, err := c.NewTimer("tick", nil, Repeating, 10*time.Millisecond, nil)
	require.NoError(t, err)
	tm.callback = func() {
		mu.Lock()
		count++
		mu.Unlock()
	}
	tm.Start(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 3
	}, time.Second, time.Millisecond)
	tm.Stop()
}

func TestPauseResumeUsesRemainingDelay(t *testing.T) {
	l := ledger.New()
	c, err := NewMain(l, nil, nil)
	require.NoError(t, err)
	c.RunAsync()
	defer c.Stop()

	var mu sync.Mutex
	fired := false
	tm, err := c.NewTimer("pausable", nil, Pausing, 50*time.Millisecond, nil)
	require.NoError(t, err)
	tm.callback = func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	}
	tm.Start(50 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	tm.Pause()
	assert.Greater(t, tm.resumeDelay, time.Duration(0))
	assert.LessOrEqual(t, tm.resumeDelay, 50*time.Millisecond)

	// While paused, it must not fire even after its original deadline
	// would have passed.
	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	assert.False(t, fired)
	mu.Unlock()

	tm.Resume()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired
	}, time.Second, time.Millisecond)
}

func TestMainCatalystFinishesWhenFleetEmpties(t *testing.T) {
	l := ledger.New()
	c, err := NewMain(l, nil, nil)
	require.NoError(t, err)

	tn, err := c.Spawn("only", nil, tonic.NewHandlers(), nil)
	require.NoError(t, err)

	shutdown := c.Registry().Subscribe()

	go c.Run()
	tn.Finish()

	select {
	case <-shutdown:
	case <-time.After(time.Second):
		t.Fatal("registry never broadcast shutdown after last fleet member finished")
	}
	assert.True(t, c.Finished())
}

func TestSpawnBindsAndUnbindsFleet(t *testing.T) {
	l := ledger.New()
	c, err := NewMain(l, nil, nil)
	require.NoError(t, err)

	tn, err := c.Spawn("worker", nil, tonic.NewHandlers(), nil)
	require.NoError(t, err)

	c.mu.Lock()
	_, bound := c.fleet[tn.ID()]
	c.mu.Unlock()
	assert.True(t, bound)

	tn.Finish()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, stillBound := c.fleet[tn.ID()]
		return !stillBound
	}, time.Second, time.Millisecond)
}
