package clock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingListener tracks every desired-tick horizon it was asked to
// reach and how far Execute actually advanced it, so tests can assert the
// clock converges listeners to the right tick before firing events.
type recordingListener struct {
	tick, desired Tick
	executedAt    []Tick
	advancedBy    []Tick
}

func (l *recordingListener) Execute() {
	l.tick = l.desired
	l.executedAt = append(l.executedAt, l.tick)
}

func (l *recordingListener) SetDesiredTicks(t Tick) { l.desired = t }

func (l *recordingListener) AdvanceClock(t Tick) {
	l.tick -= t
	l.desired -= t
	l.advancedBy = append(l.advancedBy, t)
}

func (l *recordingListener) ResetClock() {
	l.tick, l.desired = 0, 0
}

func TestExecuteRunsListenersUpToEachEventBoundary(t *testing.T) {
	c := New()
	l := &recordingListener{}
	c.AddListener(l)

	var fired []Tick
	c.AddEvent(func(_ any, tick Tick) { fired = append(fired, tick) }, nil, 50)
	c.Execute(100)

	require.Equal(t, []Tick{50, 100}, l.executedAt, "listener should converge at the event tick, then the target tick")
	require.Equal(t, []Tick{50}, fired)
	require.Equal(t, Tick(100), c.DesiredTicks())
}

func TestEventsAtSameTickFireInInsertionOrder(t *testing.T) {
	c := New()
	c.AddListener(&recordingListener{})

	var order []string
	c.AddEvent(func(_ any, _ Tick) { order = append(order, "first") }, nil, 10)
	c.AddEvent(func(_ any, _ Tick) { order = append(order, "second") }, nil, 10)
	c.Execute(10)

	require.Equal(t, []string{"first", "second"}, order)
}

func TestEventReinsertedDuringExecuteFiresInSamePass(t *testing.T) {
	c := New()
	c.AddListener(&recordingListener{})

	var order []string
	c.AddEvent(func(_ any, tick Tick) {
		order = append(order, "outer")
		c.AddEvent(func(_ any, _ Tick) { order = append(order, "inner") }, nil, tick)
	}, nil, 5)
	c.Execute(20)

	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestAddEventBeforeDesiredTickPullsHorizonBack(t *testing.T) {
	c := New()
	l := &recordingListener{}
	c.AddListener(l)

	c.AddEvent(func(_ any, _ Tick) {}, nil, 100)
	c.Execute(100)
	require.Equal(t, Tick(100), c.DesiredTicks())

	// A listener reacting to that event schedules one behind the current
	// horizon; the clock must re-converge before continuing.
	c.AddEvent(func(_ any, _ Tick) {}, nil, 40)
	require.Equal(t, Tick(40), c.DesiredTicks())
}

func TestAdvanceRebasesEventsAndListeners(t *testing.T) {
	c := New()
	l := &recordingListener{}
	c.AddListener(l)

	c.AddEvent(func(_ any, _ Tick) {}, nil, 200)
	c.Execute(100)
	c.Advance()

	require.Equal(t, Tick(0), c.targetTicks)
	require.Equal(t, Tick(0), c.desiredTicks)
	require.Equal(t, []Tick{100}, l.advancedBy)
	require.Equal(t, []Tick{100}, c.pendingTicks())
}

func TestResetClearsEventsAndListeners(t *testing.T) {
	c := New()
	l := &recordingListener{}
	c.AddListener(l)
	c.AddEvent(func(_ any, _ Tick) {}, nil, 10)

	c.Reset()

	require.Empty(t, c.pendingTicks())
	require.Equal(t, Tick(0), c.desiredTicks)
	require.Equal(t, Tick(0), l.tick)
}

func TestRemoveListenerStopsFurtherExecute(t *testing.T) {
	c := New()
	l := &recordingListener{}
	c.AddListener(l)
	c.RemoveListener(l)

	c.Execute(10)

	require.Empty(t, l.executedAt, "a removed listener must not be driven by Execute")
}
