package engine

import (
	"sync"
	"time"

	"github.com/elijahnyp/presence_controller/util"
)

// switch snap-back delay for non-stateful trigger switches
const switchResetDelay = time.Second

// Notifier receives signal value changes.  The engine calls it from the event
// loop, so implementations must not call back into the engine synchronously.
type Notifier interface {
	Update(name string, value bool)
}

type TriggerSpec struct {
	Name  string
	Delay time.Duration
}

type GroupConfig struct {
	Name           string
	Mode           string // util.MODE_SINGLE, util.MODE_DUAL, or util.MODE_FANOUT
	Stateful       bool
	MotionDelay    time.Duration
	OccupancyDelay time.Duration
	Triggers       []TriggerSpec // fanout mode only
}

type signal struct {
	name    string
	value   bool
	pending *pendingDecay
}

type pendingDecay struct {
	timer Timer
	at    time.Time
}

type fanoutTrigger struct {
	delay     time.Duration
	occupancy *signal
}

type group struct {
	name           string
	mode           string
	stateful       bool
	motionDelay    time.Duration
	occupancyDelay time.Duration

	trigger    *signal // the trigger switch itself
	occTrigger *signal // dual mode only
	motion     *signal // single/dual
	occupancy  *signal // single/dual
	fanout     []*fanoutTrigger
}

func (g *group) signals() []*signal {
	sigs := []*signal{g.trigger}
	if g.occTrigger != nil {
		sigs = append(sigs, g.occTrigger)
	}
	if g.motion != nil {
		sigs = append(sigs, g.motion)
	}
	if g.occupancy != nil {
		sigs = append(sigs, g.occupancy)
	}
	for _, ft := range g.fanout {
		sigs = append(sigs, ft.occupancy)
	}
	return sigs
}

// Engine owns the presence groups and serializes every mutation - trigger
// handling and timer firings alike - on a single event loop goroutine.  That
// serialization is what makes cancel-then-reschedule safe without locks: a
// timer firing that raced a cancellation is detected by handle identity in
// decayFired and dropped.
type Engine struct {
	groups   []*group
	byName   map[string]*group
	notify   Notifier
	sched    Scheduler
	events   chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewEngine builds an engine from normalized group configs.  A nil scheduler
// means wall-clock timers.  Call Start before sending triggers.
func NewEngine(configs []GroupConfig, notify Notifier, sched Scheduler) *Engine {
	if sched == nil {
		sched = NewClockScheduler()
	}
	e := &Engine{
		byName: make(map[string]*group),
		notify: notify,
		sched:  sched,
		events: make(chan func(), 16),
		done:   make(chan struct{}),
	}
	for _, cfg := range configs {
		if _, dup := e.byName[cfg.Name]; dup {
			util.Logger.Warn().Msgf("duplicate group %s - keeping first definition", cfg.Name)
			continue
		}
		g := newGroup(cfg)
		e.groups = append(e.groups, g)
		e.byName[g.name] = g
	}
	return e
}

func newGroup(cfg GroupConfig) *group {
	g := &group{
		name:           cfg.Name,
		mode:           cfg.Mode,
		stateful:       cfg.Stateful,
		motionDelay:    cfg.MotionDelay,
		occupancyDelay: cfg.OccupancyDelay,
		trigger:        &signal{name: cfg.Name + "/trigger"},
	}
	switch cfg.Mode {
	case util.MODE_FANOUT:
		for _, t := range cfg.Triggers {
			g.fanout = append(g.fanout, &fanoutTrigger{
				delay:     t.Delay,
				occupancy: &signal{name: cfg.Name + "/" + t.Name + "/occupancy"},
			})
		}
	default:
		g.motion = &signal{name: cfg.Name + "/motion"}
		g.occupancy = &signal{name: cfg.Name + "/occupancy"}
		if cfg.Mode == util.MODE_DUAL {
			g.occTrigger = &signal{name: cfg.Name + "/occupancy_trigger"}
		}
	}
	return g
}

func (e *Engine) Start() {
	go e.loop()
}

// Stop ends the event loop.  Timers still armed may fire afterwards; their
// callbacks are dropped at the enqueue gate.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

func (e *Engine) loop() {
	for {
		select {
		case fn := <-e.events:
			fn()
		case <-e.done:
			return
		}
	}
}

func (e *Engine) enqueue(fn func()) {
	select {
	case e.events <- fn:
	case <-e.done:
	}
}

// HandleTrigger delivers an external set of a trigger switch.  channel is
// util.TRIGGER or util.OCCUPANCY_TRIGGER (the latter only for dual groups).
func (e *Engine) HandleTrigger(name string, channel int, on bool) {
	e.enqueue(func() {
		g, ok := e.byName[name]
		if !ok {
			util.Logger.Warn().Msgf("trigger for unknown group %s", name)
			return
		}
		util.Logger.Debug().Msgf("group %s: channel %d set %v", name, channel, on)
		switch {
		case channel == util.TRIGGER && g.mode == util.MODE_FANOUT:
			if on {
				e.fanoutFire(g)
			} else {
				e.fanoutOff(g)
			}
		case channel == util.TRIGGER:
			if on {
				e.triggerOn(g)
			} else {
				e.triggerOff(g)
			}
		case channel == util.OCCUPANCY_TRIGGER && g.mode == util.MODE_DUAL:
			if on {
				e.occupancyOn(g)
			} else {
				e.occupancyOff(g)
			}
		default:
			util.Logger.Warn().Msgf("group %s: no channel %d", name, channel)
		}
	})
}

/* ***************************************
Trigger state machine
*/

func (e *Engine) triggerOn(g *group) {
	e.cancelDecay(g.motion)
	e.cancelDecay(g.occupancy)
	e.set(g.motion, true)
	e.set(g.occupancy, true)
	e.cancelDecay(g.trigger)
	e.set(g.trigger, true)
	if !g.stateful {
		e.scheduleDecay(g.trigger, switchResetDelay)
	}
}

func (e *Engine) triggerOff(g *group) {
	e.cancelDecay(g.trigger)
	e.set(g.trigger, false)
	e.scheduleDecay(g.motion, g.motionDelay)
	e.scheduleDecay(g.occupancy, g.occupancyDelay)
}

func (e *Engine) occupancyOn(g *group) {
	e.cancelDecay(g.occupancy)
	e.set(g.occupancy, true)
	e.cancelDecay(g.occTrigger)
	e.set(g.occTrigger, true)
	if !g.stateful {
		e.scheduleDecay(g.occTrigger, switchResetDelay)
	}
}

// occupancyOff pre-empts motion: the motion signal and its armed trigger
// switch both drop immediately instead of waiting out the motion decay.
func (e *Engine) occupancyOff(g *group) {
	e.cancelDecay(g.occTrigger)
	e.set(g.occTrigger, false)
	e.scheduleDecay(g.occupancy, g.occupancyDelay)
	e.cancelDecay(g.motion)
	e.set(g.motion, false)
	e.cancelDecay(g.trigger)
	e.set(g.trigger, false)
}

func (e *Engine) fanoutFire(g *group) {
	for _, ft := range g.fanout {
		e.cancelDecay(ft.occupancy)
		e.set(ft.occupancy, true)
		e.scheduleDecay(ft.occupancy, ft.delay)
	}
	e.cancelDecay(g.trigger)
	e.set(g.trigger, true)
	// the shared switch always snaps back, stateful or not
	e.scheduleDecay(g.trigger, switchResetDelay)
}

func (e *Engine) fanoutOff(g *group) {
	// no trigger-off semantics in fanout mode - just settle the switch state
	e.cancelDecay(g.trigger)
	e.set(g.trigger, false)
}

/* ***************************************
Decay timer management
*/

func (e *Engine) scheduleDecay(s *signal, delay time.Duration) {
	e.cancelDecay(s)
	if delay < 0 {
		delay = 0
	}
	d := &pendingDecay{at: time.Now().Add(delay)}
	s.pending = d
	d.timer = e.sched.Schedule(delay, func() {
		e.enqueue(func() { e.decayFired(s, d) })
	})
}

func (e *Engine) cancelDecay(s *signal) {
	if s.pending == nil {
		return
	}
	s.pending.timer.Cancel()
	s.pending = nil
}

func (e *Engine) decayFired(s *signal, d *pendingDecay) {
	if s.pending != d {
		// cancelled or rescheduled while the firing was in flight
		return
	}
	s.pending = nil
	util.Logger.Debug().Msgf("signal %s decayed", s.name)
	e.set(s, false)
}

func (e *Engine) set(s *signal, value bool) {
	s.value = value
	if e.notify != nil {
		e.notify.Update(s.name, value)
	}
}

/* ***************************************
Snapshots
*/

type SignalState struct {
	Name    string    `json:"name"`
	Value   bool      `json:"value"`
	Pending bool      `json:"pending_decay"`
	DecayAt time.Time `json:"decay_at"`
}

type GroupState struct {
	Name    string        `json:"name"`
	Mode    string        `json:"mode"`
	Signals []SignalState `json:"signals"`
}

// Snapshot returns the current state of every group.  It round-trips through
// the event loop so it observes a consistent point between handlers.  Returns
// nil after Stop.
func (e *Engine) Snapshot() []GroupState {
	reply := make(chan []GroupState, 1)
	e.enqueue(func() { reply <- e.snapshot() })
	select {
	case snap := <-reply:
		return snap
	case <-e.done:
		return nil
	}
}

func (e *Engine) snapshot() []GroupState {
	snap := make([]GroupState, 0, len(e.groups))
	for _, g := range e.groups {
		gs := GroupState{Name: g.name, Mode: g.mode}
		for _, s := range g.signals() {
			ss := SignalState{Name: s.name, Value: s.value}
			if s.pending != nil {
				ss.Pending = true
				ss.DecayAt = s.pending.at
			}
			gs.Signals = append(gs.Signals, ss)
		}
		snap = append(snap, gs)
	}
	return snap
}

// PendingDecays counts signals with an armed decay timer across all groups.
func (e *Engine) PendingDecays() int {
	count := 0
	for _, gs := range e.Snapshot() {
		for _, ss := range gs.Signals {
			if ss.Pending {
				count++
			}
		}
	}
	return count
}
