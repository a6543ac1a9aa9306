package observer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/lidarfusion/internal/fusion"
	"github.com/banshee-data/lidarfusion/internal/timeutil"
)

// flushTimeout bounds how long a threaded observer's queue worker waits to
// drain on stop, per spec.md §4.8.
const flushTimeout = 2 * time.Second

// Observer is the C8 trait every concrete report target implements:
// lifecycle hooks plus the per-object report used by the bus fan-out.
type Observer interface {
	Start() error
	Stop() error
	Stall() error
	Resume() error
	Observe(ctx context.Context, event string, o *fusion.TrackedObject, now time.Time)
	Reset()
	Report() string
}

// SchemeObserver is one scheme-driven sink: it renders lines through a
// Scheme for each lifecycle event, gates by Regions, filters fields by a
// FieldFilter, and writes the result to a MessageSink. It is the concrete
// Observer the bus almost always wraps.
type SchemeObserver struct {
	Name   string
	sink   MessageSink
	scheme *Scheme
	filter *FieldFilter
	regions []*Region

	mu     sync.Mutex
	states map[string]*objectState // object id -> last-seen field values
	stalled bool
}

// NewSchemeObserver builds an observer with an already-parsed scheme,
// filter, and zero or more gating regions.
func NewSchemeObserver(name string, sink MessageSink, scheme *Scheme, filter *FieldFilter, regions ...*Region) *SchemeObserver {
	return &SchemeObserver{
		Name:    name,
		sink:    sink,
		scheme:  scheme,
		filter:  filter,
		regions: regions,
		states:  map[string]*objectState{},
	}
}

func (o *SchemeObserver) Start() error { return nil }
func (o *SchemeObserver) Stop() error  { return o.sink.Close() }

func (o *SchemeObserver) Stall() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stalled = true
	return nil
}

func (o *SchemeObserver) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stalled = false
	return nil
}

func (o *SchemeObserver) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = map[string]*objectState{}
}

func (o *SchemeObserver) Report() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Name
}

// Observe applies field filtering, region gating, and the scheme's firing
// rule, then writes any rendered lines to the sink.
func (o *SchemeObserver) Observe(ctx context.Context, event string, obj *fusion.TrackedObject, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stalled {
		return
	}

	if len(o.regions) > 0 {
		inAny := false
		for _, r := range o.regions {
			if r.Update(obj.ID, obj.Pos, now) {
				inAny = true
			}
		}
		if !inAny {
			return
		}
	}

	st, ok := o.states[obj.ID]
	if !ok {
		st = &objectState{}
		o.states[obj.ID] = st
	}
	changed := st.update(obj, now)
	values := objectValues(obj, now)
	if o.filter != nil && len(o.filter.Fields()) > 0 {
		filtered := map[string]any{}
		for _, name := range o.filter.Fields() {
			if v, ok := values[name]; ok {
				filtered[o.filter.Alias(name)] = v
			}
		}
		values = filtered
	}

	force := event == SchemeObjectEnter || event == SchemeObjectLeave
	lines := o.scheme.Fire(event, values, changed, force)
	for _, line := range lines {
		if err := o.sink.Send(event, []byte(line+"\n")); err != nil {
			log.Printf("observer %s: send %s: %v", o.Name, event, err)
		}
	}
	if event == SchemeObjectLeave {
		delete(o.states, obj.ID)
	}
}

// queuedEvent is one Observe() call handed to a threaded observer's worker.
type queuedEvent struct {
	event string
	obj   *fusion.TrackedObject
	now   time.Time
}

// ThreadedObserver wraps an Observer with a bounded work queue drained by a
// dedicated goroutine, so a slow sink (a stalled socket, a full disk)
// cannot stall the tracker's frame loop. Per §4.8, stop() drains the queue
// for up to flushTimeout before giving up.
type ThreadedObserver struct {
	inner Observer
	clock timeutil.Clock

	queue  chan queuedEvent
	done   chan struct{}
	cancel context.CancelFunc
}

// NewThreadedObserver starts the queue worker immediately; depth bounds the
// number of pending events before Observe starts dropping them rather than
// blocking the caller.
func NewThreadedObserver(inner Observer, clock timeutil.Clock, depth int) *ThreadedObserver {
	ctx, cancel := context.WithCancel(context.Background())
	t := &ThreadedObserver{
		inner:  inner,
		clock:  clock,
		queue:  make(chan queuedEvent, depth),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go t.run(ctx)
	return t
}

func (t *ThreadedObserver) run(ctx context.Context) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-t.queue:
					t.inner.Observe(context.Background(), ev.event, ev.obj, ev.now)
				default:
					return
				}
			}
		case ev := <-t.queue:
			t.inner.Observe(ctx, ev.event, ev.obj, ev.now)
		}
	}
}

func (t *ThreadedObserver) Start() error  { return t.inner.Start() }
func (t *ThreadedObserver) Stall() error  { return t.inner.Stall() }
func (t *ThreadedObserver) Resume() error { return t.inner.Resume() }
func (t *ThreadedObserver) Reset()        { t.inner.Reset() }
func (t *ThreadedObserver) Report() string { return t.inner.Report() }

// Stop cancels the worker and waits up to flushTimeout for the queue to
// drain before returning regardless.
func (t *ThreadedObserver) Stop() error {
	t.cancel()
	select {
	case <-t.done:
	case <-t.clock.After(flushTimeout):
		log.Printf("observer: %s did not flush within %s", t.Report(), flushTimeout)
	}
	return t.inner.Stop()
}

// Observe enqueues the event without blocking; a full queue drops the
// event and logs, rather than stalling the caller's frame loop.
func (t *ThreadedObserver) Observe(ctx context.Context, event string, o *fusion.TrackedObject, now time.Time) {
	select {
	case t.queue <- queuedEvent{event: event, obj: o, now: now}:
	default:
		log.Printf("observer: %s queue full, dropping %s", t.Report(), event)
	}
}

// Bus fans every lifecycle event out to its registered observers (itself an
// Observer, so buses can nest).
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Add(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

func (b *Bus) Start() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.observers {
		if err := o.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) Stop() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var firstErr error
	for _, o := range b.observers {
		if err := o.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Bus) Stall() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.observers {
		o.Stall()
	}
	return nil
}

func (b *Bus) Resume() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.observers {
		o.Resume()
	}
	return nil
}

func (b *Bus) Reset() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, o := range b.observers {
		o.Reset()
	}
}

func (b *Bus) Report() string { return "bus" }

func (b *Bus) Observe(ctx context.Context, event string, o *fusion.TrackedObject, now time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, obs := range b.observers {
		obs.Observe(ctx, event, o, now)
	}
}

// ObserveFrame drives the objects_begin/object*/objects_end event sequence
// for one tracker Step()'s output, diffing against the previous frame's
// population to classify enter/move/leave per object, per §4.8.
func (b *Bus) ObserveFrame(ctx context.Context, prevIDs map[string]bool, objects []fusion.TrackedObject, now time.Time) map[string]bool {
	b.dispatchAll(ctx, SchemeFrameBegin, nil, now)
	b.dispatchAll(ctx, SchemeObjectsBegin, nil, now)

	seen := make(map[string]bool, len(objects))
	for i := range objects {
		obj := &objects[i]
		seen[obj.ID] = true
		event := SchemeObjectMove
		if !prevIDs[obj.ID] {
			event = SchemeObjectEnter
		}
		b.Observe(ctx, SchemeObject, obj, now)
		b.Observe(ctx, event, obj, now)
	}
	for id := range prevIDs {
		if !seen[id] {
			b.Observe(ctx, SchemeObjectLeave, &fusion.TrackedObject{ID: id}, now)
		}
	}

	b.dispatchAll(ctx, SchemeObjectsEnd, nil, now)
	b.dispatchAll(ctx, SchemeFrameEnd, nil, now)
	return seen
}

// dispatchAll sends a frame-level (objectless) lifecycle event by handing
// each observer a zero-value TrackedObject; SchemeObserver's Render simply
// yields empty substitutions for any $field reference those lines use.
func (b *Bus) dispatchAll(ctx context.Context, event string, _ *fusion.TrackedObject, now time.Time) {
	b.Observe(ctx, event, &fusion.TrackedObject{}, now)
}
