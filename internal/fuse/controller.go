package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/metrics"
	"github.com/miradorstack/mirador-guard/internal/models"
)

const (
	maxRetainedEvents = 1000

	// Bound on waiting out in-flight action chains during Stop.
	stopDrainTimeout = 30 * time.Second
)

// ValueSource reads the current utilisation of one resource as a percentage.
type ValueSource interface {
	Value(resource models.ResourceType) (float64, error)
}

// Controller owns the fuse state machines. Each fuse is armed, trips when
// its resource sustains utilisation at or above its threshold, runs its
// action chain, and re-arms after its recovery time when auto-recovery is
// enabled.
type Controller struct {
	source          ValueSource
	registry        *ActionRegistry
	logger          *slog.Logger
	actionTimeout   time.Duration
	defaultRecovery time.Duration
	now             func() time.Time

	chains sync.WaitGroup

	mu        sync.Mutex
	fuses     map[string]models.FuseConfig
	states    map[string]models.FuseState
	overSince map[string]time.Time
	active    map[string]*models.FuseTriggerEvent
	events    []models.FuseTriggerEvent
	timers    map[string]*time.Timer
	stopped   bool
}

// NewController builds a controller and registers the configured fuse
// definitions. A duplicate fuse ID in configuration is a startup error.
func NewController(cfg config.FusesConfig, source ValueSource, registry *ActionRegistry, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		source:          source,
		registry:        registry,
		logger:          logger,
		actionTimeout:   cfg.ActionTimeout,
		defaultRecovery: cfg.DefaultRecoveryTime,
		now:             time.Now,
		fuses:           make(map[string]models.FuseConfig),
		states:          make(map[string]models.FuseState),
		overSince:       make(map[string]time.Time),
		active:          make(map[string]*models.FuseTriggerEvent),
		timers:          make(map[string]*time.Timer),
	}
	for _, def := range cfg.Definitions {
		if err := c.RegisterFuse(def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RegisterFuse adds a fuse in the armed state.
func (c *Controller) RegisterFuse(def models.FuseConfig) error {
	if def.ID == "" {
		return fmt.Errorf("fuse: definition without id")
	}
	if def.Threshold <= 0 {
		return fmt.Errorf("fuse %s: threshold must be positive, got %v", def.ID, def.Threshold)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.fuses[def.ID]; exists {
		return fmt.Errorf("fuse %s: already registered", def.ID)
	}
	c.fuses[def.ID] = def
	c.states[def.ID] = models.FuseArmed
	return nil
}

// CheckAll reads every armed fuse's resource and trips those whose value has
// stayed at or above threshold for the sustain duration. A failed reading
// skips that fuse for this tick.
func (c *Controller) CheckAll(ctx context.Context) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.fuses))
	for id := range c.fuses {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		c.checkOne(ctx, id)
	}
}

func (c *Controller) checkOne(ctx context.Context, id string) {
	c.mu.Lock()
	def, ok := c.fuses[id]
	state := c.states[id]
	c.mu.Unlock()
	if !ok || state != models.FuseArmed {
		return
	}

	value, err := c.source.Value(def.Resource)
	if err != nil {
		c.logger.Debug("fuse reading unavailable", "fuse", id, "error", err)
		return
	}

	now := c.now()
	c.mu.Lock()
	if value < def.Threshold {
		delete(c.overSince, id)
		c.mu.Unlock()
		return
	}
	since, tracking := c.overSince[id]
	if !tracking {
		c.overSince[id] = now
		since = now
	}
	sustained := now.Sub(since) >= def.SustainDuration
	c.mu.Unlock()

	if sustained {
		c.trigger(ctx, def, value, now)
	}
}

// trigger trips the fuse, records the event, dispatches the action chain
// asynchronously and schedules auto-recovery.
func (c *Controller) trigger(ctx context.Context, def models.FuseConfig, value float64, at time.Time) {
	event := &models.FuseTriggerEvent{
		EventID:      uuid.NewString(),
		FuseID:       def.ID,
		Resource:     def.Resource,
		Severity:     models.SeverityFromRatio(value / def.Threshold),
		TriggerValue: value,
		Threshold:    def.Threshold,
		TriggeredAt:  at,
	}

	c.mu.Lock()
	if c.states[def.ID] != models.FuseArmed || c.stopped {
		c.mu.Unlock()
		return
	}
	c.states[def.ID] = models.FuseTriggered
	delete(c.overSince, def.ID)
	c.active[def.ID] = event
	c.events = append(c.events, *event)
	if len(c.events) > maxRetainedEvents {
		c.events = c.events[len(c.events)-maxRetainedEvents:]
	}
	c.chains.Add(1)
	c.mu.Unlock()

	metrics.ObserveFuseTrigger(def.ID, string(event.Severity))
	c.logger.Error("fuse triggered",
		"fuse", def.ID,
		"resource", string(def.Resource),
		"value", value,
		"threshold", def.Threshold,
		"severity", string(event.Severity))

	// The chain outlives the loop context: actions such as emergency_snapshot
	// must finish even when the trip races a shutdown.
	chainCtx := context.WithoutCancel(ctx)
	go func() {
		defer c.chains.Done()
		c.runActions(chainCtx, def, event)
	}()

	if def.AutoRecovery {
		recovery := def.RecoveryTime
		if recovery <= 0 {
			recovery = c.defaultRecovery
		}
		c.mu.Lock()
		if !c.stopped {
			c.timers[def.ID] = time.AfterFunc(recovery, func() { c.Rearm(def.ID) })
		}
		c.mu.Unlock()
	}
}

// runActions executes the fuse's action chain in order. Each action gets its
// own timeout; a failing action is logged and counted but never stops the
// chain.
func (c *Controller) runActions(ctx context.Context, def models.FuseConfig, event *models.FuseTriggerEvent) {
	var taken []string
	for _, name := range def.Actions {
		fn, ok := c.registry.Lookup(name)
		if !ok {
			c.logger.Warn("unknown fuse action", "fuse", def.ID, "action", name)
			metrics.ObserveActionFailure(name)
			continue
		}
		actionCtx, cancel := context.WithTimeout(ctx, c.actionTimeout)
		err := fn(actionCtx, *event)
		cancel()
		if err != nil {
			c.logger.Warn("fuse action failed", "fuse", def.ID, "action", name, "error", err)
			metrics.ObserveActionFailure(name)
			continue
		}
		taken = append(taken, name)
	}

	c.mu.Lock()
	event.ActionsTaken = taken
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].EventID == event.EventID {
			c.events[i].ActionsTaken = taken
			break
		}
	}
	c.mu.Unlock()
}

// Rearm moves a triggered fuse back to armed, stamping the resolution time
// on its trigger event. Safe to call on a fuse that is not triggered.
func (c *Controller) Rearm(id string) {
	now := c.now()
	c.mu.Lock()
	if c.states[id] != models.FuseTriggered {
		c.mu.Unlock()
		return
	}
	c.states[id] = models.FuseArmed
	event := c.active[id]
	delete(c.active, id)
	delete(c.timers, id)
	if event != nil {
		event.ResolvedAt = &now
		for i := len(c.events) - 1; i >= 0; i-- {
			if c.events[i].EventID == event.EventID {
				c.events[i].ResolvedAt = &now
				break
			}
		}
	}
	// Key the gate release on the configured chain, not the recorded one:
	// recovery can fire while the chain is still running, before ActionsTaken
	// is written. Releasing an unengaged gate is harmless.
	var releaseGate bool
	for _, action := range c.fuses[id].Actions {
		if action == "throttle_admission" {
			releaseGate = true
		}
	}
	c.mu.Unlock()

	if releaseGate {
		c.registry.Gate().Release()
	}
	c.logger.Info("fuse re-armed", "fuse", id)
}

// Disable takes a fuse out of service. A triggered fuse keeps its event
// history but stops recovering.
func (c *Controller) Disable(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fuses[id]; !ok {
		return fmt.Errorf("fuse %s: not registered", id)
	}
	if timer := c.timers[id]; timer != nil {
		timer.Stop()
		delete(c.timers, id)
	}
	c.states[id] = models.FuseDisabled
	delete(c.overSince, id)
	return nil
}

// Enable re-arms a disabled fuse.
func (c *Controller) Enable(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fuses[id]; !ok {
		return fmt.Errorf("fuse %s: not registered", id)
	}
	if c.states[id] == models.FuseDisabled {
		c.states[id] = models.FuseArmed
	}
	return nil
}

// State returns the current state of one fuse.
func (c *Controller) State(id string) (models.FuseState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[id]
	return state, ok
}

// Status aggregates controller state for the read API.
func (c *Controller) Status() models.FuseStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := models.FuseStatus{
		TotalFuses:     len(c.fuses),
		ActiveTriggers: len(c.active),
		TotalEvents:    len(c.events),
	}
	for _, state := range c.states {
		switch state {
		case models.FuseArmed:
			status.ArmedFuses++
		case models.FuseTriggered:
			status.TriggeredFuses++
		case models.FuseDisabled:
			status.DisabledFuses++
		}
	}
	return status
}

// Events returns the retained trigger events, oldest first.
func (c *Controller) Events() []models.FuseTriggerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.FuseTriggerEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Fuses returns the registered definitions sorted by ID.
func (c *Controller) Fuses() []models.FuseConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.FuseConfig, 0, len(c.fuses))
	for _, def := range c.fuses {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stop cancels pending recovery timers and waits out in-flight action
// chains, bounded by stopDrainTimeout. Fuses stay in their current state.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.chains.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopDrainTimeout):
		c.logger.Warn("fuse action chains still running at shutdown deadline")
	}
}
