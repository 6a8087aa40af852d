// Package engine executes workflow instances: it resolves the current node,
// runs its side effect and advances along the graph until the instance
// completes, fails or parks in WAITING or PAUSED.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quasarerp/automations/pkg/capabilities"
	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/eventbus"
	"github.com/quasarerp/automations/pkg/events"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/nodes"
	"github.com/quasarerp/automations/pkg/otelhelper"
	"github.com/quasarerp/automations/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Capabilities are the external collaborators node side effects call into.
// Calendar may be nil, in which case goal nodes never book meetings.
type Capabilities struct {
	Credentials credentials.Store
	Fetcher     capabilities.Fetcher
	Completer   capabilities.Completer
	Mailer      capabilities.Mailer
	Calendar    capabilities.Calendar
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for logs and wait scheduling.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithTracer sets the tracer used for step and node spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithPublisher publishes instance.status_changed events on every transition.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

type Engine struct {
	workflows persistence.WorkflowRepository
	instances persistence.InstanceRepository
	leads     persistence.LeadRepository

	enricher   *nodes.Enricher
	outreacher *nodes.Outreacher
	waiter     nodes.Waiter
	decider    *nodes.Decider
	goals      *nodes.GoalReacher

	publisher eventbus.EventPublisher
	clock     func() time.Time
	tracer    trace.Tracer
	logger    *slog.Logger
}

func New(p persistence.Persistence, caps Capabilities, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		workflows:  p.WorkflowRepository(),
		instances:  p.InstanceRepository(),
		leads:      p.LeadRepository(),
		enricher:   nodes.NewEnricher(caps.Fetcher, caps.Completer),
		outreacher: nodes.NewOutreacher(caps.Credentials, caps.Completer, caps.Mailer),
		decider:    nodes.NewDecider(caps.Credentials, caps.Mailer),
		goals:      nodes.NewGoalReacher(caps.Credentials, caps.Calendar),
		clock:      time.Now,
		tracer:     otelhelper.DefaultTracer("quasar/engine"),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// run is the state of one Step call.
type run struct {
	workflow *models.Workflow
	instance *models.WorkflowInstance
	lead     *models.Lead
}

// stepLease bounds how long a crashed Step keeps other callers off an
// instance. It must outlast the slowest node side effect.
const stepLease = 10 * time.Minute

// Step advances the instance as far as it can go without blocking. Completed,
// failed and paused instances are left untouched, as are waiting instances
// whose next_run lies in the future. Node errors are recorded on the instance
// as FAILED; the returned error only reports storage failures.
//
// Step holds a lease on the instance while it walks, so concurrent calls for
// the same instance run its nodes once. A call that loses the lease returns
// the instance as stored.
func (e *Engine) Step(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.step",
		attribute.String(otelhelper.InstanceIDKey, instanceID))
	defer span.End()

	instance, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load instance: %w", err)
	}

	switch instance.Status {
	case models.InstanceStatusCompleted, models.InstanceStatusFailed, models.InstanceStatusPaused:
		return instance, nil
	case models.InstanceStatusWaiting:
		if instance.NextRun != nil && e.clock().Before(*instance.NextRun) {
			return instance, nil
		}
	}

	span.SetAttributes(otelhelper.InstanceAttributes(instance)...)

	r := &run{instance: instance}
	from := instance.Status

	claimed, err := e.claim(ctx, r, from)
	if err == nil && claimed {
		instance, err = e.execute(ctx, r, from)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if !claimed {
		return r.instance, nil
	}

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(instance.Status)))

	return instance, nil
}

// Resume moves a paused instance back to RUNNING and steps it, retrying the
// node that paused it.
func (e *Engine) Resume(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	instance, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}

	if instance.Status != models.InstanceStatusPaused {
		return instance, fmt.Errorf("instance %s is %s: %w", instance.ID, instance.Status, ErrNotPaused)
	}

	r := &run{instance: instance}

	claimed, err := e.claim(ctx, r, models.InstanceStatusPaused)
	if err != nil {
		return nil, err
	}

	if !claimed {
		return r.instance, fmt.Errorf("instance %s is %s: %w", instance.ID, r.instance.Status, ErrNotPaused)
	}

	return e.execute(ctx, r, models.InstanceStatusPaused)
}

// execute walks an instance the caller holds the lease on. from is the status
// the instance was claimed from.
func (e *Engine) execute(ctx context.Context, r *run, from models.InstanceStatus) (*models.WorkflowInstance, error) {
	err := e.load(ctx, r)
	if errors.Is(err, persistence.ErrWorkflowNotFound) || errors.Is(err, persistence.ErrLeadNotFound) {
		return e.fail(ctx, r, models.InstanceUpdate{}, err)
	}

	if err != nil {
		return nil, err
	}

	node, legacyEnd, err := e.resolve(r)
	if err != nil {
		return e.fail(ctx, r, models.InstanceUpdate{}, err)
	}

	if legacyEnd {
		return e.complete(ctx, r, models.InstanceUpdate{
			AppendLogs: []string{models.FormatLog(e.clock(), models.LogLevelInfo, "Reached the end of the workflow")},
		}, false)
	}

	// Instances positioned by step index or by the trigger fallback are pinned
	// to the resolved node, which also drops the step index.
	if r.instance.CurrentNodeID != node.ID {
		err = e.persist(ctx, r, models.InstanceUpdate{CurrentNodeID: &node.ID})
		if err != nil {
			return nil, err
		}
	}

	if from == models.InstanceStatusWaiting {
		node, err = e.wake(ctx, r, node)
		if err != nil {
			return nil, err
		}

		if node == nil {
			return r.instance, nil
		}
	}

	return e.walk(ctx, r, node)
}

func (e *Engine) load(ctx context.Context, r *run) error {
	workflow, err := e.workflows.GetByID(ctx, r.instance.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", r.instance.WorkflowID, err)
	}

	lead, err := e.leads.GetByID(ctx, r.instance.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load lead %s: %w", r.instance.LeadID, err)
	}

	r.workflow = workflow
	r.lead = lead

	return nil
}

// resolve returns the node the instance is positioned on. A fresh instance
// starts at the trigger; an instance written by the linear step format is
// positioned through its step index, and an index past the last step reports
// legacyEnd.
func (e *Engine) resolve(r *run) (*models.Node, bool, error) {
	graph := r.workflow.Graph
	inst := r.instance

	if graph.IsEmpty() {
		return nil, false, fmt.Errorf("%w: workflow %s has no graph", ErrNodeNotFound, r.workflow.ID)
	}

	switch {
	case inst.CurrentNodeID != "":
		node, ok := graph.NodeByID(inst.CurrentNodeID)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s", ErrNodeNotFound, inst.CurrentNodeID)
		}

		return node, false, nil
	case inst.CurrentStepIndex != nil:
		node, ok := graph.NodeByID(models.MigratedNodeID(*inst.CurrentStepIndex))
		if !ok {
			return nil, true, nil
		}

		return node, false, nil
	default:
		node, ok := graph.TriggerNode()
		if !ok {
			return nil, false, fmt.Errorf("%w: workflow has no trigger", ErrNodeNotFound)
		}

		return node, false, nil
	}
}

// wake moves a claimed instance whose wait has finished onto the node after
// the wait. It returns nil when the instance ended instead.
func (e *Engine) wake(ctx context.Context, r *run, node *models.Node) (*models.Node, error) {
	next, err := e.successor(r, node, models.HandleSource)
	if err != nil {
		_, err = e.fail(ctx, r, models.InstanceUpdate{}, err)

		return nil, err
	}

	if next == nil {
		_, err = e.complete(ctx, r, models.InstanceUpdate{}, false)

		return nil, err
	}

	err = e.persist(ctx, r, models.InstanceUpdate{CurrentNodeID: &next.ID})
	if err != nil {
		return nil, err
	}

	return next, nil
}

// claim takes the step lease on an instance still in status from, moving a
// waiting or paused instance to RUNNING. It reports false, with the instance
// reloaded, when another caller changed the status or holds a live lease.
func (e *Engine) claim(ctx context.Context, r *run, from models.InstanceStatus) (bool, error) {
	now := e.clock()
	update := models.InstanceUpdate{
		ExpectStatus: &from,
		Lease:        &models.Lease{At: now, Until: now.Add(stepLease)},
	}

	switch from {
	case models.InstanceStatusWaiting:
		update.AppendLogs = []string{models.FormatLog(now, models.LogLevelInfo, "Wait finished, resuming")}
	case models.InstanceStatusPaused:
		update.AppendLogs = []string{models.FormatLog(now, models.LogLevelInfo, "Resumed")}
	}

	if from != models.InstanceStatusRunning {
		running := models.InstanceStatusRunning
		update.Status = &running
		update.ClearNextRun = true
	}

	err := e.persist(ctx, r, update)
	if persistence.IsInstanceClaimed(err) {
		e.logger.DebugContext(ctx, "Instance claimed by another caller",
			"instance_id", r.instance.ID, "from", from)

		current, loadErr := e.instances.GetByID(ctx, r.instance.ID)
		if loadErr != nil {
			return false, fmt.Errorf("failed to reload instance: %w", loadErr)
		}

		r.instance = current

		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// walk runs nodes until one blocks or ends the instance. Each node's result is
// persisted before the next node runs.
func (e *Engine) walk(ctx context.Context, r *run, node *models.Node) (*models.WorkflowInstance, error) {
	bound := len(r.workflow.Graph.Nodes) + 1

	for visited := 0; ; visited++ {
		if visited >= bound {
			return e.fail(ctx, r, models.InstanceUpdate{},
				fmt.Errorf("%w: visited %d nodes without blocking", ErrCycleDetected, visited))
		}

		outcome, err := e.dispatch(ctx, r, node)
		now := e.clock()

		update := models.InstanceUpdate{AppendLogs: formatEntries(now, outcome.Logs)}
		if err != nil {
			return e.fail(ctx, r, update, fmt.Errorf("node %s (%s) failed: %w", node.ID, node.Type, err))
		}

		if outcome.LeadUpdate != nil {
			err = e.leads.Update(ctx, r.lead.ID, *outcome.LeadUpdate)
			if err != nil {
				return e.fail(ctx, r, update, fmt.Errorf("failed to update lead %s: %w", r.lead.ID, err))
			}

			outcome.LeadUpdate.Apply(r.lead, now)
		}

		if outcome.LastThreadID != "" {
			update.LastThreadID = &outcome.LastThreadID
		}

		switch outcome.Kind {
		case nodes.Wait:
			waiting := models.InstanceStatusWaiting
			next := outcome.NextRun
			update.Status = &waiting
			update.NextRun = &next

			return e.park(ctx, r, update)
		case nodes.Pause:
			paused := models.InstanceStatusPaused
			update.Status = &paused

			return e.park(ctx, r, update)
		case nodes.Complete:
			return e.complete(ctx, r, update, true)
		case nodes.Advance:
			next, err := e.successor(r, node, outcome.Handle)
			if err != nil {
				return e.fail(ctx, r, update, err)
			}

			if next == nil {
				update.AppendLogs = append(update.AppendLogs, models.FormatLog(now, models.LogLevelInfo,
					fmt.Sprintf("No outgoing edge from %s, workflow ends", node.ID)))

				return e.complete(ctx, r, update, false)
			}

			update.CurrentNodeID = &next.ID

			err = e.persist(ctx, r, update)
			if err != nil {
				return nil, err
			}

			node = next
		default:
			return e.fail(ctx, r, update, fmt.Errorf("node %s returned unknown outcome %s", node.ID, outcome.Kind))
		}
	}
}

// successor follows the edge leaving node on handle. It returns a nil node
// for a trigger without outgoing edges, which ends the workflow.
func (e *Engine) successor(r *run, node *models.Node, handle string) (*models.Node, error) {
	graph := r.workflow.Graph

	edge, ok := graph.NextEdge(node.ID, handle)
	if !ok {
		if node.Type == models.NodeTypeTrigger {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: %s has no %s edge", ErrMissingEdge, node.ID, models.NormalizeHandle(handle))
	}

	next, ok := graph.NodeByID(edge.Target)
	if !ok {
		return nil, fmt.Errorf("%w: edge %s points to %s", ErrNodeNotFound, edge.ID, edge.Target)
	}

	return next, nil
}

func (e *Engine) dispatch(ctx context.Context, r *run, node *models.Node) (nodes.Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.node",
		append(otelhelper.InstanceAttributes(r.instance), otelhelper.NodeAttributes(node)...)...)
	defer span.End()

	req := nodes.Request{
		Workflow: r.workflow,
		Instance: r.instance,
		Node:     node,
		Lead:     r.lead,
		Now:      e.clock(),
	}

	var (
		outcome nodes.Outcome
		err     error
	)

	switch data := node.Data.(type) {
	case models.TriggerData:
		outcome = nodes.AdvanceOn(models.HandleSource)
		outcome.Info("Workflow %q started for lead %s", r.workflow.Name, r.lead.Name)
	case models.EnrichmentData:
		outcome, err = e.enricher.Execute(ctx, req)
	case models.OutreachData:
		outcome, err = e.outreacher.Execute(ctx, req, data)
	case models.WaitData:
		outcome = e.waiter.Execute(req, data)
	case models.DecisionData:
		outcome, err = e.decider.Execute(ctx, req)
	case models.GoalData:
		outcome = e.goals.Execute(ctx, req, data)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownNodeType, node.Type)
	}

	otelhelper.SetError(span, err, otelhelper.NodeAttributes(node)...)

	return outcome, err
}

func (e *Engine) park(ctx context.Context, r *run, update models.InstanceUpdate) (*models.WorkflowInstance, error) {
	update.ReleaseLease = true

	err := e.persist(ctx, r, update)
	if err != nil {
		return nil, err
	}

	return r.instance, nil
}

// complete marks the instance COMPLETED. converted counts the instance as a
// conversion in the workflow stats.
func (e *Engine) complete(
	ctx context.Context,
	r *run,
	update models.InstanceUpdate,
	converted bool,
) (*models.WorkflowInstance, error) {
	completed := models.InstanceStatusCompleted
	update.Status = &completed
	update.ClearNextRun = true
	update.ReleaseLease = true

	err := e.persist(ctx, r, update)
	if err != nil {
		return nil, err
	}

	if converted {
		err = e.workflows.IncrementStats(ctx, r.instance.WorkflowID, 0, 1)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to count conversion",
				"workflow_id", r.instance.WorkflowID, "instance_id", r.instance.ID, "error", err)
		}
	}

	return r.instance, nil
}

// fail records cause on the instance and marks it FAILED.
func (e *Engine) fail(
	ctx context.Context,
	r *run,
	update models.InstanceUpdate,
	cause error,
) (*models.WorkflowInstance, error) {
	failed := models.InstanceStatusFailed
	update.Status = &failed
	update.ClearNextRun = true
	update.ReleaseLease = true
	update.AppendLogs = append(update.AppendLogs, models.FormatLog(e.clock(), models.LogLevelError, cause.Error()))

	e.logger.WarnContext(ctx, "Instance failed",
		"workflow_id", r.instance.WorkflowID, "instance_id", r.instance.ID, "error", cause)

	err := e.persist(ctx, r, update)
	if err != nil {
		return nil, err
	}

	return r.instance, nil
}

// persist writes update and reports a status transition to the lead and the
// event bus.
func (e *Engine) persist(ctx context.Context, r *run, update models.InstanceUpdate) error {
	previous := r.instance.Status

	instance, err := e.instances.Update(ctx, r.instance.ID, update)
	if err != nil {
		return fmt.Errorf("failed to update instance %s: %w", r.instance.ID, err)
	}

	r.instance = instance

	if instance.Status != previous {
		e.statusChanged(ctx, instance, previous)
	}

	return nil
}

func (e *Engine) statusChanged(ctx context.Context, instance *models.WorkflowInstance, previous models.InstanceStatus) {
	e.logger.InfoContext(ctx, "Instance status changed",
		"workflow_id", instance.WorkflowID,
		"instance_id", instance.ID,
		"node_id", instance.CurrentNodeID,
		"from", previous,
		"to", instance.Status)

	status := string(instance.Status)

	err := e.leads.Update(ctx, instance.LeadID, models.LeadUpdate{AutomationStatus: &status})
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to mirror automation status on lead",
			"lead_id", instance.LeadID, "instance_id", instance.ID, "error", err)
	}

	if e.publisher == nil {
		return
	}

	err = e.publisher.Publish(ctx, instance.LeadID, events.NewInstanceStatusChanged(instance, previous))
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish status change",
			"instance_id", instance.ID, "error", err)
	}
}

func formatEntries(at time.Time, entries []nodes.Entry) []string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, models.FormatLog(at, entry.Level, entry.Message))
	}

	return lines
}
