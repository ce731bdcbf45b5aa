package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"pvefleet/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryOutput turns the spans an operation emits into terminal progress:
// an in-place checklist on interactive terminals, plain per-step lines
// otherwise.
type TelemetryOutput struct {
	provider *sdktrace.TracerProvider
	closeFn  func()
}

func NewTelemetryOutput() *TelemetryOutput {
	if IsInteractive() {
		checklist := NewChecklist()
		tracker := newStepTracker(checklist.OnSnapshot)
		provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&stepSpanProcessor{tracker: tracker}))
		return &TelemetryOutput{provider: provider, closeFn: checklist.Close}
	}

	printer := newLinePrinter()
	tracker := newStepTracker(printer.OnSnapshot)
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&stepSpanProcessor{tracker: tracker}))
	return &TelemetryOutput{provider: provider, closeFn: func() {}}
}

// Tracer returns a tracer backed by this output's provider. A nil output
// falls back to the global tracer.
func (o *TelemetryOutput) Tracer(name string) trace.Tracer {
	if o == nil || o.provider == nil {
		return otel.Tracer(name)
	}
	return o.provider.Tracer(name)
}

func (o *TelemetryOutput) Close() {
	if o == nil {
		return
	}
	if o.provider != nil {
		_ = o.provider.Shutdown(context.Background())
	}
	if o.closeFn != nil {
		o.closeFn()
	}
}

// linePrinter writes one stderr line per step transition. Repeated snapshots
// of an unchanged step print nothing.
type linePrinter struct {
	mu     sync.Mutex
	status map[string]stepStatus
	notes  map[string]string
}

func newLinePrinter() *linePrinter {
	return &linePrinter{
		status: make(map[string]stepStatus),
		notes:  make(map[string]string),
	}
}

func (l *linePrinter) OnSnapshot(snapshot stepSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, step := range snapshot.Steps {
		if step.Status == stepPending {
			continue
		}

		id := strings.TrimSpace(step.ID)
		if id == "" {
			id = strings.TrimSpace(step.Title)
		}
		if id == "" {
			continue
		}

		note := strings.TrimSpace(step.Message)
		if prev, seen := l.status[id]; seen && prev == step.Status && l.notes[id] == note {
			continue
		}

		l.status[id] = step.Status
		l.notes[id] = note
		fmt.Fprintln(os.Stderr, stepLine(step, note))
	}
}

func stepLine(step stepItem, note string) string {
	marker := "[..]"
	switch step.Status {
	case stepRunning:
		marker = "[->]"
	case stepDone:
		marker = "[ok]"
	case stepFailed:
		marker = "[x]"
	}

	indent := "  "
	if strings.TrimSpace(step.ParentID) != "" {
		indent = "    "
	}

	title := strings.TrimSpace(step.Title)
	if title == "" {
		title = strings.TrimSpace(step.ID)
	}
	if note != "" {
		return fmt.Sprintf("%s%s %s (%s)", indent, marker, title, note)
	}
	return fmt.Sprintf("%s%s %s", indent, marker, title)
}

// stepTracker accumulates step transitions into ordered snapshots for a
// renderer. Step IDs nest by slash: "detect/pve-a" hangs under "detect",
// and unknown parents are created on demand as synthetic steps.
type stepTracker struct {
	mu     sync.Mutex
	steps  map[string]stepItem
	order  []string
	render func(stepSnapshot)
}

func newStepTracker(render func(stepSnapshot)) *stepTracker {
	return &stepTracker{
		steps:  make(map[string]stepItem),
		order:  make([]string, 0, 8),
		render: render,
	}
}

func (t *stepTracker) onPlan(plan telemetry.Plan) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, planned := range plan.Steps {
		id := strings.TrimSpace(planned.ID)
		if id == "" {
			continue
		}

		step, known := t.steps[id]
		if !known {
			t.order = append(t.order, id)
			step = stepItem{ID: id, Status: stepPending}
		}
		step.ParentID = strings.TrimSpace(planned.ParentID)
		step.Title = strings.TrimSpace(planned.Title)
		if step.Title == "" {
			step.Title = id
		}
		step.synthetic = false
		t.steps[id] = step
	}

	t.emitLocked()
}

func (t *stepTracker) onStepStart(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	step := t.stepLocked(id)
	step.Status = stepRunning
	step.Message = ""
	step.synthetic = false
	t.steps[step.ID] = step
	t.emitLocked()
}

func (t *stepTracker) onStepEnd(id string, failed bool, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	step := t.stepLocked(id)
	step.synthetic = false
	if failed {
		step.Status = stepFailed
		step.Message = strings.TrimSpace(message)
	} else {
		step.Status = stepDone
		step.Message = ""
	}
	t.steps[step.ID] = step
	t.emitLocked()
}

// stepLocked returns the tracked step for id, registering it (and any
// missing ancestors) first if needed. Caller must hold t.mu.
func (t *stepTracker) stepLocked(id string) stepItem {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "unnamed"
	}

	if step, known := t.steps[id]; known {
		return step
	}

	parentID := ""
	if idx := strings.LastIndex(id, "/"); idx > 0 {
		parentID = strings.TrimSpace(id[:idx])
		t.parentLocked(parentID)
	}

	t.order = append(t.order, id)
	return stepItem{ID: id, ParentID: parentID, Title: id, Status: stepPending}
}

func (t *stepTracker) parentLocked(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if _, known := t.steps[id]; known {
		return
	}

	ancestorID := ""
	if idx := strings.LastIndex(id, "/"); idx > 0 {
		ancestorID = strings.TrimSpace(id[:idx])
		t.parentLocked(ancestorID)
	}

	t.order = append(t.order, id)
	t.steps[id] = stepItem{
		ID:        id,
		ParentID:  ancestorID,
		Title:     id,
		Status:    stepPending,
		synthetic: true,
	}
}

// emitLocked snapshots the current steps, rolling child fan-out into parent
// messages, and hands the snapshot to the renderer. Caller must hold t.mu.
func (t *stepTracker) emitLocked() {
	if t.render == nil {
		return
	}

	children := make(map[string][]stepItem, len(t.steps))
	for _, step := range t.steps {
		parentID := strings.TrimSpace(step.ParentID)
		if parentID == "" {
			continue
		}
		children[parentID] = append(children[parentID], step)
	}

	steps := make([]stepItem, 0, len(t.order))
	for _, id := range t.order {
		step, known := t.steps[id]
		if !known {
			continue
		}

		kids := children[step.ID]
		if len(kids) > 0 {
			if step.synthetic {
				step.Status = rollupStatus(kids)
			}
			summary := fanoutSummary(kids)
			if strings.TrimSpace(summary) != "" {
				if strings.TrimSpace(step.Message) == "" {
					step.Message = summary
				} else if step.Status == stepFailed && !strings.Contains(step.Message, summary) {
					step.Message = summary + "; " + step.Message
				}
			}
		}

		steps = append(steps, step)
	}
	t.render(stepSnapshot{Steps: steps})
}

func fanoutSummary(kids []stepItem) string {
	total := len(kids)
	if total == 0 {
		return ""
	}

	done, failed := 0, 0
	for _, kid := range kids {
		switch kid.Status {
		case stepDone:
			done++
		case stepFailed:
			failed++
		}
	}

	if failed > 0 {
		return fmt.Sprintf("%d/%d done, %d failed", done, total, failed)
	}
	if done == 0 {
		return fmt.Sprintf("%d discovered", total)
	}
	return fmt.Sprintf("%d/%d done", done, total)
}

// rollupStatus derives a synthetic parent's status from its children: any
// failure wins, then all-done, then any visible progress.
func rollupStatus(kids []stepItem) stepStatus {
	if len(kids) == 0 {
		return stepPending
	}

	running, done := false, 0
	for _, kid := range kids {
		switch kid.Status {
		case stepFailed:
			return stepFailed
		case stepRunning:
			running = true
		case stepDone:
			done++
		}
	}

	if done == len(kids) {
		return stepDone
	}
	if running || done > 0 {
		return stepRunning
	}
	return stepPending
}

// stepSpanProcessor maps span lifecycle onto tracker events: the root span's
// plan attribute announces the steps, child spans start and end them.
type stepSpanProcessor struct {
	tracker *stepTracker
}

func (p *stepSpanProcessor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if p == nil || p.tracker == nil {
		return
	}

	if span.Parent().IsValid() {
		p.tracker.onStepStart(span.Name())
		return
	}

	planJSON := stringAttr(span.Attributes(), telemetry.PlanJSONKey)
	if strings.TrimSpace(planJSON) == "" {
		return
	}

	var plan telemetry.Plan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return
	}
	p.tracker.onPlan(plan)
}

func (p *stepSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	if p == nil || p.tracker == nil {
		return
	}
	if !span.Parent().IsValid() {
		return
	}

	status := span.Status()
	p.tracker.onStepEnd(span.Name(), status.Code == codes.Error, strings.TrimSpace(status.Description))
}

func (p *stepSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *stepSpanProcessor) ForceFlush(context.Context) error { return nil }

func stringAttr(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}
