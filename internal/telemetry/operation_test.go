package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracer() (trace.Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return provider.Tracer("test"), recorder
}

func findSpanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func TestEmitPlanAndRunStep(t *testing.T) {
	tracer, recorder := newTestTracer()

	op, err := EmitPlan(context.Background(), tracer, "container.detect", Plan{Steps: []PlannedStep{
		{ID: "scan", Title: "scan hosts"},
		{ID: "scan/pve1", ParentID: "scan", Title: "pve1"},
	}})
	if err != nil {
		t.Fatalf("EmitPlan: %v", err)
	}
	if err := op.RunStep(op.Context(), "scan/pve1", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	op.End(nil)

	spans := recorder.Ended()
	root := findSpanByName(spans, "container.detect")
	if root == nil {
		t.Fatal("missing root span")
	}
	if len(root.Events()) == 0 || root.Events()[0].Name != PlanEventName {
		t.Fatalf("root plan event missing: %+v", root.Events())
	}
	step := findSpanByName(spans, "scan/pve1")
	if step == nil {
		t.Fatal("missing step span")
	}
	if step.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Error("step span not parented to root")
	}
}

func TestRunStepFailureSetsErrorStatus(t *testing.T) {
	tracer, recorder := newTestTracer()

	op, err := EmitPlan(context.Background(), tracer, "container.cleanup", Plan{Steps: []PlannedStep{
		{ID: "sweep", Title: "sweep records"},
	}})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("host unreachable")
	stepErr := op.RunStep(op.Context(), "sweep", func(context.Context) error { return boom })
	if !errors.Is(stepErr, boom) {
		t.Fatalf("RunStep error = %v", stepErr)
	}
	op.End(stepErr)

	step := findSpanByName(recorder.Ended(), "sweep")
	if step == nil {
		t.Fatal("missing step span")
	}
	if step.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", step.Status().Code)
	}
}

func TestEmitPlanRejectsDuplicateSteps(t *testing.T) {
	tracer, _ := newTestTracer()

	_, err := EmitPlan(context.Background(), tracer, "x", Plan{Steps: []PlannedStep{
		{ID: "a", Title: "first"},
		{ID: "a", Title: "second"},
	}})
	if err == nil {
		t.Fatal("duplicate step ids accepted")
	}
}

func TestNilOperationDegradesToBareCall(t *testing.T) {
	var op *Operation
	ran := false
	if err := op.RunStep(context.Background(), "anything", func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("step fn not invoked on nil operation")
	}
	op.End(nil)
}
