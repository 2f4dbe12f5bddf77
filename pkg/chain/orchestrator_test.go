package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/toolchain/pkg/adp"
	"github.com/ilkoid/toolchain/pkg/ledger"
	"github.com/ilkoid/toolchain/pkg/registry"
	"github.com/ilkoid/toolchain/pkg/transport"
)

const testTimeout = 2 * time.Second

// stubPlanner возвращает заранее заданный сырой план.
type stubPlanner struct {
	raw string
	err error
}

func (s stubPlanner) GeneratePlan(_ context.Context, _ string, _ []registry.Listing) (string, error) {
	return s.raw, s.err
}

// captureInvoker складывает invocations в канал, результат инъектируется тестом.
type captureInvoker struct {
	ch chan transport.StepInvocation
}

func newCaptureInvoker() *captureInvoker {
	return &captureInvoker{ch: make(chan transport.StepInvocation, 8)}
}

func (c *captureInvoker) Invoke(_ context.Context, inv transport.StepInvocation) {
	c.ch <- inv
}

type delivered struct {
	requester string
	note      transport.Notification
}

type harness struct {
	orch    *Orchestrator
	ledger  *ledger.Ledger
	invoker *captureInvoker
	notes   chan delivered
}

func newHarness(t *testing.T, planner stubPlanner) *harness {
	t.Helper()

	reg := registry.NewRegistry()
	count := reg.Register("calc", adp.Document{
		ProtocolVersion: adp.Version,
		Name:            "Calculator",
		Version:         "1.0.0",
		Handlers: []adp.Handler{
			{Action: "Add", Description: "Adds A and B", Tags: []adp.Tag{}},
			{Action: "Subtract", Description: "Subtracts B from A", Tags: []adp.Tag{}},
		},
	})
	require.Equal(t, 2, count)

	led := ledger.NewLedger()
	inv := newCaptureInvoker()
	notes := make(chan delivered, 4)

	orch, err := NewOrchestrator(led, reg, planner, inv,
		WithNotifier(NotifierFunc(func(_ context.Context, requester string, note transport.Notification) error {
			notes <- delivered{requester: requester, note: note}
			return nil
		})))
	require.NoError(t, err)

	return &harness{orch: orch, ledger: led, invoker: inv, notes: notes}
}

func (h *harness) waitInvocation(t *testing.T) transport.StepInvocation {
	t.Helper()
	select {
	case inv := <-h.invoker.ch:
		return inv
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for invocation")
		return transport.StepInvocation{}
	}
}

func (h *harness) waitNotification(t *testing.T) delivered {
	t.Helper()
	select {
	case d := <-h.notes:
		return d
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for notification")
		return delivered{}
	}
}

func (h *harness) assertNoInvocation(t *testing.T) {
	t.Helper()
	select {
	case inv := <-h.invoker.ch:
		t.Fatalf("unexpected invocation: %+v", inv)
	case <-time.After(50 * time.Millisecond):
	}
}

const twoStepPlan = `{
	"analysis": "Add then subtract.",
	"tools_needed": [
		{"tool": "calc:Add", "parameters": {"A": "25", "B": "15"}, "order": 1, "description": "add"},
		{"tool": "calc:Subtract", "parameters": {"A": "40", "B": "10"}, "order": 2, "description": "subtract"}
	],
	"execution_plan": "Two sequential calculator calls."
}`

func TestOrchestrator_SuccessfulChain(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: twoStepPlan})
	ctx := context.Background()

	ref, err := h.orch.Submit(ctx, "add 25 and 15 then subtract 10", "tester")
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	inv1 := h.waitInvocation(t)
	assert.Equal(t, "calc", inv1.Service)
	assert.Equal(t, "Add", inv1.Action)
	assert.Equal(t, ref, inv1.TaskRef)
	assert.Equal(t, 0, inv1.StepIndex)

	// Строго последовательно: второй шаг не уходит до результата первого
	h.assertNoInvocation(t)

	h.orch.OnStepResult(ctx, transport.StepResultMsg{
		TaskRef: ref, StepIndex: 0, Tool: "calc:Add",
		Success: transport.Bool(true), Payload: `{"success":true,"result":40}`,
	})

	inv2 := h.waitInvocation(t)
	assert.Equal(t, "Subtract", inv2.Action)
	assert.Equal(t, 1, inv2.StepIndex)

	h.orch.OnStepResult(ctx, transport.StepResultMsg{
		TaskRef: ref, StepIndex: 1, Tool: "calc:Subtract",
		Success: transport.Bool(true), Payload: `{"success":true,"result":30}`,
	})

	d := h.waitNotification(t)
	assert.Equal(t, "tester", d.requester)
	assert.True(t, d.note.Completed)
	assert.Equal(t, 2, d.note.ToolsUsed)
	assert.Equal(t, 2, d.note.SuccessfulTools)
	assert.Equal(t, 0, d.note.FailedTools)
	require.Len(t, d.note.ToolResults, 2)
	assert.Equal(t, "calc:Add", d.note.ToolResults[0].Tool)

	task, err := h.ledger.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, task.Status)
}

func TestOrchestrator_EmptyPlanShortCircuits(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: `{
		"analysis": "No tool execution needed.",
		"tools_needed": [],
		"execution_plan": ""
	}`})

	ref, err := h.orch.Submit(context.Background(), "tell me a joke", "tester")
	require.NoError(t, err)

	d := h.waitNotification(t)
	assert.True(t, d.note.Completed)
	assert.Equal(t, 0, d.note.ToolsUsed)
	assert.Equal(t, "No tool execution needed.", d.note.AIAnalysis)

	// Ни одного invocation не было
	h.assertNoInvocation(t)

	task, err := h.ledger.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, task.Status)
	assert.Empty(t, task.Results)
}

func TestOrchestrator_MalformedPlanFailsTask(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: `{"analysis": "missing tools_needed"}`})

	ref, err := h.orch.Submit(context.Background(), "do something", "tester")
	require.NoError(t, err)

	d := h.waitNotification(t)
	assert.False(t, d.note.Completed)
	assert.Contains(t, d.note.AIAnalysis, "plan rejected")

	task, err := h.ledger.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, task.Status)

	h.assertNoInvocation(t)
}

func TestOrchestrator_PlannerErrorFailsTask(t *testing.T) {
	h := newHarness(t, stubPlanner{err: assert.AnError})

	ref, err := h.orch.Submit(context.Background(), "do something", "tester")
	require.NoError(t, err)

	d := h.waitNotification(t)
	assert.False(t, d.note.Completed)

	task, err := h.ledger.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, task.Status)
}

func TestOrchestrator_FailedStepDoesNotStopChain(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: twoStepPlan})
	ctx := context.Background()

	ref, err := h.orch.Submit(ctx, "chained calc", "tester")
	require.NoError(t, err)

	inv1 := h.waitInvocation(t)
	h.orch.OnStepResult(ctx, transport.StepResultMsg{
		TaskRef: ref, StepIndex: inv1.StepIndex, Tool: "calc:Add",
		Success: transport.Bool(false), Err: "invalid parameters: A=\"x\" B=\"15\"",
	})

	// Цепочка продолжается несмотря на провал
	inv2 := h.waitInvocation(t)
	assert.Equal(t, "Subtract", inv2.Action)

	h.orch.OnStepResult(ctx, transport.StepResultMsg{
		TaskRef: ref, StepIndex: inv2.StepIndex, Tool: "calc:Subtract",
		Success: transport.Bool(true), Payload: `{"success":true,"result":30}`,
	})

	d := h.waitNotification(t)
	assert.True(t, d.note.Completed)
	assert.Equal(t, 2, d.note.ToolsUsed)
	assert.Equal(t, 1, d.note.SuccessfulTools)
	assert.Equal(t, 1, d.note.FailedTools)

	task, err := h.ledger.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPartiallyFailed, task.Status)
}

func TestOrchestrator_UnknownToolSkippedWithoutInvocation(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: `{
		"analysis": "Uses a tool that does not exist.",
		"tools_needed": [
			{"tool": "calc:Divide", "parameters": {"A": "10", "B": "2"}, "order": 1},
			{"tool": "calc:Add", "parameters": {"A": "1", "B": "2"}, "order": 2}
		],
		"execution_plan": "divide then add"
	}`})
	ctx := context.Background()

	ref, err := h.orch.Submit(ctx, "divide and add", "tester")
	require.NoError(t, err)

	// Divide не зарегистрирован: проваливается на месте, Add уходит сразу
	inv := h.waitInvocation(t)
	assert.Equal(t, "Add", inv.Action)
	assert.Equal(t, 1, inv.StepIndex)

	h.orch.OnStepResult(ctx, transport.StepResultMsg{
		TaskRef: ref, StepIndex: 1, Tool: "calc:Add",
		Success: transport.Bool(true), Payload: `{"success":true,"result":3}`,
	})

	d := h.waitNotification(t)
	assert.Equal(t, 2, d.note.ToolsUsed)
	assert.Equal(t, 1, d.note.FailedTools)
	require.Len(t, d.note.ToolResults, 2)
	assert.False(t, d.note.ToolResults[0].Success)
	assert.Contains(t, d.note.ToolResults[0].Error, "not found")
}

func TestOrchestrator_StaleResultDiscarded(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: twoStepPlan})
	ctx := context.Background()

	ref, err := h.orch.Submit(ctx, "chained calc", "tester")
	require.NoError(t, err)

	h.waitInvocation(t)

	// Результат с чужим индексом шага отбрасывается
	h.orch.OnStepResult(ctx, transport.StepResultMsg{
		TaskRef: ref, StepIndex: 5, Tool: "calc:Add",
		Success: transport.Bool(true),
	})

	count, err := h.ledger.ResultCount(ref)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	h.assertNoInvocation(t)
}

func TestOrchestrator_DuplicateResultDiscarded(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: twoStepPlan})
	ctx := context.Background()

	ref, err := h.orch.Submit(ctx, "chained calc", "tester")
	require.NoError(t, err)

	h.waitInvocation(t)
	msg := transport.StepResultMsg{
		TaskRef: ref, StepIndex: 0, Tool: "calc:Add",
		Success: transport.Bool(true), Payload: `{"success":true}`,
	}
	h.orch.OnStepResult(ctx, msg)
	h.waitInvocation(t)

	// Дубликат результата первого шага: второй invocation уже outstanding,
	// индекс 0 устарел — запись не добавляется
	h.orch.OnStepResult(ctx, msg)

	count, err := h.ledger.ResultCount(ref)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOrchestrator_ResultForUnknownTaskDiscarded(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: twoStepPlan})

	h.orch.OnStepResult(context.Background(), transport.StepResultMsg{
		TaskRef: "task-00000000T000000-dead", StepIndex: 0, Tool: "calc:Add",
		Success: transport.Bool(true),
	})

	h.assertNoInvocation(t)
}

func TestOrchestrator_EmptyQueryRejected(t *testing.T) {
	h := newHarness(t, stubPlanner{raw: twoStepPlan})

	_, err := h.orch.Submit(context.Background(), "   ", "tester")
	assert.Error(t, err)
}

func TestNewOrchestrator_RequiresDependencies(t *testing.T) {
	_, err := NewOrchestrator(nil, nil, nil, nil)
	assert.Error(t, err)
}
