package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/toolchain/pkg/events"
	"github.com/ilkoid/toolchain/pkg/ledger"
	"github.com/ilkoid/toolchain/pkg/plan"
	"github.com/ilkoid/toolchain/pkg/transport"
	"github.com/ilkoid/toolchain/pkg/utils"
)

// Submit принимает новую задачу.
//
// Возвращает reference немедленно — планирование и исполнение идут
// асинхронно, итог придёт Notifier'ом. Переданный context должен жить
// дольше задачи (обычно это контекст приложения, не запроса).
func (o *Orchestrator) Submit(ctx context.Context, query, requester string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	ref := o.ledger.Create(query, requester)

	utils.Info("Task accepted", "reference", ref, "requester", requester)
	o.emit(ctx, events.EventTaskAccepted, events.TaskAcceptedData{
		Reference: ref,
		Query:     query,
		Requester: requester,
	})

	go o.runPlanning(ctx, ref, query)

	return ref, nil
}

// runPlanning запрашивает и разбирает план, затем запускает цепочку.
func (o *Orchestrator) runPlanning(ctx context.Context, ref, query string) {
	raw, err := o.planner.GeneratePlan(ctx, query, o.registry.List())
	if err != nil {
		o.failTask(ctx, ref, fmt.Errorf("plan request failed: %w", err))
		return
	}

	p, err := plan.Parse(raw)
	if err != nil {
		o.failTask(ctx, ref, fmt.Errorf("plan rejected: %w", err))
		return
	}

	o.emit(ctx, events.EventPlanReceived, events.PlanReceivedData{
		Reference: ref,
		StepCount: len(p.Steps),
		Analysis:  p.Analysis,
	})

	// Пустой план валиден: задача завершается сразу, тело ответа —
	// только analysis, без единого tool-вызова.
	if p.Empty() {
		utils.Info("Plan is empty, completing without tool execution", "reference", ref)
		o.finalize(ctx, ref, p)
		return
	}

	if err := o.ledger.MarkExecuting(ref); err != nil {
		utils.Error("Failed to mark task executing", "reference", ref, "error", err)
		return
	}

	o.mu.Lock()
	o.active[ref] = &execution{plan: p}
	o.mu.Unlock()

	o.advance(ctx, ref)
}

// advance диспетчеризует следующий шаг задачи или финализирует её.
//
// Шаги с неразрешимым tool'ом проваливаются на месте (без invocation)
// и цепочка идёт дальше — best-effort политика.
func (o *Orchestrator) advance(ctx context.Context, ref string) {
	for {
		o.mu.Lock()
		exec, ok := o.active[ref]
		if !ok {
			o.mu.Unlock()
			return
		}

		if exec.next >= len(exec.plan.Steps) {
			delete(o.active, ref)
			o.mu.Unlock()

			o.finalize(ctx, ref, exec.plan)
			return
		}

		idx := exec.next
		step := exec.plan.Steps[idx]

		if _, err := o.registry.Resolve(step.Tool); err != nil {
			exec.next++
			o.mu.Unlock()

			utils.Warn("Step references unknown tool, skipping",
				"reference", ref, "stepIndex", idx, "tool", step.Tool)
			o.recordResult(ctx, ref, ledger.StepResult{
				Index:       idx,
				ToolKey:     step.Tool,
				Success:     false,
				Err:         fmt.Sprintf("tool '%s' not found", step.Tool),
				CompletedAt: time.Now(),
			})
			continue
		}

		// Результат будет принят только пока invocation outstanding
		exec.awaiting = true
		o.mu.Unlock()

		service, action, _ := strings.Cut(step.Tool, ":")

		utils.Debug("Dispatching step",
			"reference", ref, "stepIndex", idx, "tool", step.Tool)
		o.emit(ctx, events.EventStepDispatched, events.StepDispatchedData{
			Reference: ref,
			StepIndex: idx,
			ToolKey:   step.Tool,
		})

		o.invoker.Invoke(ctx, transport.StepInvocation{
			Service:   service,
			Action:    action,
			Params:    step.Parameters,
			TaskRef:   ref,
			StepIndex: idx,
		})
		return
	}
}

// OnStepResult принимает коррелированный результат шага.
//
// Корреляция: TaskRef обязан указывать на активную задачу, StepIndex —
// совпасть с ожидаемым (outstanding) шагом. Всё прочее — неизвестный
// reference, устаревший или дублирующийся индекс, результат без
// outstanding invocation — логируется и отбрасывается, состояние
// задачи не меняется.
func (o *Orchestrator) OnStepResult(ctx context.Context, msg transport.StepResultMsg) {
	o.mu.Lock()
	exec, ok := o.active[msg.TaskRef]
	if !ok {
		o.mu.Unlock()
		utils.Warn("Step result for unknown or finished task, discarding",
			"taskRef", msg.TaskRef, "stepIndex", msg.StepIndex)
		return
	}

	if !exec.awaiting || msg.StepIndex != exec.next {
		want := exec.next
		o.mu.Unlock()
		utils.Warn("Step result with stale correlation, discarding",
			"taskRef", msg.TaskRef, "got", msg.StepIndex, "want", want)
		return
	}

	exec.awaiting = false
	exec.next++
	o.mu.Unlock()

	o.recordResult(ctx, msg.TaskRef, ledger.StepResult{
		Index:       msg.StepIndex,
		ToolKey:     msg.Tool,
		Success:     msg.Succeeded(),
		Payload:     msg.Payload,
		Err:         msg.Err,
		CompletedAt: time.Now(),
	})

	o.advance(ctx, msg.TaskRef)
}

// recordResult пишет результат шага в леджер и эмитит событие.
func (o *Orchestrator) recordResult(ctx context.Context, ref string, res ledger.StepResult) {
	if err := o.ledger.AppendResult(ref, res); err != nil {
		utils.Error("Failed to append step result", "reference", ref, "error", err)
		return
	}

	o.emit(ctx, events.EventStepResult, events.StepResultData{
		Reference: ref,
		StepIndex: res.Index,
		ToolKey:   res.ToolKey,
		Success:   res.Success,
		Payload:   res.Payload,
	})
}

// finalize агрегирует результаты, финализирует задачу и уведомляет requester'а.
func (o *Orchestrator) finalize(ctx context.Context, ref string, p *plan.Plan) {
	snapshot, err := o.ledger.Get(ref)
	if err != nil {
		utils.Error("Cannot finalize unknown task", "reference", ref, "error", err)
		return
	}

	var succeeded, failed int
	for _, r := range snapshot.Results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}

	status := ledger.StatusCompleted
	if failed > 0 {
		status = ledger.StatusPartiallyFailed
	}

	task, err := o.ledger.Complete(ref, status)
	if err != nil {
		utils.Error("Failed to complete task", "reference", ref, "error", err)
		return
	}

	note := buildNotification(task, p, succeeded, failed)

	utils.Info("Task finished",
		"reference", ref,
		"status", string(status),
		"toolsUsed", note.ToolsUsed,
		"failed", failed,
		"duration_ms", note.Duration.Milliseconds())

	o.emit(ctx, events.EventTaskDone, events.TaskDoneData{
		Reference:  ref,
		Requester:  task.Requester,
		Body:       renderBody(note),
		ToolsUsed:  note.ToolsUsed,
		Successful: succeeded,
		Failed:     failed,
		Duration:   note.Duration,
	})

	o.deliver(ctx, task.Requester, note)
}

// failTask финализирует задачу как целиком проваленную.
//
// Используется для ошибок уровня задачи (malformed plan, недоступный
// планировщик) — до начала исполнения цепочки.
func (o *Orchestrator) failTask(ctx context.Context, ref string, cause error) {
	utils.Error("Task failed", "reference", ref, "error", cause)

	task, err := o.ledger.Complete(ref, ledger.StatusFailed)
	if err != nil {
		utils.Error("Failed to finalize failed task", "reference", ref, "error", err)
		return
	}

	o.emit(ctx, events.EventError, events.ErrorData{Reference: ref, Err: cause})

	note := transport.Notification{
		Reference:   ref,
		Task:        task.Query,
		AIAnalysis:  cause.Error(),
		ToolResults: []transport.ToolResult{},
		Duration:    task.CompletedAt.Sub(task.CreatedAt),
		Completed:   false,
	}

	o.emit(ctx, events.EventTaskDone, events.TaskDoneData{
		Reference: ref,
		Requester: task.Requester,
		Body:      renderBody(note),
		Duration:  note.Duration,
	})

	o.deliver(ctx, task.Requester, note)
}

// buildNotification собирает итоговое уведомление из снимка задачи.
func buildNotification(task ledger.Task, p *plan.Plan, succeeded, failed int) transport.Notification {
	results := make([]transport.ToolResult, 0, len(task.Results))
	for _, r := range task.Results {
		results = append(results, transport.ToolResult{
			StepIndex:   r.Index,
			Tool:        r.ToolKey,
			Success:     r.Success,
			Output:      r.Payload,
			Error:       r.Err,
			CompletedAt: r.CompletedAt,
		})
	}

	return transport.Notification{
		Reference:       task.Reference,
		Task:            task.Query,
		AIAnalysis:      p.Analysis,
		ExecutionPlan:   p.ExecutionPlan,
		ToolsUsed:       len(task.Results),
		SuccessfulTools: succeeded,
		FailedTools:     failed,
		ToolResults:     results,
		Duration:        task.CompletedAt.Sub(task.CreatedAt),
		Completed:       true,
	}
}

// renderBody строит человекочитаемое тело итогового сообщения.
//
// Для задачи без tool-вызовов тело — только analysis планировщика.
func renderBody(n transport.Notification) string {
	if n.ToolsUsed == 0 {
		return n.AIAnalysis
	}

	var b strings.Builder
	b.WriteString(n.AIAnalysis)
	b.WriteString(fmt.Sprintf("\n\nExecuted %d tool(s): %d succeeded, %d failed (%.2fs).",
		n.ToolsUsed, n.SuccessfulTools, n.FailedTools, n.Duration.Seconds()))

	for _, r := range n.ToolResults {
		if r.Success {
			b.WriteString(fmt.Sprintf("\n  [%d] %s: %s", r.StepIndex, r.Tool, r.Output))
		} else {
			b.WriteString(fmt.Sprintf("\n  [%d] %s FAILED: %s", r.StepIndex, r.Tool, r.Error))
		}
	}

	return b.String()
}

// emit отправляет событие, если emitter подключён.
func (o *Orchestrator) emit(ctx context.Context, t events.EventType, data events.EventData) {
	if o.emitter == nil {
		return
	}
	o.emitter.Emit(ctx, events.Event{Type: t, Data: data, Timestamp: time.Now()})
}

// deliver отправляет итоговое уведомление, если notifier подключён.
func (o *Orchestrator) deliver(ctx context.Context, requester string, note transport.Notification) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, requester, note); err != nil {
		utils.Error("Failed to deliver notification",
			"reference", note.Reference, "requester", requester, "error", err)
	}
}
