// Package events предоставляет интерфейсы для реализации Port & Adapter паттерна.
//
// Это Port (интерфейс) для подписки на события оркестратора цепочек.
// Позволяет подключать любые UI (TUI, Web, CLI) без изменения библиотечной логики.
//
// # Port & Adapter Pattern
//
//	Port — это интерфейс (Emitter, Subscriber), определённый в библиотеке.
//	Adapter — это реализация интерфейса для конкретного UI (TUI, Web, etc).
//
// # Basic Usage
//
//	// В библиотеке (pkg/chain/):
//	orch := chain.NewOrchestrator(..., chain.WithEmitter(emitter))
//
//	// В UI (internal/ui/):
//	sub := emitter.Subscribe()
//	for event := range sub.Events() {
//	    switch event.Type {
//	    case events.EventStepDispatched:
//	        ui.showSpinner()
//	    case events.EventTaskDone:
//	        ui.showResult(event.Data)
//	    }
//	}
//
// # Thread Safety
//
// Все реализации интерфейсов должны быть thread-safe.
//
// # Rule 11: Context Propagation
//
// Emitter.Emit() принимает context.Context для отмены операции.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события оркестратора.
type EventType string

const (
	// EventTaskAccepted отправляется когда задача принята и получила reference.
	EventTaskAccepted EventType = "task_accepted"

	// EventPlanReceived отправляется когда план получен и разобран.
	EventPlanReceived EventType = "plan_received"

	// EventStepDispatched отправляется когда шаг цепочки отправлен сервису.
	EventStepDispatched EventType = "step_dispatched"

	// EventStepResult отправляется когда пришёл коррелированный результат шага.
	EventStepResult EventType = "step_result"

	// EventTaskDone отправляется когда задача завершена (включая partial failure).
	EventTaskDone EventType = "task_done"

	// EventError отправляется при ошибке уровня задачи (malformed plan и т.п.).
	EventError EventType = "error"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс,
// что обеспечивает compile-time type safety.
type EventData interface {
	eventData()
}

// TaskAcceptedData содержит данные для EventTaskAccepted.
type TaskAcceptedData struct {
	Reference string
	Query     string
	Requester string
}

func (TaskAcceptedData) eventData() {}

// PlanReceivedData содержит данные для EventPlanReceived.
type PlanReceivedData struct {
	Reference string
	StepCount int
	Analysis  string
}

func (PlanReceivedData) eventData() {}

// StepDispatchedData содержит данные об отправленном шаге.
type StepDispatchedData struct {
	Reference string
	StepIndex int
	ToolKey   string
}

func (StepDispatchedData) eventData() {}

// StepResultData содержит результат выполнения шага.
type StepResultData struct {
	Reference string
	StepIndex int
	ToolKey   string
	Success   bool
	Payload   string
}

func (StepResultData) eventData() {}

// TaskDoneData содержит агрегированный итог задачи.
type TaskDoneData struct {
	Reference  string
	Requester  string
	Body       string
	ToolsUsed  int
	Successful int
	Failed     int
	Duration   time.Duration
}

func (TaskDoneData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Reference string
	Err       error
}

func (ErrorData) eventData() {}

// Event представляет событие оркестратора.
//
// Data содержит типизированные данные события (EventData).
// Для каждого EventType существует соответствующий тип данных:
//   - EventTaskAccepted: TaskAcceptedData
//   - EventPlanReceived: PlanReceivedData
//   - EventStepDispatched: StepDispatchedData
//   - EventStepResult: StepResultData
//   - EventTaskDone: TaskDoneData
//   - EventError: ErrorData
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// Emitter — это Port для отправки событий.
//
// Emitter инвертирует зависимость: библиотека (pkg/chain) зависит
// от этого интерфейса, а не от конкретного UI.
//
// Rule 11: все операции должны уважать context.Context.
type Emitter interface {
	// Emit отправляет событие.
	//
	// Если context отменён, операция должна прерваться.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
//
// Rule 5: thread-safe операции.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при вызове Close().
	Events() <-chan Event

	// Close закрывает канал событий и освобождает ресурсы.
	Close()
}
