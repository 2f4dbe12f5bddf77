// Package chain реализует исполнитель цепочек tool-вызовов.
//
// Оркестратор принимает задачу, запрашивает план у планировщика,
// и выполняет шаги плана строго последовательно: один invocation
// in-flight на задачу, следующий шаг уходит только после получения
// коррелированного результата предыдущего.
//
// Политика исполнения — best-effort: проваленный шаг записывается
// в леджер, цепочка продолжается со следующего шага. Итоговый статус
// агрегируется из результатов (completed / partially-failed).
//
// Package chain следует правилам из dev_manifest.md:
//   - Rule 5: Thread-safe состояние под sync.Mutex
//   - Rule 7: Все ошибки возвращаются или записываются, никаких panic
//   - Rule 11: context.Context пробрасывается через все блокирующие вызовы
package chain

import (
	"fmt"
	"sync"

	"github.com/ilkoid/toolchain/pkg/events"
	"github.com/ilkoid/toolchain/pkg/inference"
	"github.com/ilkoid/toolchain/pkg/ledger"
	"github.com/ilkoid/toolchain/pkg/plan"
	"github.com/ilkoid/toolchain/pkg/registry"
	"github.com/ilkoid/toolchain/pkg/transport"
)

// Orchestrator — state machine исполнения задач.
//
// # Lifecycle
//
//  1. Submit: задача регистрируется в леджере, requester получает reference
//  2. Планирование: асинхронный запрос плана у Planner'а
//  3. Исполнение: шаги диспетчеризуются по одному через Invoker
//  4. Финализация: агрегированный итог уходит Notifier'у
//
// # Thread Safety
//
// Карта активных исполнений защищена мьютексом; per-task прогресс
// последователен по построению (один outstanding invocation).
type Orchestrator struct {
	ledger   *ledger.Ledger
	registry *registry.Registry
	planner  inference.Planner
	invoker  transport.Invoker

	emitter  events.Emitter
	notifier Notifier

	mu     sync.Mutex
	active map[string]*execution
}

// execution — runtime-состояние одной исполняющейся задачи.
//
// Создаётся после успешного разбора плана, удаляется при финализации.
type execution struct {
	plan *plan.Plan

	// next — индекс шага, результат которого ожидается (или который
	// будет отправлен следующим). Поля корреляции входящего результата
	// обязаны совпасть с ним, иначе результат отбрасывается.
	next int

	// awaiting — true пока invocation шага next outstanding.
	// Результаты без outstanding invocation отбрасываются.
	awaiting bool
}

// Option — функциональная опция Orchestrator'а.
type Option func(*Orchestrator)

// WithEmitter подключает emitter событий (Port & Adapter, см. pkg/events).
func WithEmitter(e events.Emitter) Option {
	return func(o *Orchestrator) { o.emitter = e }
}

// WithNotifier подключает доставку итоговых уведомлений requester'у.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// NewOrchestrator создает оркестратор.
//
// Ledger, registry, planner и invoker обязательны; emitter и notifier
// подключаются опциями и могут отсутствовать (события и уведомления
// тогда не отправляются).
func NewOrchestrator(led *ledger.Ledger, reg *registry.Registry, planner inference.Planner, invoker transport.Invoker, opts ...Option) (*Orchestrator, error) {
	if led == nil || reg == nil || planner == nil || invoker == nil {
		return nil, fmt.Errorf("ledger, registry, planner and invoker are required")
	}

	o := &Orchestrator{
		ledger:   led,
		registry: reg,
		planner:  planner,
		invoker:  invoker,
		active:   make(map[string]*execution),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}
