package transport

import (
	"context"
	"sync"

	"github.com/ilkoid/toolchain/pkg/adp"
	"github.com/ilkoid/toolchain/pkg/utils"
)

// Service — контракт tool-провайдера, подключаемого к Router'у.
//
// Announce возвращает capability-announcement документ сервиса;
// Handle выполняет одну операцию.
//
// Rule 11: Handle принимает context.Context.
type Service interface {
	// ID возвращает идентификатор сервиса (часть ToolKey до двоеточия).
	ID() string

	// Announce возвращает announcement-документ для регистрации в реестре.
	Announce() adp.Document

	// Handle выполняет операцию и возвращает JSON payload результата.
	//
	// Ошибка означает отклонённый вызов (например, InvalidParameters);
	// Router превратит её в проваленный StepResultMsg.
	Handle(ctx context.Context, action string, params map[string]string) (string, error)
}

// ResultFunc — callback доставки коррелированного результата шага.
type ResultFunc func(ctx context.Context, msg StepResultMsg)

// Invoker — Port отправки step invocation.
//
// "Fire, then suspend": вызов не блокируется в ожидании результата,
// результат придёт позже через ResultFunc с теми же полями корреляции.
type Invoker interface {
	Invoke(ctx context.Context, inv StepInvocation)
}

// Router — in-process реализация Invoker.
//
// Диспетчеризует invocation подключённому сервису на отдельной goroutine
// и доставляет результат обратно через ResultFunc. Неизвестный сервис —
// синтезированный проваленный результат (best-effort политика цепочки).
//
// Rule 5: Thread-safe через sync.RWMutex.
type Router struct {
	mu       sync.RWMutex
	services map[string]Service
	deliver  ResultFunc
}

// NewRouter создает Router без подключённых сервисов.
//
// ResultFunc устанавливается отдельно через SetDeliver — оркестратор
// и Router создаются взаимно, поэтому связываются после конструирования.
func NewRouter() *Router {
	return &Router{
		services: make(map[string]Service),
	}
}

// Attach подключает сервис к роутеру.
func (r *Router) Attach(svc Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[svc.ID()] = svc
}

// SetDeliver устанавливает callback доставки результатов.
//
// Вызывается до первого Invoke, не требует синхронизации после старта.
func (r *Router) SetDeliver(fn ResultFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliver = fn
}

// Invoke отправляет invocation сервису.
//
// Не блокируется: выполнение идёт на отдельной goroutine, результат
// доставляется через ResultFunc с эхом TaskRef и StepIndex.
func (r *Router) Invoke(ctx context.Context, inv StepInvocation) {
	r.mu.RLock()
	svc, ok := r.services[inv.Service]
	deliver := r.deliver
	r.mu.RUnlock()

	if deliver == nil {
		utils.Error("Router has no deliver callback, dropping invocation",
			"service", inv.Service, "taskRef", inv.TaskRef)
		return
	}

	if !ok {
		utils.Warn("Invocation for unknown service", "service", inv.Service, "taskRef", inv.TaskRef)
		deliver(ctx, StepResultMsg{
			TaskRef:   inv.TaskRef,
			StepIndex: inv.StepIndex,
			Tool:      inv.Service + ":" + inv.Action,
			Success:   Bool(false),
			Err:       "service not available: " + inv.Service,
		})
		return
	}

	go func() {
		payload, err := svc.Handle(ctx, inv.Action, inv.Params)

		msg := StepResultMsg{
			TaskRef:   inv.TaskRef,
			StepIndex: inv.StepIndex,
			Tool:      inv.Service + ":" + inv.Action,
			Payload:   payload,
		}
		if err != nil {
			msg.Success = Bool(false)
			msg.Err = err.Error()
		} else {
			msg.Success = Bool(true)
		}

		deliver(ctx, msg)
	}()
}

// Ensure Router implements Invoker
var _ Invoker = (*Router)(nil)
