// Package ledger предоставляет thread-safe леджер in-flight задач оркестрации.
//
// Леджер — это keyed mapping: reference -> состояние задачи. Он используется
// для корреляции асинхронных ответов с исходным запросом и requester'ом.
//
// Package ledger следует правилам из dev_manifest.md:
//   - Rule 5: Thread-safe доступ через sync.RWMutex, никаких глобальных переменных
//   - Rule 6: Library code готовый к переиспользованию, без зависимостей от internal/
//   - Rule 7: Все ошибки возвращаются, никаких panic в бизнес-логике
//   - Rule 10: Все public API имеют godoc комментарии
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/toolchain/pkg/utils"
)

// Status — текущий статус задачи.
type Status string

const (
	// StatusPendingPlan — задача создана, план ещё не получен.
	StatusPendingPlan Status = "pending-plan"

	// StatusExecuting — цепочка шагов выполняется.
	StatusExecuting Status = "executing"

	// StatusCompleted — все шаги выполнены успешно (или шагов не было).
	StatusCompleted Status = "completed"

	// StatusPartiallyFailed — цепочка дошла до конца, но часть шагов провалилась.
	// Различие с StatusCompleted advisory: форма итогового сообщения одинакова.
	StatusPartiallyFailed Status = "partially-failed"

	// StatusFailed — задача провалена целиком (malformed plan и т.п.).
	StatusFailed Status = "failed"
)

// Final сообщает является ли статус терминальным.
func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusPartiallyFailed || s == StatusFailed
}

// StepResult — результат одного шага цепочки.
//
// Добавляется в Task исполнителем цепочки; после добавления не мутируется.
type StepResult struct {
	Index       int       `json:"stepIndex"`
	ToolKey     string    `json:"tool"`
	Success     bool      `json:"success"`
	Payload     string    `json:"payload,omitempty"`
	Err         string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// Task — одна in-flight задача оркестрации.
//
// Владелец — леджер; мутации проходят только через его методы.
type Task struct {
	Reference   string       `json:"reference"`
	Query       string       `json:"query"`
	Requester   string       `json:"requester"`
	Status      Status       `json:"status"`
	Results     []StepResult `json:"results"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt time.Time    `json:"completedAt,omitempty"`
}

// ArchiveSink — порт для выгрузки финализированных задач перед evict'ом.
//
// Реализуется pkg/archive (S3-совместимое хранилище). nil sink — архивация
// выключена, janitor просто удаляет задачи по истечении retention.
type ArchiveSink interface {
	Store(ctx context.Context, reference string, data []byte) error
}

// Ledger — thread-safe хранилище задач.
//
// Rule 5: все мутации под sync.RWMutex. Транзакционных multi-key гарантий
// нет и не требуется: задачи с разными reference не пересекаются.
type Ledger struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewLedger создает новый пустой леджер.
func NewLedger() *Ledger {
	return &Ledger{
		tasks: make(map[string]*Task),
	}
}

// NewReference конструирует уникальный reference задачи.
//
// Timestamp + случайный фрагмент UUID: монотонно различимо и без коллизий
// при ожидаемой низкой частоте запросов.
func NewReference() string {
	ts := time.Now().UTC().Format("20060102T150405")
	frag := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("task-%s-%s", ts, frag)
}

// Create регистрирует новую задачу в статусе pending-plan.
//
// Возвращает сгенерированный reference.
func (l *Ledger) Create(query, requester string) string {
	ref := NewReference()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.tasks[ref] = &Task{
		Reference: ref,
		Query:     query,
		Requester: requester,
		Status:    StatusPendingPlan,
		Results:   make([]StepResult, 0),
		CreatedAt: time.Now(),
	}

	return ref
}

// Get возвращает копию задачи по reference.
//
// Возвращает копию, чтобы избежать race condition при изменении.
func (l *Ledger) Get(reference string) (Task, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tasks[reference]
	if !ok {
		return Task{}, WrapUnknownTask(reference)
	}

	snapshot := *t
	snapshot.Results = append([]StepResult{}, t.Results...)
	return snapshot, nil
}

// MarkExecuting переводит задачу в статус executing.
func (l *Ledger) MarkExecuting(reference string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[reference]
	if !ok {
		return WrapUnknownTask(reference)
	}
	if t.Status.Final() {
		return fmt.Errorf("%w: %s", ErrAlreadyFinalized, reference)
	}

	t.Status = StatusExecuting
	return nil
}

// AppendResult добавляет StepResult к задаче.
//
// Результаты добавляются строго по одному, в порядке шагов — это
// обеспечивает исполнитель цепочки; леджер только хранит.
func (l *Ledger) AppendResult(reference string, result StepResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[reference]
	if !ok {
		return WrapUnknownTask(reference)
	}
	if t.Status.Final() {
		return fmt.Errorf("%w: %s", ErrAlreadyFinalized, reference)
	}

	t.Results = append(t.Results, result)
	return nil
}

// ResultCount возвращает число записанных результатов шагов.
func (l *Ledger) ResultCount(reference string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tasks[reference]
	if !ok {
		return 0, WrapUnknownTask(reference)
	}
	return len(t.Results), nil
}

// Complete финализирует задачу с указанным терминальным статусом.
//
// Возвращает снимок финализированной задачи. Задача остаётся доступной
// для Get в течение retention-окна (см. RunJanitor).
func (l *Ledger) Complete(reference string, status Status) (Task, error) {
	if !status.Final() {
		return Task{}, fmt.Errorf("status '%s' is not terminal", status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[reference]
	if !ok {
		return Task{}, WrapUnknownTask(reference)
	}
	if t.Status.Final() {
		return Task{}, fmt.Errorf("%w: %s", ErrAlreadyFinalized, reference)
	}

	t.Status = status
	t.CompletedAt = time.Now()

	snapshot := *t
	snapshot.Results = append([]StepResult{}, t.Results...)
	return snapshot, nil
}

// Len возвращает число задач в леджере (включая финализированные).
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tasks)
}

// Sweep удаляет финализированные задачи старше retention.
//
// Если sink != nil, задача сначала выгружается в архив как JSON; при ошибке
// выгрузки задача остаётся в леджере до следующего прохода.
//
// Возвращает число удалённых задач.
func (l *Ledger) Sweep(ctx context.Context, retention time.Duration, sink ArchiveSink) int {
	l.mu.Lock()
	expired := make([]*Task, 0)
	for _, t := range l.tasks {
		if t.Status.Final() && time.Since(t.CompletedAt) > retention {
			expired = append(expired, t)
		}
	}
	l.mu.Unlock()

	evicted := 0
	for _, t := range expired {
		if sink != nil {
			data, err := json.Marshal(t)
			if err != nil {
				utils.Error("Failed to marshal task for archive", "reference", t.Reference, "error", err)
				continue
			}
			if err := sink.Store(ctx, t.Reference, data); err != nil {
				utils.Warn("Archive upload failed, keeping task until next sweep",
					"reference", t.Reference, "error", err)
				continue
			}
		}

		l.mu.Lock()
		delete(l.tasks, t.Reference)
		l.mu.Unlock()
		evicted++
	}

	if evicted > 0 {
		utils.Debug("Ledger sweep finished", "evicted", evicted)
	}

	return evicted
}

// RunJanitor периодически вызывает Sweep до отмены контекста.
//
// Rule 11: завершается по ctx.Done().
func (l *Ledger) RunJanitor(ctx context.Context, interval, retention time.Duration, sink ArchiveSink) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(ctx, retention, sink)
		}
	}
}
