// Реестр для хранения и поиска capabilities удалённых сервисов.
package registry

import (
	"fmt"
	"sync"

	"github.com/ilkoid/toolchain/pkg/adp"
	"github.com/ilkoid/toolchain/pkg/utils"
)

// ToolKey — составной идентификатор операции: "serviceId:actionName".
//
// Инвариант: каждый ToolKey разрешается максимум в одну CapabilityEntry.
func ToolKey(serviceID, action string) string {
	return serviceID + ":" + action
}

// CapabilityEntry — одна удалённо вызываемая операция.
//
// Создаётся при разборе announcement-документа; после этого неизменяема.
// Повторное объявление сервиса заменяет entries целиком (replace, не merge).
type CapabilityEntry struct {
	ServiceID   string
	Action      string
	Description string
	Params      []adp.Tag
	Category    string
}

// Key возвращает ToolKey этой capability.
func (e CapabilityEntry) Key() string {
	return ToolKey(e.ServiceID, e.Action)
}

// Listing — элемент списка capabilities для передачи планировщику.
type Listing struct {
	ToolKey     string
	ServiceID   string
	Action      string
	Description string
	Category    string
	Params      []adp.Tag
}

// Registry — потокобезопасное хранилище capabilities.
//
// Rule 5: Thread-safe доступ через sync.RWMutex, никаких глобальных переменных.
type Registry struct {
	mu sync.RWMutex

	// entries — ToolKey -> CapabilityEntry
	entries map[string]CapabilityEntry

	// byService — serviceID -> ToolKey'и этого сервиса (для full replace)
	byService map[string][]string
}

// NewRegistry создает новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		entries:   make(map[string]CapabilityEntry),
		byService: make(map[string][]string),
	}
}

// Register разбирает announcement-документ и регистрирует его handlers.
//
// Возвращает количество зарегистрированных capabilities.
//
// Семантика:
//   - Невалидный документ (нет маркера версии "1.0", нет handlers) —
//     no-op: возвращает 0, ошибка только логируется.
//   - Handlers с категорией core/meta (self-description) исключаются.
//   - Предыдущие entries этого serviceID заменяются целиком, не сливаются —
//     реестр отражает последнее объявление сервиса.
func (r *Registry) Register(serviceID string, doc adp.Document) int {
	if err := doc.Validate(); err != nil {
		utils.Warn("Announcement rejected", "service", serviceID, "reason", err.Error())
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Full replace: убираем всё что сервис объявлял раньше
	for _, key := range r.byService[serviceID] {
		delete(r.entries, key)
	}
	delete(r.byService, serviceID)

	var keys []string
	for _, h := range doc.Handlers {
		if h.IsCore() {
			utils.Debug("Handler excluded as core/meta", "service", serviceID, "action", h.Action)
			continue
		}

		entry := CapabilityEntry{
			ServiceID:   serviceID,
			Action:      h.Action,
			Description: h.Description,
			Params:      h.Tags,
			Category:    h.Category,
		}
		r.entries[entry.Key()] = entry
		keys = append(keys, entry.Key())
	}

	r.byService[serviceID] = keys

	utils.Info("Capabilities registered",
		"service", serviceID,
		"name", doc.Name,
		"version", doc.Version,
		"count", len(keys))

	return len(keys)
}

// Resolve ищет capability по ToolKey ("serviceId:action").
func (r *Registry) Resolve(toolKey string) (CapabilityEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[toolKey]
	if !ok {
		return CapabilityEntry{}, fmt.Errorf("tool '%s' not found", toolKey)
	}
	return entry, nil
}

// List возвращает снимок всех зарегистрированных capabilities.
//
// Порядок не значим. Используется как контекст для планировщика.
func (r *Registry) List() []Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listings := make([]Listing, 0, len(r.entries))
	for key, e := range r.entries {
		listings = append(listings, Listing{
			ToolKey:     key,
			ServiceID:   e.ServiceID,
			Action:      e.Action,
			Description: e.Description,
			Category:    e.Category,
			Params:      e.Params,
		})
	}
	return listings
}

// CountForService возвращает число зарегистрированных capabilities сервиса.
func (r *Registry) CountForService(serviceID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byService[serviceID])
}
