// Интерфейс планировщика через который работает оркестратор.

// Package inference предоставляет порт инференс-коллаборатора и его адаптеры.
//
// Планировщик получает запрос пользователя и полный листинг реестра
// capabilities, и возвращает сырой текст плана (JSON-документ, возможно
// обёрнутый в markdown). Разбор и валидация — ответственность pkg/plan.
package inference

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ilkoid/toolchain/pkg/registry"
)

// Planner — контракт для любого сервиса генерации планов.
//
// Rule 11: GeneratePlan принимает context.Context для отмены.
type Planner interface {
	// GeneratePlan возвращает сырой текст плана для запроса.
	//
	// capabilities — снимок реестра, передаётся планировщику как контекст
	// доступных операций.
	GeneratePlan(ctx context.Context, query string, capabilities []registry.Listing) (string, error)
}

// FormatCapabilities превращает листинг реестра в текст для промпта.
//
// Одна строка на tool, отсортировано по ToolKey для детерминизма:
//
//	- calc:Add: Adds A and B (params: A number required, B number required)
func FormatCapabilities(capabilities []registry.Listing) string {
	sorted := append([]registry.Listing{}, capabilities...)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].ToolKey < sorted[b].ToolKey
	})

	var sb strings.Builder
	for _, c := range sorted {
		sb.WriteString(fmt.Sprintf("- %s: %s", c.ToolKey, c.Description))
		if len(c.Params) > 0 {
			parts := make([]string, 0, len(c.Params))
			for _, p := range c.Params {
				spec := p.Name + " " + p.Type
				if p.Required {
					spec += " required"
				}
				parts = append(parts, spec)
			}
			sb.WriteString(" (params: " + strings.Join(parts, ", ") + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
