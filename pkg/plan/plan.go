// Package plan реализует разбор плана выполнения от инференс-коллаборатора.
//
// План приходит как loosely-typed JSON документ:
//
//	{
//	  "analysis": "...",
//	  "tools_needed": [
//	    {"tool": "calc:Add", "parameters": {"A": "25", "B": "15"}, "order": 1, "description": "..."}
//	  ],
//	  "execution_plan": "..."
//	}
//
// Decode-and-validate один раз на границе; внутри системы ходят только
// строго типизированные структуры (Plan, Step).
//
// Rule 7: Все ошибки возвращаются, никаких panic.
package plan

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ilkoid/toolchain/pkg/utils"
)

// Step — один элемент плана выполнения.
//
// Tool — ToolKey ("serviceId:action"), на этом этапе ещё не проверенный
// по реестру. Order — 1-based порядковый номер; если в документе
// отсутствует, берётся позиция в массиве.
//
// Step создаётся парсером и больше не мутируется.
type Step struct {
	Tool        string            `json:"tool"`
	Parameters  map[string]string `json:"parameters"`
	Order       int               `json:"order"`
	Description string            `json:"description"`
}

// Plan — разобранный план: анализ, упорядоченные шаги, итоговое резюме.
//
// Живёт только пока выполняется задача; после завершения отбрасывается.
type Plan struct {
	Analysis      string `json:"analysis"`
	Steps         []Step `json:"tools_needed"`
	ExecutionPlan string `json:"execution_plan"`
}

// Empty сообщает что план не требует выполнения инструментов.
//
// Пустой (но присутствующий) список шагов — валидный план: оркестрация
// сразу доставляет финальный результат с текстом анализа.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}

// ParseError — план не well-formed.
//
// Отличать от пустого списка шагов: отсутствующее поле tools_needed —
// ошибка, присутствующее пустое — валидный "no tool execution needed".
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed plan: %s", e.Reason)
}

// rawPlan — промежуточная структура для различения "поле отсутствует"
// и "поле пустое" через указатель на slice.
type rawPlan struct {
	Analysis      *string           `json:"analysis"`
	Steps         *[]rawStep        `json:"tools_needed"`
	ExecutionPlan string            `json:"execution_plan"`
}

type rawStep struct {
	Tool        string            `json:"tool"`
	Parameters  map[string]string `json:"parameters"`
	Order       *int              `json:"order"`
	Description string            `json:"description"`
}

// Parse разбирает и нормализует текст плана.
//
// Текст сначала очищается от markdown-обёртки (инференс-сервис любит
// заворачивать JSON в ```json блоки).
//
// Нормализация:
//   - order по умолчанию — позиция шага в массиве (1-based)
//   - шаги сортируются по возрастанию order; при равных order порядок
//     исходного массива сохраняется (stable)
//   - nil parameters заменяется пустой map
//
// Возвращает *ParseError если документ не декодируется или в нём нет
// поля tools_needed.
func Parse(raw string) (*Plan, error) {
	cleaned := utils.CleanJsonBlock(raw)
	if cleaned == "" {
		return nil, &ParseError{Reason: "empty document"}
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(cleaned), &rp); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("not decodable: %v", err)}
	}

	if rp.Steps == nil {
		return nil, &ParseError{Reason: "missing tools_needed field"}
	}

	p := &Plan{
		ExecutionPlan: rp.ExecutionPlan,
	}
	if rp.Analysis != nil {
		p.Analysis = *rp.Analysis
	}

	p.Steps = make([]Step, 0, len(*rp.Steps))
	for i, rs := range *rp.Steps {
		if rs.Tool == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("tools_needed[%d]: missing tool reference", i)}
		}

		order := i + 1
		if rs.Order != nil {
			order = *rs.Order
		}

		params := rs.Parameters
		if params == nil {
			params = make(map[string]string)
		}

		p.Steps = append(p.Steps, Step{
			Tool:        rs.Tool,
			Parameters:  params,
			Order:       order,
			Description: rs.Description,
		})
	}

	// Шаги выполняются строго по возрастанию order; tie-break — позиция
	// в исходном массиве (stable, без вторичного ключа)
	sort.SliceStable(p.Steps, func(a, b int) bool {
		return p.Steps[a].Order < p.Steps[b].Order
	})

	return p, nil
}
