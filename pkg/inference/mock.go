package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ilkoid/toolchain/pkg/registry"
	"github.com/ilkoid/toolchain/pkg/utils"
)

// MockPlanner — захардкоженный планировщик на подстрочном матчинге.
//
// Воспроизводит поведение исходного inference-стаба: статическая таблица
// маршрутов, ключевые слова ищутся в нижнем регистре, числа вытаскиваются
// регэкспом из текста запроса. Никакого реального инференса.
//
// Thread-safe: состояния нет, таблица неизменяема после создания.
type MockPlanner struct{}

// NewMockPlanner создает мок-планировщик.
func NewMockPlanner() *MockPlanner {
	return &MockPlanner{}
}

// numberRe вытаскивает числовые операнды из текста запроса.
var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// planDoc — форма генерируемого плана (зеркалит wire-формат pkg/plan).
type planDoc struct {
	Analysis      string     `json:"analysis"`
	ToolsNeeded   []planStep `json:"tools_needed"`
	ExecutionPlan string     `json:"execution_plan"`
}

type planStep struct {
	Tool        string            `json:"tool"`
	Parameters  map[string]string `json:"parameters"`
	Order       int               `json:"order"`
	Description string            `json:"description"`
}

// GeneratePlan подбирает канонический план по ключевым словам запроса.
//
// Маршруты (первое совпадение выигрывает):
//   - "history" → calc:History
//   - "clear"   → calc:Clear
//   - add-слова И subtract-слова → двухшаговая цепочка Add, Subtract
//   - subtract-слова → calc:Subtract
//   - add-слова → calc:Add
//   - иначе → пустой план ("no tool execution needed")
//
// Числовые операнды берутся из запроса; если их не хватает,
// подставляются демо-значения 25 и 15.
func (p *MockPlanner) GeneratePlan(ctx context.Context, query string, capabilities []registry.Listing) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lower := strings.ToLower(query)
	numbers := numberRe.FindAllString(query, -1)

	operand := func(i int, fallback string) string {
		if i < len(numbers) {
			return numbers[i]
		}
		return fallback
	}

	wantsAdd := containsAny(lower, "add", "plus", "sum", "+")
	// Голый "-" в списке не нужен: он матчил бы отрицательные числа
	// ("add -5 and 3") и уводил запрос в вычитание
	wantsSubtract := containsAny(lower, "subtract", "minus", "difference")

	var doc planDoc

	switch {
	case strings.Contains(lower, "history"):
		doc = planDoc{
			Analysis: "The user wants to see the calculation history.",
			ToolsNeeded: []planStep{
				{Tool: "calc:History", Parameters: map[string]string{}, Order: 1, Description: "fetch operation history"},
			},
			ExecutionPlan: "Fetch the operation history from the calculator service.",
		}

	case strings.Contains(lower, "clear"):
		doc = planDoc{
			Analysis: "The user wants to clear the calculation history.",
			ToolsNeeded: []planStep{
				{Tool: "calc:Clear", Parameters: map[string]string{}, Order: 1, Description: "clear operation history"},
			},
			ExecutionPlan: "Clear the operation history on the calculator service.",
		}

	case wantsAdd && wantsSubtract:
		doc = planDoc{
			Analysis: fmt.Sprintf("The user wants a chained calculation over %q.", query),
			ToolsNeeded: []planStep{
				{
					Tool:       "calc:Add",
					Parameters: map[string]string{"A": operand(0, "25"), "B": operand(1, "15")},
					Order:      1, Description: "add the first two operands",
				},
				{
					Tool:       "calc:Subtract",
					Parameters: map[string]string{"A": operand(0, "25"), "B": operand(2, "10")},
					Order:      2, Description: "subtract the third operand",
				},
			},
			ExecutionPlan: "Add the first pair, then subtract the remaining operand.",
		}

	case wantsSubtract:
		doc = planDoc{
			Analysis: fmt.Sprintf("The user wants a subtraction over %q.", query),
			ToolsNeeded: []planStep{
				{
					Tool:       "calc:Subtract",
					Parameters: map[string]string{"A": operand(0, "25"), "B": operand(1, "15")},
					Order:      1, Description: "subtract B from A",
				},
			},
			ExecutionPlan: "Perform a single subtraction.",
		}

	case wantsAdd:
		doc = planDoc{
			Analysis: fmt.Sprintf("The user wants an addition over %q.", query),
			ToolsNeeded: []planStep{
				{
					Tool:       "calc:Add",
					Parameters: map[string]string{"A": operand(0, "25"), "B": operand(1, "15")},
					Order:      1, Description: "add A and B",
				},
			},
			ExecutionPlan: "Perform a single addition.",
		}

	default:
		doc = planDoc{
			Analysis:      "No tool execution needed. I can only help with calculator tasks: try asking me to add or subtract numbers.",
			ToolsNeeded:   []planStep{},
			ExecutionPlan: "",
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mock plan: %w", err)
	}

	utils.Debug("Mock plan generated", "query", query, "steps", len(doc.ToolsNeeded))
	return string(raw), nil
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Ensure MockPlanner implements Planner
var _ Planner = (*MockPlanner)(nil)
