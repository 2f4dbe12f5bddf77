package calc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ilkoid/toolchain/pkg/adp"
	"github.com/ilkoid/toolchain/pkg/config"
	"github.com/ilkoid/toolchain/pkg/transport"
	"github.com/ilkoid/toolchain/pkg/utils"
)

// ServiceID — идентификатор сервиса в ToolKey.
const ServiceID = "calc"

// Service — калькулятор-сервис, реализует transport.Service.
//
// Вся арифметика тривиальна; интересная часть — announcement-документ
// и контракт ошибок: невалидные параметры отклоняются с эхом полученных
// значений для диагностики (InvalidParameters).
type Service struct {
	history      *HistoryStore
	historyLimit int
}

// NewService создает калькулятор-сервис с sqlite историей.
func NewService(cfg config.CalcConfig) (*Service, error) {
	cfg = cfg.GetDefaults()

	store, err := NewHistoryStore(cfg.HistoryDSN)
	if err != nil {
		return nil, err
	}

	return &Service{
		history:      store,
		historyLimit: cfg.HistoryLimit,
	}, nil
}

// ID возвращает идентификатор сервиса.
func (s *Service) ID() string {
	return ServiceID
}

// Announce возвращает announcement-документ сервиса.
//
// Info имеет категорию core: реестр исключит его из регистрации,
// это self-description операция, не tool.
func (s *Service) Announce() adp.Document {
	numberParams := []adp.Tag{
		{Name: "A", Type: "number", Required: true, Description: "first operand"},
		{Name: "B", Type: "number", Required: true, Description: "second operand"},
	}

	return adp.Document{
		ProtocolVersion: adp.Version,
		Name:            "Calculator",
		Version:         "1.0.0",
		Handlers: []adp.Handler{
			{Action: "Add", Description: "Adds A and B", Tags: numberParams, Category: "math"},
			{Action: "Subtract", Description: "Subtracts B from A", Tags: numberParams, Category: "math"},
			{Action: "History", Description: "Returns recent calculation history", Tags: []adp.Tag{}, Category: "state"},
			{Action: "Clear", Description: "Clears the calculation history", Tags: []adp.Tag{}, Category: "state"},
			{Action: "Info", Description: "Returns service self-description", Tags: []adp.Tag{}, Category: "core"},
		},
	}
}

// Handle выполняет одну операцию сервиса.
//
// Возвращаемый payload — JSON с явным полем success (см. Open Question
// про success-эвристику: сервис всегда шлёт явный дискриминатор).
//
// Rule 7: невалидный вызов — ошибка, не panic.
func (s *Service) Handle(ctx context.Context, action string, params map[string]string) (string, error) {
	switch action {
	case "Add":
		return s.binaryOp(ctx, "add", params, func(a, b float64) float64 { return a + b })

	case "Subtract":
		return s.binaryOp(ctx, "subtract", params, func(a, b float64) float64 { return a - b })

	case "History":
		return s.handleHistory(ctx)

	case "Clear":
		return s.handleClear(ctx)

	case "Info":
		return s.handleInfo()

	default:
		return "", fmt.Errorf("unknown action '%s'", action)
	}
}

// parseOperands валидирует пару числовых параметров A и B.
//
// InvalidParameters: полученные значения эхом возвращаются в тексте
// ошибки, чтобы requester мог диагностировать проблему.
func parseOperands(params map[string]string) (float64, float64, error) {
	rawA, okA := params["A"]
	rawB, okB := params["B"]
	if !okA || !okB {
		return 0, 0, fmt.Errorf("invalid parameters: A and B are required, got A=%q B=%q", rawA, rawB)
	}

	a, errA := strconv.ParseFloat(rawA, 64)
	b, errB := strconv.ParseFloat(rawB, 64)
	if errA != nil || errB != nil {
		return 0, 0, fmt.Errorf("invalid parameters: A and B must be numeric, got A=%q B=%q", rawA, rawB)
	}

	return a, b, nil
}

func (s *Service) binaryOp(ctx context.Context, op string, params map[string]string, fn func(a, b float64) float64) (string, error) {
	a, b, err := parseOperands(params)
	if err != nil {
		return "", err
	}

	result := fn(a, b)

	if err := s.history.Record(ctx, op, a, b, result); err != nil {
		// История best-effort: вычисление уже выполнено, не проваливаем шаг
		utils.Warn("Failed to record history entry", "operation", op, "error", err)
	}

	payload, err := json.Marshal(map[string]any{
		"success":   true,
		"operation": op,
		"a":         a,
		"b":         b,
		"result":    result,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	return string(payload), nil
}

func (s *Service) handleHistory(ctx context.Context) (string, error) {
	entries, err := s.history.List(ctx, s.historyLimit)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"success": true,
		"count":   len(entries),
		"entries": entries,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal history: %w", err)
	}

	return string(payload), nil
}

func (s *Service) handleClear(ctx context.Context) (string, error) {
	removed, err := s.history.Clear(ctx)
	if err != nil {
		return "", err
	}

	payload, _ := json.Marshal(map[string]any{
		"success": true,
		"cleared": removed,
	})
	return string(payload), nil
}

func (s *Service) handleInfo() (string, error) {
	doc := s.Announce()
	payload, err := json.Marshal(map[string]any{
		"success":         true,
		"name":            doc.Name,
		"version":         doc.Version,
		"protocolVersion": doc.ProtocolVersion,
		"handlers":        len(doc.Handlers),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal info: %w", err)
	}
	return string(payload), nil
}

// Close освобождает ресурсы сервиса.
func (s *Service) Close() error {
	return s.history.Close()
}

// Ensure Service implements transport.Service
var _ transport.Service = (*Service)(nil)
