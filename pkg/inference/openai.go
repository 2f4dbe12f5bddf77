// Адаптер планировщика для OpenAI-совместимых API.
//
// Соблюдает правило 4 манифеста: оркестратор работает только через
// интерфейс inference.Planner, о конкретном провайдере не знает.
package inference

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ilkoid/toolchain/pkg/config"
	"github.com/ilkoid/toolchain/pkg/registry"
	"github.com/ilkoid/toolchain/pkg/utils"
)

// systemPromptTemplate — инструкция планировщику.
//
// Модель обязана вернуть чистый JSON в wire-формате плана
// (analysis / tools_needed / execution_plan).
const systemPromptTemplate = `You are a task planner for a tool orchestration system.
Given a user task, produce a JSON plan with exactly these fields:
  "analysis": string — your reasoning about the task,
  "tools_needed": array of {"tool": "serviceId:action", "parameters": {string: string}, "order": integer, "description": string},
  "execution_plan": string — a short execution summary.
Use only tools from the list below. If no tool fits, return an empty tools_needed array
and put the full answer into "analysis".

Available tools:
%s`

// OpenAIPlanner реализует Planner поверх OpenAI-совместимого API.
//
// Запросы ограничены rate limiter'ом (запросов в минуту из конфига),
// на каждый запрос накладывается timeout.
type OpenAIPlanner struct {
	api         *openai.Client
	model       string
	temperature float64
	limiter     *rate.Limiter
	timeout     time.Duration
}

// NewOpenAIPlanner создает планировщик на основе конфигурации.
//
// Поддержка custom BaseURL для non-OpenAI провайдеров (Zai, DeepSeek и т.д.).
//
// Правило 2: Все настройки из конфигурации, никакого хардкода.
func NewOpenAIPlanner(cfg config.InferenceConfig) (*OpenAIPlanner, error) {
	cfg = cfg.GetDefaults()

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("inference api_key is required for openai planner")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid inference timeout '%s': %w", cfg.Timeout, err)
	}

	return &OpenAIPlanner{
		api:         openai.NewClientWithConfig(clientCfg),
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimit)), cfg.BurstLimit),
		timeout:     timeout,
	}, nil
}

// GeneratePlan запрашивает план у модели.
//
// Алгоритм:
//  1. Ждём слот у rate limiter'а (уважая context)
//  2. Собираем system prompt с листингом capabilities
//  3. Вызываем API в JSON mode с timeout'ом
//  4. Возвращаем сырой текст — разбор на стороне pkg/plan
//
// Правило 7: Все ошибки возвращаются, никаких panic.
func (p *OpenAIPlanner) GeneratePlan(ctx context.Context, query string, capabilities []registry.Listing) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	startTime := time.Now()

	systemPrompt := fmt.Sprintf(systemPromptTemplate, FormatCapabilities(capabilities))

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(p.temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	}

	resp, err := p.api.CreateChatCompletion(reqCtx, req)
	if err != nil {
		return "", fmt.Errorf("plan request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("plan request returned no choices")
	}

	utils.Debug("Plan received from model",
		"model", p.model,
		"duration_ms", time.Since(startTime).Milliseconds(),
		"length", len(resp.Choices[0].Message.Content))

	return resp.Choices[0].Message.Content, nil
}

// Ensure OpenAIPlanner implements Planner
var _ Planner = (*OpenAIPlanner)(nil)
