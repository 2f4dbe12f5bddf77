// Package transport определяет коррелированные сообщения между оркестратором
// и tool-сервисами, и in-process Router для их доставки.
//
// Каждое invocation-сообщение несёт два поля корреляции: reference задачи
// и индекс шага. Ответ обязан эхом вернуть оба — по ним исполнитель цепочки
// сопоставляет результат с ожидающим шагом.
//
// Decode-and-validate на границе: внутри системы ходят только эти
// типизированные структуры, никаких duck-typed payload'ов.
package transport

import (
	"encoding/json"
	"time"
)

// StepInvocation — сообщение вызова шага, отправляемое tool-сервису.
type StepInvocation struct {
	Service   string            `json:"service"`
	Action    string            `json:"action"`
	Params    map[string]string `json:"params"`
	TaskRef   string            `json:"taskRef"`
	StepIndex int               `json:"stepIndex"`
}

// StepResultMsg — коррелированный результат шага от tool-сервиса.
//
// Success — явный дискриминатор успеха. Исторический формат ответов его
// не нёс, поэтому поле опционально: при nil применяется задокументированный
// fallback — отсутствие явного success=false в payload трактуется как успех.
type StepResultMsg struct {
	TaskRef   string `json:"taskRef"`
	StepIndex int    `json:"stepIndex"`
	Tool      string `json:"tool"`
	Success   *bool  `json:"success,omitempty"`
	Payload   string `json:"payload,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Succeeded вычисляет успех шага.
//
// Порядок проверки:
//  1. Явный дискриминатор Success, если задан.
//  2. Непустой Err — провал.
//  3. Fallback: если payload декодируется и несёт "success": false — провал,
//     иначе успех. (Наследие протокола; подстрочный поиск слова "error"
//     намеренно не используется — он срабатывал на невинных payload'ах.)
func (m StepResultMsg) Succeeded() bool {
	if m.Success != nil {
		return *m.Success
	}
	if m.Err != "" {
		return false
	}

	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal([]byte(m.Payload), &probe); err == nil && probe.Success != nil {
		return *probe.Success
	}

	return true
}

// ToolResult — элемент toolResults в итоговом уведомлении.
type ToolResult struct {
	StepIndex   int       `json:"stepIndex"`
	Tool        string    `json:"tool"`
	Success     bool      `json:"success"`
	Output      string    `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// Notification — финальное уведомление исходному requester'у.
//
// Форма одинакова для Completed и PartiallyFailed задач: различие статусов
// advisory, requester смотрит на счётчики.
type Notification struct {
	Reference       string        `json:"reference"`
	Task            string        `json:"task"`
	AIAnalysis      string        `json:"aiAnalysis"`
	ExecutionPlan   string        `json:"executionPlan"`
	ToolsUsed       int           `json:"toolsUsed"`
	SuccessfulTools int           `json:"successfulTools"`
	FailedTools     int           `json:"failedTools"`
	ToolResults     []ToolResult  `json:"toolResults"`
	Duration        time.Duration `json:"duration"`
	Completed       bool          `json:"completed"`
}

// Helper для создания указателя на bool (явный дискриминатор).
func Bool(v bool) *bool {
	return &v
}
