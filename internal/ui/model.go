// Package ui реализует Model компонент Bubble Tea TUI.
//
// Монитор оркестратора: лог событий задач + поле ввода новых запросов.
// UI — чистый Adapter над events.Subscriber (Port & Adapter, pkg/events),
// библиотечная логика о нём не знает.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/toolchain/pkg/chain"
	"github.com/ilkoid/toolchain/pkg/events"
)

// MainModel представляет главную модель UI (Bubble Tea Model).
//
// Содержит все компоненты TUI:
//   - viewport: область лога событий (только для чтения)
//   - textarea: поле ввода запроса
//   - spinner: индикатор выполняющихся задач
//   - orchestrator: приём новых задач
//   - sub: подписка на события оркестратора
type MainModel struct {
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// ctx — контекст приложения: живёт дольше задач, отменяется
	// при shutdown чтобы освободить заблокированные Emit'ы
	ctx context.Context

	orchestrator *chain.Orchestrator
	sub          events.Subscriber

	// inFlight — число задач между accepted и done
	inFlight int

	lines []string
	ready bool
}

// InitialModel создает начальное состояние UI.
func InitialModel(ctx context.Context, orch *chain.Orchestrator, sub events.Subscriber) MainModel {
	ta := textarea.New()
	ta.Placeholder = "Describe a task (e.g. 'add 25 and 15 then subtract 10')..."
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return MainModel{
		textarea:     ta,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		ctx:          ctx,
		orchestrator: orch,
		sub:          sub,
		lines:        make([]string, 0, 64),
	}
}

// Init запускается один раз при старте.
func (m MainModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, waitForEvent(m.sub))
}
