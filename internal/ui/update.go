// Логика — обрабатывает клавиши, события оркестратора и ресайз.

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/ilkoid/toolchain/pkg/events"
)

// eventMsg оборачивает событие оркестратора в tea.Msg.
type eventMsg struct {
	event events.Event
}

// subscriptionClosedMsg приходит когда канал событий закрыт.
type subscriptionClosedMsg struct{}

// waitForEvent возвращает tea.Cmd, блокирующийся на канале подписки.
//
// После каждого eventMsg команда переармируется из Update — стандартный
// Bubble Tea паттерн для долгоживущих источников.
func waitForEvent(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return subscriptionClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {

	// 1. Изменение размера окна терминала
	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := m.textarea.Height() + 2 // + граница

		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 0 {
			vpHeight = 0
		}

		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(msg.Width)

		if !m.ready {
			m.ready = true
		}
		m.refreshLog()

	// 2. Клавиши
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			m.appendLog(userMsgStyle("USER > ") + input)

			ref, err := m.orchestrator.Submit(m.ctx, input, "tui")
			if err != nil {
				m.appendLog(errorMsgStyle("ERROR: ") + err.Error())
				return m, nil
			}
			m.appendLog(systemMsgStyle("ACCEPTED: ") + ref)
		}

	// 3. Тик спиннера
	case spinner.TickMsg:
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, spCmd)

	// 4. Событие оркестратора (прилетело асинхронно)
	case eventMsg:
		m.consumeEvent(msg.event)
		// Переармируем подписку
		return m, tea.Batch(tiCmd, vpCmd, waitForEvent(m.sub))

	case subscriptionClosedMsg:
		m.appendLog(errorMsgStyle("Event stream closed."))
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

// consumeEvent превращает событие в строки лога и ведёт счётчик in-flight.
func (m *MainModel) consumeEvent(event events.Event) {
	switch event.Type {
	case events.EventTaskAccepted:
		m.inFlight++
	case events.EventTaskDone:
		if m.inFlight > 0 {
			m.inFlight--
		}
	}

	if line := formatEvent(event); line != "" {
		m.appendLog(line)
	}
}

// appendLog добавляет строку в лог и прокручивает вниз.
func (m *MainModel) appendLog(str string) {
	m.lines = append(m.lines, str)
	m.refreshLog()
}

// refreshLog перерисовывает контент вьюпорта с переносом по ширине.
func (m *MainModel) refreshLog() {
	content := strings.Join(m.lines, "\n")
	if m.viewport.Width > 0 {
		content = wordwrap.String(content, m.viewport.Width)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}
