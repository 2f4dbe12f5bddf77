// Рендер
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ilkoid/toolchain/pkg/events"
)

func (m MainModel) View() string {
	if !m.ready {
		return "Initializing UI..."
	}

	// Строка статуса (Header)
	status := fmt.Sprintf(" TOOLCHAIN | in-flight: %d ", m.inFlight)
	if m.inFlight > 0 {
		status = m.spinner.View() + status
	}

	header := headerStyle.
		Width(m.viewport.Width).
		Render(status)

	border := lipgloss.NewStyle().
		Foreground(grayColor).
		Width(m.viewport.Width).
		Render("──────────────────────────────────────────────────")

	// Header + Viewport + Border + Input
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		header,
		m.viewport.View(),
		border,
		m.textarea.View(),
	)
}

// formatEvent превращает событие оркестратора в строку лога.
//
// Пустая строка — событие не показывается.
func formatEvent(event events.Event) string {
	switch data := event.Data.(type) {
	case events.TaskAcceptedData:
		// Принятие уже залогировано при вводе (ACCEPTED: ref)
		return ""

	case events.PlanReceivedData:
		return systemMsgStyle(fmt.Sprintf("PLAN %s: ", data.Reference)) +
			fmt.Sprintf("%d step(s)", data.StepCount)

	case events.StepDispatchedData:
		return systemMsgStyle(fmt.Sprintf("STEP %d: ", data.StepIndex)) +
			fmt.Sprintf("%s dispatched", data.ToolKey)

	case events.StepResultData:
		if data.Success {
			return systemMsgStyle(fmt.Sprintf("STEP %d: ", data.StepIndex)) +
				fmt.Sprintf("%s ok", data.ToolKey)
		}
		return errorMsgStyle(fmt.Sprintf("STEP %d: ", data.StepIndex)) +
			fmt.Sprintf("%s failed", data.ToolKey)

	case events.TaskDoneData:
		var b strings.Builder
		b.WriteString(systemMsgStyle(fmt.Sprintf("DONE %s ", data.Reference)))
		b.WriteString(fmt.Sprintf("(%d tools, %d failed, %.2fs)\n",
			data.ToolsUsed, data.Failed, data.Duration.Seconds()))
		b.WriteString(data.Body)
		return b.String()

	case events.ErrorData:
		return errorMsgStyle("ERROR: ") + data.Err.Error()

	default:
		return ""
	}
}
