package chain

import (
	"context"

	"github.com/ilkoid/toolchain/pkg/transport"
	"github.com/ilkoid/toolchain/pkg/utils"
)

// Notifier — Port доставки итогового уведомления исходному requester'у.
//
// Реализация решает как именно доставить (stdout, шина сообщений, webhook).
// Доставка best-effort: ошибка логируется, задача остаётся финализированной.
type Notifier interface {
	Notify(ctx context.Context, requester string, note transport.Notification) error
}

// NotifierFunc — адаптер функции к интерфейсу Notifier.
type NotifierFunc func(ctx context.Context, requester string, note transport.Notification) error

// Notify вызывает f.
func (f NotifierFunc) Notify(ctx context.Context, requester string, note transport.Notification) error {
	return f(ctx, requester, note)
}

// LogNotifier пишет уведомления в лог приложения.
//
// Дефолтный adapter для CLI-запуска без внешней шины доставки.
type LogNotifier struct{}

// Notify логирует итог задачи.
func (LogNotifier) Notify(_ context.Context, requester string, note transport.Notification) error {
	utils.Info("Notification delivered",
		"requester", requester,
		"reference", note.Reference,
		"completed", note.Completed,
		"toolsUsed", note.ToolsUsed,
		"failed", note.FailedTools)
	return nil
}

// Ensure adapters implement Notifier
var (
	_ Notifier = (NotifierFunc)(nil)
	_ Notifier = LogNotifier{}
)
