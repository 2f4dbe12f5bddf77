// Package ledger предоставляет ошибки для работы с леджером задач.
//
// Все ошибки следуют принципам из dev_manifest.md:
//   - Rule 7: Возвращаются вверх по стеку, никаких panic
//   - Явные типы ошибок для обработки на верхних уровнях
//   - Поддержка errors.Is() и errors.As() для error wrapping
package ledger

import "fmt"

// ErrUnknownTask возвращается когда reference не найден в леджере.
//
// Коррелированный ответ с неизвестным reference логируется и
// отбрасывается — это не фатальная ошибка для оркестратора.
var ErrUnknownTask = fmt.Errorf("unknown task reference")

// ErrAlreadyFinalized возвращается при попытке мутировать завершённую задачу.
var ErrAlreadyFinalized = fmt.Errorf("task already finalized")

// UnknownTaskError — ошибка с контекстом reference.
//
// Поддерживает errors.Is() с ErrUnknownTask.
type UnknownTaskError struct {
	Reference string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task reference: %s", e.Reference)
}

// Is проверяет что ошибка является ErrUnknownTask.
func (e *UnknownTaskError) Is(target error) bool {
	return target == ErrUnknownTask
}

// WrapUnknownTask оборачивает reference в UnknownTaskError.
func WrapUnknownTask(reference string) error {
	return &UnknownTaskError{Reference: reference}
}
