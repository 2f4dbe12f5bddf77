// Package utils предоставляет вспомогательные функции для обработки данных.
//
// Включает утилиты для очистки ответов инференс-сервиса от markdown-обёртки
// перед разбором плана выполнения.
package utils

import (
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// Инференс-сервис часто возвращает план обёрнутым в markdown кодовые блоки:
//
//	```json
//	{"analysis": "...", "tools_needed": []}
//	```
//
// Эта функция очищает такие обёртки, возвращая чистый JSON для парсера плана.
//
// Примеры:
//
//	```json {"a": 1} ``` → {"a": 1}
//	``` {"a": 1} ``` → {"a": 1}
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	// Удаляем ```json в начале
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```Json")

	// Удаляем ``` в начале
	s = strings.TrimPrefix(s, "```")

	// Удаляем ``` в конце
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
