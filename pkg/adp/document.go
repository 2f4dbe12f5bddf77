// Package adp реализует разбор capability-announcement документов.
//
// ADP (announcement protocol) — версионированный формат, которым сервис
// объявляет свои вызываемые операции и схемы их параметров:
//
//	{
//	  "protocolVersion": "1.0",
//	  "name": "calc",
//	  "version": "1.0.0",
//	  "handlers": [
//	    {"action": "Add", "description": "...", "tags": [...], "category": "math"}
//	  ]
//	}
//
// Принимаются только документы с protocolVersion == "1.0" и непустым
// списком handlers. Всё остальное — MalformedAnnouncement.
//
// Rule 7: Все ошибки возвращаются, никаких panic.
package adp

import (
	"encoding/json"
	"fmt"
)

// Version — единственная поддерживаемая версия протокола объявлений.
const Version = "1.0"

// Tag описывает один параметр операции: имя, заявленный тип и обязательность.
type Tag struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Handler описывает одну вызываемую операцию сервиса.
//
// Category используется реестром для фильтрации: операции с категорией
// "core" или "meta" (self-description и т.п.) не регистрируются как tools.
type Handler struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Tags        []Tag  `json:"tags"`
	Category    string `json:"category"`
}

// Document — capability-announcement документ целиком.
type Document struct {
	ProtocolVersion string    `json:"protocolVersion"`
	Name            string    `json:"name"`
	Version         string    `json:"version"`
	Handlers        []Handler `json:"handlers"`
}

// MalformedAnnouncementError — документ не прошёл валидацию.
//
// Регистрация такого документа — no-op (возвращает 0 capabilities),
// ошибка только логируется.
type MalformedAnnouncementError struct {
	Reason string
}

func (e *MalformedAnnouncementError) Error() string {
	return fmt.Sprintf("malformed announcement: %s", e.Reason)
}

// Parse разбирает JSON-байты в Document и валидирует его.
//
// Возвращает *MalformedAnnouncementError если документ не декодируется
// или не проходит Validate.
func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, &MalformedAnnouncementError{Reason: fmt.Sprintf("not decodable: %v", err)}
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate проверяет маркер версии и список handlers.
//
// Валидирует:
//   - ProtocolVersion == "1.0"
//   - Handlers не пустой
//   - У каждого handler непустой Action
func (d Document) Validate() error {
	if d.ProtocolVersion != Version {
		return &MalformedAnnouncementError{
			Reason: fmt.Sprintf("unsupported protocolVersion '%s', want '%s'", d.ProtocolVersion, Version),
		}
	}
	if len(d.Handlers) == 0 {
		return &MalformedAnnouncementError{Reason: "handlers list is missing or empty"}
	}
	for i, h := range d.Handlers {
		if h.Action == "" {
			return &MalformedAnnouncementError{Reason: fmt.Sprintf("handlers[%d]: action is empty", i)}
		}
	}
	return nil
}

// IsCore сообщает, относится ли handler к служебной категории.
//
// Служебные операции (self-description) исключаются из регистрации.
func (h Handler) IsCore() bool {
	return h.Category == "core" || h.Category == "meta"
}
