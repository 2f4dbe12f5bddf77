// Package calc реализует калькулятор-сервис — tool-провайдера для оркестратора.
//
// Сервис отвечает на операции Add/Subtract/History/Clear/Info и объявляет
// их через announcement-документ. История операций хранится в sqlite.
package calc

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// HistoryEntry — одна запись истории вычислений.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Operation string    `json:"operation"`
	A         float64   `json:"a"`
	B         float64   `json:"b"`
	Result    float64   `json:"result"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryStore — sqlite-хранилище истории операций.
//
// database/sql сам обеспечивает пул соединений и потокобезопасность;
// дополнительной синхронизации не требуется.
type HistoryStore struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS calc_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	operation  TEXT NOT NULL,
	a          REAL NOT NULL,
	b          REAL NOT NULL,
	result     REAL NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// NewHistoryStore открывает sqlite базу по DSN и создаёт схему.
//
// Для in-memory базы используйте DSN с cache=shared — database/sql
// открывает несколько соединений, и обычный ":memory:" дал бы каждому
// соединению свою пустую базу.
func NewHistoryStore(dsn string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

// Record сохраняет выполненную операцию в историю.
func (s *HistoryStore) Record(ctx context.Context, operation string, a, b, result float64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO calc_history (operation, a, b, result) VALUES (?, ?, ?, ?)",
		operation, a, b, result)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// List возвращает последние limit записей истории, новые первыми.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, operation, a, b, result, created_at FROM calc_history ORDER BY id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Operation, &e.A, &e.B, &e.Result, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history scan failed: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Clear удаляет все записи истории.
//
// Возвращает число удалённых записей.
func (s *HistoryStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM calc_history")
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

// Close закрывает соединение с базой.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
