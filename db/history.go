package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vitstts/internal/app/history"
)

func (db *DB) GetHistory(ctx context.Context, chatID string) (*history.History, error) {
	var data string

	err := db.db.QueryRowContext(ctx, `
		select history
		from chat_history
		where chat_id = $1
	`, chatID).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", parseErr(err))
	}

	h := &history.History{}
	if err := json.Unmarshal([]byte(data), h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	return h, nil
}

func (db *DB) SaveHistory(ctx context.Context, chatID string, h *history.History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	_, err = db.db.ExecContext(ctx, `
		insert into chat_history (chat_id, history, updated_at)
		values ($1, $2, $3)
		on conflict (chat_id) do update set
			history = excluded.history,
			updated_at = excluded.updated_at
	`, chatID, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	return nil
}
