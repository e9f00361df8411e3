package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Slot is a single string-keyed value in storage_slots.
type Slot struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

type SlotRepository struct {
	db *sql.DB
}

func NewSlotRepository(db *sql.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) Get(ctx context.Context, key string) (string, error) {
	slot, err := r.Find(ctx, key)
	if err != nil {
		return "", err
	}
	return slot.Value, nil
}

func (r *SlotRepository) Find(ctx context.Context, key string) (*Slot, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT slot_key, value, updated_at
		 FROM storage_slots
		 WHERE slot_key = ?`,
		key,
	)

	var slot Slot
	var updatedAt string
	if err := row.Scan(&slot.Key, &slot.Value, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get slot %s: %w", key, err)
	}

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse slot updated_at: %w", err)
	}
	slot.UpdatedAt = parsedUpdatedAt
	return &slot, nil
}

// Set replaces the whole value stored under key.
func (r *SlotRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO storage_slots (slot_key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(slot_key) DO UPDATE SET
		     value = excluded.value,
		     updated_at = excluded.updated_at`,
		key,
		value,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set slot %s: %w", key, err)
	}
	return nil
}
