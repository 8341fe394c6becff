package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hilthontt/huddle/internal/domain"
)

type sqliteRoomRepository struct {
	db *sql.DB
}

func NewSQLiteRoomRepository(db *sql.DB) domain.RoomRepository {
	return &sqliteRoomRepository{db: db}
}

func (r *sqliteRoomRepository) InitializeSequence(ctx context.Context, name string) error {
	if name == "" {
		return domain.ErrInvalidInput
	}

	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO sequences (name, value) VALUES (?, 0)`, name)
	if err != nil {
		return fmt.Errorf("initialize sequence %s: %w", name, err)
	}
	return nil
}

func (r *sqliteRoomRepository) NextID(ctx context.Context, sequence string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE sequences SET value = value + 1 WHERE name = ?`, sequence)
	if err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", sequence, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, fmt.Errorf("sequence %s is not initialized", sequence)
	}

	var value int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM sequences WHERE name = ?`, sequence).Scan(&value); err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", sequence, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return value, nil
}

func (r *sqliteRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, created_by, created_at) VALUES (?, ?, ?, ?)`,
		room.ID, room.Name, room.CreatedBy, toMillis(room.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: room %s already exists", domain.ErrInvalidInput, room.ID)
		}
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (r *sqliteRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	var (
		room      domain.Room
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM rooms WHERE id = ?`, id,
	).Scan(&room.ID, &room.Name, &room.CreatedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("select room: %w", err)
	}

	room.CreatedAt = fromMillis(createdAt)
	return &room, nil
}

func (r *sqliteRoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_by, created_at FROM rooms ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []domain.Room{}
	for rows.Next() {
		var (
			room      domain.Room
			createdAt int64
		)
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		room.CreatedAt = fromMillis(createdAt)
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
