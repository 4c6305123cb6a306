package matching

import (
	"context"
)

// Repository определяет операции с записями Match.
type Repository interface {
	// UpsertMutual сохраняет Match и переводит исходы обоих пользователей
	// друг для друга в matched одной транзакцией. Повторный вызов для той же
	// пары обновляет существующую запись, CreatedAt сохраняется.
	UpsertMutual(ctx context.Context, m *Match) error

	// Save перезаписывает оценку и общие элементы существующей записи.
	Save(ctx context.Context, m *Match) error

	// Get возвращает запись пары в любом порядке аргументов.
	// Возвращает shared.ErrMatchNotFound, если записи нет.
	Get(ctx context.Context, userA, userB string) (*Match, error)

	// ListByUser возвращает все записи с участием пользователя.
	ListByUser(ctx context.Context, userID string) ([]*Match, error)
}
