package leaderboard

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// BOARD INTERFACE
// Реализация: Redis sorted set (infrastructure/persistence/redis).
// Источник истины - баланс в основном хранилище; доска - производная
// проекция и может быть перестроена в любой момент.
// ══════════════════════════════════════════════════════════════════════════════

// Board - быстрый рейтинг по очкам.
type Board interface {
	// SetPoints записывает баланс ученика. Баланс только растёт, поэтому
	// значение меньше сохранённого (запоздавшее событие) игнорируется.
	SetPoints(ctx context.Context, learnerID string, points int) error

	// Top возвращает первые limit строк с позициями.
	Top(ctx context.Context, limit int) ([]Entry, error)

	// RankOf возвращает строку ученика. ok=false, если ученика нет на доске.
	RankOf(ctx context.Context, learnerID string) (entry Entry, ok bool, err error)

	// Replace атомарно заменяет содержимое доски.
	Replace(ctx context.Context, entries []Entry) error
}
