package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AggregateRepository implements progress.AggregateStore on user_progress.
// The owned achievement list is stored as an id array and rehydrated from the ledger.
type AggregateRepository struct {
	q Querier
}

// NewAggregateRepository creates a repository bound to a pool or a transaction.
func NewAggregateRepository(q Querier) *AggregateRepository {
	return &AggregateRepository{q: q}
}

// Get returns the stored aggregate or the zero-state default.
func (r *AggregateRepository) Get(ctx context.Context, user shared.UserID) (*progress.UserAggregate, error) {
	var (
		totalSessions, totalDuration int64
		streak, lastDay              int32
		types                        []int16
		ids                          []int64
		updatedAt                    time.Time
	)
	err := r.q.QueryRow(ctx, `
		SELECT total_sessions, total_duration, current_streak, last_active_day,
		       activity_types, achievement_ids, updated_at
		FROM user_progress WHERE user_id = $1`, string(user),
	).Scan(&totalSessions, &totalDuration, &streak, &lastDay, &types, &ids, &updatedAt)
	if err != nil {
		if IsNoRows(err) {
			return progress.NewUserAggregate(user), nil
		}
		return nil, fmt.Errorf("postgres: get aggregate: %w", err)
	}

	agg := progress.NewUserAggregate(user)
	agg.TotalSessions = uint64(totalSessions)
	agg.TotalDuration = uint64(totalDuration)
	agg.CurrentStreak = uint32(streak)
	agg.LastActiveDay = uint32(lastDay)
	agg.UpdatedAt = updatedAt
	for _, t := range types {
		agg.ActivityTypesSeen = append(agg.ActivityTypesSeen, activity.Type(t))
	}
	if len(ids) == 0 {
		return agg, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT a.id, a.category, a.milestone
		FROM unnest($1::bigint[]) WITH ORDINALITY AS o(id, pos)
		JOIN achievements a ON a.id = o.id
		ORDER BY o.pos`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: load owned achievements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        int64
			category  string
			milestone int64
		)
		if err := rows.Scan(&id, &category, &milestone); err != nil {
			return nil, fmt.Errorf("postgres: scan owned achievement: %w", err)
		}
		agg.Achievements = append(agg.Achievements, progress.OwnedAchievement{
			ID:        progress.AchievementID(id),
			Category:  progress.Category(category),
			Milestone: uint64(milestone),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate owned achievements: %w", err)
	}
	return agg, nil
}

// Put replaces the user's aggregate.
func (r *AggregateRepository) Put(ctx context.Context, agg *progress.UserAggregate) error {
	if err := agg.Validate(); err != nil {
		return err
	}

	types := make([]int16, len(agg.ActivityTypesSeen))
	for i, t := range agg.ActivityTypesSeen {
		types[i] = int16(t)
	}
	ids := make([]int64, len(agg.Achievements))
	for i, o := range agg.Achievements {
		ids[i] = int64(o.ID)
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO user_progress (user_id, total_sessions, total_duration, current_streak,
		                           last_active_day, activity_types, achievement_ids, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_sessions = EXCLUDED.total_sessions,
			total_duration = EXCLUDED.total_duration,
			current_streak = EXCLUDED.current_streak,
			last_active_day = EXCLUDED.last_active_day,
			activity_types = EXCLUDED.activity_types,
			achievement_ids = EXCLUDED.achievement_ids,
			updated_at = NOW()`,
		string(agg.UserID),
		int64(agg.TotalSessions),
		int64(agg.TotalDuration),
		int32(agg.CurrentStreak),
		int32(agg.LastActiveDay),
		types,
		ids,
	)
	if err != nil {
		return fmt.Errorf("postgres: put aggregate: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements progress.Ledger on the achievements table.
// Ids come from a BIGSERIAL sequence, which is not rolled back with the transaction.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a repository bound to a pool or a transaction.
func NewLedgerRepository(q Querier) *LedgerRepository {
	return &LedgerRepository{q: q}
}

const achievementColumns = `id, owner_id, category, milestone, description, awarded_at`

// Create inserts a new ledger entry.
func (r *LedgerRepository) Create(ctx context.Context, owner shared.UserID, award progress.Award) (*progress.Achievement, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO achievements (owner_id, category, milestone, description, awarded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		string(owner), string(award.Category), int64(award.Milestone), award.Description, award.AwardedAt,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, shared.ErrDuplicateAward
		}
		return nil, fmt.Errorf("postgres: create achievement: %w", err)
	}
	return award.ToAchievement(progress.AchievementID(id), owner), nil
}

// Get returns the achievement or shared.ErrAchievementNotFound.
func (r *LedgerRepository) Get(ctx context.Context, id progress.AchievementID) (*progress.Achievement, error) {
	row := r.q.QueryRow(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = $1`, int64(id))
	a, err := scanAchievement(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAchievementNotFound
		}
		return nil, fmt.Errorf("postgres: get achievement: %w", err)
	}
	return a, nil
}

// ListByOwner returns the owner's achievements in award order.
func (r *LedgerRepository) ListByOwner(ctx context.Context, owner shared.UserID) ([]*progress.Achievement, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+achievementColumns+` FROM achievements WHERE owner_id = $1 ORDER BY id`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("postgres: list achievements: %w", err)
	}
	defer rows.Close()

	out := make([]*progress.Achievement, 0)
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAchievement(row rowScanner) (*progress.Achievement, error) {
	var (
		id          int64
		owner       string
		category    string
		milestone   int64
		description string
		awardedAt   time.Time
	)
	if err := row.Scan(&id, &owner, &category, &milestone, &description, &awardedAt); err != nil {
		return nil, err
	}
	return &progress.Achievement{
		ID:          progress.AchievementID(id),
		Owner:       shared.UserID(owner),
		Category:    progress.Category(category),
		Milestone:   uint64(milestone),
		Description: description,
		AwardedAt:   awardedAt,
	}, nil
}

var (
	_ progress.AggregateStore = (*AggregateRepository)(nil)
	_ progress.Ledger         = (*LedgerRepository)(nil)
)
