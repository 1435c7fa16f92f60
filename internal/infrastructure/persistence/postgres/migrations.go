package postgres

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_session_events", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_progress_and_ledger", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_groups", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: SESSION EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Raw meditation sessions. One row per (user, instant).
CREATE TABLE IF NOT EXISTS session_events (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL,
    day_index INTEGER NOT NULL CHECK (day_index > 0),
    duration_minutes BIGINT NOT NULL CHECK (duration_minutes > 0),
    activity_type SMALLINT NOT NULL CHECK (activity_type BETWEEN 1 AND 5),
    notes TEXT NOT NULL DEFAULT '',
    CONSTRAINT session_events_user_instant UNIQUE (user_id, recorded_at)
);

CREATE INDEX IF NOT EXISTS idx_session_events_user_day ON session_events (user_id, day_index);
`

const migration001Down = `
DROP TABLE IF EXISTS session_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: USER PROGRESS AND ACHIEVEMENT LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Rolling per-user aggregate, always replaced as a whole.
CREATE TABLE IF NOT EXISTS user_progress (
    user_id TEXT PRIMARY KEY,
    total_sessions BIGINT NOT NULL DEFAULT 0,
    total_duration BIGINT NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    last_active_day INTEGER NOT NULL DEFAULT 0,
    activity_types SMALLINT[] NOT NULL DEFAULT '{}',
    achievement_ids BIGINT[] NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT user_progress_types_cap CHECK (cardinality(activity_types) <= 10),
    CONSTRAINT user_progress_achievements_cap CHECK (cardinality(achievement_ids) <= 100)
);

-- Append-only ledger. The sequence is never reset, so ids are never reused.
CREATE TABLE IF NOT EXISTS achievements (
    id BIGSERIAL PRIMARY KEY,
    owner_id TEXT NOT NULL,
    category VARCHAR(20) NOT NULL,
    milestone BIGINT NOT NULL CHECK (milestone > 0),
    description VARCHAR(64) NOT NULL,
    awarded_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT achievements_owner_milestone UNIQUE (owner_id, category, milestone)
);

CREATE INDEX IF NOT EXISTS idx_achievements_owner ON achievements (owner_id, id);
`

const migration002Down = `
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS user_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: GROUPS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS groups (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(64) NOT NULL,
    creator_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS group_members (
    seq BIGSERIAL,
    group_id BIGINT NOT NULL REFERENCES groups (id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (group_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members (user_id);
`

const migration003Down = `
DROP TABLE IF EXISTS group_members;
DROP TABLE IF EXISTS groups;
`
