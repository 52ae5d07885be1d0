package storage

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	`
-- The 'items' table stores one row per study item and its revision state.
CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY,
    subject TEXT NOT NULL DEFAULT '',
    topic TEXT NOT NULL,
    trigger_line TEXT NOT NULL DEFAULT '',
    pyq_years TEXT NOT NULL DEFAULT '',
    high_yield INTEGER NOT NULL DEFAULT 0,
    revision_count INTEGER NOT NULL DEFAULT 0,
    fail_count INTEGER NOT NULL DEFAULT 0,
    last_reviewed TEXT, -- RFC 3339, NULL when never reviewed
    next_due TEXT,      -- RFC 3339, NULL means due
    created_at TEXT NOT NULL
);

-- The 'cards' table holds at most one study card per item.
CREATE TABLE IF NOT EXISTS cards (
    item_id INTEGER PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    bullets TEXT NOT NULL DEFAULT '[]',     -- JSON array
    image_paths TEXT NOT NULL DEFAULT '[]', -- JSON array
    external_url TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

-- The 'sources' table tracks where captured notes come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL DEFAULT 'local',
    path TEXT NOT NULL UNIQUE,
    subject TEXT NOT NULL DEFAULT '',
    last_scanned TEXT
);
`,
	`
-- Day-level streak bookkeeping, a single row.
CREATE TABLE IF NOT EXISTS progress (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    streak INTEGER NOT NULL DEFAULT 0,
    last_day TEXT,
    completed_today INTEGER NOT NULL DEFAULT 0
);
`,
}
