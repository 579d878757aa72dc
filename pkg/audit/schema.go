package audit

// schema contains the SQL statements to create the audit log schema.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    occurred_at DATETIME NOT NULL,
    action      TEXT NOT NULL,
    repo        TEXT,
    package     TEXT,
    version     TEXT,
    architecture TEXT,
    actor       TEXT,
    outcome     TEXT NOT NULL,
    detail      TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_repo ON events(repo);
CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
`
