package storage

const schemaV1 = `
CREATE TABLE IF NOT EXISTS items (
    pk          TEXT NOT NULL,
    sk          TEXT NOT NULL,
    job_id      TEXT NOT NULL DEFAULT '',
    expires_at  INTEGER NOT NULL DEFAULT 0,
    body        TEXT NOT NULL,
    updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (pk, sk)
);

CREATE INDEX IF NOT EXISTS idx_items_job ON items(job_id, pk, sk);
CREATE INDEX IF NOT EXISTS idx_items_expires ON items(expires_at);
`
