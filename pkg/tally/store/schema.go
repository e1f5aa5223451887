package store

// schemaVersion is bumped when the table layout changes. A store carrying
// a different version is treated as unreadable and rebuilt empty.
const schemaVersion = "1"

const createSizesTable = `
CREATE TABLE IF NOT EXISTS sizes (
    path TEXT PRIMARY KEY,
    size INTEGER NOT NULL,
    file_count INTEGER NOT NULL,
    dir_mtime INTEGER NOT NULL
)`

const createMetaTable = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// Keys in the meta table.
const (
	metaSchemaVersion = "schema_version"
	metaGeneration    = "generation"
	metaCreatedAt     = "created_at"
)
