// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema contains the DDL for the carts, idempotency_keys and prices tables
// plus the seed price rows.
//
//go:embed migrations/001_schema.sql
var Schema string
