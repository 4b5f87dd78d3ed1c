// Package db provides embedded database schema and seed data files.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCatalog contains the initial categories, products, and variants loaded
// by the seed-db command.
//
//go:embed seed/catalog.json
var SeedCatalog []byte
