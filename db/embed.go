// Package db provides embedded database schema and seed files.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedBooks is the initial catalog, as a JSON array of books.
//
//go:embed seed/books.json
var SeedBooks []byte

// SeedPromoCodes is the initial promo code set, as a JSON array of rules.
//
//go:embed seed/promo_codes.json
var SeedPromoCodes []byte
