// Package sql provides the embedded DDL for the driver table and security
// tables.
package sql

import (
	_ "embed"
)

// The DDL is written in the subset of SQL shared by PostgreSQL, MySQL and
// SQLite, uses CREATE TABLE IF NOT EXISTS throughout, and is applied
// idempotently by sqlstore.EnsureSchema. Statements are separated by a
// semicolon at the end of a line.

// RegistrySQL contains table_property, table_column and the
// driver_table_load history table.
//
//go:embed registry.sql
var RegistrySQL string

// SecuritySQL contains the work group, membership and table group grant
// tables read by the access resolver.
//
//go:embed security.sql
var SecuritySQL string
