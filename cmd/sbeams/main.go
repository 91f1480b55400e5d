// Package main provides the sbeams CLI for managing driver tables.
//
// The CLI supports:
//   - load: Load driver table files into the registry database
//   - check: Parse driver table files and report rejected rows
//   - describe: Show a table's descriptor and columns in render order
//   - ddl: Print CREATE TABLE and duplicate-check SQL for a table
//   - access: Evaluate a user's privilege on a table or record
//   - grants import: Replace the security tables from a grants file
//   - status, doctor: Inspect the registry database
//
// Usage:
//
//	sbeams [flags] <command>
//
// Commands that require database access need --db or database settings in
// sbeams.yaml. check and version work with files only.
package main

func main() {
	Execute()
}
