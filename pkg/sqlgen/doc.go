// Package sqlgen renders DDL and lookup queries from driver table metadata.
//
// CreateTable turns a TableDescriptor and its ColumnDescriptors into a
// CREATE TABLE statement for one of the supported dialects. KeyCheckQuery
// builds the query that checks the is_key_field uniqueness group before a
// row is inserted:
//
//	q, args, err := sqlgen.KeyCheckQuery("microarray.dbo.array", table, cols, sqlgen.Postgres)
//	// SELECT "array_id" FROM "microarray"."dbo"."array" WHERE "array_name" = $1 AND "slide_type_id" = $2
//
// The Dialect type is shared with pkg/store/sqlstore for identifier quoting
// and placeholder rebinding.
package sqlgen
