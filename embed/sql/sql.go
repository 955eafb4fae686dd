package sql

import _ "embed"

// Schema creates the tables used by the local backend.
//
//go:embed schema.sql
var Schema string
