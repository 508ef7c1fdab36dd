// Package database provides SQLite-based storage for pagescout runs.
//
// ResultDB stores one row per run and one row per (homepage, page type)
// result, so that a finished run can be listed, re-exported in any format
// and compared with earlier runs of the same homepage.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
//  1. No external dependencies - the database is a single file
//  2. CGO-free implementation allows easy cross-compilation
//  3. WAL mode lets `history` read while a run is being written
package database
