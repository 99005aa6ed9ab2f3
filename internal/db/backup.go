
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotTo writes a consistent copy of the database to dstPath using
// VACUUM INTO, which is safe under WAL mode. The destination must not exist.
func (d *DB) SnapshotTo(ctx context.Context, dstPath string) error {
	if _, err := os.Stat(dstPath); err == nil {
		if err := os.Remove(dstPath); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o750); err != nil {
		return err
	}
	// Escape single quotes for SQLite string literal
	escaped := strings.ReplaceAll(dstPath, "'", "''")
	_, err := d.sql.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s';", escaped))
	return err
}
