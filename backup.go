package ragstore

import (
	"context"

	"github.com/ragstore/ragstore/internal/backup"
)

// BackupValidation is the outcome of validating a backup file.
type BackupValidation = backup.Validation

// InvalidBackupError aborts ImportBackup when the file fails
// validation; it carries every line error and the observed dimensions.
type InvalidBackupError = backup.InvalidBackupError

// ExportResult summarizes ExportBackup.
type ExportResult = backup.ExportResult

// ImportResult summarizes ImportBackup.
type ImportResult = backup.ImportResult

// ExportBackup writes every document with its chunks, embeddings and
// relations to path as line-delimited JSON, overwriting the file.
func (c *Client) ExportBackup(ctx context.Context, path string) (*ExportResult, error) {
	database, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	return backup.Export(ctx, database, path)
}

// ValidateBackup checks a backup file without touching the database.
func (c *Client) ValidateBackup(path string) (*BackupValidation, error) {
	return backup.ValidateFile(path)
}

// ImportBackup restores a backup file. The file is validated first;
// documents whose embedding dimension differs from the handle dimension
// are skipped with a warning. Each document imports atomically.
func (c *Client) ImportBackup(ctx context.Context, path string) (*ImportResult, error) {
	database, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	return backup.Import(ctx, database, path, c.cfg.Dimension)
}
