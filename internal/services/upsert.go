package services

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// DefaultBatchSize bounds one INSERT batch; phase aggregates can run to tens
// of thousands of rows per sync.
const DefaultBatchSize = 1000

// immutableColumns are never part of an upsert's update set.
var immutableColumns = map[string]bool{
	"id":              true,
	"created_at":      true,
	"first_synced_at": true,
}

var schemaCache = &sync.Map{}

// assignableColumns lists the columns of model that an upsert overwrites on
// conflict: every persisted column except the conflict key and the immutable
// set.
func assignableColumns(db *gorm.DB, model any, conflictColumns []string) ([]string, error) {
	s, err := schema.Parse(model, schemaCache, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	skip := make(map[string]bool, len(conflictColumns)+len(immutableColumns))
	for _, c := range conflictColumns {
		skip[c] = true
	}
	for c := range immutableColumns {
		skip[c] = true
	}

	var cols []string
	for _, field := range s.Fields {
		if field.DBName == "" || skip[field.DBName] {
			continue
		}
		cols = append(cols, field.DBName)
	}
	return cols, nil
}

// BulkUpsert inserts rows in fixed-size batches inside one transaction,
// updating all non-key, non-immutable columns when the natural key already
// exists. It is idempotent: re-running with identical rows yields identical
// stored state and the same upserted count.
func BulkUpsert[T any](db *gorm.DB, rows []T, conflictColumns []string, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var model T
	updateColumns, err := assignableColumns(db, &model, conflictColumns)
	if err != nil {
		return 0, err
	}

	onConflict := clause.OnConflict{
		Columns:   conflictClauseColumns(conflictColumns),
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(onConflict).CreateInBatches(&rows, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("bulk upsert failed: %w", err)
	}

	// Driver RowsAffected counts an update as 2 on mysql and 0 when nothing
	// changed, so the processed row count is the meaningful figure.
	return int64(len(rows)), nil
}

func conflictClauseColumns(names []string) []clause.Column {
	cols := make([]clause.Column, len(names))
	for i, n := range names {
		cols[i] = clause.Column{Name: n}
	}
	return cols
}
