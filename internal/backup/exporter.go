// Package backup dumps the whole database plus archive metadata and ships
// the dump to configured sinks, one run at a time.
package backup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
)

type ArchiveMeta interface {
	Envelope(ctx context.Context) (*archive.Envelope, error)
}

type Dump struct {
	RunID        string                      `json:"run_id,omitempty"`
	ExportedAt   time.Time                   `json:"exported_at"`
	PrimaryAdmin string                      `json:"primary_admin"`
	Reason       string                      `json:"reason,omitempty"`
	Meta         map[string]any              `json:"meta,omitempty"`
	Archive      *archive.Meta               `json:"archive,omitempty"`
	Data         map[string][]map[string]any `json:"data"`
}

type Exporter struct {
	DB           *gorm.DB
	Archive      ArchiveMeta
	PrimaryAdmin string
}

// Export reads every table as generic rows.
func (e *Exporter) Export(ctx context.Context) (*Dump, error) {
	db := e.DB.WithContext(ctx)
	tables, err := db.Migrator().GetTables()
	if err != nil {
		return nil, apperr.FromStore(fmt.Errorf("list tables: %w", err))
	}
	sort.Strings(tables)

	d := &Dump{
		ExportedAt:   time.Now().UTC(),
		PrimaryAdmin: e.PrimaryAdmin,
		Data:         make(map[string][]map[string]any, len(tables)),
	}
	for _, t := range tables {
		var rows []map[string]any
		if err := db.Table(t).Find(&rows).Error; err != nil {
			return nil, apperr.FromStore(fmt.Errorf("export %s: %w", t, err))
		}
		if rows == nil {
			rows = []map[string]any{}
		}
		d.Data[t] = rows
	}

	if e.Archive != nil {
		env, err := e.Archive.Envelope(ctx)
		if err != nil {
			return nil, fmt.Errorf("export archive meta: %w", err)
		}
		m := env.Meta
		d.Archive = &m
	}
	return d, nil
}
