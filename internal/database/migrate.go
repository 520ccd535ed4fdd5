package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/observability"
)

// Models lists every table of the identity server in creation order.
func Models() []any {
	return []any{
		&domain.Identity{},
		&domain.LocalCredential{},
		&domain.Profile{},
		&domain.RefreshToken{},
		&domain.VerificationToken{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return fmt.Errorf("migrate: %w", err)
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "success")
	return nil
}

type TableStatus struct {
	Table          string   `json:"table"`
	Exists         bool     `json:"exists"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// Status compares the schema with the models without changing anything.
func Status(db *gorm.DB) ([]TableStatus, error) {
	m := db.Migrator()
	out := make([]TableStatus, 0, len(Models()))
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model: %w", err)
		}
		st := TableStatus{Table: stmt.Schema.Table, Exists: m.HasTable(model)}
		if st.Exists {
			for _, field := range stmt.Schema.Fields {
				if field.DBName == "" {
					continue
				}
				if !m.HasColumn(model, field.DBName) {
					st.MissingColumns = append(st.MissingColumns, field.DBName)
				}
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// Pending reports whether Migrate would change the schema.
func Pending(statuses []TableStatus) bool {
	for _, s := range statuses {
		if !s.Exists || len(s.MissingColumns) > 0 {
			return true
		}
	}
	return false
}
