package specification

import (
	"strings"
	"testing"
	"time"

	"microgrid/domain/shared"
	"microgrid/domain/topology"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type row struct {
	ID string
}

func (row) TableName() string { return "topologies" }

// dryRunDB renders SQL without a server
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/microgrid?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func render(t *testing.T, scope Scope) string {
	t.Helper()
	db := dryRunDB(t).Model(&row{})
	if scope != nil {
		db = db.Scopes(scope)
	}
	var rows []row
	stmt := db.Find(&rows).Statement
	return stmt.SQL.String()
}

func TestTranslateConcrete(t *testing.T) {
	tr := NewGormTranslator()

	tests := []struct {
		name string
		spec shared.Specification[*topology.MicrogridTopology]
		want string
	}{
		{"status", topology.NewByStatusSpecification(topology.StatusValidated), "status = ?"},
		{"name", topology.NewNameContainsSpecification("Feeder"), "LOWER(name) LIKE ?"},
		{"created", topology.NewCreatedBetweenSpecification(time.Unix(0, 0), time.Time{}), "created_at >= ?"},
		{"not status", shared.Not(topology.NewByStatusSpecification(topology.StatusInvalid)), "status <> ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := tr.Translate(tt.spec)
			if scope == nil {
				t.Fatal("expected a scope")
			}
			if sql := render(t, scope); !strings.Contains(sql, tt.want) {
				t.Errorf("SQL = %s, want it to contain %q", sql, tt.want)
			}
		})
	}
}

func TestTranslateAndKeepsTranslatableSide(t *testing.T) {
	tr := NewGormTranslator()
	spec := shared.And(topology.NewValidTopologySpecification(), topology.NewByStatusSpecification(topology.StatusCreated))

	scope := tr.Translate(spec)
	if scope == nil {
		t.Fatal("AND with one translatable side should still narrow the query")
	}
	if sql := render(t, scope); !strings.Contains(sql, "status = ?") {
		t.Errorf("SQL = %s", sql)
	}
}

func TestTranslateGivesUpWhenUnsafe(t *testing.T) {
	tr := NewGormTranslator()
	unsafe := []shared.Specification[*topology.MicrogridTopology]{
		nil,
		topology.NewValidTopologySpecification(),
		topology.NewDeviceExistsSpecification("B1"),
		shared.Or(topology.NewValidTopologySpecification(), topology.NewByStatusSpecification(topology.StatusCreated)),
		shared.Not(topology.NewNameContainsSpecification("x")),
		topology.NewNameContainsSpecification(""),
	}
	for i, spec := range unsafe {
		if scope := tr.Translate(spec); scope != nil {
			t.Errorf("case %d: expected no pushdown", i)
		}
	}
}

func TestTranslateOr(t *testing.T) {
	tr := NewGormTranslator()
	spec := shared.Or(topology.NewByStatusSpecification(topology.StatusValidated), topology.NewNameContainsSpecification("north"))
	scope := tr.Translate(spec)
	if scope == nil {
		t.Fatal("OR of two translatable leaves should translate")
	}
	sql := render(t, scope)
	if !strings.Contains(sql, "OR") {
		t.Errorf("SQL = %s, want an OR clause", sql)
	}
}
