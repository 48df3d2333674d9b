package specification

import (
	"strings"

	"microgrid/domain/shared"
	"microgrid/domain/topology"

	"gorm.io/gorm"
)

// Scope narrows a topologies query
type Scope func(*gorm.DB) *gorm.DB

// Translator converts topology specifications to GORM scopes.
//
// A translated scope only pre-filters: it never drops a row the
// specification would accept. Repositories still evaluate the
// specification in memory on the loaded aggregates, so graph-level
// specifications (valid, complete, device exists) work unchanged.
type Translator interface {
	// Translate returns nil when nothing can be pushed down
	Translate(spec shared.Specification[*topology.MicrogridTopology]) Scope
}

// GormTranslator implements Translator for the topologies table
type GormTranslator struct{}

func NewGormTranslator() *GormTranslator {
	return &GormTranslator{}
}

func (t *GormTranslator) Translate(spec shared.Specification[*topology.MicrogridTopology]) Scope {
	if spec == nil {
		return nil
	}

	switch s := spec.(type) {
	case shared.AndSpecification[*topology.MicrogridTopology]:
		return t.translateAnd(s)
	case shared.OrSpecification[*topology.MicrogridTopology]:
		return t.translateOr(s)
	case shared.NotSpecification[*topology.MicrogridTopology]:
		return t.translateNot(s)
	}
	return t.translateConcrete(spec)
}

// translateAnd either side alone is still a superset
func (t *GormTranslator) translateAnd(spec shared.AndSpecification[*topology.MicrogridTopology]) Scope {
	left, right := t.Translate(spec.Left), t.Translate(spec.Right)
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return func(db *gorm.DB) *gorm.DB {
		return right(left(db))
	}
}

// translateOr needs both sides; one untranslatable side could match anything
func (t *GormTranslator) translateOr(spec shared.OrSpecification[*topology.MicrogridTopology]) Scope {
	left, right := t.Translate(spec.Left), t.Translate(spec.Right)
	if left == nil || right == nil {
		return nil
	}
	return func(db *gorm.DB) *gorm.DB {
		fresh := db.Session(&gorm.Session{NewDB: true})
		return db.Where(left(fresh)).Or(right(fresh))
	}
}

// translateNot only for leaves with an exact column predicate
func (t *GormTranslator) translateNot(spec shared.NotSpecification[*topology.MicrogridTopology]) Scope {
	switch s := spec.Spec.(type) {
	case topology.ByStatusSpecification:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("status <> ?", string(s.Status))
		}
	}
	return nil
}

func (t *GormTranslator) translateConcrete(spec shared.Specification[*topology.MicrogridTopology]) Scope {
	switch s := spec.(type) {
	case topology.ByStatusSpecification:
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", string(s.Status))
		}
	case topology.NameContainsSpecification:
		if s.Fragment == "" {
			return nil
		}
		pattern := "%" + strings.ToLower(s.Fragment) + "%"
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("LOWER(name) LIKE ?", pattern)
		}
	case topology.CreatedBetweenSpecification:
		if s.Start.IsZero() && s.End.IsZero() {
			return nil
		}
		return func(db *gorm.DB) *gorm.DB {
			if !s.Start.IsZero() {
				db = db.Where("created_at >= ?", s.Start)
			}
			if !s.End.IsZero() {
				db = db.Where("created_at <= ?", s.End)
			}
			return db
		}
	}

	// graph-level specifications need the loaded aggregate
	return nil
}
