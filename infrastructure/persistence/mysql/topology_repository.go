package mysql

import (
	"context"
	"errors"
	"fmt"

	"microgrid/domain/shared"
	"microgrid/domain/topology"
	"microgrid/infrastructure/persistence"
	"microgrid/infrastructure/persistence/mysql/po"
	"microgrid/infrastructure/persistence/specification"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TopologyRepository MySQL/GORM implementation of topology repository
// DDD principle: Repository is only responsible for persistence of aggregate roots, not event publishing
// GORM usage specification: Association features are prohibited to maintain DDD aggregate boundaries
type TopologyRepository struct {
	db         *gorm.DB
	translator specification.Translator
}

// NewTopologyRepository Create topology repository
func NewTopologyRepository(db *gorm.DB) *TopologyRepository {
	return &TopologyRepository{db: db, translator: specification.NewGormTranslator()}
}

// AutoMigrate creates the topology and outbox tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&po.TopologyPO{}, &po.DevicePO{}, &po.ConnectionPO{}, &po.OutboxEventPO{})
}

func (r *TopologyRepository) NextIdentity() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Save 新建或更新；UoW 外调用时自带事务
func (r *TopologyRepository) Save(ctx context.Context, t *topology.MicrogridTopology) error {
	return persistence.InTx(ctx, r.db, func(tx *gorm.DB) error {
		return r.saveWithTx(tx, t)
	})
}

// saveWithTx writes the root row under the optimistic lock, then replaces
// the device and connection rows (simple strategy: delete then insert)
func (r *TopologyRepository) saveWithTx(tx *gorm.DB, t *topology.MicrogridTopology) error {
	topologyPO, devicePOs, connectionPOs, err := po.FromTopologyDomain(t)
	if err != nil {
		return fmt.Errorf("failed to map topology: %w", err)
	}

	if t.IsNew() {
		topologyPO.Version = 1
		if err := tx.Create(topologyPO).Error; err != nil {
			if isDuplicateKeyError(err) {
				return shared.NewConflictError("topology", "topology already exists: "+t.ID())
			}
			return err
		}
	} else {
		expectedVersion := t.Version()

		// 严格乐观锁：必须使用聚合当前版本作为更新条件，避免静默覆盖并发写入。
		result := tx.Model(&po.TopologyPO{}).
			Where("id = ? AND version = ?", t.ID(), expectedVersion).
			Updates(map[string]interface{}{
				"name":        topologyPO.Name,
				"description": topologyPO.Description,
				"status":      topologyPO.Status,
				"version":     expectedVersion + 1,
				"updated_at":  topologyPO.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&po.TopologyPO{}).Where("id = ?", t.ID()).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return topology.NewTopologyNotFoundError(t.ID())
			}
			return topology.NewConcurrentModificationError(t.ID())
		}
	}

	if err := tx.Where("topology_id = ?", t.ID()).Delete(&po.ConnectionPO{}).Error; err != nil {
		return err
	}
	if err := tx.Where("topology_id = ?", t.ID()).Delete(&po.DevicePO{}).Error; err != nil {
		return err
	}
	if len(devicePOs) > 0 {
		if err := tx.Create(&devicePOs).Error; err != nil {
			return err
		}
	}
	if len(connectionPOs) > 0 {
		if err := tx.Create(&connectionPOs).Error; err != nil {
			return err
		}
	}

	t.IncrementVersionForSave()
	return nil
}

// FindByID Find topology by ID
func (r *TopologyRepository) FindByID(ctx context.Context, id string) (*topology.MicrogridTopology, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	db := persistence.DBFromContext(ctx, r.db)

	var topologyPO po.TopologyPO
	result := db.First(&topologyPO, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, topology.NewTopologyNotFoundError(id)
		}
		return nil, result.Error
	}
	return r.load(db, &topologyPO)
}

// FindAll pushes what it can of spec down to SQL, then filters the loaded aggregates
func (r *TopologyRepository) FindAll(ctx context.Context, spec shared.Specification[*topology.MicrogridTopology]) ([]*topology.MicrogridTopology, error) {
	db := persistence.DBFromContext(ctx, r.db)

	query := db.Model(&po.TopologyPO{})
	if scope := r.translator.Translate(spec); scope != nil {
		query = query.Scopes(scope)
	}
	var topologyPOs []po.TopologyPO
	if err := query.Order("created_at ASC").Find(&topologyPOs).Error; err != nil {
		return nil, err
	}

	topologies := make([]*topology.MicrogridTopology, 0, len(topologyPOs))
	for i := range topologyPOs {
		t, err := r.load(db, &topologyPOs[i])
		if err != nil {
			return nil, err
		}
		topologies = append(topologies, t)
	}
	return shared.Filter(ctx, spec, topologies), nil
}

// load Manually query child rows (do not use GORM's Preload to keep aggregate boundaries clear)
func (r *TopologyRepository) load(db *gorm.DB, topologyPO *po.TopologyPO) (*topology.MicrogridTopology, error) {
	var devicePOs []po.DevicePO
	if err := db.Where("topology_id = ?", topologyPO.ID).Order("seq ASC").Find(&devicePOs).Error; err != nil {
		return nil, err
	}
	var connectionPOs []po.ConnectionPO
	if err := db.Where("topology_id = ?", topologyPO.ID).Order("seq ASC").Find(&connectionPOs).Error; err != nil {
		return nil, err
	}
	return topologyPO.ToDomain(devicePOs, connectionPOs)
}

// Remove Delete topology with its devices and connections
func (r *TopologyRepository) Remove(ctx context.Context, id string) error {
	remove := func(tx *gorm.DB) error {
		if err := tx.Where("topology_id = ?", id).Delete(&po.ConnectionPO{}).Error; err != nil {
			return err
		}
		if err := tx.Where("topology_id = ?", id).Delete(&po.DevicePO{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&po.TopologyPO{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return topology.NewTopologyNotFoundError(id)
		}
		return nil
	}

	return persistence.InTx(ctx, r.db, remove)
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// Compile-time interface implementation check
var _ topology.Repository = (*TopologyRepository)(nil)
