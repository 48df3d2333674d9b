/*
Package topology 应用层 - 拓扑编辑流程编排

职责：
 1. 接收控制器的命令与查询
 2. 在工作单元内加载聚合、调用聚合方法、保存并登记聚合
 3. 管理设备 ID 的分配与回收（跨拓扑共享一个 IDAllocator）
 4. 调用只读分析服务（连通性、校验、优化）并返回报告

事件不由应用服务直接发布：工作单元在提交后（或随 outbox）统一处理。
*/
package topology

import (
	"bytes"
	"context"
	"errors"
	"io"

	"microgrid/domain/shared"
	"microgrid/domain/topology"
	"microgrid/infrastructure/codec"
	"microgrid/infrastructure/snapshot"
	"microgrid/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplicationService 拓扑应用服务
type ApplicationService struct {
	repo       topology.Repository
	uowFactory shared.UnitOfWorkFactory
	publisher  shared.DomainEventPublisher
	allocator  *topology.IDAllocator
	codecs     *codec.Registry

	analyzer *topology.ConnectivityAnalyzer
	advisor  *topology.OptimizationAdvisor
}

// NewApplicationService publisher 仅用于试校验（不落库）时直接发布结果事件，可为 nil
func NewApplicationService(
	repo topology.Repository,
	uowFactory shared.UnitOfWorkFactory,
	publisher shared.DomainEventPublisher,
	allocator *topology.IDAllocator,
	codecs *codec.Registry,
) *ApplicationService {
	if allocator == nil {
		allocator = topology.NewIDAllocator()
	}
	if codecs == nil {
		codecs = codec.NewRegistry()
	}
	return &ApplicationService{
		repo:       repo,
		uowFactory: uowFactory,
		publisher:  publisher,
		allocator:  allocator,
		codecs:     codecs,
		analyzer:   topology.NewConnectivityAnalyzer(),
		advisor:    topology.NewOptimizationAdvisor(),
	}
}

// Bootstrap claims the device ids of every stored topology so newly
// generated ids never collide with persisted ones
func (s *ApplicationService) Bootstrap(ctx context.Context) error {
	all, err := s.repo.FindAll(ctx, nil)
	if err != nil {
		return err
	}
	claimed := 0
	for _, t := range all {
		for _, d := range t.Devices() {
			if s.allocator.Claim(d.ID()) {
				claimed++
				continue
			}
			logger.WithTopology(ctx, t.ID()).Warn("Device id shared with another topology",
				zap.String("device_id", d.ID()))
		}
	}
	logger.Info("Device id allocator bootstrapped",
		zap.Int("topologies", len(all)),
		zap.Int("claimed_ids", claimed),
	)
	return nil
}

// mutate loads the topology, applies fn and saves it in one unit of work.
// fn may run more than once when the save hits a version conflict.
func (s *ApplicationService) mutate(ctx context.Context, topologyID string, fn func(t *topology.MicrogridTopology) error) (*topology.MicrogridTopology, error) {
	var result *topology.MicrogridTopology
	uow := s.uowFactory.New()

	err := uow.Execute(ctx, func(ctx context.Context) error {
		t, err := s.repo.FindByID(ctx, topologyID)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, t); err != nil {
			return err
		}
		uow.RegisterDirty(t)
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ApplicationService) load(ctx context.Context, topologyID string) (*topology.MicrogridTopology, error) {
	return s.repo.FindByID(ctx, topologyID)
}

// ============================================================================
// Topology commands
// ============================================================================

// CreateTopology 创建空拓扑
func (s *ApplicationService) CreateTopology(ctx context.Context, req CreateTopologyRequest) (*TopologyResponse, error) {
	var t *topology.MicrogridTopology
	uow := s.uowFactory.New()

	err := uow.Execute(ctx, func(ctx context.Context) error {
		var err error
		t, err = topology.NewMicrogridTopology(req.Name, req.Description)
		if err != nil {
			return err
		}
		if err := s.repo.Save(ctx, t); err != nil {
			return err
		}
		uow.RegisterNew(t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithTopology(ctx, t.ID()).Info("Topology created", zap.String("name", t.Name()))
	return toTopologyResponse(t), nil
}

// GetTopology 查询单个拓扑
func (s *ApplicationService) GetTopology(ctx context.Context, topologyID string) (*TopologyResponse, error) {
	t, err := s.load(ctx, topologyID)
	if err != nil {
		return nil, err
	}
	return toTopologyResponse(t), nil
}

// ListTopologies 按条件列出拓扑
func (s *ApplicationService) ListTopologies(ctx context.Context, q ListTopologiesQuery) (*TopologyPage, error) {
	var specs []shared.Specification[*topology.MicrogridTopology]
	if q.Status != "" {
		status, err := topology.ParseStatus(q.Status)
		if err != nil {
			return nil, err
		}
		specs = append(specs, topology.NewByStatusSpecification(status))
	}
	if q.NameContains != "" {
		specs = append(specs, topology.NewNameContainsSpecification(q.NameContains))
	}
	if !q.CreatedAfter.IsZero() || !q.CreatedBefore.IsZero() {
		specs = append(specs, topology.NewCreatedBetweenSpecification(q.CreatedAfter, q.CreatedBefore))
	}

	var spec shared.Specification[*topology.MicrogridTopology]
	switch len(specs) {
	case 0:
	case 1:
		spec = specs[0]
	default:
		spec = shared.All(specs...)
	}

	all, err := s.repo.FindAll(ctx, spec)
	if err != nil {
		return nil, err
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	start := min((page-1)*size, len(all))
	end := min(start+size, len(all))
	items := make([]*TopologySummary, 0, end-start)
	for _, t := range all[start:end] {
		items = append(items, toTopologySummary(t))
	}
	return &TopologyPage{Items: items, Total: int64(len(all)), Page: page, PageSize: size}, nil
}

// UpdateTopology 修改名称与描述
func (s *ApplicationService) UpdateTopology(ctx context.Context, topologyID string, req UpdateTopologyRequest) (*TopologyResponse, error) {
	t, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		return t.UpdateInfo(req.Name, req.Description)
	})
	if err != nil {
		return nil, err
	}
	return toTopologyResponse(t), nil
}

// UpdateStatus 直接设置状态
func (s *ApplicationService) UpdateStatus(ctx context.Context, topologyID string, req UpdateStatusRequest) (*TopologyResponse, error) {
	status, err := topology.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	t, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		t.UpdateStatus(status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toTopologyResponse(t), nil
}

// DeleteTopology 删除拓扑并回收其设备 ID
func (s *ApplicationService) DeleteTopology(ctx context.Context, topologyID string) error {
	var removed *topology.MicrogridTopology
	uow := s.uowFactory.New()

	err := uow.Execute(ctx, func(ctx context.Context) error {
		t, err := s.repo.FindByID(ctx, topologyID)
		if err != nil {
			return err
		}
		if err := s.repo.Remove(ctx, topologyID); err != nil {
			return err
		}
		uow.RegisterRemoved(t)
		removed = t
		return nil
	})
	if err != nil {
		return err
	}

	for _, d := range removed.Devices() {
		s.allocator.Recycle(d.ID())
	}
	logger.WithTopology(ctx, topologyID).Info("Topology deleted",
		zap.Int("recycled_devices", removed.DeviceCount()),
	)
	return nil
}

// ============================================================================
// Device commands
// ============================================================================

// AddDevice 添加设备；未指定 ID 时生成最小可用数字 ID
func (s *ApplicationService) AddDevice(ctx context.Context, topologyID string, req AddDeviceRequest) (*DeviceResponse, error) {
	deviceType, err := topology.ParseDeviceType(req.Type)
	if err != nil {
		return nil, err
	}
	opts, err := toDeviceOptions(req.Position, req.Location, req.Active)
	if err != nil {
		return nil, err
	}

	// ID 在事务外一次性取得，重试沿用同一个
	deviceID := req.ID
	if deviceID == "" {
		deviceID = s.allocator.Generate()
	} else if !s.allocator.Claim(deviceID) {
		return nil, topology.NewDuplicateDeviceError(deviceID)
	}

	t, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		d, err := topology.NewDevice(deviceID, deviceType, topology.NewProperties(req.Properties), opts...)
		if err != nil {
			return err
		}
		return t.AddDevice(d)
	})
	if err != nil {
		s.allocator.Recycle(deviceID)
		return nil, err
	}

	d, err := t.Device(deviceID)
	if err != nil {
		return nil, err
	}
	resp := toDeviceResponse(d)
	return &resp, nil
}

// UpdateDevice 合并属性、移动、启停设备
func (s *ApplicationService) UpdateDevice(ctx context.Context, topologyID, deviceID string, req UpdateDeviceRequest) (*DeviceResponse, error) {
	update, err := toDeviceUpdate(req)
	if err != nil {
		return nil, err
	}
	t, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		return t.UpdateDevice(deviceID, update)
	})
	if err != nil {
		return nil, err
	}
	d, err := t.Device(deviceID)
	if err != nil {
		return nil, err
	}
	resp := toDeviceResponse(d)
	return &resp, nil
}

// RemoveDevice 移除设备并回收 ID；仍有连接时返回 ErrDeviceInUse
func (s *ApplicationService) RemoveDevice(ctx context.Context, topologyID, deviceID string) error {
	if _, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		return t.RemoveDevice(deviceID)
	}); err != nil {
		return err
	}
	s.allocator.Recycle(deviceID)
	return nil
}

// ============================================================================
// Connection commands
// ============================================================================

// CreateConnection 经连接规则检查后添加连接
func (s *ApplicationService) CreateConnection(ctx context.Context, topologyID string, req CreateConnectionRequest) (*ConnectionResponse, error) {
	connType, err := topology.ParseConnectionType(req.Type)
	if err != nil {
		return nil, err
	}
	connID := req.ID
	if connID == "" {
		connID = uuid.New().String()
	}

	t, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		c, err := topology.NewConnection(connID, req.SourceID, req.TargetID, connType, topology.NewProperties(req.Properties))
		if err != nil {
			return err
		}
		return t.AddConnection(c)
	})
	if err != nil {
		return nil, err
	}
	c, err := t.Connection(connID)
	if err != nil {
		return nil, err
	}
	resp := toConnectionResponse(c)
	return &resp, nil
}

// UpdateConnection 替换属性和/或启停连接
func (s *ApplicationService) UpdateConnection(ctx context.Context, topologyID, connectionID string, req UpdateConnectionRequest) (*ConnectionResponse, error) {
	if req.Properties == nil && req.Active == nil {
		return nil, shared.NewValidationError("connection", "properties", "nothing to update")
	}
	t, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		if req.Properties != nil {
			if err := t.UpdateConnection(connectionID, topology.NewProperties(req.Properties)); err != nil {
				return err
			}
		}
		if req.Active != nil {
			return t.SetConnectionActive(connectionID, *req.Active)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c, err := t.Connection(connectionID)
	if err != nil {
		return nil, err
	}
	resp := toConnectionResponse(c)
	return &resp, nil
}

// RemoveConnection 移除连接
func (s *ApplicationService) RemoveConnection(ctx context.Context, topologyID, connectionID string) error {
	_, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		return t.RemoveConnection(connectionID)
	})
	return err
}

// ============================================================================
// Analysis
// ============================================================================

// ValidateTopology 校验并保存结果状态（VALIDATED / INVALID）
// 校验不通过不是错误：报告里列出所有失败项
func (s *ApplicationService) ValidateTopology(ctx context.Context, topologyID string) (*ValidationResponse, error) {
	var report topology.ValidationReport
	validator := topology.NewValidator(nil)

	t, err := s.mutate(ctx, topologyID, func(t *topology.MicrogridTopology) error {
		report = validator.Evaluate(ctx, t)
		t.ApplyValidation(report)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toValidationResponse(t, report), nil
}

// CheckTopology 试校验：不修改状态，结果事件直接发布到事件总线
func (s *ApplicationService) CheckTopology(ctx context.Context, topologyID string) (*ValidationResponse, error) {
	t, err := s.load(ctx, topologyID)
	if err != nil {
		return nil, err
	}
	report, err := topology.NewValidator(s.publisher).Validate(ctx, t)
	var verr *topology.TopologyValidationError
	if err != nil && !errors.As(err, &verr) {
		return nil, err
	}
	return toValidationResponse(t, report), nil
}

// AnalyzeConnectivity 连通分量分析
func (s *ApplicationService) AnalyzeConnectivity(ctx context.Context, topologyID string) (*topology.ConnectivityReport, error) {
	t, err := s.load(ctx, topologyID)
	if err != nil {
		return nil, err
	}
	report := s.analyzer.CheckConnectivity(t)
	return &report, nil
}

// FindShortestPath 两设备间的最短路径（按跳数）
func (s *ApplicationService) FindShortestPath(ctx context.Context, topologyID, from, to string) (*PathResponse, error) {
	t, err := s.load(ctx, topologyID)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{from, to} {
		if !t.HasDevice(id) {
			return nil, topology.NewDeviceNotFoundError(id)
		}
	}

	path := s.analyzer.FindShortestPath(t, from, to)
	resp := &PathResponse{From: from, To: to, Path: path, Found: len(path) > 0}
	if resp.Found {
		resp.Hops = len(path) - 1
	} else {
		resp.Path = []string{}
	}
	return resp, nil
}

// Neighbors 设备的相邻设备（仅活动连接）
func (s *ApplicationService) Neighbors(ctx context.Context, topologyID, deviceID string) ([]string, error) {
	t, err := s.load(ctx, topologyID)
	if err != nil {
		return nil, err
	}
	if !t.HasDevice(deviceID) {
		return nil, topology.NewDeviceNotFoundError(deviceID)
	}
	return s.analyzer.Neighbors(t, deviceID), nil
}

// OptimizeTopology 冗余连接与孤立设备建议
func (s *ApplicationService) OptimizeTopology(ctx context.Context, topologyID string) (*topology.OptimizationReport, error) {
	t, err := s.load(ctx, topologyID)
	if err != nil {
		return nil, err
	}
	report := s.advisor.Optimize(t)
	return &report, nil
}

// ============================================================================
// Import / Export
// ============================================================================

// Formats supported file formats
func (s *ApplicationService) Formats() []string {
	return s.codecs.Formats()
}

// ImportTopology parses a document and replays it into a new topology.
// Every connection goes through the rules again, so derived properties in
// the file are recomputed rather than trusted.
func (s *ApplicationService) ImportTopology(ctx context.Context, format string, r io.Reader) (*TopologyResponse, error) {
	c, err := s.codecs.Lookup(format)
	if err != nil {
		return nil, shared.NewValidationError("document", "format", err.Error())
	}
	doc, err := c.Parse(r)
	if err != nil {
		return nil, shared.NewValidationError("document", "content", err.Error())
	}

	renamed, claimed := s.claimDocumentIDs(doc)

	var t *topology.MicrogridTopology
	uow := s.uowFactory.New()

	err = uow.Execute(ctx, func(ctx context.Context) error {
		var err error
		t, err = topology.NewMicrogridTopology(doc.Name, doc.Description)
		if err != nil {
			return err
		}
		for _, dd := range doc.Devices {
			d, err := dd.ToDevice(true)
			if err != nil {
				return err
			}
			if err := t.AddDevice(d); err != nil {
				return err
			}
		}
		for _, cd := range doc.Connections {
			conn, err := cd.ToConnection()
			if err != nil {
				return err
			}
			fresh, err := topology.NewConnection(conn.ID(), conn.SourceID(), conn.TargetID(), conn.Type(), conn.Properties())
			if err != nil {
				return err
			}
			if err := t.AddConnection(fresh); err != nil {
				return err
			}
			if !conn.IsActive() {
				if err := t.SetConnectionActive(conn.ID(), false); err != nil {
					return err
				}
			}
		}
		if doc.Status != "" {
			status, err := topology.ParseStatus(doc.Status)
			if err != nil {
				return err
			}
			if status != topology.StatusCreated {
				t.UpdateStatus(status)
			}
		}

		if err := s.repo.Save(ctx, t); err != nil {
			return err
		}
		uow.RegisterNew(t)
		return nil
	})
	if err != nil {
		for _, id := range claimed {
			s.allocator.Recycle(id)
		}
		return nil, err
	}

	logger.WithTopology(ctx, t.ID()).Info("Topology imported",
		zap.String("format", c.Format()),
		zap.Int("devices", t.DeviceCount()),
		zap.Int("connections", t.ConnectionCount()),
		zap.Int("renamed_devices", renamed),
	)
	return toTopologyResponse(t), nil
}

// claimDocumentIDs claims every device id of an imported document. An id
// already held by another topology gets a fresh one, and the connections
// are rewritten to match. A duplicate inside the document is left alone so
// the aggregate rejects it. Returns the number of renamed devices and the
// ids to give back if the import fails.
func (s *ApplicationService) claimDocumentIDs(doc *snapshot.Document) (renamed int, claimed []string) {
	rename := make(map[string]string)
	seen := make(map[string]bool, len(doc.Devices))
	for i := range doc.Devices {
		dd := &doc.Devices[i]
		if dd.ID == "" || seen[dd.ID] {
			continue
		}
		seen[dd.ID] = true
		if s.allocator.Claim(dd.ID) {
			claimed = append(claimed, dd.ID)
			continue
		}
		fresh := s.allocator.Generate()
		claimed = append(claimed, fresh)
		rename[dd.ID] = fresh
		dd.ID = fresh
	}
	for i := range doc.Connections {
		cd := &doc.Connections[i]
		if to, ok := rename[cd.SourceID]; ok {
			cd.SourceID = to
		}
		if to, ok := rename[cd.TargetID]; ok {
			cd.TargetID = to
		}
	}
	return len(rename), claimed
}

// ExportTopology encodes the stored topology, derived properties included
func (s *ApplicationService) ExportTopology(ctx context.Context, topologyID, format string) (*ExportResult, error) {
	c, err := s.codecs.Lookup(format)
	if err != nil {
		return nil, shared.NewValidationError("document", "format", err.Error())
	}
	t, err := s.load(ctx, topologyID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := c.Export(snapshot.FromDomain(t), &buf); err != nil {
		return nil, err
	}
	return &ExportResult{Format: c.Format(), ContentType: c.ContentType(), Data: buf.Bytes()}, nil
}
