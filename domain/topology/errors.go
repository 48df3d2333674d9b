package topology

import (
	"errors"
	"strings"

	"microgrid/domain/shared"
)

// 拓扑领域的错误类别，pkg/errors 按它们映射错误码
var (
	// ErrTopologyNotFound 拓扑不存在
	ErrTopologyNotFound = errors.New("topology not found")

	// ErrDuplicateDevice 设备标识重复
	ErrDuplicateDevice = errors.New("duplicate device")

	// ErrDuplicateConnection 连接标识重复，或同一设备对在同一端口上已有连接
	ErrDuplicateConnection = errors.New("duplicate connection")

	// ErrDeviceNotFound 引用了不存在的设备
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceInUse 设备仍被连接引用，无法移除
	ErrDeviceInUse = errors.New("device in use")

	// ErrInvalidTopology 违反连接规则，或引用了不存在的连接
	ErrInvalidTopology = errors.New("invalid topology")

	// ErrTopologyValidation 拓扑整体校验失败
	ErrTopologyValidation = errors.New("topology validation failed")

	// ErrInvalidDevice 设备或命令参数非法
	ErrInvalidDevice = errors.New("invalid device")

	// ErrConcurrentModification 乐观锁冲突，调用方应重试
	ErrConcurrentModification = errors.New("topology was modified by another transaction, please retry")
)

// 以下构造函数返回 *shared.DomainError，Kind 为上面的哨兵

func NewTopologyNotFoundError(topologyID string) error {
	return shared.NewError(ErrTopologyNotFound, "topology", "", "topology not found: "+topologyID)
}

func NewDuplicateDeviceError(deviceID string) error {
	return shared.NewError(ErrDuplicateDevice, "device", "id", "device already exists: "+deviceID)
}

// NewDuplicateConnectionError reason 说明是 id 重复还是端口重复
func NewDuplicateConnectionError(connectionID, reason string) error {
	return shared.NewError(ErrDuplicateConnection, "connection", "",
		"duplicate connection "+connectionID+": "+reason)
}

func NewDeviceNotFoundError(deviceID string) error {
	return shared.NewError(ErrDeviceNotFound, "device", "", "device not found: "+deviceID)
}

func NewDeviceInUseError(deviceID string, connectionIDs []string) error {
	return shared.NewError(ErrDeviceInUse, "device", "",
		"device "+deviceID+" is still referenced by connections: "+strings.Join(connectionIDs, ", "))
}

// NewInvalidTopologyError message 说明违反了哪条连接规则
func NewInvalidTopologyError(message string) error {
	return shared.NewError(ErrInvalidTopology, "topology", "", message)
}

func NewInvalidDeviceError(field, message string) error {
	return shared.NewError(ErrInvalidDevice, "device", field, message)
}

func NewConcurrentModificationError(topologyID string) error {
	return shared.NewError(ErrConcurrentModification, "topology", "version",
		"topology "+topologyID+" was modified by another transaction, please retry")
}

// TopologyValidationError 拓扑校验失败，携带逐条错误
type TopologyValidationError struct {
	TopologyID string
	Errors     []string
	stack      []uintptr
}

// NewTopologyValidationError 创建拓扑校验失败错误
func NewTopologyValidationError(topologyID string, errs []string) *TopologyValidationError {
	copied := make([]string, len(errs))
	copy(copied, errs)
	return &TopologyValidationError{
		TopologyID: topologyID,
		Errors:     copied,
		stack:      shared.CaptureStack(3),
	}
}

func (e *TopologyValidationError) Error() string {
	return "topology validation failed: " + strings.Join(e.Errors, "; ")
}

func (e *TopologyValidationError) Unwrap() error {
	return ErrTopologyValidation
}

func (e *TopologyValidationError) Stack() []string {
	return shared.FormatStack(e.stack)
}

var _ shared.Stacker = (*TopologyValidationError)(nil)
