package shared

import "math"

// Position 值对象 - 编辑画布上的坐标（z 为可选的第三维）
type Position struct {
	x float64
	y float64
	z float64
}

// NewPosition 创建二维坐标
func NewPosition(x, y float64) Position {
	return Position{x: x, y: y}
}

// NewPosition3D 创建三维坐标
func NewPosition3D(x, y, z float64) Position {
	return Position{x: x, y: y, z: z}
}

func (p Position) X() float64 { return p.x }
func (p Position) Y() float64 { return p.y }
func (p Position) Z() float64 { return p.z }

// Translate 平移，返回新的Position值对象
func (p Position) Translate(dx, dy float64) Position {
	return Position{x: p.x + dx, y: p.y + dy, z: p.z}
}

// DistanceTo 平面欧氏距离
func (p Position) DistanceTo(other Position) float64 {
	return math.Hypot(p.x-other.x, p.y-other.y)
}

// Equals 比较两个Position值对象是否相等
func (p Position) Equals(other interface{}) bool {
	o, ok := other.(Position)
	if !ok {
		return false
	}
	return p == o
}

// Location 值对象 - 地理位置
type Location struct {
	latitude  float64
	longitude float64
	altitude  float64
}

// NewLocation 创建地理位置，纬度和经度超出范围时返回校验错误
func NewLocation(latitude, longitude, altitude float64) (Location, error) {
	if latitude < -90 || latitude > 90 {
		return Location{}, NewValidationError("location", "latitude", "latitude must be within [-90, 90]")
	}
	if longitude < -180 || longitude > 180 {
		return Location{}, NewValidationError("location", "longitude", "longitude must be within [-180, 180]")
	}
	return Location{latitude: latitude, longitude: longitude, altitude: altitude}, nil
}

func (l Location) Latitude() float64  { return l.latitude }
func (l Location) Longitude() float64 { return l.longitude }
func (l Location) Altitude() float64  { return l.altitude }

// Equals 比较两个Location值对象是否相等
func (l Location) Equals(other interface{}) bool {
	o, ok := other.(Location)
	if !ok {
		return false
	}
	return l == o
}
