package models

import (
	"strings"
	"time"
)

// BBox 检测框（左上角 x1,y1 到右下角 x2,y2）
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center 检测框中心点
func (b BBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area 检测框面积（退化框面积为 0）
func (b BBox) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection 单帧单目标检测记录（对应 detections 表，只追加）
type Detection struct {
	ID         int64     `json:"id,omitempty" db:"id"`
	CameraID   string    `json:"camera_id" db:"camera_id"`
	Timestamp  time.Time `json:"ts" db:"ts"`
	Label      string    `json:"label" db:"label"`
	Confidence float64   `json:"confidence" db:"confidence"` // ∈ [0,1]
	BBox       BBox      `json:"bbox" db:"bbox"`
	TrackID    *int64    `json:"track_id,omitempty" db:"track_id"`
}

// IsPerson 是否为人员检测（标签不区分大小写）
func (d *Detection) IsPerson() bool {
	return strings.EqualFold(d.Label, "person")
}
