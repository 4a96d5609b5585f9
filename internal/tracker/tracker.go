package tracker

import (
	"sync"

	"wisefido-vision/internal/models"
)

// 跨帧匹配的 IoU 下限，低于该值视为新目标
const iouThreshold = 0.3

// Tracker 轻量级跨帧目标跟踪器
// 每个相机只保留上一帧的 track_id → bbox 映射，逐帧重建。
// 匹配为贪心策略：按检测顺序取 IoU 最大的上一帧轨迹，先到先得；
// 不做全局最优分配，也不做遮挡补偿和速度预测。
type Tracker struct {
	mu      sync.Mutex
	cameras map[string]*cameraTracks
}

// cameraTracks 单相机跟踪状态（上一帧快照）
type cameraTracks struct {
	nextID int64
	last   map[int64]models.BBox
}

// New 创建跟踪器
func New() *Tracker {
	return &Tracker{
		cameras: make(map[string]*cameraTracks),
	}
}

// Update 对一帧检测结果就地分配 track_id，并用本帧重建该相机的跟踪表
func (t *Tracker) Update(cameraID string, detections []models.Detection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ct, ok := t.cameras[cameraID]
	if !ok {
		ct = &cameraTracks{
			nextID: 1,
			last:   make(map[int64]models.BBox),
		}
		t.cameras[cameraID] = ct
	}

	current := make(map[int64]models.BBox, len(detections))
	claimed := make(map[int64]bool, len(ct.last))

	for i := range detections {
		det := &detections[i]

		// 在上一帧轨迹中找 IoU 最大的未被占用轨迹
		var bestID int64
		bestIoU := 0.0
		for id, box := range ct.last {
			if claimed[id] {
				continue
			}
			if iou := IoU(det.BBox, box); iou > bestIoU {
				bestIoU = iou
				bestID = id
			}
		}

		var trackID int64
		if bestIoU >= iouThreshold {
			// 复用轨迹ID
			trackID = bestID
			claimed[bestID] = true
		} else {
			// 分配新轨迹ID（单相机内单调递增）
			trackID = ct.nextID
			ct.nextID++
		}

		det.TrackID = &trackID
		current[trackID] = det.BBox
	}

	ct.last = current
}

// Reset 清空指定相机的跟踪状态（相机重启时调用）
func (t *Tracker) Reset(cameraID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cameras, cameraID)
}

// ActiveTracks 返回指定相机当前跟踪表的快照（供状态查询使用）
func (t *Tracker) ActiveTracks(cameraID string) map[int64]models.BBox {
	t.mu.Lock()
	defer t.mu.Unlock()

	ct, ok := t.cameras[cameraID]
	if !ok {
		return nil
	}
	out := make(map[int64]models.BBox, len(ct.last))
	for id, box := range ct.last {
		out[id] = box
	}
	return out
}

// IoU 计算两个检测框的交并比
// 公式：交集面积 / (面积A + 面积B - 交集面积)；退化框（零面积）返回 0
func IoU(a, b models.BBox) float64 {
	areaA := a.Area()
	areaB := b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}

	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	return inter / (areaA + areaB - inter)
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
