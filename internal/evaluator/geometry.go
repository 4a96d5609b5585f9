package evaluator

import (
	"math"

	"wisefido-vision/internal/models"
)

// distance 两点间欧氏距离
func distance(a, b models.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// pointInPolygon 射线法（even-odd规则）判断点是否在多边形内
// 少于3个顶点的多边形视为空区域
func pointInPolygon(p models.Point, polygon []models.Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi := polygon[i]
		pj := polygon[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			// 计算边与水平射线的交点横坐标
			x := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}

	return inside
}
