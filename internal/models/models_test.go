package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBBox_Center(t *testing.T) {
	b := BBox{X1: 0, Y1: 0, X2: 10, Y2: 20}
	assert.Equal(t, Point{X: 5, Y: 10}, b.Center())
}

func TestBBox_Area(t *testing.T) {
	assert.Equal(t, 200.0, BBox{X1: 0, Y1: 0, X2: 10, Y2: 20}.Area())

	// 退化框面积为 0
	assert.Equal(t, 0.0, BBox{X1: 5, Y1: 5, X2: 5, Y2: 10}.Area())
	assert.Equal(t, 0.0, BBox{X1: 10, Y1: 10, X2: 5, Y2: 5}.Area())
}

func TestDetection_IsPerson(t *testing.T) {
	cases := map[string]bool{
		"person": true,
		"Person": true,
		"PERSON": true,
		"car":    false,
		"":       false,
	}
	for label, want := range cases {
		d := Detection{Label: label}
		assert.Equal(t, want, d.IsPerson(), "label %q", label)
	}
}

func TestCameraConfig_Normalize(t *testing.T) {
	camera := CameraConfig{}
	camera.Normalize(2.0, 0.5)
	assert.Equal(t, 2.0, camera.FPS)
	assert.Equal(t, 0.5, camera.Rules.ConfidenceThreshold)
	assert.Equal(t, DwellRearmRepeat, camera.Rules.DwellRearmPolicy)

	// 已设置的值不被覆盖
	camera = CameraConfig{FPS: 5, Rules: RuleConfig{
		ConfidenceThreshold: 0.8,
		DwellRearmPolicy:    DwellRearmOnce,
	}}
	camera.Normalize(2.0, 0.5)
	assert.Equal(t, 5.0, camera.FPS)
	assert.Equal(t, 0.8, camera.Rules.ConfidenceThreshold)
	assert.Equal(t, DwellRearmOnce, camera.Rules.DwellRearmPolicy)
}

func TestCameraConfig_DwellThresholdFor(t *testing.T) {
	camera := CameraConfig{Rules: RuleConfig{DwellThreshold: 30}}

	zone := Zone{ZoneID: "zone-a"}
	assert.Equal(t, 30.0, camera.DwellThresholdFor(zone))

	override := 5.0
	zone.DwellThreshold = &override
	assert.Equal(t, 5.0, camera.DwellThresholdFor(zone))
}
