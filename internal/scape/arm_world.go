package scape

import (
	"fmt"
	"math"
)

// Segments of the arm in the order their corners and forces are exchanged
// with the controller.
const (
	SegmentTricep = iota
	SegmentForearm
	SegmentPalm
	SegmentLowerIndex
	SegmentUpperIndex
	SegmentLowerThumb
	SegmentUpperThumb
	SegmentCount
)

const tricepMaxForce = 0.05

type segmentSpec struct {
	name       string
	halfWidth  float64
	halfHeight float64
	maxForce   float64
	parent     int
	// anchor is where the segment attaches along its parent, 1 being the far end.
	anchor    float64
	baseAngle float64
}

var armSegments = [SegmentCount]segmentSpec{
	SegmentTricep:     {name: "tricep", halfWidth: 0.155, halfHeight: 0.0375, maxForce: tricepMaxForce, parent: -1, anchor: 1},
	SegmentForearm:    {name: "forearm", halfWidth: 0.125, halfHeight: 0.03, maxForce: tricepMaxForce / 2, parent: SegmentTricep, anchor: 1},
	SegmentPalm:       {name: "palm", halfWidth: 0.05, halfHeight: 0.01, maxForce: tricepMaxForce / 25, parent: SegmentForearm, anchor: 1},
	SegmentLowerIndex: {name: "lower_index", halfWidth: 0.0175, halfHeight: 0.008, maxForce: tricepMaxForce / 40, parent: SegmentPalm, anchor: 1},
	SegmentUpperIndex: {name: "upper_index", halfWidth: 0.0175, halfHeight: 0.008, maxForce: tricepMaxForce / 50, parent: SegmentLowerIndex, anchor: 1},
	SegmentLowerThumb: {name: "lower_thumb", halfWidth: 0.0175, halfHeight: 0.008, maxForce: tricepMaxForce / 40, parent: SegmentPalm, anchor: 0.5, baseAngle: -math.Pi / 2},
	SegmentUpperThumb: {name: "upper_thumb", halfWidth: 0.0175, halfHeight: 0.008, maxForce: tricepMaxForce / 50, parent: SegmentLowerThumb, anchor: 1},
}

func SegmentName(i int) string {
	if i < 0 || i >= SegmentCount {
		return fmt.Sprintf("segment-%d", i)
	}
	return armSegments[i].name
}

type Point struct {
	X, Y float64
}

// Corners are the two corners at the far end of a segment's long axis.
type Corners [2]Point

type WorldConfig struct {
	Gravity    float64 `yaml:"gravity" mapstructure:"gravity"`
	Dt         float64 `yaml:"dt" mapstructure:"dt"`
	Damping    float64 `yaml:"damping" mapstructure:"damping"`
	ForceGain  float64 `yaml:"force_gain" mapstructure:"force_gain"`
	JointLimit float64 `yaml:"joint_limit" mapstructure:"joint_limit"`
	MaxOmega   float64 `yaml:"max_omega" mapstructure:"max_omega"`
	Density    float64 `yaml:"density" mapstructure:"density"`
}

func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Gravity:    9.81,
		Dt:         1.0 / 250.0,
		Damping:    0.002,
		ForceGain:  4,
		JointLimit: 0.75 * math.Pi,
		MaxOmega:   20,
		Density:    1,
	}
}

func (c WorldConfig) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("world dt must be > 0")
	}
	if c.Gravity < 0 || c.Damping < 0 || c.ForceGain < 0 {
		return fmt.Errorf("world gravity, damping and force gain must be >= 0")
	}
	if c.JointLimit <= 0 || c.MaxOmega <= 0 || c.Density <= 0 {
		return fmt.Errorf("world joint limit, max omega and density must be > 0")
	}
	return nil
}

// ArmWorld is a planar chain of rigid segments hanging off a fixed shoulder.
// Each joint is a damped rotational integrator driven by gravity and the
// controller's force; it approximates a held arm rather than modelling one.
type ArmWorld struct {
	cfg      WorldConfig
	shoulder Point
	angle    [SegmentCount]float64
	omega    [SegmentCount]float64
	load     [SegmentCount]float64
	inertia  [SegmentCount]float64
	minX     float64
	minY     float64
	rangeXY  float64
}

func NewArmWorld(cfg WorldConfig) (*ArmWorld, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &ArmWorld{cfg: cfg, shoulder: Point{X: 1, Y: 1}}

	var mass [SegmentCount]float64
	for i, seg := range armSegments {
		mass[i] = 4 * seg.halfWidth * seg.halfHeight * cfg.Density
	}
	// Children are listed after their parents, so a reverse walk accumulates
	// each subtree's mass at its root.
	var subtree [SegmentCount]float64
	for i := SegmentCount - 1; i >= 0; i-- {
		subtree[i] += mass[i]
		if p := armSegments[i].parent; p >= 0 {
			subtree[p] += subtree[i]
		}
	}
	for i, seg := range armSegments {
		length := 2 * seg.halfWidth
		w.load[i] = mass[i]*seg.halfWidth + (subtree[i]-mass[i])*length
		w.inertia[i] = w.load[i] * length
	}

	reach := 0.0
	for _, i := range []int{SegmentTricep, SegmentForearm, SegmentPalm, SegmentLowerIndex, SegmentUpperIndex} {
		reach += 2 * armSegments[i].halfWidth
	}
	w.minX = w.shoulder.X - reach
	w.minY = w.shoulder.Y - reach
	w.rangeXY = 2 * reach
	return w, nil
}

// Step applies one force per segment, each clamped to [-1, 1] and scaled by
// the segment's strength, then advances the world by Dt.
func (w *ArmWorld) Step(forces []float32) error {
	if len(forces) != SegmentCount {
		return fmt.Errorf("expected %d forces, got %d", SegmentCount, len(forces))
	}
	abs := w.absoluteAngles()
	dt := w.cfg.Dt
	for i, seg := range armSegments {
		f := float64(forces[i])
		if math.IsNaN(f) {
			f = 0
		}
		f = math.Max(-1, math.Min(1, f))
		torque := f*seg.maxForce*w.cfg.ForceGain - w.cfg.Gravity*math.Cos(abs[i])*w.load[i]
		// Implicit damping keeps light finger segments stable at this dt.
		omega := (w.omega[i] + torque/w.inertia[i]*dt) / (1 + w.cfg.Damping*dt/w.inertia[i])
		w.omega[i] = math.Max(-w.cfg.MaxOmega, math.Min(w.cfg.MaxOmega, omega))

		angle := w.angle[i] + w.omega[i]*dt
		if angle > w.cfg.JointLimit || angle < -w.cfg.JointLimit {
			angle = math.Max(-w.cfg.JointLimit, math.Min(w.cfg.JointLimit, angle))
			w.omega[i] = 0
		}
		w.angle[i] = angle
	}
	return nil
}

func (w *ArmWorld) absoluteAngles() [SegmentCount]float64 {
	var abs [SegmentCount]float64
	for i, seg := range armSegments {
		abs[i] = seg.baseAngle + w.angle[i]
		if seg.parent >= 0 {
			abs[i] += abs[seg.parent]
		}
	}
	return abs
}

// FarCorners returns every segment's far corners in world coordinates.
func (w *ArmWorld) FarCorners() [SegmentCount]Corners {
	abs := w.absoluteAngles()
	var start, end [SegmentCount]Point
	var out [SegmentCount]Corners
	for i, seg := range armSegments {
		if seg.parent < 0 {
			start[i] = w.shoulder
		} else {
			p := seg.parent
			start[i] = Point{
				X: start[p].X + (end[p].X-start[p].X)*seg.anchor,
				Y: start[p].Y + (end[p].Y-start[p].Y)*seg.anchor,
			}
		}
		cos, sin := math.Cos(abs[i]), math.Sin(abs[i])
		length := 2 * seg.halfWidth
		end[i] = Point{X: start[i].X + length*cos, Y: start[i].Y + length*sin}
		perpX, perpY := -sin*seg.halfHeight, cos*seg.halfHeight
		out[i] = Corners{
			{X: end[i].X + perpX, Y: end[i].Y + perpY},
			{X: end[i].X - perpX, Y: end[i].Y - perpY},
		}
	}
	return out
}

// AppendState appends the raw far-corner coordinates, four per segment.
func (w *ArmWorld) AppendState(dst []float32) []float32 {
	for _, c := range w.FarCorners() {
		dst = append(dst, float32(c[0].X), float32(c[0].Y), float32(c[1].X), float32(c[1].Y))
	}
	return dst
}

// AppendNormalized appends far corners mapped so the arm's full reach spans
// [0, 1] on both axes.
func (w *ArmWorld) AppendNormalized(dst []float32) []float32 {
	for _, c := range w.FarCorners() {
		for _, p := range c {
			dst = append(dst, float32((p.X-w.minX)/w.rangeXY), float32((p.Y-w.minY)/w.rangeXY))
		}
	}
	return dst
}
