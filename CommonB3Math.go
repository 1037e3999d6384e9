package bounce3

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

/// Coordinates are mathgl vectors so that the broad-phase composes directly
/// with engine code built on mgl64.
type B3Vec3 = mgl64.Vec3

func MakeB3Vec3(x, y, z float64) B3Vec3 {
	return B3Vec3{x, y, z}
}

/// This function is used to ensure that a floating point number is not a NaN or infinity.
func B3IsValid(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func B3Vec3IsValid(v B3Vec3) bool {
	return B3IsValid(v.X()) && B3IsValid(v.Y()) && B3IsValid(v.Z())
}

func B3Vec3Abs(a B3Vec3) B3Vec3 {
	return MakeB3Vec3(math.Abs(a.X()), math.Abs(a.Y()), math.Abs(a.Z()))
}

func B3Vec3Min(a, b B3Vec3) B3Vec3 {
	return MakeB3Vec3(
		math.Min(a.X(), b.X()),
		math.Min(a.Y(), b.Y()),
		math.Min(a.Z(), b.Z()),
	)
}

func B3Vec3Max(a, b B3Vec3) B3Vec3 {
	return MakeB3Vec3(
		math.Max(a.X(), b.X()),
		math.Max(a.Y(), b.Y()),
		math.Max(a.Z(), b.Z()),
	)
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func AbsInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

/// Ray-cast input data. The ray extends from p1 to p1 + maxFraction * (p2 - p1).
type B3RayCastInput struct {
	P1, P2      B3Vec3
	MaxFraction float64
}

func MakeB3RayCastInput() B3RayCastInput {
	return B3RayCastInput{
		P1:          MakeB3Vec3(0, 0, 0),
		P2:          MakeB3Vec3(0, 0, 0),
		MaxFraction: 0,
	}
}

func NewB3RayCastInput() *B3RayCastInput {
	res := MakeB3RayCastInput()
	return &res
}

/// Ray-cast output data. The ray hits at p1 + fraction * (p2 - p1), where p1 and p2
/// come from b3RayCastInput.
type B3RayCastOutput struct {
	Normal   B3Vec3
	Fraction float64
}

func MakeB3RayCastOutput() B3RayCastOutput {
	return B3RayCastOutput{
		Normal:   MakeB3Vec3(0, 0, 0),
		Fraction: 0,
	}
}

/// An axis aligned bounding box.
type B3AABB struct {
	LowerBound B3Vec3 ///< the lower vertex
	UpperBound B3Vec3 ///< the upper vertex
}

func MakeB3AABB() B3AABB {
	return B3AABB{
		LowerBound: MakeB3Vec3(0, 0, 0),
		UpperBound: MakeB3Vec3(0, 0, 0),
	}
}

func NewB3AABB() *B3AABB {
	res := MakeB3AABB()
	return &res
}

func MakeB3AABBFromBounds(lower, upper B3Vec3) B3AABB {
	return B3AABB{
		LowerBound: lower,
		UpperBound: upper,
	}
}

/// Get the center of the AABB.
func (bb B3AABB) GetCenter() B3Vec3 {
	return bb.LowerBound.Add(bb.UpperBound).Mul(0.5)
}

/// Get the extents of the AABB (half-widths).
func (bb B3AABB) GetExtents() B3Vec3 {
	return bb.UpperBound.Sub(bb.LowerBound).Mul(0.5)
}

/// Get the surface area.
func (bb B3AABB) GetSurfaceArea() float64 {
	wx := bb.UpperBound.X() - bb.LowerBound.X()
	wy := bb.UpperBound.Y() - bb.LowerBound.Y()
	wz := bb.UpperBound.Z() - bb.LowerBound.Z()
	return 2.0 * (wx*wy + wy*wz + wz*wx)
}

/// Get the volume.
func (bb B3AABB) GetVolume() float64 {
	w := bb.UpperBound.Sub(bb.LowerBound)
	return w.X() * w.Y() * w.Z()
}

/// Combine an AABB into this one.
func (bb *B3AABB) CombineInPlace(aabb B3AABB) {
	bb.LowerBound = B3Vec3Min(bb.LowerBound, aabb.LowerBound)
	bb.UpperBound = B3Vec3Max(bb.UpperBound, aabb.UpperBound)
}

/// Combine two AABBs into this one.
func (bb *B3AABB) CombineTwoInPlace(aabb1, aabb2 B3AABB) {
	bb.LowerBound = B3Vec3Min(aabb1.LowerBound, aabb2.LowerBound)
	bb.UpperBound = B3Vec3Max(aabb1.UpperBound, aabb2.UpperBound)
}

/// Does this aabb contain the provided AABB.
func (bb B3AABB) Contains(aabb B3AABB) bool {
	return (bb.LowerBound.X() <= aabb.LowerBound.X() &&
		bb.LowerBound.Y() <= aabb.LowerBound.Y() &&
		bb.LowerBound.Z() <= aabb.LowerBound.Z() &&
		aabb.UpperBound.X() <= bb.UpperBound.X() &&
		aabb.UpperBound.Y() <= bb.UpperBound.Y() &&
		aabb.UpperBound.Z() <= bb.UpperBound.Z())
}

func (bb B3AABB) IsValid() bool {
	d := bb.UpperBound.Sub(bb.LowerBound)
	valid := d.X() >= 0.0 && d.Y() >= 0.0 && d.Z() >= 0.0
	valid = valid && B3Vec3IsValid(bb.LowerBound) && B3Vec3IsValid(bb.UpperBound)
	return valid
}

func B3TestOverlapBoundingBoxes(a, b B3AABB) bool {
	d1 := b.LowerBound.Sub(a.UpperBound)
	d2 := a.LowerBound.Sub(b.UpperBound)

	if d1.X() > 0.0 || d1.Y() > 0.0 || d1.Z() > 0.0 {
		return false
	}

	if d2.X() > 0.0 || d2.Y() > 0.0 || d2.Z() > 0.0 {
		return false
	}

	return true
}

// From Real-time Collision Detection, p179.
func (bb B3AABB) RayCast(output *B3RayCastOutput, input B3RayCastInput) bool {
	tmin := -B3_maxFloat
	tmax := B3_maxFloat

	p := input.P1
	d := input.P2.Sub(input.P1)
	absD := B3Vec3Abs(d)

	normal := MakeB3Vec3(0, 0, 0)

	for i := 0; i < 3; i++ {
		if absD[i] < B3_epsilon {
			// Parallel.
			if p[i] < bb.LowerBound[i] || bb.UpperBound[i] < p[i] {
				return false
			}
		} else {
			inv_d := 1.0 / d[i]
			t1 := (bb.LowerBound[i] - p[i]) * inv_d
			t2 := (bb.UpperBound[i] - p[i]) * inv_d

			// Sign of the normal vector.
			s := -1.0

			if t1 > t2 {
				t1, t2 = t2, t1
				s = 1.0
			}

			// Push the min up
			if t1 > tmin {
				normal = MakeB3Vec3(0, 0, 0)
				normal[i] = s
				tmin = t1
			}

			// Pull the max down
			tmax = math.Min(tmax, t2)

			if tmin > tmax {
				return false
			}
		}
	}

	// Does the ray start inside the box?
	// Does the ray intersect beyond the max fraction?
	if tmin < 0.0 || input.MaxFraction < tmin {
		return false
	}

	// Intersection.
	output.Fraction = tmin
	output.Normal = normal
	return true
}

/// Test if the segment described by the ray-cast input touches the AABB within
/// the parametric range [0, maxFraction]. Unlike RayCast, a segment starting
/// inside the box reports an overlap.
func B3TestOverlapSegmentAABB(aabb B3AABB, input B3RayCastInput) bool {
	tmin := 0.0
	tmax := input.MaxFraction

	p := input.P1
	d := input.P2.Sub(input.P1)

	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < B3_epsilon {
			// Parallel.
			if p[i] < aabb.LowerBound[i] || aabb.UpperBound[i] < p[i] {
				return false
			}
		} else {
			inv_d := 1.0 / d[i]
			t1 := (aabb.LowerBound[i] - p[i]) * inv_d
			t2 := (aabb.UpperBound[i] - p[i]) * inv_d

			if t1 > t2 {
				t1, t2 = t2, t1
			}

			tmin = math.Max(tmin, t1)
			tmax = math.Min(tmax, t2)

			if tmin > tmax {
				return false
			}
		}
	}

	return true
}
