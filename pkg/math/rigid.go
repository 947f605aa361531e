// Package math provides the rigid transform, projection and unprojection
// math shared by the viewport and the renderers.
//
// All core math is double precision (mgl64). GPU-facing data is converted
// to mgl32 at the last moment with the helpers in convert.go.
package math

import (
	"errors"
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the threshold below which determinants, homogeneous w and
// basis vector lengths are treated as zero.
const Epsilon = 1e-12

// ErrSingular is returned when a matrix cannot be inverted or a rotation
// basis collapses.
var ErrSingular = errors.New("singular matrix")

// Rigid is a rotation followed by a translation: p' = Rot*p + Pos.
//
// The rotation is kept as a unit quaternion and renormalized on every
// composition, so long chains of small updates cannot introduce shear or
// scale into the materialized matrix.
type Rigid struct {
	Rot mgl64.Quat
	Pos mgl64.Vec3
}

// RigidIdentity returns the identity transform.
func RigidIdentity() Rigid {
	return Rigid{Rot: mgl64.QuatIdent()}
}

// NewRigid builds a transform from a rotation and a translation.
func NewRigid(rot mgl64.Quat, pos mgl64.Vec3) Rigid {
	return Rigid{Rot: unit(rot), Pos: pos}
}

// Translation returns a pure translation.
func Translation(v mgl64.Vec3) Rigid {
	return Rigid{Rot: mgl64.QuatIdent(), Pos: v}
}

// RigidFromAxes builds a transform whose rotation columns are x, y and z.
// The basis is re-orthonormalized first.
func RigidFromAxes(x, y, z, pos mgl64.Vec3) (Rigid, error) {
	rot, err := Orthonormalize(mgl64.Mat3FromCols(x, y, z))
	if err != nil {
		return Rigid{}, err
	}
	return Rigid{Rot: unit(mgl64.Mat4ToQuat(rot.Mat4())), Pos: pos}, nil
}

// RigidFromMat4 extracts the rigid part of a homogeneous matrix. The upper
// 3x3 block is re-orthonormalized and the bottom row is ignored.
func RigidFromMat4(m mgl64.Mat4) (Rigid, error) {
	r := m.Mat3()
	return RigidFromAxes(r.Col(0), r.Col(1), r.Col(2), m.Col(3).Vec3())
}

// Orthonormalize runs Gram-Schmidt over the columns of m, keeping the
// direction of the first column and the plane of the first two. The third
// column is rebuilt as a right-handed cross product.
func Orthonormalize(m mgl64.Mat3) (mgl64.Mat3, error) {
	x := m.Col(0)
	if x.Len() < Epsilon {
		return mgl64.Mat3{}, ErrSingular
	}
	x = x.Normalize()

	y := m.Col(1)
	y = y.Sub(x.Mul(x.Dot(y)))
	if y.Len() < Epsilon {
		return mgl64.Mat3{}, ErrSingular
	}
	y = y.Normalize()

	return mgl64.Mat3FromCols(x, y, x.Cross(y)), nil
}

// Mul composes two transforms: (a*b)(p) = a(b(p)).
func (a Rigid) Mul(b Rigid) Rigid {
	return Rigid{
		Rot: unit(a.Rot.Mul(b.Rot)),
		Pos: a.Pos.Add(a.Rot.Rotate(b.Pos)),
	}
}

// Inverse returns the inverse transform. It always exists.
func (a Rigid) Inverse() Rigid {
	inv := a.Rot.Conjugate()
	return Rigid{Rot: inv, Pos: inv.Rotate(a.Pos.Mul(-1))}
}

// Rotation returns the 3x3 rotation block.
func (a Rigid) Rotation() mgl64.Mat3 {
	return a.Rot.Mat4().Mat3()
}

// Position returns the translation block.
func (a Rigid) Position() mgl64.Vec3 {
	return a.Pos
}

// Mat4 materializes the homogeneous matrix.
func (a Rigid) Mat4() mgl64.Mat4 {
	m := a.Rot.Mat4()
	m.SetCol(3, a.Pos.Vec4(1))
	return m
}

// TransformPoint applies the transform to a point.
func (a Rigid) TransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return a.Rot.Rotate(p).Add(a.Pos)
}

// TransformDirection applies only the rotation.
func (a Rigid) TransformDirection(d mgl64.Vec3) mgl64.Vec3 {
	return a.Rot.Rotate(d)
}

// ApproxEqual reports whether two transforms agree within eps. Quaternions
// q and -q describe the same rotation and compare equal.
func (a Rigid) ApproxEqual(b Rigid, eps float64) bool {
	if !Vec3Near(a.Pos, b.Pos, eps) {
		return false
	}
	d := a.Rot.Dot(b.Rot)
	return 1-gomath.Abs(d) <= eps
}

// Vec3Near compares two vectors component-wise with an absolute tolerance.
func Vec3Near(a, b mgl64.Vec3, eps float64) bool {
	for i := range a {
		if gomath.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// Mat4Near compares two matrices element-wise with an absolute tolerance.
func Mat4Near(a, b mgl64.Mat4, eps float64) bool {
	for i := range a {
		if gomath.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// IsFinite reports whether every component is a finite number.
func (a Rigid) IsFinite() bool {
	vals := [7]float64{a.Rot.W, a.Rot.V[0], a.Rot.V[1], a.Rot.V[2], a.Pos[0], a.Pos[1], a.Pos[2]}
	for _, v := range vals {
		if gomath.IsNaN(v) || gomath.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// unit rescales q to length one. Quat.Normalize skips quaternions that are
// already within 1e-10 of unit length, which lets error build up slowly.
func unit(q mgl64.Quat) mgl64.Quat {
	l := q.Len()
	if l < Epsilon || gomath.IsNaN(l) || gomath.IsInf(l, 0) {
		return mgl64.QuatIdent()
	}
	return q.Scale(1 / l)
}
