// Package retarget converts normalized body landmarks into bone rotations
// and part positions for a bound rig.
package retarget

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// degenerate is the length below which a direction is treated as zero.
const degenerate = 1e-9

var (
	// Identity is the rest rotation.
	Identity = quat.Number{Real: 1}
	// Up is the default rest direction of a bone.
	Up = r3.Vec{Y: 1}
)

// SolveRotation returns the shortest-arc rotation taking the rest direction
// to the direction from parent to child. Zero-length inputs yield Identity.
func SolveRotation(parent, child, rest r3.Vec) quat.Number {
	return FromUnitVectors(rest, r3.Sub(child, parent))
}

// FromUnitVectors returns the shortest-arc rotation taking from to to.
// Inputs need not be unit length; zero or non-finite ones yield Identity.
// Antiparallel inputs produce a half turn about an axis orthogonal to from.
func FromUnitVectors(from, to r3.Vec) quat.Number {
	fn, tn := r3.Norm(from), r3.Norm(to)
	if !usableLength(fn) || !usableLength(tn) {
		return Identity
	}
	f := r3.Scale(1/fn, from)
	t := r3.Scale(1/tn, to)

	d := r3.Dot(f, t)
	if d < -1+1e-12 {
		axis := r3.Cross(r3.Vec{X: 1}, f)
		if r3.Norm(axis) < 1e-6 {
			axis = r3.Cross(r3.Vec{Y: 1}, f)
		}
		axis = r3.Unit(axis)
		return quat.Number{Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
	}

	c := r3.Cross(f, t)
	return Normalize(quat.Number{Real: 1 + d, Imag: c.X, Jmag: c.Y, Kmag: c.Z})
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// Normalize scales q to unit length. A zero or non-finite quaternion
// becomes Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if !usableLength(n) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// usableLength rejects zero, NaN and infinite lengths.
func usableLength(n float64) bool {
	return n > degenerate && !math.IsInf(n, 0)
}

// Finite reports whether every component of q is a finite number.
func Finite(q quat.Number) bool {
	for _, c := range [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Dot is the four-dimensional inner product of two quaternions.
func Dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Slerp interpolates from a to b by t along the shorter great arc.
// t <= 0 returns a and t >= 1 returns b unchanged.
func Slerp(a, b quat.Number, t float64) quat.Number {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}

	cos := Dot(a, b)
	if cos < 0 {
		b = quat.Scale(-1, b)
		cos = -cos
	}

	if cos > 1-1e-9 {
		return Normalize(quat.Add(quat.Scale(1-t, a), quat.Scale(t, b)))
	}

	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return Normalize(quat.Add(quat.Scale(wa, a), quat.Scale(wb, b)))
}
