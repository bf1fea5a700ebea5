package geom

import "math"

// Vec2 is a point or direction in world units.
type Vec2 struct {
	X, Y float64
}

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Mul(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) MulVec(o Vec2) Vec2 { return Vec2{v.X * o.X, v.Y * o.Y} }
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Length() }
func (v Vec2) DistSq(o Vec2) float64 { d := v.Sub(o); return d.Dot(d) }
func (v Vec2) Mid(o Vec2) Vec2 { return Vec2{(v.X + o.X) / 2, (v.Y + o.Y) / 2} }
func (v Vec2) Equal(o Vec2) bool { return v.X == o.X && v.Y == o.Y }
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Rotate returns v rotated counter-clockwise by deg degrees.
func (v Vec2) Rotate(deg float64) Vec2 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Vec2{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// Normalize returns the unit vector of v, or zero for a zero vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	Min, Max Vec2
}

func R(minX, minY, maxX, maxY float64) Rect {
	return Rect{Min: Vec2{minX, minY}, Max: Vec2{maxX, maxY}}
}

func (r Rect) Width() float64 { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }
func (r Rect) Center() Vec2 { return r.Min.Mid(r.Max) }

// Contains reports whether p lies inside r, both edges inclusive.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && o.Min.X <= r.Max.X &&
		r.Min.Y <= o.Max.Y && o.Min.Y <= r.Max.Y
}

// IntersectsCircle reports whether the circle at c with radius rad touches r.
func (r Rect) IntersectsCircle(c Vec2, rad float64) bool {
	nx := math.Max(r.Min.X, math.Min(c.X, r.Max.X))
	ny := math.Max(r.Min.Y, math.Min(c.Y, r.Max.Y))
	return c.DistSq(Vec2{nx, ny}) <= rad*rad
}

// Mat3 is a row-major 2D affine matrix; the last row is implicitly 0 0 1.
type Mat3 [6]float64

func Identity() Mat3 { return Mat3{1, 0, 0, 0, 1, 0} }

// TRS builds translate * rotate(deg) * scale.
func TRS(t Vec2, deg float64, s Vec2) Mat3 {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	return Mat3{
		cos * s.X, -sin * s.Y, t.X,
		sin * s.X, cos * s.Y, t.Y,
	}
}

func (m Mat3) Mul(o Mat3) Mat3 {
	return Mat3{
		m[0]*o[0] + m[1]*o[3], m[0]*o[1] + m[1]*o[4], m[0]*o[2] + m[1]*o[5] + m[2],
		m[3]*o[0] + m[4]*o[3], m[3]*o[1] + m[4]*o[4], m[3]*o[2] + m[4]*o[5] + m[5],
	}
}

// Apply transforms point p.
func (m Mat3) Apply(p Vec2) Vec2 {
	return Vec2{m[0]*p.X + m[1]*p.Y + m[2], m[3]*p.X + m[4]*p.Y + m[5]}
}

func (m Mat3) Translation() Vec2 { return Vec2{m[2], m[5]} }
