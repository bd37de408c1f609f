package heightfield

import (
	"math"

	"elevgrid/internal/geo"
)

// Vec3 is a surface normal component triple.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) normalized() Vec3 {
	l := math.Sqrt(float64(v.X)*float64(v.X) + float64(v.Y)*float64(v.Y) + float64(v.Z)*float64(v.Z))
	if l == 0 {
		return Vec3{Z: 1}
	}
	return Vec3{X: float32(float64(v.X) / l), Y: float32(float64(v.Y) / l), Z: float32(float64(v.Z) / l)}
}

func (v Vec3) add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) scale(s float64) Vec3 {
	return Vec3{X: float32(float64(v.X) * s), Y: float32(float64(v.Y) * s), Z: float32(float64(v.Z) * s)}
}

// NormalMap stores one unit normal per grid sample.
type NormalMap struct {
	W, H    int
	Normals []Vec3
}

func NewNormalMap(w, h int) *NormalMap {
	return &NormalMap{W: w, H: h, Normals: make([]Vec3, w*h)}
}

func (nm *NormalMap) At(c, t int) Vec3 {
	return nm.Normals[t*nm.W+c]
}

func (nm *NormalMap) Set(c, t int, v Vec3) {
	nm.Normals[t*nm.W+c] = v
}

// SynthesizeNormals fills nm with unit normals derived from grid heights.
//
// deltaLOD records, per sample, how many levels below the requested
// resolution the contributing elevation actually came from. Where it is zero
// the normal is taken from immediate neighbors. Where data fell back to a
// coarser level, neighbor differences at single-sample spacing would alias
// the coarse signal and produce faceting; instead the normal is interpolated
// between the bracketing positions that are aligned with the coarse data,
// step = 1<<delta samples apart.
func SynthesizeNormals(ext geo.Extent, kind geo.SRSKind, g *Grid, deltaLOD []int16, nm *NormalMap) {
	w, h := g.W, g.H
	for t := 0; t < h; t++ {
		for s := 0; s < w; s++ {
			step := 1 << uint(deltaLOD[t*w+s])

			var n Vec3
			if step <= 1 {
				n = normalAt(ext, kind, g, s, t)
			} else {
				s0 := maxi(s-(s%step), 0)
				s1 := s0
				if s%step != 0 {
					s1 = mini(s0+step, w-1)
				}
				t0 := maxi(t-(t%step), 0)
				t1 := t0
				if t%step != 0 {
					t1 = mini(t0+step, h-1)
				}

				switch {
				case s0 == s1 && t0 == t1:
					n = normalAt(ext, kind, g, s0, t0)
				case s0 == s1:
					south := normalAt(ext, kind, g, s0, t0)
					north := normalAt(ext, kind, g, s0, t1)
					n = south.scale(float64(t1 - t)).add(north.scale(float64(t - t0)))
				case t0 == t1:
					west := normalAt(ext, kind, g, s0, t0)
					east := normalAt(ext, kind, g, s1, t0)
					n = west.scale(float64(s1 - s)).add(east.scale(float64(s - s0)))
				default:
					sw := normalAt(ext, kind, g, s0, t0)
					se := normalAt(ext, kind, g, s1, t0)
					nw := normalAt(ext, kind, g, s0, t1)
					ne := normalAt(ext, kind, g, s1, t1)
					bottom := sw.scale(float64(s1 - s)).add(se.scale(float64(s - s0)))
					top := nw.scale(float64(s1 - s)).add(ne.scale(float64(s - s0)))
					n = bottom.scale(float64(t1 - t)).add(top.scale(float64(t - t0)))
				}
			}

			nm.Set(s, t, n.normalized())
		}
	}
}

// normalAt derives the normal at column s, row t from central differences of
// the four neighbors, clamped at the grid edges. Geographic extents scale
// the angular spacing to meters, shrinking dx toward the poles.
func normalAt(ext geo.Extent, kind geo.SRSKind, g *Grid, s, t int) Vec3 {
	w, h := g.W, g.H
	resX := ext.Width() / float64(w-1)
	resY := ext.Height() / float64(h-1)

	dx, dy := resX, resY
	if kind == geo.Geographic {
		mPerDeg := (2.0 * math.Pi * geo.EquatorialRadius) / 360.0
		lat := ext.YMin + resY*float64(t)
		dy = resY * mPerDeg
		dx = resX * mPerDeg * math.Cos(lat*math.Pi/180.0)
	}

	e := float64(g.At(s, t))
	west := [3]float64{0, 0, e}
	east := [3]float64{0, 0, e}
	south := [3]float64{0, 0, e}
	north := [3]float64{0, 0, e}

	if s > 0 {
		west = [3]float64{-dx, 0, float64(g.At(s-1, t))}
	}
	if s < w-1 {
		east = [3]float64{dx, 0, float64(g.At(s+1, t))}
	}
	if t > 0 {
		south = [3]float64{0, -dy, float64(g.At(s, t-1))}
	}
	if t < h-1 {
		north = [3]float64{0, dy, float64(g.At(s, t+1))}
	}

	ux := [3]float64{east[0] - west[0], east[1] - west[1], east[2] - west[2]}
	uy := [3]float64{north[0] - south[0], north[1] - south[1], north[2] - south[2]}
	return Vec3{
		X: float32(ux[1]*uy[2] - ux[2]*uy[1]),
		Y: float32(ux[2]*uy[0] - ux[0]*uy[2]),
		Z: float32(ux[0]*uy[1] - ux[1]*uy[0]),
	}
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mini(a, b int) int {
	if a < b {
		return a
	}
	return b
}
