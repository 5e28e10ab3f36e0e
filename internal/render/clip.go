package render

import "polyevolve/internal/model"

type fpoint struct {
	x, y float32
}

// clipToRect clips a closed ring to [0,w]x[0,h] (Sutherland-Hodgman). Points
// may lie up to the generation offset outside the canvas, and the path
// rasterizer expects coordinates inside its bounds.
func clipToRect(points []model.Point, w, h float32) []fpoint {
	ring := make([]fpoint, 0, len(points)+4)
	for _, p := range points {
		ring = append(ring, fpoint{x: float32(p.X), y: float32(p.Y)})
	}
	ring = clipEdge(ring, func(p fpoint) bool { return p.x >= 0 }, func(a, b fpoint) fpoint { return intersectX(a, b, 0) })
	ring = clipEdge(ring, func(p fpoint) bool { return p.x <= w }, func(a, b fpoint) fpoint { return intersectX(a, b, w) })
	ring = clipEdge(ring, func(p fpoint) bool { return p.y >= 0 }, func(a, b fpoint) fpoint { return intersectY(a, b, 0) })
	ring = clipEdge(ring, func(p fpoint) bool { return p.y <= h }, func(a, b fpoint) fpoint { return intersectY(a, b, h) })
	return ring
}

func clipEdge(ring []fpoint, inside func(fpoint) bool, cross func(a, b fpoint) fpoint) []fpoint {
	if len(ring) == 0 {
		return ring
	}
	out := make([]fpoint, 0, len(ring)+2)
	prev := ring[len(ring)-1]
	prevIn := inside(prev)
	for _, cur := range ring {
		curIn := inside(cur)
		switch {
		case curIn && prevIn:
			out = append(out, cur)
		case curIn && !prevIn:
			out = append(out, cross(prev, cur), cur)
		case !curIn && prevIn:
			out = append(out, cross(prev, cur))
		}
		prev, prevIn = cur, curIn
	}
	return out
}

func intersectX(a, b fpoint, x float32) fpoint {
	t := (x - a.x) / (b.x - a.x)
	return fpoint{x: x, y: a.y + t*(b.y-a.y)}
}

func intersectY(a, b fpoint, y float32) fpoint {
	t := (y - a.y) / (b.y - a.y)
	return fpoint{x: a.x + t*(b.x-a.x), y: y}
}
