package genotype

import "polyevolve/internal/model"

func ClonePolygon(p model.Polygon) model.Polygon {
	out := p
	out.Points = append([]model.Point(nil), p.Points...)
	return out
}

// CloneGenome returns a deep copy: the polygon slice and every point slice
// are freshly allocated.
func CloneGenome(g model.Genome) model.Genome {
	out := g
	out.Polygons = make([]model.Polygon, len(g.Polygons))
	for i := range g.Polygons {
		out.Polygons[i] = ClonePolygon(g.Polygons[i])
	}
	return out
}
