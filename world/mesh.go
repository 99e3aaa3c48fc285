package world

// meshRun is a single horizontal run of Solid-class pixels on one row.
type meshRun struct{ y, x0, x1 int32 }

// GenerateMesh rebuilds the chunk's collision/render mesh from the current
// pixel buffer by collecting horizontal runs of solid pixels: Solid-class
// materials when reg is non-nil, every non-Air pixel when reg is nil. The
// "raw" set is one rectangle polyline per run and the triangles are two
// per run; the "simplified" set merges runs with the same x-span on
// consecutive rows into taller rectangles, a cheap approximation of full
// polygon simplification. The triangles are not built from the simplified
// set.
func (c *Chunk) GenerateMesh(reg *Registry) *Mesh {
	if !c.Ready() {
		m := &Mesh{}
		c.mesh = m
		return m
	}

	var runs []meshRun
	for y := int32(0); y < Side; y++ {
		x := int32(0)
		for x < Side {
			if !isSolid(reg, c.AtUnchecked(x, y)) {
				x++
				continue
			}
			start := x
			for x < Side && isSolid(reg, c.AtUnchecked(x, y)) {
				x++
			}
			runs = append(runs, meshRun{y: y, x0: start, x1: x - 1})
		}
	}

	raw := make([][][2]float64, 0, len(runs))
	tris := make([][3][2]float64, 0, len(runs)*2)
	for _, rn := range runs {
		x0, x1, y := float64(rn.x0), float64(rn.x1)+1, float64(rn.y)
		poly := [][2]float64{{x0, y}, {x1, y}, {x1, y + 1}, {x0, y + 1}, {x0, y}}
		raw = append(raw, poly)
		tris = append(tris,
			[3][2]float64{{x0, y}, {x1, y}, {x1, y + 1}},
			[3][2]float64{{x0, y}, {x1, y + 1}, {x0, y + 1}},
		)
	}

	simplified := mergeVerticalRuns(runs)

	m := &Mesh{Raw: raw, Simplified: simplified, Triangles: tris}
	c.mesh = m
	return m
}

func isSolid(reg *Registry, m MaterialInstance) bool {
	if m.IsAir() {
		return false
	}
	if reg == nil {
		return m.Class != Air
	}
	return reg.Def(m.Material).Class == Solid
}

// mergeVerticalRuns merges horizontal runs that share the same x-span on
// consecutive rows into a single taller rectangle, producing a much smaller
// polyline set than one entry per pixel row.
func mergeVerticalRuns(runs []meshRun) [][][2]float64 {
	type key struct{ x0, x1 int32 }
	open := map[key]int32{} // span -> starting y
	out := make([][][2]float64, 0, len(runs))
	byRow := map[int32][]key{}
	for _, r := range runs {
		byRow[r.y] = append(byRow[r.y], key{r.x0, r.x1})
	}

	flush := func(k key, startY, endY int32) {
		x0, x1, y0, y1 := float64(k.x0), float64(k.x1)+1, float64(startY), float64(endY)+1
		out = append(out, [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}})
	}

	var maxY int32 = -1
	for y := range byRow {
		if y > maxY {
			maxY = y
		}
	}
	for y := int32(0); y <= maxY; y++ {
		present := map[key]bool{}
		for _, k := range byRow[y] {
			present[k] = true
			if _, ok := open[k]; !ok {
				open[k] = y
			}
		}
		for k, startY := range open {
			if !present[k] {
				flush(k, startY, y-1)
				delete(open, k)
			}
		}
	}
	for k, startY := range open {
		flush(k, startY, maxY)
	}
	return out
}
