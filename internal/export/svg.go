// Package export renders explicit solutions and trajectories as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/pwampc/internal/mpqp"
)

// ErrUnsupportedDim is returned for partitions of more than two parameters.
var ErrUnsupportedDim = errors.New("export: only 1 and 2 dimensional partitions can be drawn")

var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

type Point struct{ X, Y float64 }

// Window is the parameter rectangle drawn. Y is ignored for one parameter.
type Window struct {
	XMin, XMax float64
	YMin, YMax float64
}

// WindowFor is the parameter box of sol clipped to |x_i| <= half.
func WindowFor(sol *mpqp.ExplicitSolution, half float64) Window {
	r := math.Min(sol.Bound(), half)
	return Window{XMin: -r, XMax: r, YMin: -r, YMax: r}
}

func svgHeader(sb *strings.Builder, width, height int) {
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))
}

// PartitionSVG rasterises the critical regions of sol over w on a
// cells×cells grid, one colour per region. Cells outside every region stay
// background. The trajectory, when given, is drawn on top.
func PartitionSVG(sol *mpqp.ExplicitSolution, w Window, width, height, cells int, trajectory []Point) (string, error) {
	nx := sol.Program().Nx()
	if nx < 1 || nx > 2 {
		return "", errors.Wrapf(ErrUnsupportedDim, "nx=%d", nx)
	}
	if cells < 1 {
		cells = 1
	}
	if w.XMax <= w.XMin || (nx == 2 && w.YMax <= w.YMin) {
		return "", errors.New("export: empty window")
	}

	index := make(map[*mpqp.CriticalRegion]int, len(sol.Regions()))
	for i, r := range sol.Regions() {
		index[r] = i
	}

	var sb strings.Builder
	svgHeader(&sb, width, height)

	rows := cells
	if nx == 1 {
		rows = 1
	}
	cw := float64(width) / float64(cells)
	ch := float64(height) / float64(rows)
	x := mat.NewVecDense(nx, nil)

	sb.WriteString("<g stroke=\"none\">\n")
	for j := 0; j < rows; j++ {
		for i := 0; i < cells; i++ {
			x.SetVec(0, w.XMin+(float64(i)+0.5)/float64(cells)*(w.XMax-w.XMin))
			if nx == 2 {
				// SVG y grows downwards
				x.SetVec(1, w.YMax-(float64(j)+0.5)/float64(rows)*(w.YMax-w.YMin))
			}
			r := sol.Locate(x)
			if r == nil {
				continue
			}
			sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.2f" height="%.2f" fill="%s"/>
`, float64(i)*cw, float64(j)*ch, cw+0.5, ch+0.5, palette[index[r]%len(palette)]))
		}
	}
	sb.WriteString("</g>\n")

	if nx == 2 && len(trajectory) > 1 {
		sb.WriteString(`<path fill="none" stroke="#ffffff" stroke-width="1.5" d="M`)
		for i, p := range trajectory {
			px := (p.X - w.XMin) / (w.XMax - w.XMin) * float64(width)
			py := float64(height) - (p.Y-w.YMin)/(w.YMax-w.YMin)*float64(height)
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", px, py))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", px, py))
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>")
	return sb.String(), nil
}

// TrajectoryToSVG creates an SVG from trajectory data
func TrajectoryToSVG(points []Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	svgHeader(&sb, width, height)
	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor))

	for i, p := range points {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

// StatePoints projects states onto two coordinates, or onto (step, x_i)
// when j is negative.
func StatePoints(states [][]float64, i, j int) []Point {
	pts := make([]Point, 0, len(states))
	for k, s := range states {
		if i >= len(s) || j >= len(s) {
			continue
		}
		if j < 0 {
			pts = append(pts, Point{X: float64(k), Y: s[i]})
		} else {
			pts = append(pts, Point{X: s[i], Y: s[j]})
		}
	}
	return pts
}
