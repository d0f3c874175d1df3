package tui

import (
	"math"
	"strings"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
)

const (
	sceneWidth  = 60
	sceneHeight = 16
)

// Scene sketches the plant state on a character canvas.
type Scene struct {
	model  string
	canvas [][]rune
	trail  []struct{ x, y int }
}

func NewScene(model string) *Scene {
	canvas := make([][]rune, sceneHeight)
	for i := range canvas {
		canvas[i] = make([]rune, sceneWidth)
	}
	return &Scene{model: model, canvas: canvas}
}

func (s *Scene) Draw(x dynamo.State) string {
	s.clear()
	switch s.model {
	case "pendulum":
		s.drawPendulum(x)
	case "drone":
		s.drawDrone(x)
	case "bouncing_mass":
		s.drawBouncingMass(x)
	default:
		s.drawGeneric(x)
	}

	var b strings.Builder
	for _, row := range s.canvas {
		b.WriteString(strings.TrimRight(string(row), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Scene) clear() {
	for y := range s.canvas {
		for x := range s.canvas[y] {
			s.canvas[y][x] = ' '
		}
	}
}

func (s *Scene) set(x, y int, c rune) {
	if x >= 0 && x < sceneWidth && y >= 0 && y < sceneHeight {
		s.canvas[y][x] = c
	}
}

func (s *Scene) line(x1, y1, x2, y2 int, c rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		s.set(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (s *Scene) remember(x, y, keep int) {
	s.trail = append(s.trail, struct{ x, y int }{x, y})
	if len(s.trail) > keep {
		s.trail = s.trail[1:]
	}
	for _, pt := range s.trail {
		s.set(pt.x, pt.y, '.')
	}
}

func (s *Scene) drawPendulum(x dynamo.State) {
	if len(x) < 2 {
		return
	}
	px, py := sceneWidth/2, 2
	length := 10.0
	bx := px + int(length*math.Sin(x[0]))
	by := py + int(length*math.Cos(x[0])/2)

	s.remember(bx, by, 30)
	s.set(px, py, '+')
	s.line(px, py, bx, by, '|')
	s.set(bx, by, 'O')
}

func (s *Scene) drawDrone(x dynamo.State) {
	if len(x) < 6 {
		return
	}
	for i := 2; i < sceneWidth-2; i++ {
		s.set(i, sceneHeight-1, '_')
	}
	dx := sceneWidth/2 + int(x[0]*3)
	dy := sceneHeight - 2 - int(x[1]*2)

	s.remember(dx, dy, 20)
	arm := 4.0
	lx := dx - int(arm*math.Cos(x[2]))
	ly := dy - int(arm*math.Sin(x[2]))
	rx := dx + int(arm*math.Cos(x[2]))
	ry := dy + int(arm*math.Sin(x[2]))
	s.line(lx, ly, rx, ry, '-')
	s.set(dx, dy, 'X')
	s.set(lx, ly, 'o')
	s.set(rx, ry, 'o')
}

func (s *Scene) drawBouncingMass(x dynamo.State) {
	if len(x) < 1 {
		return
	}
	floor := sceneHeight - 1
	for i := 2; i < sceneWidth-2; i++ {
		s.set(i, floor, '=')
	}
	y := floor - 1 - int(x[0]*10)
	s.set(sceneWidth/2, y, 'O')
}

// drawGeneric draws one bar per state coordinate around a zero line.
func (s *Scene) drawGeneric(x dynamo.State) {
	cy := sceneHeight / 2
	for i := 4; i < sceneWidth-4; i++ {
		s.set(i, cy, '-')
	}
	if len(x) == 0 {
		return
	}

	bw := max((sceneWidth-12)/len(x), 3)
	maxVal := 1.0
	for _, v := range x {
		maxVal = math.Max(maxVal, math.Abs(v))
	}
	for i, v := range x {
		bx := 6 + i*bw
		bh := int((v / maxVal) * float64(sceneHeight/2-1))
		if bh > 0 {
			for y := cy - 1; y >= cy-bh; y-- {
				s.set(bx, y, '#')
			}
		} else {
			for y := cy + 1; y <= cy-bh; y++ {
				s.set(bx, y, '#')
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
