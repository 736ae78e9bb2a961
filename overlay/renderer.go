package overlay

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"espvision/tracking"
)

// Status is the information shown in the lower-left status box
type Status struct {
	Time    time.Time
	FPS     float64
	Mode    tracking.Mode
	TrackID string
	Sink    string
}

// Renderer handles visualization and overlay rendering
type Renderer struct {
	selectionColor color.RGBA
	trackColor     color.RGBA
	centroidColor  color.RGBA
	statusColor    color.RGBA
	terminalColor  color.RGBA

	maxTerminalLines int
	maxLineLen       int
}

// NewRenderer creates a renderer with the default palette
func NewRenderer() *Renderer {
	return &Renderer{
		selectionColor:   color.RGBA{255, 255, 0, 255}, // Bright yellow for a fresh selection
		trackColor:       color.RGBA{0, 255, 0, 255},   // Bright green for the tracked box
		centroidColor:    color.RGBA{255, 0, 0, 255},   // Red centroid
		statusColor:      color.RGBA{0, 150, 255, 255}, // System blue
		terminalColor:    color.RGBA{255, 255, 255, 255},
		maxTerminalLines: 12,
		maxLineLen:       80,
	}
}

// DrawSelection outlines a just-committed selection
func (r *Renderer) DrawSelection(img *gocv.Mat, rect image.Rectangle) {
	gocv.Rectangle(img, rect, r.selectionColor, 2)
}

// DrawTrack draws the tracking window and its centroid for a tracked frame
func (r *Renderer) DrawTrack(img *gocv.Mat, res tracking.Result) {
	if res.Committed {
		r.DrawSelection(img, res.Selection)
	}
	if !res.Tracked {
		return
	}
	gocv.Rectangle(img, res.Window, r.trackColor, 2)
	r.drawCornerBrackets(img, res.Window, r.trackColor, 3, 10)
	r.drawCrosshair(img, res.Centroid)

	label := fmt.Sprintf("%d %d", res.Centroid.X, res.Centroid.Y)
	gocv.PutText(img, label, image.Point{res.Window.Min.X, res.Window.Min.Y - 5},
		gocv.FontHersheySimplex, 0.4, r.trackColor, 1)
}

// drawCrosshair draws a small gapped crosshair with a center dot
func (r *Renderer) drawCrosshair(img *gocv.Mat, center image.Point) {
	size := 8
	gap := 3
	gocv.Line(img, image.Point{center.X - size, center.Y}, image.Point{center.X - gap, center.Y}, r.centroidColor, 2)
	gocv.Line(img, image.Point{center.X + gap, center.Y}, image.Point{center.X + size, center.Y}, r.centroidColor, 2)
	gocv.Line(img, image.Point{center.X, center.Y - size}, image.Point{center.X, center.Y - gap}, r.centroidColor, 2)
	gocv.Line(img, image.Point{center.X, center.Y + gap}, image.Point{center.X, center.Y + size}, r.centroidColor, 2)
	gocv.Circle(img, center, 2, r.centroidColor, -1)
}

func (r *Renderer) drawCornerBrackets(img *gocv.Mat, rect image.Rectangle, c color.RGBA, thickness, length int) {
	// Top-left corner
	gocv.Line(img, rect.Min, image.Point{rect.Min.X + length, rect.Min.Y}, c, thickness)
	gocv.Line(img, rect.Min, image.Point{rect.Min.X, rect.Min.Y + length}, c, thickness)

	// Top-right corner
	gocv.Line(img, image.Point{rect.Max.X, rect.Min.Y}, image.Point{rect.Max.X - length, rect.Min.Y}, c, thickness)
	gocv.Line(img, image.Point{rect.Max.X, rect.Min.Y}, image.Point{rect.Max.X, rect.Min.Y + length}, c, thickness)

	// Bottom-left corner
	gocv.Line(img, image.Point{rect.Min.X, rect.Max.Y}, image.Point{rect.Min.X + length, rect.Max.Y}, c, thickness)
	gocv.Line(img, image.Point{rect.Min.X, rect.Max.Y}, image.Point{rect.Min.X, rect.Max.Y - length}, c, thickness)

	// Bottom-right corner
	gocv.Line(img, rect.Max, image.Point{rect.Max.X - length, rect.Max.Y}, c, thickness)
	gocv.Line(img, rect.Max, image.Point{rect.Max.X, rect.Max.Y - length}, c, thickness)
}

// StatusLines formats the status box contents
func StatusLines(s Status) []string {
	lines := []string{
		fmt.Sprintf("%s  %.1f fps", s.Time.Format("15:04:05"), s.FPS),
		"MODE: " + s.Mode.String(),
	}
	if s.TrackID != "" {
		lines = append(lines, "TRACK: "+shortID(s.TrackID))
	}
	if s.Sink != "" {
		lines = append(lines, "SINK: "+s.Sink)
	}
	return lines
}

// DrawStatus draws the status box in the lower-left corner
func (r *Renderer) DrawStatus(img *gocv.Mat, s Status) {
	lines := StatusLines(s)
	lineHeight := 16
	x := 10
	y := img.Rows() - 10 - lineHeight*(len(lines)-1)

	box := image.Rect(x-5, y-lineHeight, x+220, img.Rows()-4)
	gocv.Rectangle(img, box, color.RGBA{0, 0, 0, 180}, -1)
	for _, line := range lines {
		gocv.PutText(img, line, image.Point{x, y}, gocv.FontHersheySimplex, 0.45, r.statusColor, 1)
		y += lineHeight
	}
}

// TerminalLines keeps the newest lines that fit the terminal and truncates
// each to the terminal width
func (r *Renderer) TerminalLines(lines []string) []string {
	if len(lines) > r.maxTerminalLines {
		lines = lines[len(lines)-r.maxTerminalLines:]
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(line) > r.maxLineLen {
			line = line[:r.maxLineLen-3] + "..."
		}
		out = append(out, line)
	}
	return out
}

// DrawTerminal draws recent log lines in the upper-left corner
func (r *Renderer) DrawTerminal(img *gocv.Mat, lines []string) {
	lines = r.TerminalLines(lines)
	if len(lines) == 0 {
		return
	}
	lineHeight := 14
	x, y := 10, 10
	box := image.Rect(x, y, x+r.maxLineLen*6, y+10+lineHeight*len(lines))
	gocv.Rectangle(img, box, color.RGBA{0, 0, 0, 180}, -1)

	contentY := y + 14
	for _, line := range lines {
		gocv.PutText(img, line, image.Point{x + 5, contentY}, gocv.FontHersheySimplex, 0.35, r.terminalColor, 1)
		contentY += lineHeight
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
