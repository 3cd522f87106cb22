package render

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/wcharczuk/go-chart/v2"
)

var defaultFont = sync.OnceValues(chart.GetDefaultFont)

// Format selects the go-chart backend of a ChartSurface.
type Format int

const (
	FormatPNG Format = iota
	FormatSVG
)

func (f Format) String() string {
	if f == FormatSVG {
		return "svg"
	}
	return "png"
}

// ContentType is the MIME type of the encoded frame.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// ChartSurface records a frame and encodes it through a go-chart renderer:
// PNG for the raster layer, SVG for the vector overlay. Encoding replays the
// frame onto a fresh renderer of width*pixelRatio by height*pixelRatio device
// pixels.
type ChartSurface struct {
	*Recorder
	format   Format
	provider chart.RendererProvider

	measureMu sync.Mutex
	measure   chart.Renderer
}

// NewChartSurface creates a surface of the given format and CSS size.
func NewChartSurface(format Format, width, height int, pixelRatio float64) (*ChartSurface, error) {
	s := &ChartSurface{Recorder: &Recorder{}, format: format, provider: chart.PNG}
	if format == FormatSVG {
		s.provider = chart.SVG
	}
	if err := s.Resize(width, height, pixelRatio); err != nil {
		return nil, err
	}
	return s, nil
}

// Format reports the backend.
func (s *ChartSurface) Format() Format {
	return s.format
}

func (s *ChartSurface) Resize(width, height int, pixelRatio float64) error {
	if err := s.Recorder.Resize(width, height, pixelRatio); err != nil {
		return err
	}
	s.measureMu.Lock()
	s.measure = nil
	s.measureMu.Unlock()
	return nil
}

// MeasureText uses the real font metrics of the default go-chart font.
func (s *ChartSurface) MeasureText(body string, fontSize float64) (float64, float64) {
	_, _, ratio := s.Size()
	s.measureMu.Lock()
	defer s.measureMu.Unlock()
	if s.measure == nil {
		r, err := s.newRenderer(1, 1, ratio)
		if err != nil {
			return s.Recorder.MeasureText(body, fontSize)
		}
		s.measure = r
	}
	s.measure.SetFontSize(fontSize)
	box := s.measure.MeasureText(body)
	return float64(box.Width()) / ratio, float64(box.Height()) / ratio
}

func (s *ChartSurface) newRenderer(width, height int, ratio float64) (chart.Renderer, error) {
	r, err := s.provider(device(float64(width), ratio), device(float64(height), ratio))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s renderer: %w", s.format, err)
	}
	font, err := defaultFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	r.SetDPI(72 * ratio)
	r.SetFont(font)
	return r, nil
}

// WriteTo encodes the current frame.
func (s *ChartSurface) WriteTo(w io.Writer) (int64, error) {
	width, height, ratio := s.Size()
	if err := s.Err(); err != nil {
		return 0, err
	}
	s.Recorder.mu.Lock()
	released := s.Recorder.released
	bg := s.Recorder.bg
	s.Recorder.mu.Unlock()
	if released {
		return 0, ErrReleased
	}
	ops := s.Ops()

	r, err := s.newRenderer(width, height, ratio)
	if err != nil {
		return 0, err
	}
	p := replayer{r: r, ratio: ratio}
	if bg.A > 0 {
		p.rect(0, 0, float64(width), float64(height), Style{Fill: bg})
	}
	for _, op := range ops {
		p.op(op)
	}

	var buf bytes.Buffer
	if err := r.Save(&buf); err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", s.format, err)
	}
	return buf.WriteTo(w)
}

func device(v, ratio float64) int {
	return int(math.Round(v * ratio))
}

// replayer paints recorded ops onto a go-chart renderer.
type replayer struct {
	r     chart.Renderer
	ratio float64
}

func (p replayer) d(v float64) int {
	return device(v, p.ratio)
}

func (p replayer) op(op Op) {
	switch op.Kind {
	case OpRect:
		p.rect(op.X, op.Y, op.W, op.H, op.Style)
	case OpLine:
		p.path([]Point{{op.X, op.Y}, {op.X2, op.Y2}}, false, Style{Stroke: op.Style.Stroke, StrokeWidth: op.Style.StrokeWidth, Dash: op.Style.Dash})
	case OpPath:
		p.path(op.Points, op.Closed, op.Style)
	case OpCircle:
		p.circle(op.X, op.Y, op.R, op.Style)
	case OpText:
		p.text(op.Text, op.X, op.Y, op.Style)
	}
}

func (p replayer) apply(st Style) {
	p.r.ResetStyle()
	p.r.SetFillColor(st.Fill)
	p.r.SetStrokeColor(st.Stroke)
	p.r.SetStrokeWidth(st.StrokeWidth * p.ratio)
	if len(st.Dash) > 0 {
		dash := make([]float64, len(st.Dash))
		for i, v := range st.Dash {
			dash[i] = v * p.ratio
		}
		p.r.SetStrokeDashArray(dash)
	}
}

func (p replayer) paint(st Style) {
	fill := st.Fill.A > 0
	stroke := st.Stroke.A > 0 && st.StrokeWidth > 0
	switch {
	case fill && stroke:
		p.r.FillStroke()
	case fill:
		p.r.Fill()
	case stroke:
		p.r.Stroke()
	}
}

func (p replayer) rect(x, y, w, h float64, st Style) {
	if w <= 0 || h <= 0 {
		return
	}
	x0, y0, x1, y1 := p.d(x), p.d(y), p.d(x+w), p.d(y+h)
	if x1 == x0 {
		x1++
	}
	if y1 == y0 {
		y1++
	}
	p.apply(st)
	p.r.MoveTo(x0, y0)
	p.r.LineTo(x1, y0)
	p.r.LineTo(x1, y1)
	p.r.LineTo(x0, y1)
	p.r.LineTo(x0, y0)
	p.r.Close()
	p.paint(st)
}

func (p replayer) path(points []Point, closed bool, st Style) {
	if len(points) < 2 {
		return
	}
	p.apply(st)
	p.r.MoveTo(p.d(points[0].X), p.d(points[0].Y))
	for _, pt := range points[1:] {
		p.r.LineTo(p.d(pt.X), p.d(pt.Y))
	}
	if closed {
		p.r.Close()
		p.paint(st)
		return
	}
	if st.Stroke.A > 0 && st.StrokeWidth > 0 {
		p.r.Stroke()
	}
}

func (p replayer) circle(cx, cy, radius float64, st Style) {
	if radius <= 0 {
		return
	}
	rad := radius * p.ratio
	x, y := p.d(cx), p.d(cy)
	p.apply(st)
	p.r.MoveTo(x+int(math.Round(rad)), y)
	p.r.ArcTo(x, y, rad, rad, 0, 2*math.Pi)
	p.r.Close()
	p.paint(st)
}

func (p replayer) text(body string, x, y float64, st Style) {
	if body == "" {
		return
	}
	size := st.FontSize
	if size <= 0 {
		size = 11
	}
	p.r.ResetStyle()
	if font, err := defaultFont(); err == nil {
		p.r.SetFont(font)
	}
	p.r.SetFontSize(size)
	p.r.SetFontColor(st.FontColor)

	box := p.r.MeasureText(body)
	px := p.d(x)
	switch st.Align {
	case AlignCenter:
		px -= box.Width() / 2
	case AlignRight:
		px -= box.Width()
	}
	p.r.Text(body, px, p.d(y)+box.Height()/2)
}
