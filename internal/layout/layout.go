// Package layout 定义构建器与渲染器共享的坐标模型。
//
// 所有几何量都以页面宽/高的百分比存储，与任何屏幕或输出介质的像素尺寸解耦；
// 换算到具体介质只是一次标量乘法：absolute = percent / 100 * dimension。
package layout

import "math"

// A4 页面的物理尺寸（毫米）。
const (
	A4WidthMM  = 210.0
	A4HeightMM = 297.0
)

// Size 表示某个输出介质上的页面尺寸（单位由调用方决定：mm、px 等）。
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// A4 is the default output page.
var A4 = Size{Width: A4WidthMM, Height: A4HeightMM}

// Point 是页面相对的百分比坐标。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Rect 是以百分比表示的矩形，X/Y 为左上角原点。
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Box 是换算到具体介质后的绝对矩形。
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center 返回矩形中心点。
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// ToAbsolute 把百分比值换算为介质上的绝对值。
func ToAbsolute(percent, dimension float64) float64 {
	return percent / 100 * dimension
}

// ToPercent 是 ToAbsolute 的逆运算；dimension 为 0 时返回 0。
func ToPercent(absolute, dimension float64) float64 {
	if dimension == 0 {
		return 0
	}
	return absolute / dimension * 100
}

// Round2 保留两位小数，限制反复编辑带来的浮点漂移。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp 把 v 限制在 [lo, hi]；hi < lo 时返回 lo。
func Clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// ToAbsolute 把百分比矩形换算为 page 上的绝对矩形。
func (r Rect) ToAbsolute(page Size) Box {
	return Box{
		X:      ToAbsolute(r.X, page.Width),
		Y:      ToAbsolute(r.Y, page.Height),
		Width:  ToAbsolute(r.Width, page.Width),
		Height: ToAbsolute(r.Height, page.Height),
	}
}

// Clamped 返回落在页面内的矩形：宽高限制在 [0,100]，
// 原点限制在 [0, 100-width] / [0, 100-height]，全部保留两位小数。
func (r Rect) Clamped() Rect {
	w := Round2(Clamp(r.Width, 0, 100))
	h := Round2(Clamp(r.Height, 0, 100))
	return Rect{
		X:      ClampOrigin(r.X, w),
		Y:      ClampOrigin(r.Y, h),
		Width:  w,
		Height: h,
	}
}

// ClampOrigin 把单轴原点限制在 [0, 100-extent] 并保留两位小数。
func ClampOrigin(v, extent float64) float64 {
	hi := 100 - extent
	v = Round2(Clamp(v, 0, hi))
	// 四舍五入可能越过上界
	if v > hi {
		v = math.Floor(hi*100) / 100
	}
	return v
}

// InBounds 在 epsilon 容差内判断矩形是否完全位于页面内。
func (r Rect) InBounds(epsilon float64) bool {
	return r.X >= -epsilon && r.Y >= -epsilon &&
		r.X+r.Width <= 100+epsilon && r.Y+r.Height <= 100+epsilon
}

// Viewport 描述编辑画布在屏幕上的包围盒（像素）。
type Viewport struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToPercent 把屏幕坐标换算成页面相对的百分比坐标。
func (v Viewport) ToPercent(clientX, clientY float64) Point {
	return Point{
		X: ToPercent(clientX-v.Left, v.Width),
		Y: ToPercent(clientY-v.Top, v.Height),
	}
}

// Valid reports whether the viewport has a usable area.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}
