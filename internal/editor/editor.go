// Package editor implements the interactive placement protocol: a
// single-selection drag state machine over one page of a template at a time.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pixelCV/internal/layout"
	"pixelCV/internal/template"
)

var (
	ErrNotDragging     = errors.New("editor: no drag in progress")
	ErrNoActiveField   = errors.New("editor: no active field")
	ErrNotOnPage       = errors.New("editor: field is not on the current page")
	ErrUnknownCatalog  = errors.New("editor: unknown catalog key")
	ErrCountryDisabled = errors.New("editor: country is not enabled")
	ErrInvalidViewport = errors.New("editor: viewport has no area")
	ErrEmptyName       = errors.New("editor: template name is required")
)

// State 是拖拽状态机的状态。
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// MarshalText 让状态以字符串形式出现在 JSON 中。
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type drag struct {
	fieldID string
	offset  layout.Point
}

// Option 配置 Editor。
type Option func(*Editor)

// WithClock 替换保存时使用的时间源。
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// Editor 持有一份正在编辑的模板。所有方法并发安全。
type Editor struct {
	mu       sync.Mutex
	settings Settings
	tpl      template.Template
	page     int
	active   string
	state    State
	drag     drag
	now      func() time.Time
}

// New 创建空白模板的编辑器。
func New(settings Settings, opts ...Option) *Editor {
	settings = settings.withDefaults()
	e := &Editor{
		settings: settings,
		tpl: template.Template{
			Name:    settings.DefaultName,
			Country: settings.DefaultCountry,
			Pages:   []string{},
			Fields:  []template.Field{},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open 在已有模板上创建编辑器，编辑的是模板的副本。
func Open(tpl template.Template, settings Settings, opts ...Option) *Editor {
	e := New(settings, opts...)
	e.tpl = tpl.Clone()
	e.tpl.Normalize()
	if len(e.tpl.Pages) > 0 {
		e.page = 1
	}
	return e
}

// View 是编辑器对外可见的快照。
type View struct {
	Template      template.Template `json:"template"`
	CurrentPage   int               `json:"currentPage"`
	ActiveFieldID string            `json:"activeFieldId,omitempty"`
	State         State             `json:"state"`
}

// View returns a copy of the editor state.
func (e *Editor) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return View{
		Template:      e.tpl.Clone(),
		CurrentPage:   e.page,
		ActiveFieldID: e.active,
		State:         e.state,
	}
}

// Frame 是不含页面背景的快照，指针与属性命令的回复只携带它。
type Frame struct {
	ID            string           `json:"id,omitempty"`
	Name          string           `json:"name"`
	Country       string           `json:"country"`
	PageCount     int              `json:"pageCount"`
	Fields        []template.Field `json:"fields"`
	CurrentPage   int              `json:"currentPage"`
	ActiveFieldID string           `json:"activeFieldId,omitempty"`
	State         State            `json:"state"`
}

// Frame returns the editor state without page backgrounds.
func (e *Editor) Frame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Frame{
		ID:            e.tpl.ID,
		Name:          e.tpl.Name,
		Country:       e.tpl.Country,
		PageCount:     len(e.tpl.Pages),
		Fields:        append(make([]template.Field, 0, len(e.tpl.Fields)), e.tpl.Fields...),
		CurrentPage:   e.page,
		ActiveFieldID: e.active,
		State:         e.state,
	}
}

// State returns the drag state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ImportPage 追加一页背景；第一次导入时切换到第 1 页。
func (e *Editor) ImportPage(background string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.tpl.AddPage(background)
	if e.page == 0 {
		e.page = 1
	}
	return n
}

// SetCurrentPage 切换正在编辑的页面，同时结束进行中的拖拽。
func (e *Editor) SetCurrentPage(page int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.tpl.HasPage(page) {
		return fmt.Errorf("%w: %d", template.ErrPageOutOfRange, page)
	}
	e.page = page
	e.endDrag()
	return nil
}

// Rename 修改模板名称。
func (e *Editor) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tpl.Name = name
	return nil
}

// SetCountry 修改模板所属国家，只接受已启用的国家。
func (e *Editor) SetCountry(country string) error {
	if !e.settings.CountryEnabled(country) {
		return fmt.Errorf("%w: %q", ErrCountryDisabled, country)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tpl.Country = strings.ToLower(strings.TrimSpace(country))
	return nil
}

// AddField 在当前页新增字段并将其设为活动字段。
// 尚未导入任何页面时返回 template.ErrNoPages，状态不变。
func (e *Editor) AddField(spec template.FieldSpec) (template.Field, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.tpl.Pages) == 0 {
		return template.Field{}, template.ErrNoPages
	}
	f, err := e.tpl.AddField(spec, e.page)
	if err != nil {
		return template.Field{}, err
	}
	e.active = f.ID
	return f, nil
}

// AddFromCatalog 从字段目录按 key 添加字段。
func (e *Editor) AddFromCatalog(key string) (template.Field, error) {
	spec, ok := e.settings.Catalog.Lookup(key)
	if !ok {
		return template.Field{}, fmt.Errorf("%w: %q", ErrUnknownCatalog, key)
	}
	return e.AddField(spec)
}

// Select 只切换活动字段，不改变几何量。
func (e *Editor) Select(fieldID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tpl.Field(fieldID); !ok {
		return template.ErrFieldNotFound
	}
	e.active = fieldID
	return nil
}

// PointerDown 在字段上按下指针，p 是页面百分比坐标。
// 若已有字段在拖拽，先结束它，保证任何时刻只有一个字段处于拖拽中。
func (e *Editor) PointerDown(fieldID string, p layout.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.tpl.Field(fieldID)
	if !ok {
		return template.ErrFieldNotFound
	}
	if f.Page != e.page {
		return ErrNotOnPage
	}
	e.endDrag()
	e.active = fieldID
	e.state = Dragging
	e.drag = drag{
		fieldID: fieldID,
		offset:  p.Sub(layout.Point{X: f.X, Y: f.Y}),
	}
	return nil
}

// PointerMove 按保存的偏移移动拖拽中的字段；每次移动都重新施加边界约束。
func (e *Editor) PointerMove(p layout.Point) (template.Field, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Dragging {
		return template.Field{}, ErrNotDragging
	}
	target := p.Sub(e.drag.offset)
	f, err := e.tpl.MoveField(e.drag.fieldID, target.X, target.Y)
	if err != nil {
		// 拖拽中的字段已被删除
		e.endDrag()
		return template.Field{}, err
	}
	return f, nil
}

// PointerUp 结束拖拽，最后一次约束后的位置即为提交位置。
// 指针离开画布等同于抬起。
func (e *Editor) PointerUp() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endDrag()
}

// PointerDownAt 与 PointerDown 相同，但接受画布包围盒与客户端像素坐标。
func (e *Editor) PointerDownAt(fieldID string, vp layout.Viewport, clientX, clientY float64) error {
	if !vp.Valid() {
		return ErrInvalidViewport
	}
	return e.PointerDown(fieldID, vp.ToPercent(clientX, clientY))
}

// PointerMoveAt 与 PointerMove 相同，但接受客户端像素坐标。
func (e *Editor) PointerMoveAt(vp layout.Viewport, clientX, clientY float64) (template.Field, error) {
	if !vp.Valid() {
		return template.Field{}, ErrInvalidViewport
	}
	return e.PointerMove(vp.ToPercent(clientX, clientY))
}

func (e *Editor) endDrag() {
	e.state = Idle
	e.drag = drag{}
}

// UpdateActive 对活动字段应用属性修改，与拖拽状态无关。
func (e *Editor) UpdateActive(patch template.FieldPatch) (template.Field, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == "" {
		return template.Field{}, ErrNoActiveField
	}
	return e.tpl.UpdateField(e.active, patch)
}

// ResizeActive 修改活动字段的宽高。
func (e *Editor) ResizeActive(width, height float64) (template.Field, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == "" {
		return template.Field{}, ErrNoActiveField
	}
	return e.tpl.ResizeField(e.active, width, height)
}

// SetPageCount 调整模板页数。被截掉的页上的字段随之删除，
// 当前页超出范围时退回最后一页。
func (e *Editor) SetPageCount(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tpl.SetPageCount(n)
	if e.page > e.tpl.PageCount() {
		e.page = e.tpl.PageCount()
		e.endDrag()
	}
	if e.page == 0 && e.tpl.PageCount() > 0 {
		e.page = 1
	}
	if _, ok := e.tpl.Field(e.active); e.active != "" && !ok {
		e.active = ""
		e.endDrag()
	}
}

// RemoveActive 删除活动字段并清空选择。
func (e *Editor) RemoveActive() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == "" {
		return ErrNoActiveField
	}
	e.tpl.RemoveField(e.active)
	if e.drag.fieldID == e.active {
		e.endDrag()
	}
	e.active = ""
	return nil
}

// Save 返回可持久化的模板快照。新模板在此时获得 id 与创建时间。
func (e *Editor) Save() (template.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tpl.ID == "" {
		e.tpl.ID = uuid.NewString()
		e.tpl.CreatedAt = e.now().UTC()
	}
	out := e.tpl.Clone()
	if err := out.Validate(); err != nil {
		return template.Template{}, err
	}
	return out, nil
}
