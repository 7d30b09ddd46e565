package api

import (
	"errors"
	"fmt"
	"net/http"

	"pixelCV/internal/editor"
	"pixelCV/internal/layout"
	"pixelCV/internal/template"
)

var (
	errUnknownCommand = errors.New("unknown editor command")
	errMissingPointer = errors.New("pointer position is required")
	errMissingPatch   = errors.New("patch is required")
	errMissingSpec    = errors.New("catalogKey or field is required")
)

// editorCommand 是编辑器的一次操作。指针事件可以直接给出页面百分比坐标 point，
// 也可以给出画布包围盒 viewport 加客户端像素坐标 clientX/clientY。
type editorCommand struct {
	Type       string               `json:"type"`
	FieldID    string               `json:"fieldId,omitempty"`
	Point      *layout.Point        `json:"point,omitempty"`
	Viewport   *layout.Viewport     `json:"viewport,omitempty"`
	ClientX    float64              `json:"clientX,omitempty"`
	ClientY    float64              `json:"clientY,omitempty"`
	Page       int                  `json:"page,omitempty"`
	Pages      int                  `json:"pages,omitempty"`
	Width      float64              `json:"width,omitempty"`
	Height     float64              `json:"height,omitempty"`
	Name       string               `json:"name,omitempty"`
	Country    string               `json:"country,omitempty"`
	Patch      *template.FieldPatch `json:"patch,omitempty"`
	CatalogKey string               `json:"catalogKey,omitempty"`
	Field      *template.FieldSpec  `json:"field,omitempty"`
}

type commandResult struct {
	Field *template.Field `json:"field,omitempty"`
	Frame editor.Frame    `json:"frame"`
}

func applyCommand(ed *editor.Editor, cmd editorCommand) (commandResult, error) {
	field, err := dispatch(ed, cmd)
	if err != nil {
		return commandResult{}, err
	}
	return commandResult{Field: field, Frame: ed.Frame()}, nil
}

func dispatch(ed *editor.Editor, cmd editorCommand) (*template.Field, error) {
	switch cmd.Type {
	case "select":
		return nil, ed.Select(cmd.FieldID)
	case "pointer_down":
		if cmd.Viewport != nil {
			return nil, ed.PointerDownAt(cmd.FieldID, *cmd.Viewport, cmd.ClientX, cmd.ClientY)
		}
		if cmd.Point == nil {
			return nil, errMissingPointer
		}
		return nil, ed.PointerDown(cmd.FieldID, *cmd.Point)
	case "pointer_move":
		var (
			f   template.Field
			err error
		)
		switch {
		case cmd.Viewport != nil:
			f, err = ed.PointerMoveAt(*cmd.Viewport, cmd.ClientX, cmd.ClientY)
		case cmd.Point != nil:
			f, err = ed.PointerMove(*cmd.Point)
		default:
			return nil, errMissingPointer
		}
		if err != nil {
			return nil, err
		}
		return &f, nil
	case "pointer_up", "pointer_leave":
		ed.PointerUp()
		return nil, nil
	case "set_page":
		return nil, ed.SetCurrentPage(cmd.Page)
	case "set_page_count":
		ed.SetPageCount(cmd.Pages)
		return nil, nil
	case "resize":
		f, err := ed.ResizeActive(cmd.Width, cmd.Height)
		if err != nil {
			return nil, err
		}
		return &f, nil
	case "rename":
		return nil, ed.Rename(cmd.Name)
	case "set_country":
		return nil, ed.SetCountry(cmd.Country)
	case "update":
		if cmd.Patch == nil {
			return nil, errMissingPatch
		}
		f, err := ed.UpdateActive(*cmd.Patch)
		if err != nil {
			return nil, err
		}
		return &f, nil
	case "remove":
		return nil, ed.RemoveActive()
	case "add":
		f, err := addField(ed, cmd.CatalogKey, cmd.Field)
		if err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type)
	}
}

func addField(ed *editor.Editor, catalogKey string, spec *template.FieldSpec) (template.Field, error) {
	switch {
	case catalogKey != "":
		return ed.AddFromCatalog(catalogKey)
	case spec != nil:
		return ed.AddField(*spec)
	default:
		return template.Field{}, errMissingSpec
	}
}

// commandStatus 把编辑器错误映射为 HTTP 状态码。
func commandStatus(err error) int {
	switch {
	case errors.Is(err, template.ErrFieldNotFound), errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, template.ErrNoPages),
		errors.Is(err, editor.ErrNotDragging),
		errors.Is(err, editor.ErrNoActiveField),
		errors.Is(err, editor.ErrNotOnPage):
		return http.StatusConflict
	case errors.Is(err, template.ErrPageOutOfRange),
		errors.Is(err, template.ErrInvalidField),
		errors.Is(err, template.ErrInvalidTemplate),
		errors.Is(err, editor.ErrUnknownCatalog),
		errors.Is(err, editor.ErrCountryDisabled),
		errors.Is(err, editor.ErrInvalidViewport),
		errors.Is(err, editor.ErrEmptyName),
		errors.Is(err, errUnknownCommand),
		errors.Is(err, errMissingPointer),
		errors.Is(err, errMissingPatch),
		errors.Is(err, errMissingSpec):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
