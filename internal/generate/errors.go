package generate

import "fmt"

// BatchError 是批量生成中止时返回的聚合错误。
type BatchError struct {
	Index        int
	Total        int
	TemplateID   string
	TemplateName string
	Delivered    int
	Err          error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("bulk generation aborted at template %d of %d (%q), %d delivered: %v",
		e.Index+1, e.Total, e.TemplateName, e.Delivered, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
