package http

import (
	"macrostress/internal/panel"
)

// FrameRow is one quarter of a frame.
type FrameRow struct {
	Quarter string             `json:"quarter"`
	Values  map[string]float64 `json:"values"`
}

// FrameView is the JSON form of a quarterly frame.
type FrameView struct {
	Name    string     `json:"name,omitempty"`
	Columns []string   `json:"columns"`
	Rows    []FrameRow `json:"rows"`
}

func newFrameView(name string, f *panel.Frame) FrameView {
	cols := f.Columns()
	view := FrameView{Name: name, Columns: cols, Rows: make([]FrameRow, 0, f.Len())}
	for i, q := range f.Index() {
		values := make(map[string]float64, len(cols))
		for _, c := range cols {
			values[c] = f.At(i, c)
		}
		view.Rows = append(view.Rows, FrameRow{Quarter: q.String(), Values: values})
	}
	return view
}
