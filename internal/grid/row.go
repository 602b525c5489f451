package grid

// Row — одна редактируемая строка: id, подпись и значение на каждом уровне.
// Пустая строка в Values означает «не выбрано».
type Row struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

func newRow(id, label string, depth int) *Row {
	return &Row{ID: id, Label: label, Values: make([]string, depth)}
}

// Value возвращает значение уровня и признак, что оно выбрано
func (r *Row) Value(level int) (string, bool) {
	if level < 0 || level >= len(r.Values) {
		return "", false
	}
	v := r.Values[level]
	return v, v != ""
}

func (r *Row) clone() Row {
	return Row{ID: r.ID, Label: r.Label, Values: append([]string(nil), r.Values...)}
}

// Rule — ограничение уровня
type Rule struct {
	Name     string `json:"name"`
	Unique   bool   `json:"unique"`
	Required bool   `json:"required"`
	Message  string `json:"message,omitempty"`
}

// Cell — адрес ячейки, которую хосту нужно перерисовать
type Cell struct {
	RowID string `json:"rowId"`
	Level int    `json:"level"`
}

type ChangeKind string

const (
	ChangeEdit  ChangeKind = "edit"
	ChangeReset ChangeKind = "reset"
	ChangeSeed  ChangeKind = "seed"
)

// Change — уведомление после успешного перехода состояния
type Change struct {
	Seq     uint64     `json:"seq"`
	Kind    ChangeKind `json:"kind"`
	Edited  *Cell      `json:"edited,omitempty"`
	Code    string     `json:"code,omitempty"`
	Cleared []int      `json:"cleared,omitempty"`
	Cells   []Cell     `json:"cells"`
	Rows    int        `json:"rows"`
}

// OptionState — вариант с признаком недоступности для конкретной строки
type OptionState struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled,omitempty"`
}

// CellView — всё, что нужно хосту для отрисовки одной ячейки
type CellView struct {
	RowID   string        `json:"rowId"`
	Level   int           `json:"level"`
	Value   string        `json:"value,omitempty"`
	Options []OptionState `json:"options"`
}

// Violation — результат Validate
type Violation struct {
	Kind    string `json:"kind"` // required | duplicate
	RowID   string `json:"rowId"`
	Level   int    `json:"level"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

const (
	ViolationRequired  = "required"
	ViolationDuplicate = "duplicate"
)
