package calendar

import "encoding/json"

// Optional marks whether a field was supplied at all, so that an omitted field
// can be told apart from one explicitly set to its zero value or null.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{Value: value, Set: true}
}

// UnmarshalJSON is only invoked for keys present in the document.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}

// EventPatch is a partial update. Fields that are not Set keep their current value.
// Setting Email to nil clears it. An empty StartTime or EndTime counts as not supplied.
type EventPatch struct {
	Title       Optional[string]  `json:"title"`
	Description Optional[string]  `json:"description"`
	StartTime   Optional[string]  `json:"start_time"`
	EndTime     Optional[string]  `json:"end_time"`
	Recurrence  Optional[string]  `json:"recurrence"`
	Email       Optional[*string] `json:"email"`
}
