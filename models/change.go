package models

// Change operations recorded in the change log and carried by the feed.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change is one committed mutation of the todos table.
type Change struct {
	Seq       int64  `json:"seq"`
	Operation string `json:"operation"`
	TodoID    int64  `json:"todoId"`
	// Todo is the row after the change; nil for deletes.
	Todo      *Todo `json:"todo,omitempty"`
	CreatedAt int64 `json:"createdAt"`
}
