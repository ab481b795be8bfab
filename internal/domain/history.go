package domain

import "time"

// HistoryAction 审计动作
type HistoryAction string

const (
	HistoryActionCreate HistoryAction = "create"
	HistoryActionUpdate HistoryAction = "update"
	HistoryActionDelete HistoryAction = "delete"
)

// HistoryEntry is a write-once snapshot of a feature taken around a mutation:
// the persisted state right after a create, the prior state for update and
// delete.
type HistoryEntry struct {
	ID         int64         `json:"id"`
	Action     HistoryAction `json:"action"`
	ModifiedBy string        `json:"modified_by"`
	ModifiedAt time.Time     `json:"modified_at"`
	Snapshot   Feature       `json:"snapshot"`
}
