package models

import "time"

// Activity log action types.
const (
	ActionLogin             = "Login"
	ActionLogout            = "Logout"
	ActionAddedPaper        = "Added Paper"
	ActionEditedPaper       = "Edited Paper"
	ActionDeletedPaper      = "Deleted Paper"
	ActionAddedStrand       = "Added Strand"
	ActionEditedStrand      = "Edited Strand"
	ActionDeletedStrand     = "Deleted Strand"
	ActionAddedUser         = "Added User"
	ActionUpdatedProfile    = "Updated Profile"
	ActionEditedUserAccount = "Edited User Account"
	ActionDeletedUser       = "Deleted User"
	ActionKickedUser        = "Kicked User"
	ActionDeletedLogs       = "Deleted Logs"
)

// ActivityLog is an append-only audit record. PerformedBy and TargetItem are
// value snapshots taken when the entry is written.
type ActivityLog struct {
	ID            string    `db:"id" json:"id"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
	PerformedBy   string    `db:"performed_by" json:"performedBy"`
	ActionType    string    `db:"action_type" json:"actionType"`
	TargetItem    string    `db:"target_item" json:"targetItem"`
	ChangeDetails string    `db:"change_details" json:"changeDetails"`
}
