package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionAssign  Action = "ASSIGN"
	ActionNotify  Action = "NOTIFY"
	ActionArchive Action = "ARCHIVE"
	ActionResolve Action = "RESOLVE"
	ActionDismiss Action = "DISMISS"
)

// ActionLog is one lifecycle action the portal forwarded to the API.
type ActionLog struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	ComplaintID int64         `gorm:"not null" json:"complaint_id"`
	Kind        ComplaintKind `gorm:"type:varchar(16);not null" json:"kind"`
	Action      Action        `gorm:"type:complaint_action;not null" json:"action"`
	ActorRole   Role          `gorm:"type:varchar(16)" json:"actor_role"`
	ActorID     *int64        `json:"actor_id"`
	OldStatus   *Status       `gorm:"type:complaint_status" json:"old_status"`
	NewStatus   *Status       `gorm:"type:complaint_status" json:"new_status"`
	Note        string        `gorm:"type:text" json:"note"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (ActionLog) TableName() string {
	return "complaint_action_log"
}

func (l *ActionLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
