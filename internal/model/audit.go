package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionSeedRoles        = "SEED_SYSTEM_ROLES"
	ActionCreateRole       = "CREATE_ROLE"
	ActionUpdateRole       = "UPDATE_ROLE"
	ActionDeleteRole       = "DELETE_ROLE"
	ActionSeedModules      = "SEED_MODULES"
	ActionCreateModule     = "CREATE_MODULE"
	ActionUpdateModule     = "UPDATE_MODULE"
	ActionDeleteModule     = "DELETE_MODULE"
	ActionDeactivateModule = "DEACTIVATE_MODULE"
	ActionReorderModules   = "REORDER_MODULES"
	ActionRecountModules   = "RECOUNT_MODULE_USERS"
	ActionCreateUser       = "CREATE_USER"
	ActionUpdateUser       = "UPDATE_USER"
	ActionDeleteUser       = "DELETE_USER"
	ActionBulkDeleteUsers  = "BULK_DELETE_USERS"
)

// AdminLog is an append-only record of privileged mutations: who did what to
// which record, and when. Written after the mutation commits; a failed write
// never fails the mutation. Never read back by the core.
type AdminLog struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID    string    `gorm:"type:varchar(128);index" json:"actor_id"` // Empty for system-initiated actions (seeding)
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	TargetID   string    `gorm:"type:varchar(128);index" json:"target_id"`
	TargetName string    `gorm:"type:varchar(255)" json:"target_name,omitempty"`
	Details    string    `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
