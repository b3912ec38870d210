package models

import (
	"time"

	"workbench/pkg/gormx"
)

type ExecutionTask struct {
	ID     string `gorm:"primaryKey;size:255;"`
	UserID string `gorm:"size:255;index"`
	// 用户提交的原始目标
	OriginalPrompt string `gorm:"type:text"`
	// 任务状态 PENDING/SPLITTING/READY/COMPLETED/FAILED
	Status    string `gorm:"size:255;index"`
	StateInfo string `gorm:"type:mediumtext"`
	Priority  int    `gorm:"default:0"`
	// 用户信息
	Context gormx.MapJson `gorm:"type:longtext"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
	Deleted   int       `gorm:"default:0"`
	DeletedAt time.Time `gorm:"default:null"`

	FinishedAt time.Time `gorm:"default:null"`
}

type SubTask struct {
	ID       string `gorm:"primaryKey;size:255;"`
	ParentID string `gorm:"size:255;index:idx_parent_status"`
	// 在同一个父任务下唯一
	Name string `gorm:"size:255;index"`
	// 任务类型 CODE_GEN/DATA_RETRIEVAL/API_CALL
	TaskType string `gorm:"size:255;index"`
	Status   string `gorm:"size:255;index:idx_parent_status,priority:2;index:idx_status_order"`
	// 依赖的兄弟任务名列表
	Dependencies gormx.StringsJson `gorm:"type:mediumtext"`
	// 拆分时的建议执行顺序
	ExecutionOrder int `gorm:"index:idx_status_order,priority:2"`

	InputContext gormx.MapJson `gorm:"type:longtext"`
	OutputResult gormx.MapJson `gorm:"type:longtext"`
	StateInfo    string        `gorm:"type:mediumtext"`

	RetryCount int    `gorm:"default:0"`
	WorkerID   string `gorm:"size:255"`
	// 最后一次心跳时间
	LastHeartbeat time.Time `gorm:"default:null"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
	StartTime time.Time `gorm:"default:null"`
	EndTime   time.Time `gorm:"default:null"`
}

// ExecutionLog is an append-only record of one execution attempt.
type ExecutionLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SubTaskID string `gorm:"size:255;index"`
	TaskID    string `gorm:"size:255;index"`

	Status       string `gorm:"size:255"`
	DurationMS   int64
	TokensUsed   int
	Stdout       string `gorm:"type:longtext"`
	Stderr       string `gorm:"type:longtext"`
	ErrorMessage string `gorm:"type:mediumtext"`

	StartTime time.Time `gorm:"default:null"`
	EndTime   time.Time `gorm:"default:null"`
	CreatedAt time.Time `gorm:"default:null"`
}
