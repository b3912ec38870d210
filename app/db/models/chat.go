package models

import (
	"time"

	"workbench/pkg/gormx"
)

type ChatSession struct {
	ID     string `gorm:"primaryKey;size:255;"`
	UserID string `gorm:"size:255;index"`
	Title  string `gorm:"size:255"`
	// 会话绑定的agent定义名
	AgentName string        `gorm:"size:255;index"`
	Context   gormx.MapJson `gorm:"type:longtext"`

	CreatedAt time.Time `gorm:"default:null"`
	UpdatedAt time.Time `gorm:"default:null"`
	Deleted   int       `gorm:"default:0"`
	DeletedAt time.Time `gorm:"default:null"`
}

type ChatMessage struct {
	// 自增主键，同一时间戳下保证插入顺序
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:255;index:idx_session_created"`
	// user/assistant/tool/system
	Role    string `gorm:"size:255"`
	Content string `gorm:"type:longtext"`
	// 模型思考内容，enable_thinking时存在
	ReasoningContent string          `gorm:"type:longtext"`
	ToolCalls        gormx.SliceJson `gorm:"type:longtext"`
	ToolCallID       string          `gorm:"size:255"`
	// 附加元数据，如引用的文档列表
	MetaData gormx.MapJson `gorm:"type:longtext"`

	CreatedAt time.Time `gorm:"default:null;index:idx_session_created,priority:2"`
}
