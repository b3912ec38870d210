package objects

import (
	"fmt"
	"time"

	"workbench/app/db/models"
	"workbench/pkg/contextx"

	"github.com/google/uuid"
)

type ChatSession struct {
	*models.ChatSession
	ContextObject
	PersistentObject
}

func (c *ChatSession) Save(ctx *contextx.Context) error {
	if !c.IsCreated() {
		c.CreatedAt = time.Now().UTC()
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.UpdatedAt = c.CreatedAt
	} else {
		c.UpdatedAt = time.Now().UTC()
	}

	dbTx := c.GetDB(ctx)
	if err := dbTx.Save(c.ChatSession).Error; err != nil {
		return err
	}
	c.SetContext(ctx)
	c.SetCreated()
	return nil
}

func (c *ChatSession) Update(ctx *contextx.Context, fields ...string) error {
	c.UpdatedAt = time.Now().UTC()
	fields = append(fields, "UpdatedAt")

	dbTx := c.GetDB(ctx)
	return dbTx.Model(&models.ChatSession{}).
		Select(fields).
		Where("id = ?", c.ID).
		Updates(c.ChatSession).Error
}

func (c *ChatSession) Delete(ctx *contextx.Context) error {
	if !c.IsCreated() {
		return fmt.Errorf("object %s isn't a persistent object, can't delete it", c.ID)
	}

	c.Deleted = 1
	c.DeletedAt = time.Now().UTC()
	return c.Update(ctx, "Deleted", "DeletedAt")
}

// GetMessages returns the session history in conversation order.
func (c *ChatSession) GetMessages() ([]*ChatMessage, error) {
	return QueryChatMessagesBySessionID(c.GetContext(), c.ID)
}

func NewChatSession() *ChatSession {
	return &ChatSession{
		ChatSession: &models.ChatSession{},
	}
}

func NewChatSessionFromDB(ctx *contextx.Context, mod *models.ChatSession) *ChatSession {
	if mod == nil {
		return nil
	}
	sess := &ChatSession{
		ChatSession: mod,
	}
	sess.SetContext(ctx)
	sess.SetCreated()
	return sess
}

func QueryChatSessionByID(ctx *contextx.Context, id string) (*ChatSession, error) {
	mod := &models.ChatSession{}
	err := GetDB(ctx).Where("id = ? AND deleted = 0", id).First(mod).Error
	if err != nil {
		return nil, err
	}
	return NewChatSessionFromDB(ctx, mod), nil
}

func QueryChatSessionsByUserID(ctx *contextx.Context, userID string) ([]*ChatSession, error) {
	var mods []*models.ChatSession
	err := GetDB(ctx).
		Where("user_id = ? AND deleted = 0", userID).
		Order("created_at DESC").
		Find(&mods).Error
	if err != nil {
		return nil, err
	}

	var sessions []*ChatSession
	for _, mod := range mods {
		sessions = append(sessions, NewChatSessionFromDB(ctx, mod))
	}
	return sessions, nil
}

type ChatMessage struct {
	*models.ChatMessage
	ContextObject
	PersistentObject
}

func (m *ChatMessage) Save(ctx *contextx.Context) error {
	if !m.IsCreated() && m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	dbTx := m.GetDB(ctx)
	if err := dbTx.Save(m.ChatMessage).Error; err != nil {
		return err
	}
	m.SetContext(ctx)
	m.SetCreated()
	return nil
}

func NewChatMessage() *ChatMessage {
	return &ChatMessage{
		ChatMessage: &models.ChatMessage{},
	}
}

func NewChatMessageFromDB(ctx *contextx.Context, mod *models.ChatMessage) *ChatMessage {
	if mod == nil {
		return nil
	}
	msg := &ChatMessage{
		ChatMessage: mod,
	}
	msg.SetContext(ctx)
	msg.SetCreated()
	return msg
}

func QueryChatMessagesBySessionID(ctx *contextx.Context, sessionID string) ([]*ChatMessage, error) {
	var mods []*models.ChatMessage
	// id is the autoincrement pk, so equal timestamps keep insertion order
	err := GetDB(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at, id").
		Find(&mods).Error
	if err != nil {
		return nil, err
	}

	var msgs []*ChatMessage
	for _, mod := range mods {
		msgs = append(msgs, NewChatMessageFromDB(ctx, mod))
	}
	return msgs, nil
}
