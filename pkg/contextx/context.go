package contextx

import "context"

// Context carries per-request data (request id, user id, session id) plus an
// optional DB transaction handle through the call chain. It embeds a standard
// context.Context so blocking operations can honor deadlines and cancellation.
type Context struct {
	context.Context
	dbTx interface{}
	data map[string]interface{}
}

func (ctx *Context) Clone() *Context {
	newCtx := &Context{
		Context: ctx.Context,
		data:    map[string]interface{}{},
	}
	for k, v := range ctx.data {
		newCtx.data[k] = v
	}
	return newCtx
}

func (ctx *Context) Set(name string, value interface{}) {
	ctx.data[name] = value
}

func (ctx *Context) Get(name string) interface{} {
	if v, ok := ctx.data[name]; ok {
		return v
	}
	return nil
}

func (ctx *Context) GetDB() interface{} {
	return ctx.dbTx
}

func (ctx *Context) SetDB(tx interface{}) {
	ctx.dbTx = tx
}

func (ctx *Context) GetMap() map[string]interface{} {
	return ctx.data
}

func (ctx *Context) GetString(name string) string {
	if v, ok := ctx.data[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (ctx *Context) GetRequestID() string {
	return ctx.GetString("requestId")
}

func (ctx *Context) GetUserID() string {
	return ctx.GetString("userId")
}

func (ctx *Context) GetSessionID() string {
	return ctx.GetString("sessionId")
}

func NewContext() *Context {
	return &Context{
		Context: context.Background(),
		data:    map[string]interface{}{},
	}
}

// WithParent builds a Context over an existing context.Context so deadlines
// set by callers propagate to DB, queue and model calls.
func WithParent(parent context.Context) *Context {
	return &Context{
		Context: parent,
		data:    map[string]interface{}{},
	}
}

func NewContextFromMap(data map[string]interface{}) *Context {
	return &Context{
		Context: context.Background(),
		data:    data,
	}
}
