package models

var Models = []interface{}{
	&ExecutionTask{},
	&SubTask{},
	&ExecutionLog{},
	&ChatSession{},
	&ChatMessage{},
}
