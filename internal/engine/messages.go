package engine

// RequestType names an engine operation. The same strings travel over the
// websocket surface, so they are part of the wire protocol.
type RequestType string

const (
	ReqLoadFile       RequestType = "LOAD_FILE"
	ReqLoadExisting   RequestType = "LOAD_EXISTING"
	ReqRunCommand     RequestType = "RUN_COMMAND"
	ReqCellEdit       RequestType = "CELL_EDIT"
	ReqDeleteRow      RequestType = "DELETE_ROW"
	ReqDeleteRows     RequestType = "DELETE_ROWS"
	ReqUndo           RequestType = "UNDO"
	ReqRedo           RequestType = "REDO"
	ReqReset          RequestType = "RESET"
	ReqView           RequestType = "VIEW"
	ReqHistory        RequestType = "HISTORY"
	ReqExportSnapshot RequestType = "EXPORT_SNAPSHOT"
)

// ResponseType names an engine reply.
type ResponseType string

const (
	RespDataLoaded    ResponseType = "DATA_LOADED"
	RespDataUpdated   ResponseType = "DATA_UPDATED"
	RespCommandResult ResponseType = "COMMAND_RESULT"
	RespExportReady   ResponseType = "EXPORT_READY"
	RespHistoryState  ResponseType = "HISTORY_STATE"
	RespSnapshot      ResponseType = "SNAPSHOT"
	RespError         ResponseType = "ERROR"
)

// Request is one engine message. Only the fields for its type are read:
// loads use Name, Columns, and Rows; RUN_COMMAND uses Command; CELL_EDIT
// uses Index, Column, and Value; deletes use Index or Indexes.
type Request struct {
	Type    RequestType `json:"type"`
	Name    string      `json:"name,omitempty"`
	Columns []string    `json:"columns,omitempty"`
	Rows    []*Row      `json:"rows,omitempty"`
	Command string      `json:"command,omitempty"`
	Index   int         `json:"index,omitempty"`
	Indexes []int       `json:"indexes,omitempty"`
	Column  string      `json:"column,omitempty"`
	Value   *Value      `json:"value,omitempty"`
}

// CellValue returns the edit value, Missing when the request omitted it.
func (r Request) CellValue() Value {
	if r.Value == nil {
		return Missing
	}
	return *r.Value
}

// Response is one engine reply. Exactly one payload field is set, matching
// the Type; ERROR responses add a stable Code next to the message.
type Response struct {
	Type     ResponseType  `json:"type"`
	View     *View         `json:"view,omitempty"`
	Stats    *Stats        `json:"stats,omitempty"`
	Export   *Export       `json:"export,omitempty"`
	History  *HistoryState `json:"history,omitempty"`
	Snapshot *Snapshot     `json:"snapshot,omitempty"`
	Error    string        `json:"error,omitempty"`
	Code     string        `json:"code,omitempty"`
}

// HistoryState reports whether undo and redo are available.
type HistoryState struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// Snapshot is the full serializable engine state: a detached copy of the
// master collection with identifiers, ready for the persistence
// collaborator to marshal on its own goroutine. Loading it back through
// LOAD_EXISTING restores the session.
type Snapshot struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []*Row   `json:"rows"`
}

// Event is a persist signal. It carries no payload beyond the reason; the
// consumer asks for a Snapshot when it wants the data.
type Event struct {
	Reason string
}
