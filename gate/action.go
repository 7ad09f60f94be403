package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionList    Action = "list"
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionConvert Action = "convert"
)

// CRUD is the list of plain data actions, in display order.
var CRUD = []Action{ActionList, ActionView, ActionCreate, ActionUpdate, ActionDelete}
