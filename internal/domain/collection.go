package domain

// ChatRole tags a turn of a chat history.
type ChatRole string

const (
	ChatRoleUser   ChatRole = "user"
	ChatRoleSystem ChatRole = "system"
)

// ChatTurn is one prior exchange sent along with a chat message. Turns are forwarded
// in the order the caller supplied them.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ProcessedDocument is the result of creating a collection and inserting a file into it.
type ProcessedDocument struct {
	CollectionID string `json:"collection_id"`
	ResourceID   string `json:"resource_id"`
}
