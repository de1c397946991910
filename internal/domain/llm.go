package domain

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one turn in a chat completion conversation.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolDescriptor declares a function the model may call.
// Parameters is a JSON Schema document.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  string
}

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ChatResponse is a completion that may carry tool calls instead of content.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel is the LLM completion contract. ChatJSON requires the response to
// be a JSON object and unmarshals it into out, attempting one repair pass on
// malformed output before failing.
type ChatModel interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
	ChatJSON(ctx context.Context, messages []ChatMessage, out any) error
	ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDescriptor) (ChatResponse, error)
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// ToolMessage builds a tool-result message answering the given tool call.
func ToolMessage(toolCallID, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
