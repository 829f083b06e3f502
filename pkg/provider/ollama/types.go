package ollama

// chatRequest is the request body for /api/chat.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatChunk is one line of the NDJSON stream. The final line has Done set
// and carries timing statistics instead of content.
type chatChunk struct {
	Model      string       `json:"model"`
	Message    *chatMessage `json:"message,omitempty"`
	Done       bool         `json:"done"`
	DoneReason string       `json:"done_reason,omitempty"`
	Error      string       `json:"error,omitempty"`

	EvalCount       int `json:"eval_count,omitempty"`
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
}
