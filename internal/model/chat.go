package model

// Chat status values returned to the browser client.
const (
	ChatStatusSuccess = "success"
	ChatStatusError   = "error"
)

// ModelsResponse lists the models the browser client may pick from.
type ModelsResponse struct {
	Provider      string   `json:"provider"`
	AllowedModels []string `json:"allowed_models"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ChatMessage is one turn sent to the completions API.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the OpenAI-compatible chat completions request.
type CompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// CompletionResponse holds the parts of a completions response we read.
type CompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}
