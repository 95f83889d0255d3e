package models

// IntentKind is the closed set of shapes the classification service may answer with
type IntentKind string

const (
	IntentCommand    IntentKind = "command"
	IntentCreateIdea IntentKind = "create_idea"
	IntentReply      IntentKind = "reply"
)

// Intent is the parsed classifier answer.
// Only the fields of the matching Kind are set.
type Intent struct {
	Kind IntentKind `json:"kind"`

	// IntentCommand
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// IntentCreateIdea
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// IntentReply
	Text string `json:"text,omitempty"`
}
