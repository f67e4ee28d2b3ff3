// ABOUTME: Per-conversation session state and the turn input envelope.
// ABOUTME: Nodes mutate a working copy through reducer helpers; the driver commits on success.
package agent

import (
	"time"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/formdef"
	"github.com/formpilot-ai/formpilot/llm"
)

// maxHistoryMessages caps how much conversation history is sent to the LLM.
const maxHistoryMessages = 30

// ToolResult is one client-executed tool outcome delivered with a turn.
type ToolResult struct {
	ToolName string         `json:"tool_name"`
	ToolArgs map[string]any `json:"tool_args,omitempty"`
	Result   any            `json:"result"`
}

// TurnInput is the ephemeral per-turn envelope. It is reset every turn and
// never persisted with the session.
type TurnInput struct {
	UserMessage string
	ToolResults []ToolResult

	// parsed holds a direct action pre-empted by the extraction node.
	parsed *action.Action
	// userMessageAdded prevents double-recording the user message when
	// multiple nodes run in one turn.
	userMessageAdded bool
}

// State is everything a conversation carries across turns.
type State struct {
	ConversationID string
	FormContext    string
	Definition     *formdef.Definition

	RequiredFields []string
	FieldTypes     map[string]formdef.FieldType

	Answers map[string]any
	History []llm.Message

	InitialExtractionDone bool

	PendingFieldID    string
	PendingActionType action.Kind

	PendingTextValue   string
	PendingTextFieldID string

	PendingToolName string

	CurrentStep              int
	AwaitingStepConfirmation bool

	CreatedAt      time.Time
	LastAccessedAt time.Time

	// turn is the ephemeral input for the traversal in progress.
	turn TurnInput
}

// NewState builds session state from a form definition, parsing the required
// field set and type map once.
func NewState(conversationID, formContext string) *State {
	def := formdef.Parse(formContext)
	now := time.Now()
	return &State{
		ConversationID: conversationID,
		FormContext:    formContext,
		Definition:     def,
		RequiredFields: def.RequiredFieldIDs(),
		FieldTypes:     def.FieldTypes(),
		Answers:        make(map[string]any),
		CurrentStep:    1,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

// Clone deep-copies the mutable parts of the state. The driver runs each turn
// against a clone and swaps it in only when the turn completes, so a failed
// turn leaves the session untouched.
func (s *State) Clone() *State {
	c := *s
	c.Answers = make(map[string]any, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	c.History = append([]llm.Message(nil), s.History...)
	c.turn = TurnInput{}
	return &c
}

// mergeAnswers is the reducer for the answers map: new values overwrite old,
// keys are never removed.
func (s *State) mergeAnswers(values map[string]any) {
	for k, v := range values {
		s.Answers[k] = v
	}
}

// appendHistory is the reducer for conversation history.
func (s *State) appendHistory(role, content string) {
	s.History = append(s.History, llm.Message{Role: role, Content: content})
}

// recordUserMessage appends the turn's user message to history exactly once.
func (s *State) recordUserMessage() {
	if s.turn.userMessageAdded || s.turn.UserMessage == "" {
		return
	}
	s.appendHistory(llm.RoleUser, s.turn.UserMessage)
	s.turn.userMessageAdded = true
}

// recentHistory returns the newest history entries within the LLM window.
func (s *State) recentHistory() []llm.Message {
	if len(s.History) <= maxHistoryMessages {
		return append([]llm.Message(nil), s.History...)
	}
	return append([]llm.Message(nil), s.History[len(s.History)-maxHistoryMessages:]...)
}

// MissingRequired lists required fields that are currently visible and not
// yet answered, preserving form order.
func (s *State) MissingRequired() []string {
	var missing []string
	for _, id := range s.Definition.VisibleRequiredFieldIDs(s.Answers) {
		if _, ok := s.Answers[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// missingInStep lists unanswered visible required fields assigned to a step.
func (s *State) missingInStep(step int) []string {
	byStep := s.Definition.RequiredByStep()
	var missing []string
	for _, id := range byStep[step] {
		f := s.Definition.FieldByID(id)
		if !formdef.IsVisible(f, s.Answers) {
			continue
		}
		if _, ok := s.Answers[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// clearPending drops the ask-pending pair.
func (s *State) clearPending() {
	s.PendingFieldID = ""
	s.PendingActionType = ""
}

// clearPendingText drops the held free-text latch.
func (s *State) clearPendingText() {
	s.PendingTextValue = ""
	s.PendingTextFieldID = ""
}
