package orchestrator

import "time"

// Stage names a node of the refinement loop and tags the messages it produces
type Stage string

const (
	StageUser        Stage = "user"
	StagePlan        Stage = "plan"
	StageGenerate    Stage = "generate"
	StageRetrieve    Stage = "retrieve"
	StagePrioritize  Stage = "prioritize"
	StagePlainAnswer Stage = "plain-answer"
	StageTableAnswer Stage = "table-answer"
	StageEnd         Stage = "end"
)

// Row is one record returned by the backing store, keyed by column
type Row map[string]any

type Message struct {
	Stage     Stage
	Content   string
	CreatedAt time.Time
}

// TokenUsage is reported by language-model stages
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

func (u *TokenUsage) Add(o TokenUsage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
}

// State is owned by one request. Messages is append-only.
type State struct {
	SessionID      string
	UserID         string
	Question       string
	Plan           string
	Messages       []Message
	Sender         Stage
	IterationCount int

	// Query is the last value-mapped query sent to the store
	Query string
	// Rows is the last usable result, reordered once prioritized
	Rows  []Row
	Usage TokenUsage
}

func NewState(sessionID, userID, question string) *State {
	st := &State{SessionID: sessionID, UserID: userID, Question: question}
	st.Append(StageUser, question)
	return st
}

func (s *State) Append(stage Stage, content string) {
	s.Messages = append(s.Messages, Message{Stage: stage, Content: content, CreatedAt: time.Now()})
	s.Sender = stage
}

// Last returns the newest message, or a zero Message when there is none
func (s *State) Last() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}
