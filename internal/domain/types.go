package domain

import "time"

// Chat is a named conversation. Names are unique.
type Chat struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Message is one conversational turn inside a chat.
type Message struct {
	ID        int64
	ChatID    int64
	UserText  string
	AgentText string
	SentAt    time.Time
}

// Document is a stored unit of text: a chunk of an ingested file or one side
// of a conversational turn. MessageID is zero for file chunks.
type Document struct {
	ID        int64
	Path      string
	Content   string
	MessageID int64
	CreatedAt time.Time
}

// EmbeddingRow is a persisted vector for a document.
type EmbeddingRow struct {
	ID         int64
	DocumentID int64
	Vector     []float32
	Model      string
}

// Hit is a single vector index match.
type Hit struct {
	Slot     int
	Distance float64
}

// Retrieved is a stored text recalled by similarity.
type Retrieved struct {
	StoreID  int64
	Path     string
	Text     string
	Distance float64
}

// Exchange is a user/agent pair used as completion history.
type Exchange struct {
	User  string
	Agent string
}

// Prompt is everything a completer needs to produce the next agent turn.
type Prompt struct {
	System  string
	History []Exchange
	Context []Retrieved
	User    string
	// AIMessage, when set, is an assistant message that opens the
	// conversation ahead of the history.
	AIMessage string
	// HumanTemplate wraps User before it is sent; HumanInputPlaceholder marks
	// where the text goes. Stored turns keep the raw text.
	HumanTemplate string
}

const HumanInputPlaceholder = "{human_input}"

// IngestionResult describes the outcome of ingesting one text. Chunk numbers
// are 1-based and in original order. A non-empty Failed list means the texts
// were stored but some of them were not embedded.
type IngestionResult struct {
	RunID       string
	Path        string
	Chunks      int
	Succeeded   []int
	Failed      []int
	DocumentIDs []int64
	Errors      map[int]error
	// Summary is a short extract of an ingested file; empty for turn text.
	Summary string
}

// Partial reports whether at least one chunk could not be embedded.
func (r IngestionResult) Partial() bool { return len(r.Failed) > 0 }

// TurnRecord is the outcome of recording one conversational turn.
type TurnRecord struct {
	MessageID int64
	User      IngestionResult
	Agent     IngestionResult
}
