package domain

import "context"

// Embedder converts free text into a fixed-dimension vector.
// Failures should be reported as *EmbeddingError.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer generates the next agent turn of a conversation.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Chunker splits text into ordered chunks of bounded length.
type Chunker interface {
	Chunk(text string) []string
}

// Loader reads the textual content of a document on disk.
type Loader interface {
	Load(path string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
