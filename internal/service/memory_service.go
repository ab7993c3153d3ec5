package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"memchat/internal/bridge"
	"memchat/internal/domain"
	"memchat/internal/logger"
	"memchat/internal/store"
	"memchat/internal/vector"
	"memchat/internal/vectorstore"
)

const (
	DefaultTopK         = 3
	DefaultEmbedTimeout = 30 * time.Second
)

// MemoryDeps are the collaborators of a MemoryService. Loader and Summarizer
// are only needed for file ingestion.
type MemoryDeps struct {
	Store      *store.Store
	Index      vectorstore.Index
	Embedder   domain.Embedder
	Chunker    domain.Chunker
	Loader     domain.Loader
	Summarizer domain.Summarizer
	Logger     *logger.Logger
}

type MemoryOptions struct {
	EmbedTimeout        time.Duration
	TopK                int
	SummaryMaxSentences int
}

// MemoryService is the semantic memory: texts go to the store, their vectors
// to the index, and the bridge maps index slots back to store ids.
type MemoryService struct {
	store      *store.Store
	index      vectorstore.Index
	bridge     *bridge.Bridge
	embedder   domain.Embedder
	chunker    domain.Chunker
	loader     domain.Loader
	summarizer domain.Summarizer
	log        *logger.Logger
	opts       MemoryOptions

	// mu makes index insert and bridge register a single step.
	mu sync.Mutex
	// skipped counts persisted embeddings the index refused during replay.
	skipped int
}

// NewMemoryService wires the memory and replays every persisted embedding
// into the index, in insertion order, so slots match the previous run.
func NewMemoryService(ctx context.Context, deps MemoryDeps, opts MemoryOptions) (*MemoryService, error) {
	if deps.Store == nil || deps.Index == nil || deps.Embedder == nil || deps.Chunker == nil {
		return nil, errors.New("memory service: store, index, embedder and chunker are required")
	}
	if got, want := deps.Embedder.Dimension(), deps.Index.Dimension(); got != want {
		return nil, fmt.Errorf("embedder %s: %w", deps.Embedder.Name(), domain.DimensionError(got, want))
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultEmbedTimeout
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	s := &MemoryService{
		store:      deps.Store,
		index:      deps.Index,
		bridge:     bridge.New(),
		embedder:   deps.Embedder,
		chunker:    deps.Chunker,
		loader:     deps.Loader,
		summarizer: deps.Summarizer,
		log:        deps.Logger,
		opts:       opts,
	}
	if err := s.replay(ctx); err != nil {
		return nil, fmt.Errorf("replay embeddings: %w", err)
	}
	return s, nil
}

func (s *MemoryService) replay(ctx context.Context) error {
	start := time.Now()
	for row, err := range s.store.Embeddings(ctx) {
		if err != nil {
			return err
		}
		if err := s.index.Validate(row.Vector); err != nil {
			s.skipped++
			s.log.Warn("skipping persisted embedding", "embedding_id", row.ID, "document_id", row.DocumentID, "model", row.Model, "error", err)
			continue
		}
		if _, err := s.register(row.DocumentID, row.Vector); err != nil {
			return err
		}
	}
	s.log.Info("index rebuilt", "vectors", s.index.Len(), "skipped", s.skipped, "took", time.Since(start))
	return nil
}

// register inserts vec and maps its slot to storeID.
func (s *MemoryService) register(storeID int64, vec []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, err := s.index.Insert(vec)
	if err != nil {
		return 0, err
	}
	if got := s.bridge.Register(storeID); got != slot {
		return 0, &domain.InconsistentIndexError{Slot: slot, StoreID: storeID, Err: fmt.Errorf("bridge allocated slot %d", got)}
	}
	return slot, nil
}

// embed calls the embedder under the configured timeout and checks the
// vector fits the index. Every failure matches domain.ErrEmbeddingUnavailable.
func (s *MemoryService) embed(ctx context.Context, text string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()
	vec, err := s.embedder.Embed(ectx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (errors.Is(ectx.Err(), context.DeadlineExceeded) && ctx.Err() == nil) {
			return nil, &domain.EmbeddingError{Transient: true, Err: fmt.Errorf("%w: %w", domain.ErrTimeout, err)}
		}
		return nil, domain.NewEmbeddingError(false, err)
	}
	if err := vector.CheckFinite(vec); err != nil {
		return nil, domain.NewEmbeddingError(false, err)
	}
	if err := s.index.Validate(vec); err != nil {
		return nil, domain.NewEmbeddingError(false, err)
	}
	return vec, nil
}

// source says where ingested text came from.
type source struct {
	path      string
	messageID int64
}

// Ingest chunks text, persists every chunk and indexes those that embed.
// Chunks that fail to embed are stored without a vector and reported in
// Failed; they can be picked up later by ResumePending. The returned error is
// reserved for store failures, which abort the remaining chunks.
func (s *MemoryService) Ingest(ctx context.Context, path, text string) (domain.IngestionResult, error) {
	return s.ingest(ctx, source{path: path}, text)
}

func (s *MemoryService) ingest(ctx context.Context, src source, text string) (domain.IngestionResult, error) {
	chunks := s.chunker.Chunk(text)
	res := domain.IngestionResult{RunID: uuid.NewString(), Path: src.path, Chunks: len(chunks)}
	log := s.log.With("run_id", res.RunID, "path", src.path)

	for i, chunk := range chunks {
		n := i + 1
		doc := domain.Document{Path: src.path, Content: chunk, MessageID: src.messageID}

		vec, embedErr := s.embed(ctx, chunk)
		if embedErr != nil {
			id, err := s.saveText(ctx, doc)
			if err != nil {
				return res, fmt.Errorf("chunk %d: %w", n, err)
			}
			res.DocumentIDs = append(res.DocumentIDs, id)
			res.Failed = append(res.Failed, n)
			if res.Errors == nil {
				res.Errors = make(map[int]error)
			}
			res.Errors[n] = embedErr
			log.Warn("chunk stored without embedding", "chunk", n, "document_id", id, "error", embedErr)
			continue
		}

		docID, _, err := s.store.SaveDocumentWithEmbedding(ctx, doc, vec, s.embedder.Name())
		if err != nil {
			return res, fmt.Errorf("chunk %d: %w", n, err)
		}
		res.DocumentIDs = append(res.DocumentIDs, docID)
		if _, err := s.register(docID, vec); err != nil {
			return res, fmt.Errorf("chunk %d: index: %w", n, err)
		}
		res.Succeeded = append(res.Succeeded, n)
	}
	log.Debug("ingested", "chunks", res.Chunks, "failed", len(res.Failed))
	return res, nil
}

func (s *MemoryService) saveText(ctx context.Context, doc domain.Document) (int64, error) {
	if doc.MessageID != 0 {
		return s.store.SaveMessageDocument(ctx, doc.MessageID, doc.Path, doc.Content)
	}
	return s.store.SaveDocument(ctx, doc.Path, doc.Content)
}

// IngestDocument loads the file at path, ingests it and attaches a short
// summary of its content.
func (s *MemoryService) IngestDocument(ctx context.Context, path string) (domain.IngestionResult, error) {
	if s.loader == nil {
		return domain.IngestionResult{}, errors.New("memory service: no document loader configured")
	}
	text, err := s.loader.Load(path)
	if err != nil {
		return domain.IngestionResult{}, fmt.Errorf("load %s: %w", path, err)
	}
	res, err := s.Ingest(ctx, path, text)
	if err != nil {
		return res, err
	}
	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(text, s.opts.SummaryMaxSentences)
		if err != nil {
			s.log.Warn("summarize failed", "path", path, "error", err)
		} else {
			res.Summary = summary
		}
	}
	return res, nil
}

// IngestDocuments expands glob patterns and ingests every matching file.
// A pattern without matches is treated as a literal path.
func (s *MemoryService) IngestDocuments(ctx context.Context, patterns []string) ([]domain.IngestionResult, error) {
	var out []domain.IngestionResult
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return out, fmt.Errorf("pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			res, err := s.IngestDocument(ctx, m)
			if err != nil {
				return out, err
			}
			out = append(out, res)
		}
	}
	return out, nil
}

// RecordTurn appends the exchange to chatID as a new Message and ingests both
// sides as documents linked to it. It always creates the Message; to index a
// message already stored with AppendMessage use RecordMessage instead.
func (s *MemoryService) RecordTurn(ctx context.Context, chatID int64, userText, agentText string) (domain.TurnRecord, error) {
	msg, err := s.store.AppendMessage(ctx, chatID, userText, agentText)
	if err != nil {
		return domain.TurnRecord{}, fmt.Errorf("append message: %w", err)
	}
	return s.RecordMessage(ctx, msg)
}

// RecordMessage ingests both sides of an already stored message without
// appending another one. The message must exist.
func (s *MemoryService) RecordMessage(ctx context.Context, msg domain.Message) (domain.TurnRecord, error) {
	var err error
	rec := domain.TurnRecord{MessageID: msg.ID}
	base := fmt.Sprintf("chat/%d/message/%d", msg.ChatID, msg.ID)
	if rec.User, err = s.ingest(ctx, source{path: base + "/user", messageID: msg.ID}, msg.UserText); err != nil {
		return rec, fmt.Errorf("ingest user text: %w", err)
	}
	if rec.Agent, err = s.ingest(ctx, source{path: base + "/agent", messageID: msg.ID}, msg.AgentText); err != nil {
		return rec, fmt.Errorf("ingest agent text: %w", err)
	}
	return rec, nil
}

// RetrieveContext returns up to k stored texts closest to query, nearest
// first. k <= 0 uses the configured default. Hits whose slot or document can
// no longer be resolved are logged and left out.
func (s *MemoryService) RetrieveContext(ctx context.Context, query string, k int) ([]domain.Retrieved, error) {
	if k <= 0 {
		k = s.opts.TopK
	}
	if s.index.Len() == 0 {
		return nil, nil
	}
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]domain.Retrieved, 0, len(hits))
	for _, h := range hits {
		doc, err := s.resolve(ctx, h.Slot)
		if err != nil {
			if errors.Is(err, domain.ErrInconsistentIndex) {
				s.log.Error("skipping unresolvable hit", "slot", h.Slot, "error", err)
				continue
			}
			return nil, err
		}
		out = append(out, domain.Retrieved{StoreID: doc.ID, Path: doc.Path, Text: doc.Content, Distance: h.Distance})
	}
	return out, nil
}

// resolve maps slot to its document. Broken mappings come back as
// *domain.InconsistentIndexError.
func (s *MemoryService) resolve(ctx context.Context, slot int) (domain.Document, error) {
	id, err := s.bridge.Resolve(slot)
	if err != nil {
		return domain.Document{}, &domain.InconsistentIndexError{Slot: slot, Err: err}
	}
	doc, err := s.store.LoadDocument(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Document{}, &domain.InconsistentIndexError{Slot: slot, StoreID: id, Err: err}
	}
	return doc, err
}

// Reembed embeds the given documents again, appending new embedding rows and
// index entries. Chunk numbers in the result are positions in documentIDs.
func (s *MemoryService) Reembed(ctx context.Context, documentIDs []int64) (domain.IngestionResult, error) {
	res := domain.IngestionResult{RunID: uuid.NewString(), Chunks: len(documentIDs)}
	log := s.log.With("run_id", res.RunID)
	for i, id := range documentIDs {
		n := i + 1
		doc, err := s.store.LoadDocument(ctx, id)
		if err != nil {
			return res, err
		}
		res.DocumentIDs = append(res.DocumentIDs, id)
		vec, err := s.embed(ctx, doc.Content)
		if err != nil {
			res.Failed = append(res.Failed, n)
			if res.Errors == nil {
				res.Errors = make(map[int]error)
			}
			res.Errors[n] = err
			log.Warn("re-embed failed", "document_id", id, "error", err)
			continue
		}
		if _, err := s.store.SaveEmbedding(ctx, id, vec, s.embedder.Name()); err != nil {
			return res, err
		}
		if _, err := s.register(id, vec); err != nil {
			return res, fmt.Errorf("document %d: index: %w", id, err)
		}
		res.Succeeded = append(res.Succeeded, n)
	}
	return res, nil
}

// ResumePending embeds every stored document that has no embedding yet.
func (s *MemoryService) ResumePending(ctx context.Context) (domain.IngestionResult, error) {
	pending, err := s.store.PendingDocuments(ctx)
	if err != nil {
		return domain.IngestionResult{}, err
	}
	ids := make([]int64, len(pending))
	for i, d := range pending {
		ids[i] = d.ID
	}
	return s.Reembed(ctx, ids)
}

// CreateChat creates a named chat.
func (s *MemoryService) CreateChat(ctx context.Context, name string) (domain.Chat, error) {
	return s.store.CreateChat(ctx, name)
}

func (s *MemoryService) ListChats(ctx context.Context) ([]domain.Chat, error) {
	return s.store.ListChats(ctx)
}

// SelectChat returns the id of the chat called name.
func (s *MemoryService) SelectChat(ctx context.Context, name string) (int64, error) {
	c, err := s.store.ChatByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

// History returns the last n exchanges of chatID, oldest first.
func (s *MemoryService) History(ctx context.Context, chatID int64, n int) ([]domain.Exchange, error) {
	if n <= 0 {
		return nil, nil
	}
	var ring []domain.Exchange
	for m, err := range s.store.MessagesForChat(ctx, chatID) {
		if err != nil {
			return nil, err
		}
		ring = append(ring, domain.Exchange{User: m.UserText, Agent: m.AgentText})
		if len(ring) > n {
			ring = ring[1:]
		}
	}
	return ring, nil
}

// Stats reports row counts and the index size.
type Stats struct {
	store.Stats
	Indexed int
	Skipped int
}

func (s *MemoryService) Stats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Stats: st, Indexed: s.index.Len(), Skipped: s.skipped}, nil
}
