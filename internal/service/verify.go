package service

import (
	"context"
	"fmt"
	"math"
)

// verifySample bounds how many slots are cross-checked against the SQL-side
// search, which scans the whole embeddings table per query.
const verifySample = 32

// VerifyReport is the outcome of a consistency check of index, bridge and
// store.
type VerifyReport struct {
	Indexed      int
	Mapped       int
	Persisted    int
	Skipped      int
	CrossChecked int
	Problems     []string
}

func (r VerifyReport) OK() bool { return len(r.Problems) == 0 }

// Verify checks that every index slot resolves to a stored document, that
// the index holds every persisted embedding it accepted, and that a sample of
// documents is found at distance zero by the store's own search.
func (s *MemoryService) Verify(ctx context.Context) (VerifyReport, error) {
	s.mu.Lock()
	rep := VerifyReport{Indexed: s.index.Len(), Mapped: s.bridge.Len(), Skipped: s.skipped}
	s.mu.Unlock()

	st, err := s.store.Stats(ctx)
	if err != nil {
		return rep, err
	}
	rep.Persisted = st.Embeddings

	if rep.Indexed != rep.Mapped {
		rep.Problems = append(rep.Problems, fmt.Sprintf("index holds %d vectors but bridge maps %d slots", rep.Indexed, rep.Mapped))
	}
	if rep.Indexed+rep.Skipped != rep.Persisted {
		rep.Problems = append(rep.Problems, fmt.Sprintf("%d embeddings persisted but %d indexed and %d skipped", rep.Persisted, rep.Indexed, rep.Skipped))
	}

	checked := make(map[int64]struct{})
	for slot := 0; slot < rep.Mapped; slot++ {
		doc, err := s.resolve(ctx, slot)
		if err != nil {
			rep.Problems = append(rep.Problems, err.Error())
			continue
		}
		if _, ok := checked[doc.ID]; ok || len(checked) >= verifySample {
			continue
		}
		checked[doc.ID] = struct{}{}
		if problem, err := s.crossCheck(ctx, doc.ID); err != nil {
			return rep, err
		} else if problem != "" {
			rep.Problems = append(rep.Problems, problem)
		}
		rep.CrossChecked++
	}
	return rep, nil
}

func (s *MemoryService) crossCheck(ctx context.Context, docID int64) (string, error) {
	vec, err := s.store.LoadEmbedding(ctx, docID)
	if err != nil {
		return "", err
	}
	hits, err := s.store.NearestDocuments(ctx, vec, 1, s.index.Metric())
	if err != nil {
		return "", err
	}
	if len(hits) == 0 || math.Abs(hits[0].Distance) > 1e-9 {
		return fmt.Sprintf("document %d: stored embedding is not found by the store search", docID), nil
	}
	return "", nil
}
