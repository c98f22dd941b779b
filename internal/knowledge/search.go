package knowledge

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// ScoredChunk is a Chunk paired with its composite retrieval score.
type ScoredChunk struct {
	Chunk      Chunk
	DocumentID int64
	DocPath    string
	DocType    string
	DocTags    []string
	UpdatedAt  time.Time
	Score      float64
}

// Filter narrows a search to documents of a given type. An empty DocType
// matches everything.
type Filter struct {
	DocType string
}

// sourceQuality is the fixed per-category multiplier table.
var sourceQuality = map[string]float64{
	"code":  1.0,
	"docs":  0.9,
	"notes": 0.8,
}

const defaultSourceQuality = 0.7 // "other" and anything unrecognized

func qualityFor(docType string) float64 {
	if q, ok := sourceQuality[docType]; ok {
		return q
	}
	return defaultSourceQuality
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

func encodeANNVector(vec []float32) ([]byte, error) {
	return sqlite_vec.SerializeFloat32(vec)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func recencyBoost(updatedAt time.Time) float64 {
	days := time.Since(updatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	boost := 0.1 * days
	if boost > 0.5 {
		boost = 0.5
	}
	return 1.0 + boost
}

func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// Search returns the topK chunks by composite score (similarity times
// recency boost times source quality), using the ANN index when available
// and falling back to a bounded, streaming full scan otherwise.
func (v *Vault) Search(queryVec []float32, topK int, filter *Filter) ([]ScoredChunk, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, &ClosedError{}
	}
	if len(queryVec) != v.dim {
		return nil, &DimensionMismatchError{Expected: v.dim, Got: len(queryVec)}
	}
	if topK <= 0 || isZeroVector(queryVec) {
		return nil, nil
	}

	if v.annAvailable {
		return v.searchANN(queryVec, topK, filter)
	}
	return v.searchFallback(queryVec, topK, filter)
}

type candidateRow struct {
	chunkID     int64
	documentID  int64
	content     string
	startOffset int
	endOffset   int
	embedding   []byte
	docPath     string
	docType     string
	docTags     string
	updatedAt   time.Time
}

func decodeTags(raw string) []string {
	var tags []string
	_ = json.Unmarshal([]byte(raw), &tags)
	return tags
}

func (v *Vault) scoreRow(r candidateRow, queryVec []float32) ScoredChunk {
	vec := decodeEmbedding(r.embedding)
	similarity := (1 + cosine(queryVec, vec)) / 2
	score := similarity * recencyBoost(r.updatedAt) * qualityFor(r.docType)
	return ScoredChunk{
		Chunk: Chunk{
			ID:          r.chunkID,
			DocumentID:  r.documentID,
			Content:     r.content,
			StartOffset: r.startOffset,
			EndOffset:   r.endOffset,
			Embedding:   vec,
		},
		DocumentID: r.documentID,
		DocPath:    r.docPath,
		DocType:    r.docType,
		DocTags:    decodeTags(r.docTags),
		UpdatedAt:  r.updatedAt,
		Score:      score,
	}
}

// searchANN narrows candidates via the vec0 virtual table (topK*overFetch
// nearest by the index's own distance metric), then re-scores the
// candidates with the exact composite formula.
func (v *Vault) searchANN(queryVec []float32, topK int, filter *Filter) ([]ScoredChunk, error) {
	fetchK := topK * v.overFetch
	vecData, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, &StorageError{Op: "search serialize query", Err: err}
	}

	rows, err := v.conn.Query(`
		SELECT c.id, c.document_id, c.content, c.start_offset, c.end_offset, c.embedding,
			d.path, d.doc_type, d.tags, d.updated_at
		FROM chunks_vec vv
		JOIN chunks c ON c.id = vv.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE vv.embedding MATCH ? AND k = ?
		ORDER BY vv.distance`,
		vecData, fetchK,
	)
	if err != nil {
		return nil, &StorageError{Op: "search ann query", Err: err}
	}
	defer rows.Close()

	var candidates []ScoredChunk
	for rows.Next() {
		r, err := scanCandidateRow(rows)
		if err != nil {
			return nil, &StorageError{Op: "search ann scan", Err: err}
		}
		if filter != nil && filter.DocType != "" && r.docType != filter.DocType {
			continue
		}
		candidates = append(candidates, v.scoreRow(r, queryVec))
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "search ann rows", Err: err}
	}

	sortScored(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func scanCandidateRow(rows *sql.Rows) (candidateRow, error) {
	var r candidateRow
	err := rows.Scan(
		&r.chunkID, &r.documentID, &r.content, &r.startOffset, &r.endOffset, &r.embedding,
		&r.docPath, &r.docType, &r.docTags, &r.updatedAt,
	)
	return r, err
}

// searchFallback streams every chunk row (bounded by MaxScan) and maintains
// a min-heap of size topK, never holding all candidates in memory at once.
func (v *Vault) searchFallback(queryVec []float32, topK int, filter *Filter) ([]ScoredChunk, error) {
	query := `SELECT c.id, c.document_id, c.content, c.start_offset, c.end_offset, c.embedding,
			d.path, d.doc_type, d.tags, d.updated_at
		FROM chunks c JOIN documents d ON d.id = c.document_id`
	var args []interface{}
	if filter != nil && filter.DocType != "" {
		query += ` WHERE d.doc_type = ?`
		args = append(args, filter.DocType)
	}
	query += ` LIMIT ?`
	args = append(args, v.maxScan)

	rows, err := v.conn.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Op: "search fallback query", Err: err}
	}
	defer rows.Close()

	h := &scoredHeap{}
	heap.Init(h)
	for rows.Next() {
		r, err := scanCandidateRow(rows)
		if err != nil {
			return nil, &StorageError{Op: "search fallback scan", Err: err}
		}
		sc := v.scoreRow(r, queryVec)
		if h.Len() < topK {
			heap.Push(h, sc)
		} else if h.Len() > 0 && less((*h)[0], sc) {
			heap.Pop(h)
			heap.Push(h, sc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "search fallback rows", Err: err}
	}

	out := make([]ScoredChunk, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(ScoredChunk)
	}
	sortScored(out)
	return out, nil
}

// less reports whether a ranks strictly below b: higher score wins; ties
// broken by newer updated_at, then lower chunk_id.
func less(a, b ScoredChunk) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.Chunk.ID > b.Chunk.ID
}

// scoredHeap is a min-heap by the same ordering `less` defines, so the
// smallest (least-preferred) element is always at the root and the first
// to be evicted once the heap reaches capacity topK.
type scoredHeap []ScoredChunk

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(ScoredChunk)) }
func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// sortScored orders best-first: highest score, then newer updated_at, then
// lower chunk_id. Insertion sort — result sets are small (top_k·over_fetch
// at most).
func sortScored(s []ScoredChunk) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j-1], s[j]); j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
