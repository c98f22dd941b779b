package knowledge

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tripartite-ai/consensus-core/internal/chunk"
)

// Document is a unit of ingested content. Checksum determines whether
// re-adding the same path is a no-op.
type Document struct {
	ID        int64
	Path      string
	Content   string
	DocType   string
	Tags      []string
	Checksum  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a persisted, embedded slice of a Document.
type Chunk struct {
	ID          int64
	DocumentID  int64
	Content     string
	StartOffset int
	EndOffset   int
	Embedding   []float32
	Metadata    map[string]string
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AddDocument chunks content, embeds each chunk, and persists document and
// chunks in one transaction; any failure rolls back all chunks for that
// document. Re-adding a path whose checksum equals the stored one is a
// no-op and returns the existing document id.
//
// Before chunking, an optional YAML frontmatter header is parsed off
// content: its doc_type overrides an unspecified/default docType argument,
// and its tags are recorded on the Document. Parsing never alters content
// itself — the header stays part of what gets chunked and checksummed.
func (v *Vault) AddDocument(path, content, docType string) (int64, error) {
	var tags []string
	if meta, ok := parseFrontMatter(content); ok {
		if (docType == "" || docType == "other") && meta.DocType != "" {
			docType = meta.DocType
		}
		tags = meta.Tags
	}
	if docType == "" {
		docType = "other"
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, fmt.Errorf("marshal document tags: %w", err)
	}

	sum := checksum(content)
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, &ClosedError{}
	}
	var existingID int64
	var existingSum string
	err = v.conn.QueryRow(`SELECT id, checksum FROM documents WHERE path = ?`, path).Scan(&existingID, &existingSum)
	v.mu.Unlock()
	if err == nil && existingSum == sum {
		return existingID, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, &StorageError{Op: "add_document lookup", Err: err}
	}

	chunks, err := chunk.Split(content, v.chunkCfg)
	if err != nil {
		return 0, fmt.Errorf("chunk document: %w", err)
	}

	// Embedding may suspend, so it runs with no vault lock held — the lock
	// is reacquired only for the synchronous transaction below.
	type embedded struct {
		c   chunk.Chunk
		vec []float32
	}
	embeddedChunks := make([]embedded, 0, len(chunks))
	for _, c := range chunks {
		vec, err := v.embedder.Embed(c.Content)
		if err != nil {
			return 0, fmt.Errorf("embed chunk: %w", err)
		}
		if len(vec) != v.dim {
			return 0, &DimensionMismatchError{Expected: v.dim, Got: len(vec)}
		}
		embeddedChunks = append(embeddedChunks, embedded{c: c, vec: vec})
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, &ClosedError{}
	}
	tx, err := v.conn.Begin()
	if err != nil {
		return 0, &StorageError{Op: "add_document begin tx", Err: err}
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var docID int64
	if existingID != 0 {
		docID = existingID
		if _, err := tx.Exec(
			`UPDATE documents SET content = ?, doc_type = ?, tags = ?, checksum = ?, updated_at = ? WHERE id = ?`,
			content, docType, string(tagsJSON), sum, now, docID,
		); err != nil {
			return 0, &StorageError{Op: "add_document update", Err: err}
		}
		if _, err := tx.Exec(`DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
			return 0, &StorageError{Op: "add_document clear old chunks", Err: err}
		}
		if v.annAvailable {
			tx.Exec(`DELETE FROM chunks_vec WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, docID)
		}
	} else {
		res, err := tx.Exec(
			`INSERT INTO documents (path, content, doc_type, tags, checksum, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			path, content, docType, string(tagsJSON), sum, now, now,
		)
		if err != nil {
			return 0, &StorageError{Op: "add_document insert", Err: err}
		}
		docID, err = res.LastInsertId()
		if err != nil {
			return 0, &StorageError{Op: "add_document last insert id", Err: err}
		}
	}

	for _, ec := range embeddedChunks {
		metaJSON, err := json.Marshal(map[string]string{})
		if err != nil {
			return 0, fmt.Errorf("marshal chunk metadata: %w", err)
		}
		blob := encodeEmbedding(ec.vec)
		res, err := tx.Exec(
			`INSERT INTO chunks (document_id, content, start_offset, end_offset, embedding, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
			docID, ec.c.Content, ec.c.Start, ec.c.End, blob, string(metaJSON),
		)
		if err != nil {
			return 0, &StorageError{Op: "add_document insert chunk", Err: err}
		}
		if v.annAvailable {
			chunkID, err := res.LastInsertId()
			if err != nil {
				return 0, &StorageError{Op: "add_document chunk last insert id", Err: err}
			}
			vecBlob, err := encodeANNVector(ec.vec)
			if err != nil {
				return 0, fmt.Errorf("serialize chunk vector: %w", err)
			}
			if _, err := tx.Exec(`INSERT INTO chunks_vec (chunk_id, embedding) VALUES (?, ?)`, chunkID, vecBlob); err != nil {
				return 0, &StorageError{Op: "add_document insert ann vector", Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "add_document commit", Err: err}
	}
	return docID, nil
}

// DeleteDocumentByPath looks up a document by its path and deletes it,
// returning sql.ErrNoRows if no document exists at that path.
func (v *Vault) DeleteDocumentByPath(path string) (int64, error) {
	v.mu.Lock()
	var docID int64
	err := v.conn.QueryRow(`SELECT id FROM documents WHERE path = ?`, path).Scan(&docID)
	v.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return docID, v.DeleteDocument(docID)
}

// DeleteDocument removes a document and all its chunks atomically.
func (v *Vault) DeleteDocument(docID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return &ClosedError{}
	}

	tx, err := v.conn.Begin()
	if err != nil {
		return &StorageError{Op: "delete_document begin tx", Err: err}
	}
	defer tx.Rollback()

	if v.annAvailable {
		if _, err := tx.Exec(`DELETE FROM chunks_vec WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, docID); err != nil {
			return &StorageError{Op: "delete_document clear ann", Err: err}
		}
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return &StorageError{Op: "delete_document delete chunks", Err: err}
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return &StorageError{Op: "delete_document delete document", Err: err}
	}
	return tx.Commit()
}
