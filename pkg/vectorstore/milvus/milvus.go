// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/leseb/quizsearch/pkg/provider"
	"github.com/leseb/quizsearch/pkg/vectorstore"
)

func init() {
	vectorstore.Providers.Register("milvus", func(ctx context.Context, params provider.Params) (vectorstore.Backend, error) {
		dims, err := params.Int("dimensions", 768)
		if err != nil {
			return nil, err
		}
		return NewBackend(ctx, params.String("address", "localhost:19530"), params.String("collection", "quiz_embeddings"), dims)
	})
}

// compile-time checks
var (
	_ vectorstore.Backend        = (*Backend)(nil)
	_ vectorstore.NativeSearcher = (*Backend)(nil)
)

const (
	fieldQuizID      = "quiz_id"
	fieldSourceText  = "source_text"
	fieldMetadata    = "metadata"
	fieldLastUpdated = "last_updated"
	fieldEmbedding   = "embedding"

	maxQuizIDLength     = 256
	maxSourceTextLength = 65535
	maxMetadataLength   = 8192
)

var outputFields = []string{fieldQuizID, fieldSourceText, fieldMetadata, fieldLastUpdated, fieldEmbedding}

// Backend implements vectorstore.Backend using a single Milvus collection
// keyed by quiz id, with an HNSW index on the embedding field.
type Backend struct {
	client milvusclient.Client
	coll   string
	dims   int
}

// NewBackend connects to Milvus and ensures the collection exists and is loaded.
func NewBackend(ctx context.Context, address, collection string, dims int) (*Backend, error) {
	c, err := milvusclient.NewClient(ctx, milvusclient.Config{
		Address: address,
	})
	if err != nil {
		return nil, fmt.Errorf("milvus connect %s: %w", address, err)
	}

	b := &Backend{client: c, coll: collection, dims: dims}
	if err := b.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return b, nil
}

// ensureCollection creates the collection and its HNSW index if missing,
// then loads it.
func (b *Backend) ensureCollection(ctx context.Context) error {
	exists, err := b.client.HasCollection(ctx, b.coll)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", b.coll, err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(b.coll).
			WithDescription("quiz embeddings").
			WithField(entity.NewField().
				WithName(fieldQuizID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(maxQuizIDLength)).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(fieldSourceText).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(maxSourceTextLength))).
			WithField(entity.NewField().
				WithName(fieldMetadata).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(maxMetadataLength))).
			WithField(entity.NewField().
				WithName(fieldLastUpdated).
				WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().
				WithName(fieldEmbedding).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(b.dims)))

		if err := b.client.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("create collection %s: %w", b.coll, err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
		if err != nil {
			return fmt.Errorf("create HNSW index params: %w", err)
		}
		if err := b.client.CreateIndex(ctx, b.coll, fieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("create index on %s: %w", b.coll, err)
		}
	}

	if err := b.client.LoadCollection(ctx, b.coll, false); err != nil {
		return fmt.Errorf("load collection %s: %w", b.coll, err)
	}
	return nil
}

func (b *Backend) Dimensions() int { return b.dims }

// Upsert writes the embedding with Milvus' primary-key upsert.
func (b *Backend) Upsert(ctx context.Context, e *vectorstore.QuizEmbedding) error {
	if err := vectorstore.Validate(e, b.dims); err != nil {
		return err
	}
	meta, err := encodeRecord(e)
	if err != nil {
		return err
	}

	_, err = b.client.Upsert(ctx, b.coll, "",
		entity.NewColumnVarChar(fieldQuizID, []string{e.QuizID}),
		entity.NewColumnVarChar(fieldSourceText, []string{e.SourceText}),
		entity.NewColumnVarChar(fieldMetadata, []string{string(meta)}),
		entity.NewColumnInt64(fieldLastUpdated, []int64{e.LastUpdated.UnixNano()}),
		entity.NewColumnFloatVector(fieldEmbedding, b.dims, [][]float32{e.Vector}),
	)
	if err != nil {
		return vectorstore.Unavailable("milvus upsert into "+b.coll, err)
	}

	if err := b.client.Flush(ctx, b.coll, false); err != nil {
		return vectorstore.Unavailable("milvus flush "+b.coll, err)
	}
	return nil
}

// encodeRecord marshals the metadata and checks both VarChar fields against
// the collection's max lengths. Source text is never truncated: a stored
// prefix would no longer match the text that produced the vector.
func encodeRecord(e *vectorstore.QuizEmbedding) ([]byte, error) {
	if n := len(e.SourceText); n > maxSourceTextLength {
		return nil, fmt.Errorf("quiz %q: source text is %d bytes, limit %d: %w", e.QuizID, n, maxSourceTextLength, vectorstore.ErrRecordTooLarge)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if n := len(meta); n > maxMetadataLength {
		return nil, fmt.Errorf("quiz %q: metadata is %d bytes, limit %d: %w", e.QuizID, n, maxMetadataLength, vectorstore.ErrRecordTooLarge)
	}
	return meta, nil
}

func (b *Backend) Get(ctx context.Context, quizID string) (*vectorstore.QuizEmbedding, error) {
	out, err := b.fetch(ctx, []string{quizID})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, vectorstore.ErrNotFound
	}
	return out[0], nil
}

// Delete removes the embedding for quizID. Deleting a missing key is a no-op in Milvus.
func (b *Backend) Delete(ctx context.Context, quizID string) error {
	expr := fmt.Sprintf(`%s in ["%s"]`, fieldQuizID, escapeExpr(quizID))
	if err := b.client.Delete(ctx, b.coll, "", expr); err != nil {
		return vectorstore.Unavailable("milvus delete from "+b.coll, err)
	}
	return nil
}

// List pages through the collection by quiz id. Milvus queries are
// unordered, so ids are fetched first, sorted, and the page hydrated.
func (b *Backend) List(ctx context.Context, after string, limit int) ([]*vectorstore.QuizEmbedding, error) {
	expr := fmt.Sprintf(`%s > "%s"`, fieldQuizID, escapeExpr(after))
	rs, err := b.client.Query(ctx, b.coll, nil, expr, []string{fieldQuizID},
		milvusclient.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return nil, vectorstore.Unavailable("milvus list "+b.coll, err)
	}

	col := rs.GetColumn(fieldQuizID)
	if col == nil {
		return nil, nil
	}
	ids := make([]string, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		id, err := col.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fieldQuizID, err)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		return nil, nil
	}

	return b.fetch(ctx, ids)
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	rs, err := b.client.Query(ctx, b.coll, nil, "", []string{"count(*)"},
		milvusclient.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, vectorstore.Unavailable("milvus count "+b.coll, err)
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, fmt.Errorf("read count: %w", err)
	}
	return int(n), nil
}

// NearestNeighbors runs an HNSW cosine search. Milvus reports COSINE
// scores as similarity, so they are returned unchanged.
func (b *Backend) NearestNeighbors(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	if err := vectorstore.CheckVector("query", vector, b.dims); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}

	sp, err := entity.NewIndexHNSWSearchParam(max(64, k))
	if err != nil {
		return nil, fmt.Errorf("create search params: %w", err)
	}

	results, err := b.client.Search(
		ctx,
		b.coll,
		nil,
		"",
		[]string{fieldQuizID},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding,
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, vectorstore.Unavailable("milvus search "+b.coll, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	sr := results[0]
	if sr.Err != nil {
		return nil, vectorstore.Unavailable("milvus search result", sr.Err)
	}

	out := make([]vectorstore.Match, 0, sr.ResultCount)
	for i := 0; i < sr.ResultCount; i++ {
		id, err := sr.IDs.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("read result id: %w", err)
		}
		out = append(out, vectorstore.Match{QuizID: id, Score: float64(sr.Scores[i])})
	}
	return out, nil
}

// Close releases the Milvus client connection.
func (b *Backend) Close() error {
	return b.client.Close()
}

// DropCollection removes the backing collection and all embeddings in it.
func (b *Backend) DropCollection(ctx context.Context) error {
	exists, err := b.client.HasCollection(ctx, b.coll)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", b.coll, err)
	}
	if !exists {
		return nil
	}
	if err := b.client.DropCollection(ctx, b.coll); err != nil {
		return fmt.Errorf("drop collection %s: %w", b.coll, err)
	}
	return nil
}

// fetch loads full records for ids, returned in the order of ids.
func (b *Backend) fetch(ctx context.Context, ids []string) ([]*vectorstore.QuizEmbedding, error) {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + escapeExpr(id) + `"`
	}
	expr := fmt.Sprintf(`%s in [%s]`, fieldQuizID, strings.Join(quoted, ","))

	rs, err := b.client.Query(ctx, b.coll, nil, expr, outputFields,
		milvusclient.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return nil, vectorstore.Unavailable("milvus query "+b.coll, err)
	}

	idCol := rs.GetColumn(fieldQuizID)
	if idCol == nil || idCol.Len() == 0 {
		return nil, nil
	}
	sourceCol := rs.GetColumn(fieldSourceText)
	metaCol := rs.GetColumn(fieldMetadata)
	updatedCol := rs.GetColumn(fieldLastUpdated)
	vecCol, ok := rs.GetColumn(fieldEmbedding).(*entity.ColumnFloatVector)
	if !ok {
		return nil, fmt.Errorf("milvus query %s: embedding column missing", b.coll)
	}
	vectors := vecCol.Data()

	byID := make(map[string]*vectorstore.QuizEmbedding, idCol.Len())
	for i := 0; i < idCol.Len(); i++ {
		id, _ := idCol.GetAsString(i)
		source, _ := sourceCol.GetAsString(i)
		meta, _ := metaCol.GetAsString(i)
		updated, _ := updatedCol.GetAsInt64(i)

		e := &vectorstore.QuizEmbedding{
			QuizID:      id,
			Vector:      vectors[i],
			SourceText:  source,
			LastUpdated: time.Unix(0, updated).UTC(),
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("quiz %q: unmarshal metadata: %w", id, err)
		}
		byID[id] = e
	}

	out := make([]*vectorstore.QuizEmbedding, 0, len(byID))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// escapeExpr escapes backslashes and double quotes for Milvus filter expressions.
func escapeExpr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
