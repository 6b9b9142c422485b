package vectordb

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadKeyText   = "text"
	payloadKeySource = "source"

	scrollPageSize = 256
)

// QdrantIndex is an Index backed by a remote Qdrant server. The
// collection is created lazily on the first Add, sized to the batch's
// embedding dimensions.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

var _ Index = (*QdrantIndex)(nil)

func NewQdrantIndex(host string, port int, collection string) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantIndex{
		client:     client,
		collection: collection,
	}, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, dim int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Add upserts the chunks. Waits for the write to land so a search
// issued right after sees the new points.
func (q *QdrantIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	dim, err := validateChunks(chunks, 0)
	if err != nil {
		return err
	}
	if err := q.ensureCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, ch := range chunks {
		payload := make(map[string]*qdrant.Value, 2)
		for key, value := range map[string]string{
			payloadKeyText:   ch.Text,
			payloadKeySource: ch.Source,
		} {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
			}
			payload[key] = val
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(ch.ID),
			Vectors: qdrant.NewVectors(ch.Embedding...),
			Payload: payload,
		})
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int, sources []string) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if !exists {
		return nil, nil
	}

	searchRequest := &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	}
	if len(sources) > 0 {
		searchRequest.Filter = sourceFilter(sources)
	}

	pointsClient := q.client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	matches := make([]Match, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		matches = append(matches, Match{
			Chunk: scoredPointChunk(point),
			Score: point.Score,
		})
	}
	return matches, nil
}

// sourceFilter matches points whose source is any of the given values.
func sourceFilter(sources []string) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(sources))
	for _, src := range sources {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: payloadKeySource,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{
							Keyword: src,
						},
					},
				},
			},
		})
	}
	return &qdrant.Filter{
		Should: conditions,
	}
}

func scoredPointChunk(point *qdrant.ScoredPoint) Chunk {
	var id string
	if point.Id != nil {
		switch idType := point.Id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			id = idType.Uuid
		case *qdrant.PointId_Num:
			id = fmt.Sprintf("%d", idType.Num)
		}
	}

	var vector []float32
	if point.Vectors != nil {
		if vectorData := point.Vectors.GetVector(); vectorData != nil {
			if dense, ok := vectorData.Vector.(*qdrant.VectorOutput_Dense); ok && dense.Dense != nil {
				vector = dense.Dense.Data
			}
		}
	}

	var text, source string
	if point.Payload != nil {
		text = point.Payload[payloadKeyText].GetStringValue()
		source = point.Payload[payloadKeySource].GetStringValue()
	}

	return Chunk{
		ID:        id,
		Text:      text,
		Source:    source,
		Embedding: vector,
	}
}

// Stats walks the whole collection to count chunks per source. Fine at
// the scale of a per-user document set; a huge collection would want a
// server-side facet instead.
func (q *QdrantIndex) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Sources: make(map[string]int)}

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return stats, fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if !exists {
		return stats, nil
	}

	pointsClient := q.client.GetPointsClient()
	var offset *qdrant.PointId
	for {
		resp, err := pointsClient.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return stats, fmt.Errorf("failed to scroll points: %w", err)
		}

		for _, point := range resp.Result {
			stats.Chunks++
			if point.Payload != nil {
				if src := point.Payload[payloadKeySource].GetStringValue(); src != "" {
					stats.Sources[src]++
				}
			}
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	return stats, nil
}

// Reset drops the collection. The next Add recreates it.
func (q *QdrantIndex) Reset(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if !exists {
		return nil
	}
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
