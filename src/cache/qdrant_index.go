package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

const qdrantBootstrapTimeout = 5 * time.Second

// QdrantIndex implements models.VectorIndex on a Qdrant collection
// with cosine distance.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

func NewQdrantIndex(cfg *config.QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
	}

	if err := idx.ensureCollection(); err != nil {
		return nil, err
	}

	return idx, nil
}

func (q *QdrantIndex) ensureCollection() error {
	ctx, cancel := context.WithTimeout(context.Background(), qdrantBootstrapTimeout)
	defer cancel()

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check qdrant collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create qdrant collection: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectorsDense(vector),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert: %v", models.ErrCacheUnavailable, err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int, minScore float32) ([]models.VectorMatch, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: qdrant.PtrOf(minScore),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant query: %v", models.ErrCacheUnavailable, err)
	}

	matches := make([]models.VectorMatch, 0, len(points))
	for _, p := range points {
		payload := make(map[string]string, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = v.GetStringValue()
		}
		matches = append(matches, models.VectorMatch{
			ID:      p.Id.GetUuid(),
			Score:   p.Score,
			Payload: payload,
		})
	}
	return matches, nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
