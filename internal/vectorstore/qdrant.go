package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"issuepatch/internal/contextutil"
)

const qdrantUpsertBatch = 256

// QdrantIndex implements Index on top of a Qdrant collection using dot-product distance.
// Point IDs are row numbers, so hits map straight back to positions in the built slice.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
	count      int
}

// NewQdrantIndex creates a Qdrant-backed index.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantIndex(urlStr, collection string, dim int) (*QdrantIndex, error) {
	host, port, err := grpcTarget(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantIndex{
		client:     client,
		collection: collection,
		dim:        dim,
	}, nil
}

// grpcTarget derives the gRPC host and port from a Qdrant HTTP URL.
func grpcTarget(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// Build drops and recreates the collection, then uploads every vector.
func (s *QdrantIndex) Build(ctx context.Context, vectors [][]float32) error {
	logger := contextutil.LoggerFromContext(ctx)

	for i, v := range vectors {
		if len(v) != s.dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), s.dim)
		}
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dim),
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for start := 0; start < len(vectors); start += qdrantUpsertBatch {
		end := min(start+qdrantUpsertBatch, len(vectors))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for row := start; row < end; row++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(row)),
				Vectors: qdrant.NewVectors(vectors[row]...),
			})
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to upsert points", "collection", s.collection, "count", len(points), "error", err)
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}

	s.count = len(vectors)
	logger.InfoContext(ctx, "qdrant index built", "collection", s.collection, "count", s.count, "dim", s.dim)
	return nil
}

// Search queries the collection for the k nearest rows.
func (s *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query has dimension %d, expected %d", len(query), s.dim)
	}
	if s.count == 0 {
		return []Hit{}, nil
	}

	limit := uint64(min(k, s.count))
	scoredPoints, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", s.collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	hits := make([]Hit, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		if point.Id == nil {
			continue
		}
		hits = append(hits, Hit{Row: int(point.Id.GetNum()), Score: point.Score})
	}
	SortHits(hits)

	logger.DebugContext(ctx, "qdrant search completed", "collection", s.collection, "k", k, "results", len(hits))
	return hits, nil
}

// Len returns the number of vectors uploaded by the last Build.
func (s *QdrantIndex) Len() int {
	return s.count
}

// Close releases the underlying gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// Ping checks that the Qdrant server answers.
func (s *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}
