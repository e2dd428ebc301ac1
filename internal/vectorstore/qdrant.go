package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/wikirag/internal/logging"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var qdrantTracer = otel.Tracer("github.com/fyrsmithlabs/wikirag/internal/vectorstore/qdrant")

// payloadDocID keeps the caller's id when it is not a UUID, since Qdrant
// point ids must be UUIDs or integers.
const payloadDocID = "doc_id"

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334
	Port int

	UseTLS bool
	APIKey string

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max message size must be positive", ErrInvalidConfig)
	}
	return nil
}

// QdrantIndex implements Index on a remote Qdrant server. Vectors are
// compared with cosine distance.
type QdrantIndex struct {
	client *qdrant.Client
	logger *logging.Logger
	dims   sync.Map
}

// NewQdrantIndex connects to Qdrant. The gRPC connection is established
// lazily, so an unreachable server surfaces on the first call.
func NewQdrantIndex(cfg QdrantConfig, logger *logging.Logger) (*QdrantIndex, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	logger = logging.OrNop(logger).Named("vectorstore.qdrant")

	if !cfg.UseTLS {
		logger.Warn(context.Background(), "qdrant gRPC using plaintext, TLS disabled")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	logger.Info(context.Background(), "qdrant index initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Bool("tls", cfg.UseTLS),
	)
	return &QdrantIndex{client: client, logger: logger}, nil
}

// Exists implements Index.
func (x *QdrantIndex) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	ok, err := x.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	return ok, nil
}

// Create implements Index.
func (x *QdrantIndex) Create(ctx context.Context, name string, dim int) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("dimension", dim),
	)

	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dim)
	}
	exists, err := x.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return ErrCollectionExists
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	x.dims.Store(name, dim)

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Delete implements Index.
func (x *QdrantIndex) Delete(ctx context.Context, name string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := x.client.DeleteCollection(ctx, name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	x.dims.Delete(name)

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Insert implements Index. Upserts wait for the write to be applied so a
// following Count sees it.
func (x *QdrantIndex) Insert(ctx context.Context, name string, doc Document) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidConfig)
	}
	if err := x.checkDimension(ctx, name, len(doc.Embedding)); err != nil {
		return err
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         []*qdrant.PointStruct{toPoint(doc)},
	})
	if err != nil {
		return fmt.Errorf("upserting document %s to %s: %w", doc.ID, name, err)
	}
	return nil
}

// Query implements Index.
func (x *QdrantIndex) Query(ctx context.Context, name string, vector []float32, k int) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, k)
	}
	if len(vector) == 0 {
		return nil, ErrEmptyQuery
	}
	if err := x.checkDimension(ctx, name, len(vector)); err != nil {
		return nil, err
	}

	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}

	results := fromScoredPoints(points)
	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	x.logger.Debug(ctx, "queried qdrant collection",
		zap.String("collection", name),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Count implements Index.
func (x *QdrantIndex) Count(ctx context.Context, name string) (int, error) {
	if err := ValidateCollectionName(name); err != nil {
		return 0, err
	}
	n, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting collection %s: %w", name, err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (x *QdrantIndex) Close() error {
	if err := x.client.Close(); err != nil {
		return fmt.Errorf("closing qdrant client: %w", err)
	}
	return nil
}

// checkDimension compares got with the collection's configured vector size,
// fetching it from the server the first time.
func (x *QdrantIndex) checkDimension(ctx context.Context, name string, got int) error {
	if got == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	want, ok := x.dims.Load(name)
	if !ok {
		info, err := x.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCollectionNotFound, name, err)
		}
		size := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		if size == 0 {
			return nil
		}
		want, _ = x.dims.LoadOrStore(name, size)
	}
	if want.(int) != got {
		return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, got %d",
			ErrDimensionMismatch, name, want.(int), got)
	}
	return nil
}

// toPoint maps a document onto a Qdrant point. Metadata becomes the string
// payload; the chunk text is always present under MetaText.
func toPoint(doc Document) *qdrant.PointStruct {
	payload := make(map[string]*qdrant.Value, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		payload[k] = qdrant.NewValueString(v)
	}
	if _, ok := doc.Metadata[MetaText]; !ok {
		payload[MetaText] = qdrant.NewValueString(doc.Content)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(doc.ID))
		payload[payloadDocID] = qdrant.NewValueString(doc.ID)
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(id.String()),
		Vectors: qdrant.NewVectors(doc.Embedding...),
		Payload: payload,
	}
}

func fromScoredPoints(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		meta := make(map[string]string, len(p.GetPayload()))
		for k, v := range p.GetPayload() {
			if k == payloadDocID {
				continue
			}
			meta[k] = v.GetStringValue()
		}

		id := p.GetId().GetUuid()
		if orig, ok := p.GetPayload()[payloadDocID]; ok {
			id = orig.GetStringValue()
		}

		results = append(results, SearchResult{
			ID:       id,
			Content:  meta[MetaText],
			Score:    p.GetScore(),
			Metadata: meta,
		})
	}
	return rankResults(results)
}
