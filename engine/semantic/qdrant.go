package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	payloadEntryID  = "entry_id"
	payloadDocument = "document"
	scrollPage      = 256
)

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Qdrant keeps the collection on a Qdrant server over gRPC.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dims        int
	log         *zap.Logger
}

// NewQdrant connects to Qdrant at the given gRPC address.
func NewQdrant(addr, collection string, dims int, log *zap.Logger) (*Qdrant, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	q := newQdrant(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, dims, log)
	q.conn = conn
	return q, nil
}

func newQdrant(points pointsAPI, collections collectionsAPI, collection string, dims int, log *zap.Logger) *Qdrant {
	if log == nil {
		log = zap.NewNop()
	}
	return &Qdrant{points: points, collections: collections, collection: collection, dims: dims, log: log}
}

// Close closes the underlying gRPC connection.
func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// Reset implements Store.
func (q *Qdrant) Reset(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() != q.collection {
			continue
		}
		if _, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collection}); err != nil {
			return fmt.Errorf("semantic: delete collection %s: %w", q.collection, err)
		}
		q.log.Info("deleted existing collection", zap.String("collection", q.collection))
		break
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", q.collection, err)
	}
	return nil
}

// PointID maps an entry id to the UUID Qdrant stores it under.
func PointID(entryID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(entryID)).String()
}

// Add implements Store.
func (q *Qdrant) Add(ctx context.Context, embeddings [][]float32, documents, ids []string) error {
	if err := checkAligned(embeddings, documents, ids); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(ids))
	for i, id := range ids {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embeddings[i]},
				},
			},
			Payload: map[string]*pb.Value{
				payloadEntryID:  {Kind: &pb.Value_StringValue{StringValue: id}},
				payloadDocument: {Kind: &pb.Value_StringValue{StringValue: documents[i]}},
			},
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Count implements Store.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{CollectionName: q.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("semantic: count %s: %w", q.collection, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// GetAll implements Store by scrolling the collection page by page.
func (q *Qdrant) GetAll(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	var offset *pb.PointId
	for {
		resp, err := q.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: q.collection,
			Offset:         offset,
			Limit:          pb.PtrOf(uint32(scrollPage)),
			WithPayload:    pb.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("semantic: scroll %s: %w", q.collection, err)
		}
		for _, p := range resp.GetResult() {
			payload := p.GetPayload()
			entries = append(entries, Entry{
				ID:       payload[payloadEntryID].GetStringValue(),
				Document: payload[payloadDocument].GetStringValue(),
			})
		}
		offset = resp.GetNextPageOffset()
		if offset == nil || len(resp.GetResult()) == 0 {
			break
		}
	}
	SortEntries(entries)
	return entries, nil
}
