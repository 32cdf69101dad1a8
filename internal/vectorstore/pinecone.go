package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	_ Store         = (*Pinecone)(nil)
	_ pineconeIndex = (*pinecone.IndexConnection)(nil)
)

// pineconeIndex is the part of *pinecone.IndexConnection the adapter uses.
type pineconeIndex interface {
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	DeleteAllVectorsInNamespace(ctx context.Context) error
	Close() error
}

// Pinecone talks to a managed Pinecone index. Index hosts are resolved over
// the control plane; data plane calls go over the SDK's gRPC connection.
type Pinecone struct {
	client       *pinecone.Client
	controlPlane string
	dial         func(host string) (pineconeIndex, error)

	mu    sync.RWMutex
	host  string
	index string
	conn  pineconeIndex
}

type PineconeOption func(*Pinecone)

// WithControlPlane overrides the control plane used to resolve index hosts.
func WithControlPlane(url string) PineconeOption {
	return func(p *Pinecone) { p.controlPlane = strings.TrimRight(url, "/") }
}

// WithHost skips host resolution and connects the data plane to url.
func WithHost(url string) PineconeOption {
	return func(p *Pinecone) { p.host = normalizeHost(url) }
}

func NewPinecone(apiKey string, opts ...PineconeOption) (*Pinecone, error) {
	if apiKey == "" {
		return nil, errors.New("pinecone api key is required")
	}

	p := &Pinecone{}
	for _, opt := range opts {
		opt(p)
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:    apiKey,
		Host:      p.controlPlane,
		SourceTag: "laigent",
	})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	p.client = client
	if p.dial == nil {
		p.dial = p.dialIndex
	}
	return p, nil
}

func (p *Pinecone) Name() string {
	return "pinecone"
}

// Connect resolves the index host, opens the data plane connection and
// verifies it answers a stats request.
func (p *Pinecone) Connect(ctx context.Context, index string) error {
	if index == "" {
		return errors.New("pinecone index name is required")
	}

	p.mu.RLock()
	host := p.host
	p.mu.RUnlock()

	if host == "" {
		desc, err := p.client.DescribeIndex(ctx, index)
		if err != nil {
			return fmt.Errorf("describe index %s: %w", index, err)
		}
		if desc.Host == "" {
			return fmt.Errorf("index %s has no host", index)
		}
		host = normalizeHost(desc.Host)
	}

	conn, err := p.dial(host)
	if err != nil {
		return fmt.Errorf("open index %s: %w", index, err)
	}
	if _, err := conn.DescribeIndexStats(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect to index %s: %w", index, describeStatus(err))
	}

	p.mu.Lock()
	prev := p.conn
	p.host, p.index, p.conn = host, index, conn
	p.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

func (p *Pinecone) Upsert(ctx context.Context, vectors []Vector) error {
	conn, err := p.connected()
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	points := make([]*pinecone.Vector, len(vectors))
	for i, v := range vectors {
		values := v.Values
		point := &pinecone.Vector{Id: v.ID, Values: &values}
		if len(v.Metadata) > 0 {
			meta, err := structpb.NewStruct(stringFields(v.Metadata))
			if err != nil {
				return fmt.Errorf("encode metadata for %s: %w", v.ID, err)
			}
			point.Metadata = meta
		}
		points[i] = point
	}

	if _, err := conn.UpsertVectors(ctx, points); err != nil {
		return fmt.Errorf("pinecone upsert: %w", describeStatus(err))
	}
	return nil
}

func (p *Pinecone) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	conn, err := p.connected()
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	}
	if len(filter) > 0 {
		eq := make(map[string]any, len(filter))
		for k, v := range filter {
			eq[k] = map[string]any{"$eq": v}
		}
		f, err := structpb.NewStruct(eq)
		if err != nil {
			return nil, fmt.Errorf("encode filter: %w", err)
		}
		req.MetadataFilter = f
	}

	resp, err := conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query: %w", describeStatus(err))
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, Match{
			ID:       m.Vector.Id,
			Score:    m.Score,
			Metadata: flattenMetadata(m.Vector.Metadata),
		})
	}
	return matches, nil
}

func (p *Pinecone) DeleteAll(ctx context.Context) error {
	conn, err := p.connected()
	if err != nil {
		return err
	}
	if err := conn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return fmt.Errorf("pinecone delete all: %w", describeStatus(err))
	}
	return nil
}

func (p *Pinecone) DeleteByIDs(ctx context.Context, ids []string) error {
	conn, err := p.connected()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := conn.DeleteVectorsById(ctx, ids); err != nil {
		return fmt.Errorf("pinecone delete: %w", describeStatus(err))
	}
	return nil
}

// Close releases the data plane connection.
func (p *Pinecone) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn, p.index = nil, ""
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (p *Pinecone) connected() (pineconeIndex, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil {
		return nil, ErrNotConnected
	}
	return p.conn, nil
}

func (p *Pinecone) dialIndex(host string) (pineconeIndex, error) {
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: host})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// describeStatus turns the gRPC codes a misconfigured index produces into
// errors that name the setting to fix.
func describeStatus(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("pinecone rejected the api key: %w", err)
	case codes.NotFound:
		return fmt.Errorf("pinecone index not found: %w", err)
	default:
		return err
	}
}

func stringFields(meta map[string]string) map[string]any {
	fields := make(map[string]any, len(meta))
	for k, v := range meta {
		fields[k] = v
	}
	return fields
}

// flattenMetadata stringifies metadata values; numbers and booleans written
// by other clients come back as their printed form.
func flattenMetadata(meta *pinecone.Metadata) map[string]string {
	if meta == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(meta.GetFields()))
	for k, v := range meta.AsMap() {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func normalizeHost(host string) string {
	host = strings.TrimRight(host, "/")
	if host == "" || strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}
