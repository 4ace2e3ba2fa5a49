package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/spacesedan/trendlens/config"
	"github.com/spacesedan/trendlens/internal/models"
)

// Opensearch is the vector index. Content vectors live in a k-NN index using
// the lucene engine with cosine similarity.
type Opensearch struct {
	Client    *opensearch.Client
	index     string
	dimension int
}

func NewOpensearchClient(ctx context.Context, cfg config.OpensearchConfig, region string) (*Opensearch, error) {
	var osCfg opensearch.Config

	if cfg.UseSigV4 {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("[OpenSearchClient] failed to load AWS config: %w", err)
		}

		osCfg = opensearch.Config{
			Addresses: []string{cfg.Endpoint},
			Transport: NewSigV4Transport(awsCfg.Credentials, v4.NewSigner(), awsCfg.Region, "es"),
		}
	} else {
		if cfg.Endpoint == "" || cfg.Password == "" {
			return nil, fmt.Errorf("[OpenSearchClient] missing credentials for opensearch: %w", models.ErrConfiguration)
		}
		osCfg = opensearch.Config{
			Addresses: []string{cfg.Endpoint},
			Username:  cfg.Username,
			Password:  cfg.Password,
		}
	}
	osCfg.Header = http.Header{"User-Agent": []string{USER_AGENT}}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("[OpenSearchClient] failed to initialize client: %w", err)
	}

	return NewOpensearch(client, cfg.Index, cfg.Dimension), nil
}

func NewOpensearch(client *opensearch.Client, index string, dimension int) *Opensearch {
	return &Opensearch{Client: client, index: index, dimension: dimension}
}

type sigV4Transport struct {
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	region      string
	service     string
	next        http.RoundTripper
}

func NewSigV4Transport(creds aws.CredentialsProvider, signer *v4.Signer, region string, service string) http.RoundTripper {
	return &sigV4Transport{
		credentials: creds,
		signer:      signer,
		region:      region,
		service:     service,
		next:        http.DefaultTransport,
	}
}

func (t *sigV4Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	creds, err := t.credentials.Retrieve(req.Context())
	if err != nil {
		return nil, err
	}

	signedReq := req.Clone(req.Context())
	signedReq.Header.Del("Authorization")

	err = t.signer.SignHTTP(
		req.Context(),
		creds,
		signedReq,
		v4.GetPayloadHash(req.Context()),
		t.service,
		t.region,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}

	return t.next.RoundTrip(signedReq)
}

func (o *Opensearch) IsHealthy(ctx context.Context) bool {
	res, err := o.Client.Do(ctx, opensearchapi.ClusterHealthReq{}, nil)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	return !res.IsError() && res.StatusCode == http.StatusOK
}

func (o *Opensearch) indexMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				models.EmbeddingField: map[string]any{
					"type":      "knn_vector",
					"dimension": o.dimension,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "cosinesimil",
						"engine":     "lucene",
					},
				},
				"id":                  map[string]any{"type": "keyword"},
				models.MetadataType:   map[string]any{"type": "keyword"},
				models.MetadataSource: map[string]any{"type": "keyword"},
				models.MetadataTags:   map[string]any{"type": "keyword"},
				"url":                 map[string]any{"type": "keyword"},
				"title":               map[string]any{"type": "text"},
				models.CreatedAtField: map[string]any{"type": "date"},
			},
		},
	}
}

// EnsureIndex creates the k-NN content index when it does not exist yet.
func (o *Opensearch) EnsureIndex(ctx context.Context) error {
	res, err := o.Client.Do(ctx, opensearchapi.IndicesExistsReq{Indices: []string{o.index}}, nil)
	if err != nil {
		return models.Upstream("opensearch index exists", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return models.Upstream("opensearch index exists", fmt.Errorf("status %s", res.Status()))
	}

	payload, err := json.Marshal(o.indexMapping())
	if err != nil {
		return fmt.Errorf("[OpenSearchClient] failed to marshal index mapping: %w", err)
	}

	res, err = o.Client.Do(ctx, opensearchapi.IndicesCreateReq{
		Index: o.index,
		Body:  bytes.NewReader(payload),
	}, nil)
	if err != nil {
		return models.Upstream("opensearch create index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return models.Upstream("opensearch create index", fmt.Errorf("status %s", res.Status()))
	}

	slog.Info("[OpenSearchClient] Created content index",
		slog.String("index", o.index),
		slog.Int("dimension", o.dimension))
	return nil
}

func (o *Opensearch) IndexDocument(ctx context.Context, doc models.ContentDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		slog.Error("[OpenSearchClient] failed to marshal content document",
			slog.String("content_id", doc.ID),
			slog.String("error", err.Error()))
		return err
	}

	req := opensearchapi.IndexReq{
		Index:      o.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(payload),
	}

	res, err := o.Client.Do(ctx, req, nil)
	if err != nil {
		slog.Error("[OpenSearchClient] Failed to index content document",
			slog.String("content_id", doc.ID),
			slog.String("error", err.Error()))
		return models.Upstream("opensearch index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		slog.Error("[OpenSearchClient] OpenSearch indexing error",
			slog.String("content_id", doc.ID),
			slog.String("status", res.Status()))
		return models.Upstream("opensearch index", fmt.Errorf("status %s", res.Status()))
	}

	return nil
}

type knnSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildKNNQuery(q models.VectorQuery) map[string]any {
	knn := map[string]any{
		"vector": q.Vector,
		"k":      q.TopK,
	}
	if len(q.Filter) > 0 {
		terms := make([]map[string]any, 0, len(q.Filter))
		for _, field := range sortedKeys(q.Filter) {
			terms = append(terms, map[string]any{
				"term": map[string]any{field: q.Filter[field]},
			})
		}
		knn["filter"] = map[string]any{
			"bool": map[string]any{"filter": terms},
		}
	}

	body := map[string]any{
		"size": q.TopK,
		"query": map[string]any{
			"knn": map[string]any{models.EmbeddingField: knn},
		},
	}
	if q.IncludeMetadata {
		body["_source"] = map[string]any{"excludes": []string{models.EmbeddingField}}
	} else {
		body["_source"] = false
	}
	return body
}

// similarityFromScore undoes the lucene cosinesimil scoring, (1 + cos) / 2.
func similarityFromScore(score float64) float64 {
	return 2*score - 1
}

// KNNSearch runs an approximate nearest-neighbour query with optional metadata
// equality filters and returns matches with cosine similarity scores.
func (o *Opensearch) KNNSearch(ctx context.Context, q models.VectorQuery) ([]models.VectorMatch, error) {
	payload, err := json.Marshal(buildKNNQuery(q))
	if err != nil {
		return nil, fmt.Errorf("[OpenSearchClient] failed to marshal knn query: %w", err)
	}

	var out knnSearchResponse
	res, err := o.Client.Do(ctx, opensearchapi.SearchReq{
		Indices: []string{o.index},
		Body:    bytes.NewReader(payload),
	}, &out)
	if err != nil {
		return nil, models.Upstream("opensearch knn search", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, models.Upstream("opensearch knn search", fmt.Errorf("status %s", res.Status()))
	}

	matches := make([]models.VectorMatch, 0, len(out.Hits.Hits))
	for _, hit := range out.Hits.Hits {
		var meta models.VectorMetadata
		if q.IncludeMetadata && len(hit.Source) > 0 {
			if err := json.Unmarshal(hit.Source, &meta); err != nil {
				slog.Warn("[OpenSearchClient] Skipping hit with unreadable metadata",
					slog.String("id", hit.ID),
					slog.String("error", err.Error()))
				continue
			}
		}
		if meta.ID == "" {
			meta.ID = hit.ID
		}
		matches = append(matches, models.VectorMatch{
			Metadata: models.NormalizeMetadata(meta),
			Score:    similarityFromScore(hit.Score),
		})
	}

	slog.Debug("[OpenSearchClient] knn search complete",
		slog.Int("top_k", q.TopK),
		slog.Int("hits", len(matches)),
		slog.String("filter", strings.Join(sortedKeys(q.Filter), ",")))
	return matches, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
