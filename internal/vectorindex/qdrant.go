package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/platform/logger"
)

const (
	payloadVersionIDKey    = "version_id"
	payloadMaterialIDKey   = "material_id"
	payloadArtifactTypeKey = "artifact_type"
	maxErrorBodyBytes      = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("8c3f3c38-55e1-44da-9c3e-4132fa6da2c1")

// QdrantConfig configures the alternate Qdrant-backed embedding index.
type QdrantConfig struct {
	URL        string
	Collection string
	VectorDim  int
}

func ValidateQdrantConfig(cfg QdrantConfig) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return fmt.Errorf("qdrant config: url is required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return fmt.Errorf("qdrant config: collection is required")
	}
	if cfg.VectorDim <= 0 {
		return fmt.Errorf("qdrant config: vector dim must be positive")
	}
	return nil
}

// qdrantIndex is an HTTP adapter over a Qdrant collection. The collection
// must use cosine distance; any other metric would silently invalidate the
// distractor thresholds, so it is rejected at startup.
type qdrantIndex struct {
	log     *logger.Logger
	cfg     QdrantConfig
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewQdrantIndex(log *logger.Logger, cfg QdrantConfig) (Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateQdrantConfig(cfg); err != nil {
		return nil, err
	}

	s := &qdrantIndex{
		log:     log.With("service", "QdrantIndex"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := s.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	log.Info(
		"qdrant embedding index selected",
		"provider", "qdrant",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *qdrantIndex) Upsert(ctx context.Context, entry Entry) error {
	if entry.VersionID == uuid.Nil {
		return fmt.Errorf("vector index upsert: version id is required")
	}
	if len(entry.Vector) == 0 {
		return fmt.Errorf("vector index upsert: vector %q has empty values", entry.VersionID)
	}
	if len(entry.Vector) != s.cfg.VectorDim {
		return fmt.Errorf(
			"vector index upsert: vector %q dimension mismatch: expected=%d got=%d",
			entry.VersionID, s.cfg.VectorDim, len(entry.Vector),
		)
	}

	point := map[string]any{
		"id":     s.pointID(entry.VersionID),
		"vector": entry.Vector,
		"payload": map[string]any{
			payloadVersionIDKey:    entry.VersionID.String(),
			payloadMaterialIDKey:   entry.MaterialID.String(),
			payloadArtifactTypeKey: string(entry.ArtifactType),
		},
	}
	req := map[string]any{"points": []any{point}}
	return s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

func (s *qdrantIndex) NearestNeighbors(ctx context.Context, query []float32, k int, scope Scope) ([]Match, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("vector index query: query vector required")
	}
	if len(query) != s.cfg.VectorDim {
		return nil, fmt.Errorf(
			"vector index query: dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(query),
		)
	}
	if k <= 0 {
		k = 10
	}

	must := make([]any, 0, 2)
	if scope.MaterialID != nil {
		must = append(must, matchCondition(payloadMaterialIDKey, scope.MaterialID.String()))
	}
	if scope.ArtifactType != nil {
		must = append(must, matchCondition(payloadArtifactTypeKey, string(*scope.ArtifactType)))
	}
	filter := map[string]any{}
	if len(must) > 0 {
		filter["must"] = must
	}
	if scope.ExcludeVersionID != nil {
		filter["must_not"] = []any{matchCondition(payloadVersionIDKey, scope.ExcludeVersionID.String())}
	}

	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(filter) > 0 {
		req["filter"] = filter
	}

	var rawResults []qdrantSearchResultItem
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &rawResults); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(rawResults))
	for _, item := range rawResults {
		versionID, ok := item.Payload[payloadVersionIDKey].(string)
		if !ok {
			continue
		}
		parsed, err := uuid.Parse(strings.TrimSpace(versionID))
		if err != nil {
			continue
		}
		// Cosine distance in Qdrant reports similarity directly.
		out = append(out, Match{VersionID: parsed, Similarity: item.Score})
	}
	return out, nil
}

func (s *qdrantIndex) DeleteByVersionIDs(ctx context.Context, versionIDs []uuid.UUID) error {
	if len(versionIDs) == 0 {
		return nil
	}
	pointIDs := make([]string, 0, len(versionIDs))
	for _, id := range versionIDs {
		if id == uuid.Nil {
			continue
		}
		pointIDs = append(pointIDs, s.pointID(id))
	}
	if len(pointIDs) == 0 {
		return nil
	}

	req := map[string]any{"points": pointIDs}
	return s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil)
}

func (s *qdrantIndex) verifyReady(ctx context.Context) error {
	readyReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return fmt.Errorf("qdrant build ready request failed: %w", err)
	}
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError("qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return fmt.Errorf("qdrant ready check returned status=%d", readyResp.StatusCode)
	}

	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, &result); err != nil {
		return err
	}

	size := result.Config.Params.Vectors.Size
	if size != 0 && size != s.cfg.VectorDim {
		return fmt.Errorf(
			"qdrant collection %q vector size mismatch: expected=%d actual=%d",
			s.cfg.Collection, s.cfg.VectorDim, size,
		)
	}
	distance := strings.ToLower(strings.TrimSpace(result.Config.Params.Vectors.Distance))
	if distance != "" && distance != "cosine" {
		return fmt.Errorf(
			"qdrant collection %q uses %q distance; the index requires cosine",
			s.cfg.Collection, distance,
		)
	}
	return nil
}

func (s *qdrantIndex) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("qdrant encode request failed: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("qdrant build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError("qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return fmt.Errorf("qdrant read response failed: %w", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant http status=%d body=%q", resp.StatusCode, truncateQdrantBody(raw))
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("qdrant decode envelope failed: %w", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return errors.New(statusErr)
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("qdrant decode result failed: %w", err)
	}
	return nil
}

func (s *qdrantIndex) pointID(versionID uuid.UUID) string {
	deterministic := uuid.NewSHA1(pointIDNamespaceUUID, []byte(s.cfg.Collection+"|"+versionID.String()))
	return deterministic.String()
}

func (s *qdrantIndex) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func classifyHTTPCallError(message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s (timeout): %w", message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s (timeout): %w", message, err)
	}
	return fmt.Errorf("%s: %w", message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateQdrantBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
