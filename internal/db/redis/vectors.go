package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragpipe/internal/db"
)

// Add stores vector items as hashes in a single DoMulti round-trip.
func (s *Store) Add(ctx context.Context, collection string, items []db.VectorItem) error {
	if len(items) == 0 {
		return nil
	}

	if dim := s.collectionDim(collection); dim > 0 {
		for _, item := range items {
			if len(item.Vector) != dim {
				return fmt.Errorf("item %s has %d dimensions, collection %s expects %d: %w",
					item.ID, len(item.Vector), collection, dim, db.ErrVectorDimMismatch)
			}
		}
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmd := s.b().Hset().Key(docKey(collection, item.ID)).FieldValue()
		cmd = cmd.FieldValue("vector", vectorToBytes(item.Vector))
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("item %s: %w", items[i].ID, err)}
		}
	}
	return nil
}

// Delete removes vector items by id.
func (s *Store) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	cmd := s.b().Del().Key(keys...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Fetch retrieves a single stored item with its vector.
func (s *Store) Fetch(ctx context.Context, collection, id string) (db.VectorItem, error) {
	cmd := s.b().Hgetall().Key(docKey(collection, id)).Build()
	fields, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return db.VectorItem{}, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if len(fields) == 0 {
		return db.VectorItem{}, db.ErrKeyNotFound
	}

	item := db.VectorItem{ID: id, Fields: fields}
	if raw, ok := fields["vector"]; ok {
		item.Vector = bytesToVector([]byte(raw))
		delete(fields, "vector")
	}
	return item, nil
}

// QueryByVector runs a KNN similarity search via FT.SEARCH.
func (s *Store) QueryByVector(
	ctx context.Context, collection string,
	vector []float32, topK int, tags map[string]string,
) ([]db.QueryHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB]", topK)
	queryStr := "*=>" + knnPart
	if filter := buildTagFilter(tags); filter != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filter, knnPart)
	}

	args := []string{
		indexName(collection), queryStr,
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index") || isRedisErr(err, "no such index") {
			return nil, db.ErrCollectionNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw)
}

// TextScores runs a scored full-text search via FT.SEARCH WITHSCORES.
func (s *Store) TextScores(
	ctx context.Context, collection string,
	query string, topK int, tags map[string]string,
) ([]db.QueryHit, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	queryStr := fmt.Sprintf("@content:(%s)", escapeQuery(query))
	if filter := buildTagFilter(tags); filter != "" {
		queryStr = filter + " " + queryStr
	}

	args := []string{
		indexName(collection), queryStr,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index") || isRedisErr(err, "no such index") {
			return nil, db.ErrCollectionNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseScoredResult(raw)
}

// SupportsTextSearch probes whether the server accepts scored text queries.
func (s *Store) SupportsTextSearch(_ context.Context) bool {
	return true
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) ([]db.QueryHit, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]db.QueryHit, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		hit := db.QueryHit{
			ID:     stripDocKey(key),
			Fields: parseFieldPairs(fields),
		}

		if distStr, ok := hit.Fields["__vector_score"]; ok {
			if d, err := strconv.ParseFloat(distStr, 64); err == nil {
				hit.Distance = d
				hit.Score = max(0, 1.0-d) // cosine distance -> similarity, clamped to [0,1]
			}
			delete(hit.Fields, "__vector_score")
		}
		delete(hit.Fields, "vector")

		hits = append(hits, hit)
	}

	return hits, nil
}

func parseScoredResult(raw []rueidis.RedisMessage) ([]db.QueryHit, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]db.QueryHit, 0, total)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		hit := db.QueryHit{
			ID:     stripDocKey(key),
			Score:  score,
			Fields: parseFieldPairs(fields),
		}
		delete(hit.Fields, "vector")
		hits = append(hits, hit)
	}

	return hits, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// stripDocKey removes the "ragpipe:<collection>:" prefix from a hash key.
func stripDocKey(key string) string {
	if !strings.HasPrefix(key, KeyPrefix) {
		return key
	}
	rest := key[len(KeyPrefix):]
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		return rest[idx+1:]
	}
	return rest
}

// --- Filter building ---

func buildTagFilter(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for k, v := range tags {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", k, tagEscaper.Replace(v)))
	}
	return strings.Join(parts, " ")
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
