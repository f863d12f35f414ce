package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
)

// Input carries the raw query parameters as received from the request surface.
// CategoryFilter accepts a single token or a list; ResultCount and
// SimilarityThreshold accept any JSON scalar so that shape errors are reported
// by the normalizer, not by the decoder.
type Input struct {
	QueryText           string `json:"queryText"`
	CategoryFilter      any    `json:"categoryFilter,omitempty"`
	ResultCount         any    `json:"resultCount,omitempty"`
	SimilarityThreshold any    `json:"similarityThreshold,omitempty"`
}

// Normalizer turns raw query parameters into a canonical request with a
// stable cache fingerprint.
type Normalizer struct {
	defaultCount int
	maxCount     int
	defaultFloor float64
	maxQueryLen  int
}

// NewNormalizer creates a normalizer with the given bounds.
func NewNormalizer(defaultCount, maxCount int, defaultFloor float64, maxQueryLen int) *Normalizer {
	if defaultCount <= 0 {
		defaultCount = 5
	}
	if maxCount <= 0 {
		maxCount = 20
	}
	if maxQueryLen <= 0 {
		maxQueryLen = 512
	}
	return &Normalizer{
		defaultCount: defaultCount,
		maxCount:     maxCount,
		defaultFloor: defaultFloor,
		maxQueryLen:  maxQueryLen,
	}
}

// Normalize validates and canonicalizes the raw input. Identical logical
// requests always produce the identical fingerprint regardless of filter
// order, casing or surrounding whitespace.
func (n *Normalizer) Normalize(input Input) (*entities.NormalizedRequest, error) {
	query := strings.TrimSpace(input.QueryText)
	if query == "" {
		return nil, apperrors.NewValidationError("queryText must not be empty")
	}
	if len([]rune(query)) > n.maxQueryLen {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("queryText exceeds maximum length of %d characters", n.maxQueryLen))
	}

	filters := normalizeFilters(input.CategoryFilter)

	count, err := n.normalizeCount(input.ResultCount)
	if err != nil {
		return nil, err
	}

	floor, err := n.normalizeThreshold(input.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	req := &entities.NormalizedRequest{
		QueryText:       query,
		Filters:         filters,
		ResultCount:     count,
		SimilarityFloor: floor,
	}
	req.Fingerprint = fingerprint(req)
	return req, nil
}

// normalizeFilters accepts a scalar or a list. Non-string, null and
// empty-after-trim entries are silently dropped; survivors are lower-cased,
// de-duplicated and sorted. An all-invalid list is equivalent to no filter.
func normalizeFilters(raw any) []string {
	var tokens []string
	switch v := raw.(type) {
	case nil:
	case string:
		tokens = append(tokens, v)
	case []string:
		tokens = append(tokens, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				tokens = append(tokens, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(tokens))
	filters := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		filters = append(filters, tok)
	}
	sort.Strings(filters)
	return filters
}

// normalizeCount clamps the requested result count into [1, maxCount].
// Negative or non-numeric values are a validation error; out-of-range
// values are clamped, not rejected.
func (n *Normalizer) normalizeCount(raw any) (int, error) {
	if raw == nil {
		return n.defaultCount, nil
	}

	count, ok := asInt(raw)
	if !ok {
		return 0, apperrors.NewValidationError("resultCount must be a number")
	}
	if count < 0 {
		return 0, apperrors.NewValidationError("resultCount must not be negative")
	}
	if count < 1 {
		return 1, nil
	}
	if count > n.maxCount {
		return n.maxCount, nil
	}
	return count, nil
}

// normalizeThreshold clamps the similarity floor into [0, 1].
func (n *Normalizer) normalizeThreshold(raw any) (float64, error) {
	if raw == nil {
		return n.defaultFloor, nil
	}

	floor, ok := asFloat(raw)
	if !ok {
		return 0, apperrors.NewValidationError("similarityThreshold must be a number")
	}
	if floor < 0 {
		return 0, nil
	}
	if floor > 1 {
		return 1, nil
	}
	return floor, nil
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// fingerprint hashes the canonical request fields into a stable cache key.
func fingerprint(req *entities.NormalizedRequest) string {
	h := sha256.New()
	h.Write([]byte(req.QueryText))
	h.Write([]byte{0x1f})
	h.Write([]byte(strings.Join(req.Filters, ",")))
	h.Write([]byte{0x1f})
	h.Write([]byte(strconv.Itoa(req.ResultCount)))
	h.Write([]byte{0x1f})
	h.Write([]byte(strconv.FormatFloat(req.SimilarityFloor, 'f', -1, 64)))
	return hex.EncodeToString(h.Sum(nil))
}
