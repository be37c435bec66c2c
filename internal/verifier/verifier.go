// Package verifier checks that the records of a fixture document are present,
// unchanged, in a store.
package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/dbsmedya/gofixture/internal/fixture"
	"github.com/dbsmedya/gofixture/internal/graph"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/schema"
	"github.com/dbsmedya/gofixture/internal/store"
	"github.com/dbsmedya/gofixture/internal/types"
)

// VerificationMethod defines how to compare records.
type VerificationMethod string

const (
	// MethodCount compares record counts per model (fast)
	MethodCount VerificationMethod = "count"
	// MethodSHA256 compares a digest of every rendered record (thorough)
	MethodSHA256 VerificationMethod = "sha256"
	// MethodSkip skips verification entirely
	MethodSkip VerificationMethod = "skip"
)

// VerifyResult holds verification results for a single model.
type VerifyResult struct {
	Model        string
	Method       VerificationMethod
	SourceCount  int64
	DestCount    int64
	SourceHash   string
	DestHash     string
	Match        bool
	ErrorMessage string
}

// VerifyStats contains overall verification statistics.
type VerifyStats struct {
	ModelsVerified int
	ModelsPassed   int
	ModelsFailed   int
	TotalRecords   int64
	Duplicates     int
	Method         VerificationMethod
	Results        []*VerifyResult
}

// Verifier compares expected entries (a document, or a fresh extraction
// from the source) with what the destination store holds for the same keys.
type Verifier struct {
	destination store.Store
	registry    *schema.Registry
	graph       *graph.Graph
	method      VerificationMethod
	logger      *logger.Logger
}

// NewVerifier creates a verifier reading from destination.
func NewVerifier(destination store.Store, reg *schema.Registry, method VerificationMethod, log *logger.Logger) (*Verifier, error) {
	if destination == nil {
		return nil, fmt.Errorf("destination store is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if method == "" {
		method = MethodCount
	}
	switch method {
	case MethodCount, MethodSHA256, MethodSkip:
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", method)
	}

	g, err := graph.BuildFromRegistry(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	return &Verifier{
		destination: destination,
		registry:    reg,
		graph:       g,
		method:      method,
		logger:      log,
	}, nil
}

// Method returns the configured method.
func (v *Verifier) Method() VerificationMethod {
	return v.method
}

// Verify checks every model of expected, parents first. Duplicated entries
// are compared once. It stops at the first mismatching model.
func (v *Verifier) Verify(ctx context.Context, expected []fixture.Entry) (*VerifyStats, error) {
	if v.method == MethodSkip {
		v.logger.Info("Verification SKIPPED (method=skip)")
		return &VerifyStats{Method: MethodSkip}, nil
	}

	stats := &VerifyStats{Method: v.method}
	distinct, dropped := fixture.Dedupe(expected)
	stats.Duplicates = dropped

	byModel := make(map[string][]fixture.Entry)
	for _, e := range distinct {
		byModel[e.Model.String()] = append(byModel[e.Model.String()], e)
	}

	// Cyclic schemas are still verified; order only affects reporting
	order, _ := v.graph.LoadOrderWithFallback()

	v.logger.Infof("Starting verification (method=%s) for %d models", v.method, len(byModel))

	for _, name := range order {
		entries, ok := byModel[name]
		if !ok {
			continue
		}
		delete(byModel, name)

		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("verification interrupted: %w", err)
		}

		result, err := v.verifyModel(ctx, name, entries)
		if err != nil {
			return stats, fmt.Errorf("verification failed for model %s: %w", name, err)
		}
		stats.Results = append(stats.Results, result)
		stats.ModelsVerified++
		stats.TotalRecords += result.SourceCount

		if !result.Match {
			stats.ModelsFailed++
			v.logger.Errorf("Verification FAILED for model %q: %s", name, result.ErrorMessage)
			return stats, fmt.Errorf("verification mismatch in model %s: %s", name, result.ErrorMessage)
		}
		stats.ModelsPassed++
		v.logger.Debugf("Verification PASSED for model %q (%d records)", name, result.SourceCount)
	}

	// Models the registry does not know
	if len(byModel) > 0 {
		names := make([]string, 0, len(byModel))
		for name := range byModel {
			names = append(names, name)
		}
		sort.Strings(names)
		return stats, fmt.Errorf("verification failed: %w", &schema.UnknownTypeError{Name: names[0]})
	}

	v.logger.Infof("Verification complete: %d models verified, %d passed, %d failed, %d total records",
		stats.ModelsVerified, stats.ModelsPassed, stats.ModelsFailed, stats.TotalRecords)
	return stats, nil
}

func (v *Verifier) verifyModel(ctx context.Context, name string, expected []fixture.Entry) (*VerifyResult, error) {
	m, err := v.registry.ResolveName(name)
	if err != nil {
		return nil, err
	}

	keys := make([]interface{}, 0, len(expected))
	for _, e := range expected {
		pk, ok := e.Fields.Get(m.PrimaryKey)
		if !ok || pk == nil {
			pk = e.PK
		}
		if pk == nil {
			return nil, fmt.Errorf("entry has no primary key %q", m.PrimaryKey)
		}
		keys = append(keys, pk)
	}

	records, err := v.destination.Query(ctx, m.Type, store.Eq(types.PKKey, keys))
	if err != nil {
		return nil, err
	}
	actual := make([]fixture.Entry, len(records))
	for i, rec := range records {
		actual[i] = fixture.FromRecord(m.Type, rec)
	}

	switch v.method {
	case MethodCount:
		return verifyByCount(name, expected, actual), nil
	case MethodSHA256:
		return verifyBySHA256(name, expected, actual)
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", v.method)
	}
}

// verifyByCount compares record counts.
func verifyByCount(name string, expected, actual []fixture.Entry) *VerifyResult {
	result := &VerifyResult{
		Model:       name,
		Method:      MethodCount,
		SourceCount: int64(len(expected)),
		DestCount:   int64(len(actual)),
	}
	result.Match = result.SourceCount == result.DestCount
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("count mismatch: source=%d, destination=%d", result.SourceCount, result.DestCount)
	}
	return result
}

// verifyBySHA256 compares digests of the rendered records, in key order.
func verifyBySHA256(name string, expected, actual []fixture.Entry) (*VerifyResult, error) {
	srcHash, err := digest(expected)
	if err != nil {
		return nil, fmt.Errorf("source digest: %w", err)
	}
	dstHash, err := digest(actual)
	if err != nil {
		return nil, fmt.Errorf("destination digest: %w", err)
	}

	result := &VerifyResult{
		Model:       name,
		Method:      MethodSHA256,
		SourceCount: int64(len(expected)),
		DestCount:   int64(len(actual)),
		SourceHash:  srcHash,
		DestHash:    dstHash,
		Match:       srcHash == dstHash && len(expected) == len(actual),
	}
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("hash mismatch: source=%s..., destination=%s...", srcHash[:16], dstHash[:16])
	}
	return result, nil
}

// digest hashes the compact rendering of each entry, sorted so that store
// order does not matter.
func digest(entries []fixture.Entry) (string, error) {
	lines := make([]string, len(entries))
	for i, e := range entries {
		data, err := fixture.Encode([]fixture.Entry{{Model: e.Model, Fields: e.Fields}}, 0)
		if err != nil {
			return "", err
		}
		lines[i] = string(data)
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
