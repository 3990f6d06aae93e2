package transition

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/infrastructure/metrics"
	"github.com/andreyxaxa/photo-pipeline/internal/repo"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase/classify"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
)

// BlobTargeter extracts structured blob references from a message.
type BlobTargeter interface {
	BlobTargets(raw dto.RawMessage) []entity.BlobRef
}

// Cleanup removes the blob a failed or escalated message refers to.
type Cleanup struct {
	blobs    repo.BlobRepo
	targeter BlobTargeter

	heuristicDelete bool

	metrics *metrics.PipelineMetrics
	logger  logger.Interface
}

func NewCleanup(
	blobs repo.BlobRepo,
	targeter BlobTargeter,
	heuristicDelete bool,
	m *metrics.PipelineMetrics,
	l logger.Interface,
) *Cleanup {
	return &Cleanup{
		blobs:           blobs,
		targeter:        targeter,
		heuristicDelete: heuristicDelete,
		metrics:         m,
		logger:          l,
	}
}

// Handle deletes every blob it can find a reference to. An absent blob is
// not an error; storage failures are.
func (h *Cleanup) Handle(ctx context.Context, ev entity.Event) error {
	req := ev.Cleanup
	if req == nil {
		return fmt.Errorf("Cleanup - Handle: event has no cleanup request")
	}

	targets := h.targeter.BlobTargets(dto.RawMessage{Body: req.Body, Attributes: req.Attributes})

	if len(targets) == 0 {
		bucket, key := req.Attributes[classify.AttrBucket], req.Attributes[classify.AttrKey]
		if bucket != "" && key != "" {
			targets = []entity.BlobRef{{Bucket: bucket, Key: key}}
		}
	}

	if len(targets) == 0 {
		candidates := heuristicTargets(req.Body)
		if len(candidates) == 0 {
			h.logger.Warn("Cleanup - Handle: no blob reference in message, nothing to delete")
			h.metrics.Cleanup("no_target")
			return nil
		}

		if !h.heuristicDelete {
			for _, c := range candidates {
				h.logger.Warn("Cleanup - Handle: unstructured message names %s, not deleting", c)
			}
			h.metrics.Cleanup("heuristic_skipped")
			return nil
		}

		targets = candidates
	}

	for _, ref := range targets {
		if err := h.remove(ctx, ref); err != nil {
			return err
		}
	}

	return nil
}

func (h *Cleanup) remove(ctx context.Context, ref entity.BlobRef) error {
	exists, err := h.blobs.Exists(ctx, ref)
	if err != nil {
		return fmt.Errorf("Cleanup - remove - h.blobs.Exists: %w", err)
	}
	if !exists {
		h.logger.Info("Cleanup - remove: %s already absent", ref)
		h.metrics.Cleanup("absent")
		return nil
	}

	if err := h.blobs.Delete(ctx, ref); err != nil {
		return fmt.Errorf("Cleanup - remove - h.blobs.Delete: %w", err)
	}

	h.logger.Info("Cleanup - remove: deleted %s", ref)
	h.metrics.Cleanup("deleted")

	return nil
}

// The patterns tolerate the escaped quotes of a JSON string nested in JSON.
var (
	bucketObjectPattern = regexp.MustCompile(`\\*"bucket\\*"\s*:\s*\{[^{}]*?\\*"name\\*"\s*:\s*\\*"([^"\\]+)`)
	bucketStringPattern = regexp.MustCompile(`\\*"bucket\\*"\s*:\s*\\*"([^"\\]+)`)
	keyPattern          = regexp.MustCompile(`\\*"key\\*"\s*:\s*\\*"([^"\\]+)`)
)

func heuristicTargets(body []byte) []entity.BlobRef {
	var buckets []string
	for _, m := range bucketObjectPattern.FindAllSubmatch(body, -1) {
		buckets = append(buckets, string(m[1]))
	}
	if len(buckets) == 0 {
		for _, m := range bucketStringPattern.FindAllSubmatch(body, -1) {
			buckets = append(buckets, string(m[1]))
		}
	}

	var keys []string
	for _, m := range keyPattern.FindAllSubmatch(body, -1) {
		key := string(m[1])
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		keys = append(keys, key)
	}

	if len(buckets) == 0 || len(keys) == 0 {
		return nil
	}

	refs := make([]entity.BlobRef, 0, len(keys))
	for i, key := range keys {
		bucket := buckets[0]
		if i < len(buckets) {
			bucket = buckets[i]
		}
		refs = append(refs, entity.BlobRef{Bucket: bucket, Key: key})
	}

	return refs
}
