package pipeline

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
)

// Router dispatches each kind to exactly one transition handler.
type Router struct {
	routes map[entity.Kind]usecase.TransitionHandler
	logger logger.Interface
}

func NewRouter(
	ingestion usecase.TransitionHandler,
	metadata usecase.TransitionHandler,
	status usecase.TransitionHandler,
	cleanup usecase.TransitionHandler,
	l logger.Interface,
) *Router {
	return &Router{
		routes: map[entity.Kind]usecase.TransitionHandler{
			entity.KindBlobCreated:    ingestion,
			entity.KindMetadataUpdate: metadata,
			entity.KindStatusUpdate:   status,
			entity.KindCleanup:        cleanup,
		},
		logger: l,
	}
}

// Route runs the handler for ev.Kind. A kind with no route is logged and
// ignored.
func (r *Router) Route(ctx context.Context, ev entity.Event) error {
	h, ok := r.routes[ev.Kind]
	if !ok || h == nil {
		r.logger.Warn("Router - Route: no handler for kind %q, skipping", ev.Kind)
		return nil
	}

	if err := h.Handle(ctx, ev); err != nil {
		return fmt.Errorf("Router - Route - %s: %w", ev.Kind, err)
	}

	return nil
}
