package v1

import (
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewImageRoutes(apiV1Group fiber.Router, img usecase.ImageUseCase, l logger.Interface) {
	r := &V1{img: img, logger: l}

	{
		apiV1Group.Post("/upload", r.uploadImage)
		apiV1Group.Get("/image/:id", r.getImage)
		apiV1Group.Post("/image/:id/metadata", r.updateMetadata)
		apiV1Group.Post("/image/:id/status", r.updateStatus)
	}
}
