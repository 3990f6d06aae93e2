package v1

import (
	"github.com/andreyxaxa/photo-pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/photo-pipeline/internal/usecase"
	"github.com/andreyxaxa/photo-pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

type V1 struct {
	img    usecase.ImageUseCase
	logger logger.Interface
}

func errorResponse(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(response.Error{Error: msg})
}
