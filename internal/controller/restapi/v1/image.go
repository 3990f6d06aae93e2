package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/andreyxaxa/photo-pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/photo-pipeline/internal/controller/restapi/v1/validate"
	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

const queued = "queued"

// @Summary  	Upload image
// @Description Stores the file in S3 and announces it to the pipeline. The pipeline decides whether the file is accepted.
// @Tags 		images
// @Accept 		mpfd
// @Produce 	json
// @Param 		file formData file true "Image file"
// @Success 	202 {object} response.Upload
// @Failure 	400 {object} response.Error "Empty file"
// @Failure 	413 {object} response.Error "File too large"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/upload [post]
func (r *V1) uploadImage(ctx *fiber.Ctx) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "file is required")
	}

	if file.Size == 0 {
		return errorResponse(ctx, http.StatusBadRequest, "file is empty")
	}

	if file.Size > validate.MaxFileSize {
		return errorResponse(ctx, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file size cant be more than %d bytes", validate.MaxFileSize))
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileReader, err := file.Open()
	if err != nil {
		r.logger.Error(err, "restapi - v1 - uploadImage")

		return errorResponse(ctx, http.StatusInternalServerError, "problems with opening the file")
	}
	defer fileReader.Close()

	ref, err := r.img.UploadNewImage(ctx.UserContext(), fileReader, file.Filename, contentType, file.Size)
	if err != nil {
		r.logger.Error(err, "restapi - v1 - uploadImage")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusAccepted).JSON(response.Upload{
		ID:          ref.Key,
		Bucket:      ref.Bucket,
		Size:        file.Size,
		ContentType: contentType,
	})
}

// @Summary 	Get image record
// @Tags 		images
// @Produce 	json
// @Param 		id path string true "Image ID (blob key)"
// @Success 	200 {object} entity.Image
// @Failure 	404 {object} response.Error "Image not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/image/{id} [get]
func (r *V1) getImage(ctx *fiber.Ctx) error {
	id, ok := imageID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	image, err := r.img.GetRecord(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "image not found")
		}
		r.logger.Error(err, "restapi - v1 - getImage")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(image)
}

// @Summary 	Request a metadata change
// @Tags 		images
// @Accept 		json
// @Produce 	json
// @Param 		id   path string          true "Image ID (blob key)"
// @Param 		body body metadataRequest true "Field and value"
// @Success 	202 {object} response.Accepted
// @Failure 	400 {object} response.Error "Invalid request"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/image/{id}/metadata [post]
func (r *V1) updateMetadata(ctx *fiber.Ctx) error {
	id, ok := imageID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	var req metadataRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	switch {
	case req.Field == "" || len(req.Field) > validate.MaxFieldLen:
		return errorResponse(ctx, http.StatusBadRequest, "field is required")
	case req.Value == "":
		return errorResponse(ctx, http.StatusBadRequest, "value is required")
	case len(req.Value) > validate.MaxValueLen:
		return errorResponse(ctx, http.StatusBadRequest,
			fmt.Sprintf("value cant be longer than %d bytes", validate.MaxValueLen))
	}

	err := r.img.RequestMetadataUpdate(ctx.UserContext(), id, req.Field, req.Value)
	if err != nil {
		r.logger.Error(err, "restapi - v1 - updateMetadata")

		return errorResponse(ctx, http.StatusInternalServerError, "queue problems")
	}

	return ctx.Status(http.StatusAccepted).JSON(response.Accepted{ID: id, Status: queued})
}

// @Summary 	Request a moderation decision
// @Tags 		images
// @Accept 		json
// @Produce 	json
// @Param 		id   path string        true "Image ID (blob key)"
// @Param 		body body statusRequest true "Status, reason and review date"
// @Success 	202 {object} response.Accepted
// @Failure 	400 {object} response.Error "Invalid request"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/image/{id}/status [post]
func (r *V1) updateStatus(ctx *fiber.Ctx) error {
	id, ok := imageID(ctx)
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	var req statusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	if req.Status == "" {
		return errorResponse(ctx, http.StatusBadRequest, "status is required")
	}
	if len(req.Reason) > validate.MaxReasonLen {
		return errorResponse(ctx, http.StatusBadRequest,
			fmt.Sprintf("reason cant be longer than %d bytes", validate.MaxReasonLen))
	}

	body := dto.StatusUpdateBody{Status: req.Status, Reason: req.Reason}

	err := r.img.RequestStatusUpdate(ctx.UserContext(), id, body, req.Date)
	if err != nil {
		r.logger.Error(err, "restapi - v1 - updateStatus")

		return errorResponse(ctx, http.StatusInternalServerError, "queue problems")
	}

	return ctx.Status(http.StatusAccepted).JSON(response.Accepted{ID: id, Status: queued})
}

func imageID(ctx *fiber.Ctx) (string, bool) {
	id := ctx.Params("id")
	if id == "" || len(id) > validate.MaxIDLen {
		return "", false
	}

	return id, true
}
