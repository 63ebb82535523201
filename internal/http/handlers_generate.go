package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"lpgen/internal/services"
)

func jobService(c *fiber.Ctx) (services.JobService, error) {
	svc, ok := c.Locals("jobs").(services.JobService)
	if !ok || svc == nil {
		return nil, c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   "job service not configured",
		})
	}
	return svc, nil
}

func generateHandler(c *fiber.Ctx) error {
	svc, err := jobService(c)
	if svc == nil {
		return err
	}

	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "VALIDATION_ERROR",
			Error:   "invalid JSON body",
		})
	}

	id, err := svc.Create(c.UserContext(), req)
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Success: false,
				Code:    "VALIDATION_ERROR",
				Error:   ve.Error(),
				Details: fiber.Map{"field": ve.Field},
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	c.Locals("job_id", id)
	return c.JSON(GenerateResponse{JobID: id})
}
