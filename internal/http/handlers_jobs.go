package http

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"lpgen/internal/services"
)

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Success: false,
		Code:    "NOT_FOUND",
		Error:   msg,
	})
}

func jobStatusHandler(c *fiber.Ctx) error {
	svc, err := jobService(c)
	if svc == nil {
		return err
	}

	id := c.Params("id")
	c.Locals("job_id", id)
	job, err := svc.Status(c.UserContext(), id)
	if err != nil {
		return notFound(c, "job not found")
	}
	return c.JSON(job)
}

func jobsListHandler(c *fiber.Ctx) error {
	svc, err := jobService(c)
	if svc == nil {
		return err
	}
	return c.JSON(JobsListResponse{Jobs: svc.List(c.UserContext())})
}

func jobRetryHandler(c *fiber.Ctx) error {
	svc, err := jobService(c)
	if svc == nil {
		return err
	}

	id := c.Params("id")
	newID, err := svc.Retry(c.UserContext(), id)
	if errors.Is(err, services.ErrNotFound) {
		return notFound(c, "original job or its request is unavailable")
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	c.Locals("job_id", newID)
	return c.JSON(GenerateResponse{JobID: newID})
}

// jobArtifactHandler serves one generated file for in-browser previews.
func jobArtifactHandler(c *fiber.Ctx) error {
	svc, err := jobService(c)
	if svc == nil {
		return err
	}

	id := c.Params("id")
	name := c.Params("name")
	c.Locals("job_id", id)
	data, err := svc.Artifact(c.UserContext(), id, name)
	if errors.Is(err, services.ErrNotFound) {
		return notFound(c, "artifact not found")
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" {
		c.Type(ext)
	}
	return c.Send(data)
}
