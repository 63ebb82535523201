package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"lpgen/internal/services"
)

func jobDownloadHandler(c *fiber.Ctx) error {
	svc, err := jobService(c)
	if svc == nil {
		return err
	}

	id := c.Params("id")
	c.Locals("job_id", id)
	f, filename, err := svc.Download(c.UserContext(), id)
	switch {
	case errors.Is(err, services.ErrNotFound):
		return notFound(c, "job not found")
	case errors.Is(err, services.ErrNotReady):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "JOB_NOT_COMPLETED",
			Error:   "job is not completed yet",
		})
	case errors.Is(err, services.ErrBundleMissing):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false,
			Code:    "BUNDLE_MISSING",
			Error:   "bundle file is missing for this job",
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, contentDisposition(filename))
	// the stream is closed once the body has been written
	return c.SendStream(f, int(info.Size()))
}

func contentDisposition(filename string) string {
	filename = strings.ReplaceAll(filename, `"`, "")
	return fmt.Sprintf(`attachment; filename="%s"`, filename)
}
