package handlers

import (
	"campushub/server/internal/apperr"
	"campushub/server/internal/files"
	"campushub/server/internal/middleware"
	"campushub/server/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UploadFile stores one course-material file with its metadata
func (h *Handlers) UploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.Validation("No file uploaded")
	}

	f, err := fh.Open()
	if err != nil {
		return apperr.Validation("Failed to read uploaded file")
	}
	defer f.Close()

	rec, err := h.library.Upload(c.UserContext(), middleware.GetUserID(c), files.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}, files.Metadata{
		FileType:    c.FormValue("fileType"),
		Description: c.FormValue("description"),
		Course:      c.FormValue("course"),
		Semester:    c.FormValue("semester"),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, rec)
}

// ListFiles returns catalog entries filtered by course, fileType and semester
func (h *Handlers) ListFiles(c *fiber.Ctx) error {
	recs, err := h.library.List(c.UserContext(), models.FileFilter{
		Course:   c.Query("course"),
		FileType: c.Query("fileType"),
		Semester: c.Query("semester"),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, nonNil(recs))
}

// SearchFiles matches ?q against file names and descriptions
func (h *Handlers) SearchFiles(c *fiber.Ctx) error {
	recs, err := h.library.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, nonNil(recs))
}

// DownloadFile streams a stored file under its original name
func (h *Handlers) DownloadFile(c *fiber.Ctx) error {
	rec, body, err := h.library.Open(c.UserContext(), c.Params("fileId"))
	if err != nil {
		return err
	}

	c.Attachment(rec.OriginalName)
	if rec.ContentType != "" {
		c.Set(fiber.HeaderContentType, rec.ContentType)
	}
	// fasthttp closes body once it is sent
	return c.SendStream(body, int(rec.Size))
}

// DeleteFile removes a file. Only its uploader may do so.
func (h *Handlers) DeleteFile(c *fiber.Ctx) error {
	if err := h.library.Delete(c.UserContext(), middleware.GetUserID(c), c.Params("fileId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "File deleted successfully",
	})
}

func nonNil(recs []models.FileRecord) []models.FileRecord {
	if recs == nil {
		return []models.FileRecord{}
	}
	return recs
}
