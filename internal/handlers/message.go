package handlers

import (
	"mime/multipart"
	"strings"
	"time"

	"campushub/server/internal/apperr"
	"campushub/server/internal/chat"
	"campushub/server/internal/files"
	"campushub/server/internal/middleware"
	"campushub/server/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ServerTimeHeader carries the watermark a client sends as its next since
const ServerTimeHeader = "X-Server-Time"

// SendMessageRequest is the JSON form of a text-only post
type SendMessageRequest struct {
	Text    string `json:"text"`
	ReplyTo string `json:"replyTo"`
}

func groupParam(c *fiber.Ctx) string {
	if id := c.Params("groupId"); id != "" {
		return id
	}
	return models.DefaultGroupID
}

// localISOLayout is ISO-8601 without a zone, read as UTC
const localISOLayout = "2006-01-02T15:04:05.999999999"

func parseSince(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		if t, err = time.ParseInLocation(localISOLayout, raw, time.UTC); err != nil {
			return nil, apperr.Validation("Invalid since timestamp, expected ISO-8601")
		}
	}
	return &t, nil
}

// GetMessages returns the group's messages newer than ?since, oldest first.
// The body is a bare array; the next watermark is in X-Server-Time.
func (h *Handlers) GetMessages(c *fiber.Ctx) error {
	since, err := parseSince(c.Query("since"))
	if err != nil {
		return err
	}

	batch, err := h.chat.Poll(c.UserContext(), middleware.GetUserID(c), groupParam(c), since)
	if err != nil {
		return err
	}

	c.Set(ServerTimeHeader, batch.ServerTime.UTC().Format(time.RFC3339Nano))
	msgs := batch.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	return c.JSON(msgs)
}

// SendMessage posts a message. Multipart bodies carry text, replyTo and up
// to the configured number of attachments; JSON bodies carry text only.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	in := chat.PostInput{
		CallerID: middleware.GetUserID(c),
		GroupID:  groupParam(c),
	}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Validation("Invalid multipart form")
		}
		in.Text = formValue(form, "text")
		in.ReplyToID = formValue(form, "replyTo")

		headers := form.File["attachments"]
		if len(headers) > h.chat.MaxAttachments() {
			return apperr.Validation("At most %d attachments per message", h.chat.MaxAttachments())
		}

		uploads, closeAll, err := openUploads(headers)
		defer closeAll()
		if err != nil {
			return err
		}
		in.Files = uploads
	} else {
		var req SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("Invalid request body")
		}
		in.Text = req.Text
		in.ReplyToID = req.ReplyTo
	}

	msg, err := h.chat.Post(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// openUploads opens every part. The returned func closes whatever was opened.
func openUploads(headers []*multipart.FileHeader) ([]files.Upload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	uploads := make([]files.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, apperr.Validation("Failed to read uploaded file %s", fh.Filename)
		}
		opened = append(opened, f)
		uploads = append(uploads, files.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}
