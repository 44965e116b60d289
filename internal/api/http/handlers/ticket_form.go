package handlers

import (
	"encoding/json"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const imageField = "image"

// ticketForm is a create/update body decoded from multipart, JSON or
// urlencoded input. Only the first value of a repeated field is kept.
type ticketForm struct {
	values map[string]string
	files  []*multipart.FileHeader
}

func parseTicketForm(c *fiber.Ctx) (*ticketForm, error) {
	form := &ticketForm{values: map[string]string{}}
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		mf, err := c.MultipartForm()
		if err != nil {
			return nil, apperrors.NewValidationError("invalid multipart payload", nil)
		}
		for key, vals := range mf.Value {
			if len(vals) > 0 {
				form.values[key] = vals[0]
			}
		}
		form.files = mf.File[imageField]
	case strings.HasPrefix(contentType, fiber.MIMEApplicationJSON):
		raw := map[string]json.RawMessage{}
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &raw); err != nil {
				return nil, apperrors.NewValidationError("invalid payload", nil)
			}
		}
		for key, val := range raw {
			form.values[key] = jsonScalar(val)
		}
	default:
		c.Request().PostArgs().VisitAll(func(key, val []byte) {
			if _, seen := form.values[string(key)]; !seen {
				form.values[string(key)] = string(val)
			}
		})
	}
	return form, nil
}

// jsonScalar flattens a JSON value to the string a form field would carry.
// null becomes "", arrays and numbers keep their JSON text.
func jsonScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

func (f *ticketForm) value(key string) string {
	return f.values[key]
}

// optional returns nil when key was not sent at all.
func (f *ticketForm) optional(key string) *string {
	v, ok := f.values[key]
	if !ok {
		return nil
	}
	return &v
}

// removedImages decodes the JSON index list. Malformed input removes nothing.
func (f *ticketForm) removedImages() []int {
	raw := strings.TrimSpace(f.values["removedImages"])
	if raw == "" {
		return nil
	}
	var idx []int
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		return nil
	}
	return idx
}
