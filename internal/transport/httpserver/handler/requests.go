package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	pedigreedomain "pedigree-chart-go/internal/domain/pedigree"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

// chartRequest is the JSON body of POST /add and of edits, or the decoded HTML
// form. On edit a non-zero Generations must equal the chart's depth.
type chartRequest struct {
	Slug        string                        `json:"slug" validate:"required,max=64"`
	Notes       string                        `json:"notes" validate:"max=10000"`
	Generations int                           `json:"generations" validate:"omitempty,min=1,max=8"`
	Root        *pedigreedomain.AncestorInput `json:"root"`
}

func (req chartRequest) input() pedigreedomain.ChartInput {
	return pedigreedomain.ChartInput{
		Slug:        req.Slug,
		Notes:       req.Notes,
		Generations: req.Generations,
		Root:        req.Root,
	}
}

// decodeChartRequest reads either a nested JSON tree or the flat form fields.
// Edits address the chart by URL and skip the slug check.
func (h *Handlers) decodeChartRequest(w http.ResponseWriter, r *http.Request, requireSlug bool) (chartRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req chartRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &req); err != nil {
			return chartRequest{}, fmt.Errorf("invalid json body: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return chartRequest{}, fmt.Errorf("invalid form: %w", err)
		}
		req.Slug = r.PostForm.Get("slug")
		req.Notes = r.PostForm.Get("notes")
		req.Root = pedigreedomain.InputFromFields(r.PostForm, h.Charts.Generations())
	}

	req.Slug = strings.TrimSpace(req.Slug)
	var err error
	if requireSlug {
		err = validate.Struct(req)
	} else {
		err = validate.StructExcept(req, "Slug")
	}
	if err != nil {
		return req, formatValidationError(err)
	}
	return req, nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "max", "min":
			messages = append(messages, fmt.Sprintf("%s must be %s %s", field, boundWord(e.Tag()), e.Param()))
		default:
			messages = append(messages, field+" is invalid")
		}
	}
	return errors.New(strings.Join(messages, "; "))
}

func boundWord(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}
