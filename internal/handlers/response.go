package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/middleware"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/services"
	"github.com/sjperalta/fintera-contracts/internal/validation"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// Response is the envelope of every JSON answer
type Response struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Summary any               `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Response{Success: true, Data: data, Message: message})
}

// respondError maps err to its status code and stable kind. Unexpected
// errors are logged, reported to Sentry and answered generically.
func respondError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		respondValidationError(c, ve)
		return
	}

	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.Error("request failed", "path", c.FullPath(), "kind", string(kind), "error", err)
		if status != http.StatusBadGateway {
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				hub.CaptureException(err)
			} else {
				sentry.CaptureException(err)
			}
			message = "An unexpected error occurred"
		}
	}

	c.JSON(status, Response{Success: false, Error: string(kind), Message: message})
}

// respondValidationError reports request binding failures per field
func respondValidationError(c *gin.Context, ve validator.ValidationErrors) {
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[toJSONFieldName(fe.Field())] = formatValidationError(fe)
	}
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   string(apperr.KindInvalidInput),
		Message: "One or more fields failed validation",
		Fields:  fields,
	})
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "email":
		return "Must be a valid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "dive":
		return "Contains an invalid item"
	}
	return fmt.Sprintf("Failed the %s check", fe.Tag())
}

// toJSONFieldName converts a Go struct field name to its camelCase form
func toJSONFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// bindJSON binds the body, accepting the payload nested under key or flat
func bindJSON(c *gin.Context, key string, obj any) bool {
	if err := BindNestedOrFlat(c, key, obj); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			respondValidationError(c, ve)
			return false
		}
		respondError(c, apperr.New(apperr.KindInvalidInput, "invalid request body: %v", err))
		return false
	}
	return true
}

// actorFrom builds the acting user from the authenticated request
func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:    middleware.GetUserID(c),
		Email:     middleware.GetUserEmail(c),
		Role:      middleware.GetUserRole(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// dates collects the first parse failure across several date fields
type dates struct {
	err error
}

// parse reads a date field; an empty value stays zero for the engines to reject
func (d *dates) parse(field, value string) time.Time {
	if d.err != nil || value == "" {
		return time.Time{}
	}
	t, err := validation.ParseDate(field, value)
	d.err = err
	return t
}

func (d *dates) optional(field string, value *string) *time.Time {
	if d.err != nil || value == nil || *value == "" {
		return nil
	}
	t, err := validation.ParseDate(field, *value)
	if err != nil {
		d.err = err
		return nil
	}
	return &t
}

func (d *dates) query(c *gin.Context, name string) *time.Time {
	v := c.Query(name)
	return d.optional(name, &v)
}

// queryBool reads a boolean query flag, defaulting to false
func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

// queryInt reads an integer query param, defaulting to def
func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// listQuery reads the paging params shared by the list endpoints
func listQuery(c *gin.Context) *repository.ListQuery {
	q := repository.NewListQuery()
	q.Page = queryInt(c, "page", 1)
	q.PerPage = queryInt(c, "limit", 20)
	q.Search = c.Query("search")
	q.Normalize()
	return q
}

func respondPage(c *gin.Context, data any, total int64, q *repository.ListQuery) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Summary: newPagination(q.Page, q.PerPage, total),
	})
}

func newPagination(page, limit int, total int64) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}
