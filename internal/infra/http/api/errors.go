package api

import (
	"errors"
	"net/http"

	"apphost/internal/domain/model"
	"apphost/pkg/log"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Stage  string            `json:"stage,omitempty"`
	Tool   string            `json:"tool,omitempty"`
	Detail string            `json:"detail,omitempty"`
}

// errorHandler maps the domain error taxonomy onto HTTP responses.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorResponseFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		log.Warn("Failed to write error response", "error", err)
	}
}

func errorResponseFor(err error) (int, errorResponse) {
	var (
		validation *model.ValidationError
		duplicate  *model.DuplicateError
		stage      *model.StageError
		tool       *model.ToolError
		httpErr    *echo.HTTPError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: validation.Fields}
	case errors.As(err, &duplicate):
		return http.StatusBadRequest, errorResponse{
			Error:  duplicate.Error(),
			Fields: map[string]string{duplicate.Field: duplicate.Error()},
		}
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, model.ErrNotPermitted):
		return http.StatusForbidden, errorResponse{Error: "forbidden"}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.As(err, &httpErr):
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, errorResponse{Error: msg}
	}

	resp := errorResponse{Error: "internal server error"}
	if errors.As(err, &stage) {
		resp.Error = err.Error()
		resp.Stage = string(stage.Stage)
	}
	if errors.As(err, &tool) {
		resp.Error = err.Error()
		resp.Tool = tool.Tool
		resp.Detail = tool.Output
	}
	return http.StatusInternalServerError, resp
}
