// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Все ответы сервера имеют
// форму {"success": true, "data": ...} либо {"success": false, "error": {...}},
// плюс блок meta с request_id и временем ответа.
package response

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
)

// Коды ошибок, которые сервер отдает клиентам. Набор закрыт, новые коды
// добавляются только вместе с обработкой на стороне SDK.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeDatabaseError      = "DATABASE_ERROR"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
type Response struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *ErrorObj `json:"error,omitempty"`
	Meta    Meta      `json:"meta"`
}

// ErrorObj — тело ошибки внутри конверта.
type ErrorObj struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta — служебный блок каждого ответа.
type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Page — страница списка с данными пагинации.
// Номера страниц начинаются с 1.
type Page struct {
	Items      any `json:"items"`
	Total      int `json:"total"`
	PageNum    int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPage собирает страницу, вычисляя total_pages округлением вверх.
func NewPage(items any, total, page, pageSize int) Page {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return Page{
		Items:      items,
		Total:      total,
		PageNum:    page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

func meta(r *http.Request) Meta {
	return Meta{
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// OK пишет успешный ответ с данными и статусом 200.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	render.JSON(w, r, Response{Success: true, Data: data, Meta: meta(r)})
}

// Created пишет успешный ответ со статусом 201.
func Created(w http.ResponseWriter, r *http.Request, data any) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Response{Success: true, Data: data, Meta: meta(r)})
}

// Accepted пишет пустой успешный ответ со статусом 202. Используется для
// операций, исход которых не должен раскрывать существование адресата.
func Accepted(w http.ResponseWriter, r *http.Request, data any) {
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, Response{Success: true, Data: data, Meta: meta(r)})
}

// Err пишет ответ с ошибкой, указанным HTTP-статусом и кодом.
func Err(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, Response{
		Success: false,
		Error:   &ErrorObj{Code: code, Message: msg},
		Meta:    meta(r),
	})
}

// Internal пишет стандартный 500 ответ.
func Internal(w http.ResponseWriter, r *http.Request) {
	Err(w, r, http.StatusInternalServerError, CodeInternalError, "internal server error")
}

// ValidationError формирует 422 ответ на основе ошибок валидации.
// Каждое нарушение попадает в details отдельной строкой.
func ValidationError(w http.ResponseWriter, r *http.Request, errs validator.ValidationErrors) {
	var details []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			details = append(details, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			details = append(details, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "uuid":
			details = append(details, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		case "min":
			details = append(details, fmt.Sprintf("field %s is too short", err.Field()))
		case "max":
			details = append(details, fmt.Sprintf("field %s is too long", err.Field()))
		case "oneof":
			details = append(details, fmt.Sprintf("field %s must be one of the allowed values", err.Field()))
		default:
			details = append(details, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, Response{
		Success: false,
		Error: &ErrorObj{
			Code:    CodeValidationError,
			Message: strings.Join(details, ", "),
			Details: details,
		},
		Meta: meta(r),
	})
}
