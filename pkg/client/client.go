// Package client содержит типизированный Go-клиент платформы a8n.tools.
//
// Все вызовы идут через версионированный корень API, сессионные cookies
// передаются автоматически. Ответы сервера разворачиваются из конверта
// {success, data} / {success, error}; любая ошибка транспорта или сервера
// приводится к закрытому перечню ErrorKind.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// ErrorKind закрытый перечень видов ошибок на границе клиента.
type ErrorKind string

const (
	// KindValidation данные запроса не прошли проверку.
	KindValidation ErrorKind = "validation"
	// KindAuth неверные учетные данные или истекший токен.
	KindAuth ErrorKind = "auth"
	// KindForbidden недостаточно прав.
	KindForbidden ErrorKind = "forbidden"
	// KindNotFound ресурс не найден.
	KindNotFound ErrorKind = "not_found"
	// KindConflict конфликт состояния, например занятый email.
	KindConflict ErrorKind = "conflict"
	// KindRateLimited превышен лимит запросов.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTransport сетевая ошибка или не-JSON ответ.
	KindTransport ErrorKind = "transport"
	// KindServer внутренняя ошибка сервера.
	KindServer ErrorKind = "server"
)

// ErrCodeBadContentType код ошибки для ответа с не-JSON content-type.
// Защищает от перехватывающих страниц, подменяющих ответ API.
const ErrCodeBadContentType = "BAD_CONTENT_TYPE"

// APIError ошибка вызова API.
type APIError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details []string
	Status  int
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// kindForCode сопоставляет серверный код ошибки виду ошибки клиента.
func kindForCode(code string) ErrorKind {
	switch code {
	case "VALIDATION_ERROR":
		return KindValidation
	case "INVALID_CREDENTIALS", "TOKEN_EXPIRED", "UNAUTHORIZED":
		return KindAuth
	case "FORBIDDEN":
		return KindForbidden
	case "NOT_FOUND":
		return KindNotFound
	case "CONFLICT":
		return KindConflict
	case "RATE_LIMITED":
		return KindRateLimited
	default:
		return KindServer
	}
}

// envelope конверт ответа сервера.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details,omitempty"`
	} `json:"error"`
}

// Client REST-клиент платформы.
type Client struct {
	baseURL     string
	hc          *http.Client
	accessToken string

	Auth         *AuthService
	Applications *ApplicationsService
	Memberships  *MembershipsService
	Admin        *AdminService
}

// Option настраивает клиента.
type Option func(*Client)

// WithHTTPClient подменяет http.Client, например для тестов.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// New создает клиента для указанного базового URL. Путь /v1 добавляется
// автоматически. Cookie jar включен, сессия живет в cookies.
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("client: cookie jar: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/v1",
		hc: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc.Jar == nil {
		c.hc.Jar = jar
	}

	c.Auth = &AuthService{c: c}
	c.Applications = &ApplicationsService{c: c}
	c.Memberships = &MembershipsService{c: c}
	c.Admin = &AdminService{c: c}
	return c, nil
}

// SetAccessToken выставляет bearer-токен для последующих запросов.
// Используется после имперсонации, когда cookie-сессия не подходит.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// do выполняет запрос и разворачивает конверт ответа в out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &APIError{Kind: KindTransport, Message: err.Error()}
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return &APIError{
			Kind:    KindTransport,
			Code:    ErrCodeBadContentType,
			Message: fmt.Sprintf("unexpected content-type %q", resp.Header.Get("Content-Type")),
			Status:  resp.StatusCode,
		}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error(), Status: resp.StatusCode}
	}

	if !env.Success {
		apiErr := &APIError{Kind: KindServer, Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Kind = kindForCode(env.Error.Code)
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Kind: KindTransport, Message: err.Error(), Status: resp.StatusCode}
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}
