package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/outreach/pkg/api"
)

// TokenSource returns the bearer token for the current session.
// An empty token sends the request unauthenticated; an error fails the
// request as Transient.
type TokenSource func(ctx context.Context) (string, error)

// Option настраивает Client
type Option func(*Client)

// WithTokenSource sets the bearer token provider
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client представляет HTTP клиент удалённого хранилища документов
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
}

// NewClient создает новый клиент удалённого хранилища
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the remote store address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, api.PathRegister, req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, api.PathLogin, req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, api.PathHealth, nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Put creates or replaces the document id in collection. Used for both add and update.
func (c *Client) Put(ctx context.Context, collection, id string, doc json.RawMessage) error {
	if err := c.doRequest(ctx, http.MethodPut, documentPath(collection, id), doc, nil); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the document. A missing document is reported as Rejected.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.doRequest(ctx, http.MethodDelete, documentPath(collection, id), nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get fetches a single document
func (c *Client) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var doc json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, documentPath(collection, id), nil, &doc); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// List fetches every document of a collection
func (c *Client) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	var resp api.DocumentListResponse
	path := api.PathCollections + "/" + url.PathEscape(collection)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return resp.Documents, nil
}

func documentPath(collection, id string) string {
	return api.PathCollections + "/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

// doRequest выполняет HTTP запрос. Все ошибки возвращаются как *Error.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindRejected, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &Error{Kind: KindRejected, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			// нет действующей сессии: после login запрос пройдёт, очередь не должна теряться
			return &Error{Kind: KindTransient, Err: fmt.Errorf("failed to get access token: %w", err)}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// сеть недоступна, таймаут или отмена: повторяемо
		return &Error{Kind: KindTransient, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransient, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{Kind: classifyStatus(resp.StatusCode), StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			e.Message = errResp.Error
			if errResp.Message != "" {
				e.Message += ": " + errResp.Message
			}
		} else {
			e.Message = string(bytes.TrimSpace(respBody))
		}
		return e
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &Error{Kind: KindRejected, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}
