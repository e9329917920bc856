package api

import "encoding/json"

// Paths of the remote store HTTP API
const (
	PathRegister    = "/api/v1/auth/register"
	PathLogin       = "/api/v1/auth/login"
	PathHealth      = "/api/v1/health"
	PathCollections = "/api/v1/collections"
)

// DocumentListResponse содержит все документы коллекции
type DocumentListResponse struct {
	Collection string            `json:"collection"`
	Documents  []json.RawMessage `json:"documents"`
}

// HealthResponse ответ health-check эндпоинта
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
