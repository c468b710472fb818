package wikiapi

import (
	"context"
	"net/http"
)

// ModelConfig describes an LLM endpoint the wiki uses for answering.
type ModelConfig struct {
	Provider string `json:"provider" validate:"required"`
	Model    string `json:"model" validate:"required"`
	BaseURL  string `json:"base_url" validate:"required,url"`
	APIKey   string `json:"api_key"`
	Type     string `json:"type" validate:"omitempty,oneof=chat embedding rerank"`
}

type checkModelResponse struct {
	Error string `json:"error"`
}

// CheckModel asks the backend to call the model once. A reachable backend
// that reports a model error returns an APIError with status 400.
func (c *Client) CheckModel(ctx context.Context, cfg ModelConfig) error {
	var res checkModelResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/model/check", nil, cfg, &res); err != nil {
		return err
	}
	if res.Error != "" {
		return &APIError{Method: http.MethodPost, Path: "/api/v1/model/check", StatusCode: http.StatusBadRequest, Message: res.Error}
	}
	return nil
}

// CreateModel stores the model configuration and returns its id.
func (c *Client) CreateModel(ctx context.Context, cfg ModelConfig) (string, error) {
	var res struct {
		Id string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/model", nil, cfg, &res); err != nil {
		return "", err
	}
	return res.Id, nil
}
