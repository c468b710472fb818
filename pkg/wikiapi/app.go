package wikiapi

import (
	"context"
	"net/http"
	"net/url"

	"wiki-console-be/pkg/settings"
)

type updateAppRequest struct {
	KbId     string            `json:"kb_id"`
	Settings settings.Document `json:"settings"`
}

// GetAppSettings returns the app of the given type bound to a knowledge base.
func (c *Client) GetAppSettings(ctx context.Context, kbID, appType string) (*settings.App, error) {
	query := url.Values{}
	query.Set("kb_id", kbID)
	query.Set("type", appType)

	var app settings.App
	if err := c.do(ctx, http.MethodGet, "/api/v1/app/detail", query, nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *Client) PutAppSettings(ctx context.Context, appID, kbID string, doc settings.Document) error {
	query := url.Values{}
	query.Set("id", appID)
	return c.do(ctx, http.MethodPut, "/api/v1/app", query, updateAppRequest{KbId: kbID, Settings: doc}, nil)
}
