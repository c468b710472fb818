package wikiapi

import (
	"context"
	"net/http"

	"wiki-console-be/pkg/wizard"
)

func (c *Client) CreateRelease(ctx context.Context, req wizard.ReleaseRequest) (*wizard.ReleaseHandle, error) {
	var res struct {
		Id string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/knowledge_base/release", nil, req, &res); err != nil {
		return nil, err
	}
	return &wizard.ReleaseHandle{Id: res.Id, Tag: req.Tag}, nil
}
