package wikiapi

import (
	"context"
	"net/http"
)

// NodeTypeDocument is a leaf document node; folders are type 1.
const NodeTypeDocument = 2

type CreateNodeRequest struct {
	KbId    string `json:"kb_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    int    `json:"type"`
}

func (c *Client) CreateNode(ctx context.Context, req CreateNodeRequest) (string, error) {
	if req.Type == 0 {
		req.Type = NodeTypeDocument
	}
	var res struct {
		Id string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/node", nil, req, &res); err != nil {
		return "", err
	}
	return res.Id, nil
}
