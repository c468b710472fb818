package wikiapi

import (
	"context"
	"net/http"
)

type AccessSettings struct {
	Hosts    []string `json:"hosts"`
	Ports    []int    `json:"ports"`
	SSLPorts []int    `json:"ssl_ports"`
}

type CreateKnowledgeBaseRequest struct {
	Name           string         `json:"name"`
	AccessSettings AccessSettings `json:"access_settings"`
}

type KnowledgeBase struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) CreateKnowledgeBase(ctx context.Context, req CreateKnowledgeBaseRequest) (string, error) {
	var res struct {
		Id string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/knowledge_base", nil, req, &res); err != nil {
		return "", err
	}
	return res.Id, nil
}

func (c *Client) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	list := make([]KnowledgeBase, 0)
	if err := c.do(ctx, http.MethodGet, "/api/v1/knowledge_base/list", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
