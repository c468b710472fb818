package wizard

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"wiki-console-be/internal/pkg/logger"
)

const (
	DefaultReleaseMessage = "创建 Wiki 站点"

	tagDateLayout   = "20060102"
	tagSuffixLength = 6
	tagSuffixChars  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ReleaseRequest snapshots a set of nodes of a knowledge base under a tag.
type ReleaseRequest struct {
	KbId    string   `json:"kb_id"`
	Message string   `json:"message"`
	Tag     string   `json:"tag"`
	NodeIds []string `json:"node_ids"`
}

// ReleaseHandle identifies a created release.
type ReleaseHandle struct {
	Id  string `json:"id"`
	Tag string `json:"tag"`
}

type ReleaseAPI interface {
	CreateRelease(ctx context.Context, req ReleaseRequest) (*ReleaseHandle, error)
}

// PublishCoordinator builds and submits the release of a freshly created
// knowledge base. It never retries.
type PublishCoordinator struct {
	api     ReleaseAPI
	message string
	logger  logger.ILogger

	now    func() time.Time
	suffix func(n int) string
}

func NewPublishCoordinator(api ReleaseAPI, message string, log logger.ILogger) *PublishCoordinator {
	if message == "" {
		message = DefaultReleaseMessage
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PublishCoordinator{
		api:     api,
		message: message,
		logger:  log,
		now:     time.Now,
		suffix:  randomSuffix,
	}
}

func (p *PublishCoordinator) Publish(ctx context.Context, kbID string, nodeIDs []string) (*ReleaseHandle, error) {
	if kbID == "" {
		return nil, &PublishError{Err: ErrMissingKnowledgeBase}
	}

	ids := make([]string, len(nodeIDs))
	copy(ids, nodeIDs)
	req := ReleaseRequest{
		KbId:    kbID,
		Message: p.message,
		Tag:     ReleaseTag(p.now(), p.suffix(tagSuffixLength)),
		NodeIds: ids,
	}

	handle, err := p.api.CreateRelease(ctx, req)
	if err != nil {
		p.logger.Error("PUBLISH", "Release submission failed", map[string]interface{}{
			"kb_id": kbID,
			"tag":   req.Tag,
			"error": err.Error(),
		})
		return nil, &PublishError{KbId: kbID, Err: err}
	}
	if handle == nil {
		handle = &ReleaseHandle{}
	}
	if handle.Tag == "" {
		handle.Tag = req.Tag
	}

	p.logger.Info("PUBLISH", "Release created", map[string]interface{}{
		"kb_id":      kbID,
		"release_id": handle.Id,
		"tag":        handle.Tag,
		"node_ids":   len(ids),
	})
	return handle, nil
}

// ReleaseTag formats a tag as YYYYMMDD-suffix.
func ReleaseTag(now time.Time, suffix string) string {
	return now.Format(tagDateLayout) + "-" + suffix
}

// randomSuffix avoids tag collisions; it is not meant to be unguessable.
func randomSuffix(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(tagSuffixChars[rand.Intn(len(tagSuffixChars))])
	}
	return b.String()
}
