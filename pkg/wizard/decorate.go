package wizard

import (
	"context"
	"fmt"

	"wiki-console-be/internal/pkg/logger"
	"wiki-console-be/pkg/settings"
)

// DefaultAppType is the app type of the public web site of a knowledge base.
const DefaultAppType = "1"

// AppSettingsAPI is the part of the wiki backend the decorator needs.
type AppSettingsAPI interface {
	GetAppSettings(ctx context.Context, kbID, appType string) (*settings.App, error)
	PutAppSettings(ctx context.Context, appID, kbID string, doc settings.Document) error
}

// Decorator applies the landing defaults to the web app of a knowledge base:
// fetch the current settings, merge the defaults in, persist the result.
type Decorator struct {
	api      AppSettingsAPI
	defaults settings.Document
	appType  string
	logger   logger.ILogger
}

func NewDecorator(api AppSettingsAPI, defaults settings.Document, appType string, log logger.ILogger) *Decorator {
	if appType == "" {
		appType = DefaultAppType
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Decorator{
		api:      api,
		defaults: defaults.Clone(),
		appType:  appType,
		logger:   log,
	}
}

// Apply runs fetch, merge and persist strictly in order and returns the
// persisted document. Every failure is a DependencyError.
func (d *Decorator) Apply(ctx context.Context, kbID string, nodeIDs []string) (settings.Document, error) {
	if kbID == "" {
		return nil, &DependencyError{Op: OpMergeSettings, Err: ErrMissingKnowledgeBase}
	}

	app, err := d.api.GetAppSettings(ctx, kbID, d.appType)
	if err != nil {
		return nil, &DependencyError{Op: OpFetchSettings, Err: err}
	}
	if app == nil || app.Id == "" {
		return nil, &DependencyError{Op: OpFetchSettings, Err: fmt.Errorf("%w: kb %s type %s", ErrMissingApp, kbID, d.appType)}
	}

	merged := settings.Merge(app.Settings, d.defaults, nodeIDs)

	if err := d.api.PutAppSettings(ctx, app.Id, kbID, merged); err != nil {
		return nil, &DependencyError{Op: OpPersistSettings, Err: err}
	}

	d.logger.Info("DECORATE", "Landing defaults applied", map[string]interface{}{
		"kb_id":    kbID,
		"app_id":   app.Id,
		"node_ids": len(nodeIDs),
	})
	return merged, nil
}

// Hook adapts Apply to run after a step, using the session's knowledge base
// and selected nodes.
func (d *Decorator) Hook() TransitionHook {
	return func(ctx context.Context, session Snapshot) error {
		_, err := d.Apply(ctx, session.KnowledgeBaseID, session.SelectedNodeIDs)
		return err
	}
}
