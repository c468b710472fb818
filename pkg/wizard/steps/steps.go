package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"wiki-console-be/pkg/wikiapi"
	"wiki-console-be/pkg/wizard"
)

const (
	KeyModel    = "model"
	KeyKbConfig = "kb_config"
	KeyImport   = "import"
	KeyPublish  = "publish"
	KeyTest     = "test"
	KeyDecorate = "decorate"
	KeyComplete = "complete"
)

// DefaultKeys is the step list of the shipped create-site flow.
var DefaultKeys = []string{KeyModel, KeyKbConfig, KeyComplete}

var labels = map[string]string{
	KeyModel:    "模型配置",
	KeyKbConfig: "配置监听",
	KeyImport:   "录入文档",
	KeyPublish:  "发布内容",
	KeyTest:     "问答测试",
	KeyDecorate: "装饰页面",
	KeyComplete: "完成配置",
}

type ModelAPI interface {
	CheckModel(ctx context.Context, cfg wikiapi.ModelConfig) error
	CreateModel(ctx context.Context, cfg wikiapi.ModelConfig) (string, error)
}

type KnowledgeBaseAPI interface {
	CreateKnowledgeBase(ctx context.Context, req wikiapi.CreateKnowledgeBaseRequest) (string, error)
}

type NodeAPI interface {
	CreateNode(ctx context.Context, req wikiapi.CreateNodeRequest) (string, error)
}

// KnowledgeBaseIDWriter persists the id of the knowledge base created by the
// configuration step for the current operator.
type KnowledgeBaseIDWriter func(ctx context.Context, kbID string) error

type Dependencies struct {
	Models         ModelAPI
	KnowledgeBases KnowledgeBaseAPI
	Nodes          NodeAPI
	StoreKbID      KnowledgeBaseIDWriter
	Decorator      *wizard.Decorator
	Publisher      *wizard.PublishCoordinator
}

// ParseKeys splits a comma separated step list; an empty list yields the
// default flow.
func ParseKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return append([]string(nil), DefaultKeys...)
	}
	return keys
}

// Build returns the ordered step definitions for keys. The knowledge base
// step decorates the landing page itself unless a decorate step is listed.
func Build(keys []string, deps Dependencies) ([]wizard.StepDefinition, error) {
	if len(keys) == 0 {
		keys = DefaultKeys
	}
	hasDecorate := false
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := labels[k]; !ok {
			return nil, fmt.Errorf("unknown wizard step %q", k)
		}
		if seen[k] {
			return nil, fmt.Errorf("wizard step %q listed twice", k)
		}
		seen[k] = true
		hasDecorate = hasDecorate || k == KeyDecorate
	}

	defs := make([]wizard.StepDefinition, 0, len(keys))
	for _, k := range keys {
		def := wizard.StepDefinition{Key: k, Label: labels[k]}
		switch k {
		case KeyModel:
			def.Controller = &ModelStep{api: deps.Models}
			def.Policy = wizard.HardBlock
		case KeyKbConfig:
			def.Controller = &KnowledgeBaseStep{api: deps.KnowledgeBases, store: deps.StoreKbID}
			def.Policy = wizard.FailSoft
			def.ResolvesKnowledgeBase = true
			if !hasDecorate && deps.Decorator != nil {
				def.After = deps.Decorator.Hook()
			}
		case KeyImport:
			def.Controller = &ImportStep{api: deps.Nodes}
			def.Policy = wizard.HardBlock
		case KeyPublish:
			def.Controller = &PublishStep{publisher: deps.Publisher}
			def.Policy = wizard.FailSoft
		case KeyDecorate:
			def.Controller = &DecorateStep{decorator: deps.Decorator}
			def.Policy = wizard.FailSoft
		case KeyTest, KeyComplete:
			// pass-through pages
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ModelStep checks the operator's model against the backend, then saves it.
type ModelStep struct {
	api ModelAPI
}

func (s *ModelStep) Submit(ctx context.Context, session wizard.Snapshot, form json.RawMessage) (wizard.StepResult, error) {
	cfg, err := decodeForm[wikiapi.ModelConfig](KeyModel, form)
	if err != nil {
		return wizard.StepResult{}, err
	}
	if cfg.Type == "" {
		cfg.Type = "chat"
	}
	if err := s.api.CheckModel(ctx, cfg); err != nil {
		return wizard.StepResult{}, backendError(KeyModel, err)
	}
	if _, err := s.api.CreateModel(ctx, cfg); err != nil {
		return wizard.StepResult{}, backendError(KeyModel, err)
	}
	return wizard.StepResult{}, nil
}

type KnowledgeBaseForm struct {
	Name     string   `json:"name" validate:"required,max=100"`
	Hosts    []string `json:"hosts" validate:"required,min=1,dive,required"`
	Ports    []int    `json:"ports" validate:"dive,min=1,max=65535"`
	SSLPorts []int    `json:"ssl_ports" validate:"dive,min=1,max=65535"`
}

// KnowledgeBaseStep creates the knowledge base and stores its id where the
// sequencer reads it back.
type KnowledgeBaseStep struct {
	api   KnowledgeBaseAPI
	store KnowledgeBaseIDWriter
}

func (s *KnowledgeBaseStep) Submit(ctx context.Context, session wizard.Snapshot, form json.RawMessage) (wizard.StepResult, error) {
	f, err := decodeForm[KnowledgeBaseForm](KeyKbConfig, form)
	if err != nil {
		return wizard.StepResult{}, err
	}
	if len(f.Ports)+len(f.SSLPorts) == 0 {
		return wizard.StepResult{}, wizard.NewValidationError(KeyKbConfig, "at least one port or ssl port is required")
	}

	id, err := s.api.CreateKnowledgeBase(ctx, wikiapi.CreateKnowledgeBaseRequest{
		Name: f.Name,
		AccessSettings: wikiapi.AccessSettings{
			Hosts:    f.Hosts,
			Ports:    f.Ports,
			SSLPorts: f.SSLPorts,
		},
	})
	if err != nil {
		return wizard.StepResult{}, backendError(KeyKbConfig, err)
	}
	if id == "" {
		return wizard.StepResult{}, fmt.Errorf("create knowledge base: %w", wizard.ErrMissingKnowledgeBase)
	}
	if s.store != nil {
		if err := s.store(ctx, id); err != nil {
			return wizard.StepResult{}, fmt.Errorf("store knowledge base id: %w", err)
		}
	}
	return wizard.StepResult{}, nil
}

type DocumentForm struct {
	Name    string `json:"name" validate:"required,max=255"`
	Content string `json:"content"`
}

type ImportForm struct {
	Documents []DocumentForm `json:"documents" validate:"required,min=1,dive"`
}

// ImportStep creates the operator's first documents; their ids become the
// session's selected nodes.
type ImportStep struct {
	api NodeAPI
}

func (s *ImportStep) Submit(ctx context.Context, session wizard.Snapshot, form json.RawMessage) (wizard.StepResult, error) {
	if session.KnowledgeBaseID == "" {
		return wizard.StepResult{}, wizard.NewValidationError(KeyImport, "knowledge base is not configured yet")
	}
	f, err := decodeForm[ImportForm](KeyImport, form)
	if err != nil {
		return wizard.StepResult{}, err
	}

	ids := make([]string, 0, len(f.Documents))
	for _, doc := range f.Documents {
		id, err := s.api.CreateNode(ctx, wikiapi.CreateNodeRequest{
			KbId:    session.KnowledgeBaseID,
			Name:    doc.Name,
			Content: doc.Content,
			Type:    wikiapi.NodeTypeDocument,
		})
		if err != nil {
			return wizard.StepResult{}, backendError(KeyImport, err)
		}
		ids = append(ids, id)
	}
	return wizard.StepResult{NodeIDs: ids}, nil
}

// PublishStep releases the selected nodes of the session's knowledge base.
type PublishStep struct {
	publisher *wizard.PublishCoordinator
}

func (s *PublishStep) Submit(ctx context.Context, session wizard.Snapshot, form json.RawMessage) (wizard.StepResult, error) {
	_, err := s.publisher.Publish(ctx, session.KnowledgeBaseID, session.SelectedNodeIDs)
	return wizard.StepResult{}, err
}

// DecorateStep applies the landing defaults as an explicit page.
type DecorateStep struct {
	decorator *wizard.Decorator
}

func (s *DecorateStep) Submit(ctx context.Context, session wizard.Snapshot, form json.RawMessage) (wizard.StepResult, error) {
	_, err := s.decorator.Apply(ctx, session.KnowledgeBaseID, session.SelectedNodeIDs)
	return wizard.StepResult{}, err
}
