package steps

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"wiki-console-be/pkg/wikiapi"
	"wiki-console-be/pkg/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CheckModel(ctx context.Context, cfg wikiapi.ModelConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *mockBackend) CreateModel(ctx context.Context, cfg wikiapi.ModelConfig) (string, error) {
	args := m.Called(ctx, cfg)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) CreateKnowledgeBase(ctx context.Context, req wikiapi.CreateKnowledgeBaseRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) CreateNode(ctx context.Context, req wikiapi.CreateNodeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

const validModel = `{"provider":"openai","model":"gpt-4o","base_url":"https://api.example.com","api_key":"k"}`

func TestParseKeys(t *testing.T) {
	assert.Equal(t, DefaultKeys, ParseKeys(""))
	assert.Equal(t, []string{"model", "import", "complete"}, ParseKeys(" model, import ,,complete "))
}

func TestBuildDefaultFlow(t *testing.T) {
	decorator := wizard.NewDecorator(nil, nil, "", nil)
	defs, err := Build(nil, Dependencies{Decorator: decorator})

	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "模型配置", defs[0].Label)
	assert.Equal(t, wizard.HardBlock, defs[0].Policy)
	assert.True(t, defs[1].ResolvesKnowledgeBase)
	assert.Equal(t, wizard.FailSoft, defs[1].Policy)
	assert.NotNil(t, defs[1].After)
	assert.Nil(t, defs[2].Controller)
}

func TestBuildWithDecorateStepDropsHook(t *testing.T) {
	decorator := wizard.NewDecorator(nil, nil, "", nil)
	defs, err := Build([]string{KeyModel, KeyKbConfig, KeyImport, KeyDecorate, KeyComplete}, Dependencies{Decorator: decorator})

	require.NoError(t, err)
	assert.Nil(t, defs[1].After)
	assert.IsType(t, &DecorateStep{}, defs[3].Controller)
}

func TestBuildRejectsBadKeys(t *testing.T) {
	_, err := Build([]string{"model", "unknown"}, Dependencies{})
	assert.ErrorContains(t, err, "unknown")

	_, err = Build([]string{"model", "model"}, Dependencies{})
	assert.ErrorContains(t, err, "twice")
}

func TestModelStep(t *testing.T) {
	tests := []struct {
		name           string
		form           string
		checkErr       error
		wantValidation bool
		wantErr        bool
	}{
		{name: "missing form", form: "", wantValidation: true, wantErr: true},
		{name: "invalid json", form: `{`, wantValidation: true, wantErr: true},
		{name: "missing model", form: `{"provider":"openai","base_url":"https://x.io"}`, wantValidation: true, wantErr: true},
		{name: "backend rejects model", form: validModel, checkErr: &wikiapi.APIError{StatusCode: 400, Message: "bad model"}, wantValidation: true, wantErr: true},
		{name: "backend down", form: validModel, checkErr: &wikiapi.APIError{StatusCode: 502, Message: "bad gateway"}, wantErr: true},
		{name: "ok", form: validModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(mockBackend)
			api.On("CheckModel", mock.Anything, mock.MatchedBy(func(cfg wikiapi.ModelConfig) bool { return cfg.Type == "chat" })).Return(tt.checkErr).Maybe()
			api.On("CreateModel", mock.Anything, mock.Anything).Return("model-1", nil).Maybe()
			step := &ModelStep{api: api}

			_, err := step.Submit(context.Background(), wizard.Snapshot{}, json.RawMessage(tt.form))

			if !tt.wantErr {
				require.NoError(t, err)
				api.AssertCalled(t, "CreateModel", mock.Anything, mock.Anything)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantValidation, wizard.IsValidation(err))
			api.AssertNotCalled(t, "CreateModel", mock.Anything, mock.Anything)
		})
	}
}

func TestKnowledgeBaseStepStoresID(t *testing.T) {
	api := new(mockBackend)
	api.On("CreateKnowledgeBase", mock.Anything, wikiapi.CreateKnowledgeBaseRequest{
		Name:           "Docs",
		AccessSettings: wikiapi.AccessSettings{Hosts: []string{"docs.local"}, Ports: []int{80}},
	}).Return("kb-42", nil)

	var stored string
	step := &KnowledgeBaseStep{api: api, store: func(ctx context.Context, kbID string) error {
		stored = kbID
		return nil
	}}

	_, err := step.Submit(context.Background(), wizard.Snapshot{}, json.RawMessage(`{"name":"Docs","hosts":["docs.local"],"ports":[80]}`))

	require.NoError(t, err)
	assert.Equal(t, "kb-42", stored)
}

func TestKnowledgeBaseStepRequiresPort(t *testing.T) {
	step := &KnowledgeBaseStep{api: new(mockBackend)}

	_, err := step.Submit(context.Background(), wizard.Snapshot{}, json.RawMessage(`{"name":"Docs","hosts":["docs.local"]}`))

	assert.True(t, wizard.IsValidation(err))
}

func TestKnowledgeBaseStepStoreFailure(t *testing.T) {
	api := new(mockBackend)
	api.On("CreateKnowledgeBase", mock.Anything, mock.Anything).Return("kb-1", nil)
	step := &KnowledgeBaseStep{api: api, store: func(ctx context.Context, kbID string) error {
		return errors.New("redis down")
	}}

	_, err := step.Submit(context.Background(), wizard.Snapshot{}, json.RawMessage(`{"name":"Docs","hosts":["h"],"ssl_ports":[443]}`))

	require.Error(t, err)
	assert.False(t, wizard.IsValidation(err))
}

func TestImportStep(t *testing.T) {
	api := new(mockBackend)
	api.On("CreateNode", mock.Anything, mock.MatchedBy(func(req wikiapi.CreateNodeRequest) bool { return req.Name == "Intro" })).Return("n1", nil)
	api.On("CreateNode", mock.Anything, mock.MatchedBy(func(req wikiapi.CreateNodeRequest) bool { return req.Name == "FAQ" })).Return("n2", nil)
	step := &ImportStep{api: api}
	form := json.RawMessage(`{"documents":[{"name":"Intro","content":"# hi"},{"name":"FAQ"}]}`)

	_, err := step.Submit(context.Background(), wizard.Snapshot{}, form)
	assert.True(t, wizard.IsValidation(err))

	res, err := step.Submit(context.Background(), wizard.Snapshot{KnowledgeBaseID: "kb-1"}, form)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, res.NodeIDs)
}
