package wizard

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReleaseAPI struct {
	mock.Mock
}

func (m *mockReleaseAPI) CreateRelease(ctx context.Context, req ReleaseRequest) (*ReleaseHandle, error) {
	args := m.Called(ctx, req)
	handle, _ := args.Get(0).(*ReleaseHandle)
	return handle, args.Error(1)
}

var tagPattern = regexp.MustCompile(`^20240501-[a-z0-9]{6}$`)

func TestPublishBuildsReleaseRequest(t *testing.T) {
	api := new(mockReleaseAPI)
	api.On("CreateRelease", mock.Anything, mock.MatchedBy(func(req ReleaseRequest) bool {
		return req.KbId == "kb-1" &&
			req.Message == DefaultReleaseMessage &&
			tagPattern.MatchString(req.Tag) &&
			assert.ObjectsAreEqual([]string{"n1", "n2"}, req.NodeIds)
	})).Return(&ReleaseHandle{Id: "rel-1"}, nil)

	p := NewPublishCoordinator(api, "", nil)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	handle, err := p.Publish(context.Background(), "kb-1", []string{"n1", "n2"})

	require.NoError(t, err)
	assert.Equal(t, "rel-1", handle.Id)
	assert.Regexp(t, tagPattern, handle.Tag)
	api.AssertExpectations(t)
}

func TestPublishWrapsFailure(t *testing.T) {
	api := new(mockReleaseAPI)
	cause := errors.New("conflict")
	api.On("CreateRelease", mock.Anything, mock.Anything).Return(nil, cause).Once()

	p := NewPublishCoordinator(api, "custom", nil)

	_, err := p.Publish(context.Background(), "kb-1", nil)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "kb-1", pubErr.KbId)
	assert.ErrorIs(t, err, cause)
	api.AssertNumberOfCalls(t, "CreateRelease", 1)
}

func TestPublishWithoutKnowledgeBase(t *testing.T) {
	api := new(mockReleaseAPI)
	p := NewPublishCoordinator(api, "", nil)

	_, err := p.Publish(context.Background(), "", []string{"n1"})

	assert.ErrorIs(t, err, ErrMissingKnowledgeBase)
	api.AssertNotCalled(t, "CreateRelease", mock.Anything, mock.Anything)
}

func TestReleaseTag(t *testing.T) {
	assert.Equal(t, "20241231-abc123", ReleaseTag(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), "abc123"))

	suffix := randomSuffix(6)
	assert.Regexp(t, `^[a-z0-9]{6}$`, suffix)
	assert.Empty(t, randomSuffix(0))
}
