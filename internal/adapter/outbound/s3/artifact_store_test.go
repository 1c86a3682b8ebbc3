package s3

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/videogen/internal/domain/video"
	"github.com/uniedit/videogen/internal/shared/config"
)

type MockObjectPutter struct {
	mock.Mock
}

var _ ObjectPutter = (*MockObjectPutter)(nil)

func (m *MockObjectPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestArtifactStore_Archive(t *testing.T) {
	ctx := context.Background()
	artifact := &video.EncodedArtifact{Bytes: []byte("mp4 data"), MimeType: "video/mp4"}

	t.Run("uploads under prefix", func(t *testing.T) {
		putter := new(MockObjectPutter)
		putter.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			body, _ := io.ReadAll(in.Body)
			return aws.ToString(in.Bucket) == "videos" &&
				aws.ToString(in.Key) == "generated/abc.mp4" &&
				aws.ToString(in.ContentType) == "video/mp4" &&
				aws.ToInt64(in.ContentLength) == 8 &&
				string(body) == "mp4 data"
		})).Return(&s3.PutObjectOutput{}, nil)

		store := NewArtifactStore(putter, "videos", "generated", "")
		location, err := store.Archive(ctx, "abc", artifact)

		require.NoError(t, err)
		assert.Equal(t, "s3://videos/generated/abc.mp4", location)
		putter.AssertExpectations(t)
	})

	t.Run("public url", func(t *testing.T) {
		putter := new(MockObjectPutter)
		putter.On("PutObject", mock.Anything, mock.Anything).Return(&s3.PutObjectOutput{}, nil)

		store := NewArtifactStore(putter, "videos", "generated/", "https://cdn.example.com/")
		location, err := store.Archive(ctx, "models/veo/operations/op-1", &video.EncodedArtifact{Bytes: []byte("x"), MimeType: "video/webm"})

		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/generated/op-1.webm", location)
	})

	t.Run("upload failure", func(t *testing.T) {
		putter := new(MockObjectPutter)
		putter.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

		_, err := NewArtifactStore(putter, "videos", "", "").Archive(ctx, "abc", artifact)
		assert.ErrorContains(t, err, "access denied")
	})

	t.Run("empty artifact", func(t *testing.T) {
		putter := new(MockObjectPutter)

		_, err := NewArtifactStore(putter, "videos", "", "").Archive(ctx, "abc", &video.EncodedArtifact{})
		assert.Error(t, err)
		putter.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
	})
}

func TestNewClient_IncompleteConfig(t *testing.T) {
	_, err := NewClient(context.Background(), &config.StorageConfig{Bucket: "videos"})
	assert.Error(t, err)
}
