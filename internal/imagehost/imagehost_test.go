package imagehost

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCloudinary struct {
	uploadParams  uploader.UploadParams
	destroyParams uploader.DestroyParams
	uploadResult  *uploader.UploadResult
	err           error
}

func (f *fakeCloudinary) Upload(_ context.Context, _ interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.uploadParams = params
	return f.uploadResult, f.err
}

func (f *fakeCloudinary) Destroy(_ context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &uploader.DestroyResult{Result: "ok"}, nil
}

func TestCloudinary_Upload(t *testing.T) {
	fake := &fakeCloudinary{uploadResult: &uploader.UploadResult{
		PublicID:  "imemory/abc",
		SecureURL: "https://res.cloudinary.com/demo/image/upload/imemory/abc.png",
	}}
	c := newCloudinary(fake, "imemory", zap.NewNop())

	img, err := c.Upload(context.Background(), Upload{Filename: "a.png", Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.Equal(t, "imemory/abc", img.PublicID)
	assert.True(t, strings.HasPrefix(img.URL, "https://"))
	assert.Equal(t, "imemory", fake.uploadParams.Folder)
}

func TestCloudinary_UploadRejected(t *testing.T) {
	fake := &fakeCloudinary{uploadResult: &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid image file"}}}
	_, err := newCloudinary(fake, "f", zap.NewNop()).Upload(context.Background(), Upload{Body: strings.NewReader("x")})
	assert.ErrorContains(t, err, "Invalid image file")
}

func TestCloudinary_Delete(t *testing.T) {
	fake := &fakeCloudinary{}
	c := newCloudinary(fake, "f", zap.NewNop())

	require.NoError(t, c.Delete(context.Background(), "imemory/abc"))
	assert.Equal(t, "imemory/abc", fake.destroyParams.PublicID)

	fake.destroyParams = uploader.DestroyParams{}
	require.NoError(t, c.Delete(context.Background(), ""))
	assert.Empty(t, fake.destroyParams.PublicID, "empty id is a no-op")

	fake.err = errors.New("network")
	assert.Error(t, c.Delete(context.Background(), "imemory/abc"))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Upload(context.Background(), Upload{})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, Disabled{}.Delete(context.Background(), "x"))
}

func TestAllowedContentType(t *testing.T) {
	assert.True(t, AllowedContentType("image/png"))
	assert.False(t, AllowedContentType("application/pdf"))
}

func TestObjectKey(t *testing.T) {
	k := ObjectKey("Holiday.JPG")
	assert.True(t, strings.HasPrefix(k, "notes/"))
	assert.True(t, strings.HasSuffix(k, ".jpg"))
	assert.NotEqual(t, k, ObjectKey("Holiday.JPG"))
}

func TestMinIO_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set; skipping minio test")
	}
	ctx := context.Background()
	m, err := NewMinIO(ctx, MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    "imemory-test",
	}, zap.NewNop())
	require.NoError(t, err)

	body := "not really a png"
	img, err := m.Upload(ctx, Upload{Filename: "a.png", ContentType: "image/png", Size: int64(len(body)), Body: strings.NewReader(body)})
	require.NoError(t, err)
	assert.Contains(t, img.URL, img.PublicID)
	assert.NoError(t, m.Delete(ctx, img.PublicID))
}
