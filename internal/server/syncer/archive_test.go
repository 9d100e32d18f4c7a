package syncer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts []*s3.PutObjectInput
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver_KeyLayout(t *testing.T) {
	fake := &fakeS3{}
	a := &S3Archiver{
		client: fake,
		bucket: "devlens-raw",
		now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}

	err := a.Archive(context.Background(), "u1", models.ProviderGitHub, "run-42", []byte(`{"commits":[]}`))
	require.NoError(t, err)
	require.Len(t, fake.puts, 1)

	put := fake.puts[0]
	assert.Equal(t, "devlens-raw", *put.Bucket)
	assert.Equal(t, "raw/u1/github/2025-06-01/run-42.json", *put.Key)

	body, err := io.ReadAll(put.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"commits":[]}`, string(body))
}
