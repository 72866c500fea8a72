package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

type fakeS3 struct {
	keys  []string
	types []string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, aws.ToString(in.Key))
	f.types = append(f.types, aws.ToString(in.ContentType))
	return &s3.PutObjectOutput{}, nil
}

func TestArchive_Keys(t *testing.T) {
	client := &fakeS3{}
	a := NewWithClient(client, "meals", "/photos/", slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &model.DailyRecord{ID: "rec1", Handle: "alice", Date: "2026-10-18"}

	png := []byte("\x89PNG\r\n\x1a\n0000")
	err := a.Archive(context.Background(), rec, [][]byte{{0xff, 0xd8, 0xff, 0xe0}, png})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"photos/alice/2026-10-18/rec1-1.jpg",
		"photos/alice/2026-10-18/rec1-2.png",
	}, client.keys)
	assert.Equal(t, "image/png", client.types[1])
}

func TestArchive_NoPrefix(t *testing.T) {
	client := &fakeS3{}
	a := NewWithClient(client, "meals", "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := a.Archive(context.Background(), &model.DailyRecord{ID: "r", Handle: "bob", Date: "2026-10-18"}, [][]byte{{1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob/2026-10-18/r-1.jpg"}, client.keys)
}

func TestArchive_UploadError(t *testing.T) {
	a := NewWithClient(&fakeS3{err: errors.New("denied")}, "meals", "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := a.Archive(context.Background(), &model.DailyRecord{ID: "r", Handle: "bob", Date: "2026-10-18"}, [][]byte{{1}})
	assert.ErrorContains(t, err, "denied")
}
