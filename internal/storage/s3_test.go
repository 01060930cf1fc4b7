package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	s3manageriface.UploaderAPI
	key  string
	body []byte
	err  error
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.StringValue(in.Key)
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3manager.UploadOutput{Location: "s3://bucket/" + f.key}, nil
}

func TestS3_UploadFile(t *testing.T) {
	local := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, os.WriteFile(local, []byte("data"), 0o644))

	up := &fakeUploader{}
	s := NewS3WithUploader(up, "bucket", "venuepark", zerolog.Nop())

	require.NoError(t, s.UploadFile(context.Background(), local, "backups/backup.db"))
	assert.Equal(t, "venuepark/backups/backup.db", up.key)
	assert.Equal(t, []byte("data"), up.body)
}

func TestS3_UploadFileErrors(t *testing.T) {
	s := NewS3WithUploader(&fakeUploader{err: errors.New("denied")}, "bucket", "", zerolog.Nop())

	err := s.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing"), "k")
	assert.Error(t, err)

	local := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))
	err = s.UploadFile(context.Background(), local, "k")
	assert.ErrorContains(t, err, "denied")
}
