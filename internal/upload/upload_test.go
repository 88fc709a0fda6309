package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pharmacy/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		file File
		ok   bool
	}{
		{"pdf", File{ContentType: "application/pdf", Size: 1024}, true},
		{"jpeg with params", File{ContentType: "image/jpeg; charset=binary", Size: 10}, true},
		{"png at limit", File{ContentType: "image/png", Size: MaxFileSize}, true},
		{"gif", File{ContentType: "image/gif", Size: 10}, false},
		{"oversize", File{ContentType: "application/pdf", Size: MaxFileSize + 1}, false},
		{"empty", File{ContentType: "application/pdf", Size: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.file)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var rej *domain.UploadRejectedError
			assert.ErrorAs(t, err, &rej)
		})
	}
}

func TestMemoryUploader(t *testing.T) {
	u := NewMemoryUploader("http://localhost:8080/files/")
	body := []byte("%PDF-1.4")
	url, err := u.Upload(context.Background(), File{Name: "rx.pdf", ContentType: "application/pdf", Size: int64(len(body)), Body: bytes.NewReader(body)})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8080/files/prescriptions/"))
	assert.True(t, strings.HasSuffix(url, "-rx.pdf"))

	key := strings.TrimPrefix(url, "http://localhost:8080/files/")
	got, ok := u.Object(key)
	require.True(t, ok)
	assert.Equal(t, body, got)
}

type s3Mock struct{ mock.Mock }

func (m *s3Mock) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestS3Uploader(t *testing.T) {
	m := new(s3Mock)
	m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "rx-bucket" &&
			strings.HasPrefix(*in.Key, "prescriptions/") &&
			*in.ContentType == "image/png"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	u := NewS3Uploader(m, "rx-bucket", "https://cdn.example.com/")
	url, err := u.Upload(context.Background(), File{Name: "scan 1.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/prescriptions/"))
	assert.True(t, strings.HasSuffix(url, "-scan%201.png"))
	m.AssertExpectations(t)
}

func TestS3Uploader_RejectsBeforeTransfer(t *testing.T) {
	m := new(s3Mock)
	u := NewS3Uploader(m, "b", "https://cdn")
	_, err := u.Upload(context.Background(), File{Name: "a.gif", ContentType: "image/gif", Size: 1, Body: io.LimitReader(nil, 0)})
	var rej *domain.UploadRejectedError
	assert.True(t, errors.As(err, &rej))
	m.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}
