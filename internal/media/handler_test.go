package media

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"eventify/internal/auth"
	"eventify/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	folder string
	body   []byte
	err    error
}

func (f *fakeUploader) UploadImage(ctx context.Context, file io.Reader, folder string) (string, error) {
	f.folder = folder
	f.body, _ = io.ReadAll(file)
	if f.err != nil {
		return "", f.err
	}
	return "https://res.cloudinary.com/demo/image/upload/poster.png", nil
}

func multipartRequest(t *testing.T, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="poster.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(auth.WithUserID(req.Context(), "user_42"))
}

func TestUploadImage(t *testing.T) {
	up := &fakeUploader{}
	h := NewHandler(up, logger.Nop())

	rec := httptest.NewRecorder()
	h.UploadImage(rec, multipartRequest(t, "image/png", []byte("png-bytes")))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"url":"https://res.cloudinary.com/demo/image/upload/poster.png"}`, rec.Body.String())
	assert.Equal(t, "eventify/events/user_42", up.folder)
	assert.Equal(t, []byte("png-bytes"), up.body)
}

func TestUploadImageRejectsNonImages(t *testing.T) {
	up := &fakeUploader{}
	rec := httptest.NewRecorder()
	NewHandler(up, logger.Nop()).UploadImage(rec, multipartRequest(t, "application/pdf", []byte("%PDF")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, up.folder)
}

func TestUploadImageTooLarge(t *testing.T) {
	up := &fakeUploader{}
	rec := httptest.NewRecorder()
	NewHandler(up, logger.Nop()).UploadImage(rec, multipartRequest(t, "image/jpeg", bytes.Repeat([]byte{1}, MaxImageBytes+1)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, up.folder)
}

func TestUploadImageDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, logger.Nop()).UploadImage(rec, multipartRequest(t, "image/png", []byte("x")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
