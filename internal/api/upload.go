package api

import (
	"context"
	"io"

	"github.com/howlhq/go-howl-client/internal/domain"
	"github.com/howlhq/go-howl-client/internal/session"
)

// UploadsService wraps the generic image upload endpoint.
type UploadsService struct {
	s *session.Client
}

// Image uploads an image and returns its served URL.
func (u *UploadsService) Image(ctx context.Context, filename string, r io.Reader) (domain.UploadResult, error) {
	var res domain.UploadResult
	contentType, form, err := encodeFileForm(filename, r)
	if err != nil {
		return res, err
	}
	err = u.s.Multipart(ctx, "/api/upload", contentType, form, &res)
	return res, err
}
