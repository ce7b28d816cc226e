package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
)

// File is the payload of UploadFile.
type File struct {
	// Name is the filename reported to the backend. Default: "file".
	Name string

	Content io.Reader
}

// UploadFile posts a multipart form with the file under the "file" field and
// every extra field alongside it. The request carries Authorization and the
// multipart Content-Type with its boundary, never the JSON default.
func (c *Client) UploadFile(ctx context.Context, path string, file File, extraFields map[string]string, out any) error {
	if file.Content == nil {
		return fmt.Errorf("apiclient: upload of %q has no content", file.Name)
	}

	name := filepath.Base(file.Name)
	if file.Name == "" {
		name = "file"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return fmt.Errorf("failed to read upload content: %w", err)
	}

	// Sorted so the body is reproducible.
	keys := make([]string, 0, len(extraFields))
	for k := range extraFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, extraFields[k]); err != nil {
			return fmt.Errorf("failed to write form field %q: %w", k, err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), nil, out)
}
