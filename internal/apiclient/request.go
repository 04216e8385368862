package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
)

// Request describes one call to the backend API. An empty Method means GET.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is encoded as JSON. It is ignored when Form is set.
	Body     any
	Form     *Multipart
	WithAuth bool
}

// Multipart is a form upload. Files are held in memory so the body can be
// rebuilt when a call is retried after a token refresh.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

// File is one file part of a Multipart upload.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// encode writes the form and returns the body with its boundary content type.
func (m *Multipart) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, m.Fields[name]); err != nil {
			return nil, "", err
		}
	}

	for _, f := range m.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Response is a successful outcome. NoContent marks a 204 reply, which has no
// body to decode.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	NoContent bool
}

// Decode unmarshals the JSON body into v. It is a no-op for 204 replies and
// empty bodies.
func (r Response) Decode(v any) error {
	if r.NoContent || len(bytes.TrimSpace(r.Body)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

func (r Response) clone() Response {
	out := r
	if r.Body != nil {
		out.Body = bytes.Clone(r.Body)
	}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	return out
}
