package snip

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SourceKind says which shape of byte source the host supplied
type SourceKind int

const (
	// SourceNone is the zero value, no document requested
	SourceNone SourceKind = iota
	// SourceURL is a remote reference fetched over HTTP
	SourceURL
	// SourceDataBlob is a self-describing base64 payload (data URI style)
	SourceDataBlob
	// SourceBytes is raw in-memory bytes from a local file pick
	SourceBytes
)

// Source is the tagged union of document byte sources. Exactly one of
// the payload fields is meaningful for a given Kind; the decode path is
// resolved once at the loader boundary.
type Source struct {
	Kind SourceKind

	// URL for SourceURL
	URL string

	// Data for SourceDataBlob, base64 with or without a data: URI prefix
	Data string

	// Bytes, Name and MIME for SourceBytes
	Bytes []byte
	Name  string
	MIME  string
}

// URLSource references a remote document
func URLSource(url string) Source {
	return Source{Kind: SourceURL, URL: url}
}

// DataBlobSource wraps an embedded base64 payload
func DataBlobSource(data string) Source {
	return Source{Kind: SourceDataBlob, Data: data}
}

// BytesSource wraps raw bytes from a local file pick
func BytesSource(name, mime string, data []byte) Source {
	return Source{Kind: SourceBytes, Name: name, MIME: mime, Bytes: data}
}

// IsZero reports whether no source has been supplied
func (s Source) IsZero() bool {
	return s.Kind == SourceNone
}

// Equal compares two sources by value, so an unchanged host prop does
// not trigger a redundant fetch or re-parse
func (s Source) Equal(other Source) bool {
	if s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case SourceURL:
		return s.URL == other.URL
	case SourceDataBlob:
		return s.Data == other.Data
	case SourceBytes:
		return s.Name == other.Name && s.MIME == other.MIME && bytes.Equal(s.Bytes, other.Bytes)
	default:
		return true
	}
}

func (s Source) describe() string {
	switch s.Kind {
	case SourceURL:
		return "url " + s.URL
	case SourceDataBlob:
		return fmt.Sprintf("data blob (%d chars)", len(s.Data))
	case SourceBytes:
		return fmt.Sprintf("file %q (%d bytes)", s.Name, len(s.Bytes))
	default:
		return "none"
	}
}

const pdfMIMEType = "application/pdf"

// resolver turns a Source into raw document bytes, one decode path per variant
type resolver struct {
	client         *http.Client
	maxUploadBytes int64
}

func (r *resolver) resolve(ctx context.Context, source Source) ([]byte, error) {
	switch source.Kind {
	case SourceURL:
		return r.fetch(ctx, source.URL)
	case SourceDataBlob:
		return decodeDataBlob(source.Data)
	case SourceBytes:
		return r.acceptUpload(source)
	default:
		return nil, newError(ErrEmptyDocument, "no document source supplied", nil)
	}
}

// fetch retrieves a remote document, classifying transport and status failures
func (r *resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newError(ErrNetworkFailure, fmt.Sprintf("invalid document URL %q", url), err)
	}
	req.Header.Set("Accept", pdfMIMEType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, newError(ErrNetworkFailure, fmt.Sprintf("fetching %q failed", url), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, newError(ErrNotFound, fmt.Sprintf("document not found at %q", url), nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, newError(ErrServerError,
			fmt.Sprintf("fetching %q returned status %d", url, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(ErrNetworkFailure, fmt.Sprintf("reading body from %q failed", url), err)
	}
	return data, nil
}

// decodeDataBlob decodes a base64 payload, tolerating a data: URI wrapper
func decodeDataBlob(data string) ([]byte, error) {
	payload := data
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, newError(ErrInvalidFormat, "malformed data URI", nil)
		}
		payload = payload[idx+1:]
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, newError(ErrInvalidFormat, "embedded document is not valid base64", err)
	}
	return decoded, nil
}

// acceptUpload validates a local file pick against declared MIME and size ceiling
func (r *resolver) acceptUpload(source Source) ([]byte, error) {
	if source.MIME != "" && source.MIME != pdfMIMEType {
		return nil, newError(ErrInvalidFormat,
			fmt.Sprintf("file %q has type %q, expected %q", source.Name, source.MIME, pdfMIMEType), nil)
	}
	if r.maxUploadBytes > 0 && int64(len(source.Bytes)) > r.maxUploadBytes {
		return nil, newError(ErrOversizedPayload,
			fmt.Sprintf("file %q is %d bytes, ceiling is %d", source.Name, len(source.Bytes), r.maxUploadBytes), nil)
	}
	return source.Bytes, nil
}
