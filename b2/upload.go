package b2

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// UploadURL is a lease issued by b2_get_upload_url: a temporary endpoint
// plus its own token, valid for 24h or until the endpoint rejects an
// upload. It must not be sent the account authorization token.
type UploadURL struct {
	BucketID           string `json:"bucketId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

type getUploadURLBody struct {
	BucketID string `json:"bucketId"`
}

// GetUploadURL leases an upload endpoint for a bucket. Leases must not be
// used concurrently; lease one per uploading goroutine.
func (c *Client) GetUploadURL(ctx context.Context, bucketID string) (*UploadURL, error) {
	var out UploadURL
	if err := c.api(ctx, "b2_get_upload_url", &getUploadURLBody{BucketID: bucketID}, &out, CapWriteFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFileParams describes one b2_upload_file call. ContentLength and
// ContentSHA1 are mandatory: the data plane refuses chunked bodies.
type UploadFileParams struct {
	FileName      string
	Body          io.Reader
	ContentLength int64
	ContentSHA1   string
	ContentType   string // defaults to b2/x-auto

	// Optional file metadata, sent as X-Bz-Info-* headers.
	Info                  map[string]string
	SrcLastModifiedMillis int64
	ContentDisposition    string
	ContentLanguage       string
	Expires               string
	CacheControl          string
	ContentEncoding       string

	CustomUploadTimestamp int64
	LegalHold             string // "on" or "off"
	Retention             *RetentionSetting
	ServerSideEncryption  *ServerSideEncryption
}

// ContentTypeAuto asks the service to sniff the MIME type on upload.
const ContentTypeAuto = "b2/x-auto"

// UploadFile streams one file to a leased upload URL. On 401/503 the lease
// is dead; get a new one and retry (the transfer package does this).
func (c *Client) UploadFile(ctx context.Context, lease *UploadURL, params *UploadFileParams) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lease.UploadURL, params.Body)
	if err != nil {
		return nil, fmt.Errorf("b2: b2_upload_file: %w", err)
	}
	req.ContentLength = params.ContentLength

	h := req.Header
	h.Set("Authorization", lease.AuthorizationToken)
	h.Set("X-Bz-File-Name", escapeFileName(params.FileName))
	h.Set("X-Bz-Content-Sha1", params.ContentSHA1)
	contentType := params.ContentType
	if contentType == "" {
		contentType = ContentTypeAuto
	}
	h.Set("Content-Type", contentType)

	for k, v := range params.Info {
		h.Set("X-Bz-Info-"+k, escapeHeaderValue(v))
	}
	if params.SrcLastModifiedMillis > 0 {
		h.Set("X-Bz-Info-src_last_modified_millis", strconv.FormatInt(params.SrcLastModifiedMillis, 10))
	}
	setInfoHeader(h, "b2-content-disposition", params.ContentDisposition)
	setInfoHeader(h, "b2-content-language", params.ContentLanguage)
	setInfoHeader(h, "b2-expires", params.Expires)
	setInfoHeader(h, "b2-cache-control", params.CacheControl)
	setInfoHeader(h, "b2-content-encoding", params.ContentEncoding)

	if params.CustomUploadTimestamp > 0 {
		h.Set("X-Bz-Custom-Upload-Timestamp", strconv.FormatInt(params.CustomUploadTimestamp, 10))
	}
	if params.LegalHold != "" {
		h.Set("X-Bz-File-Legal-Hold", params.LegalHold)
	}
	if r := params.Retention; r != nil {
		h.Set("X-Bz-File-Retention-Mode", r.Mode)
		if r.RetainUntilTimestamp != nil {
			h.Set("X-Bz-File-Retention-Retain-Until-Timestamp", strconv.FormatInt(int64(*r.RetainUntilTimestamp), 10))
		}
	}
	applySSEHeaders(h, params.ServerSideEncryption)

	var out File
	if err := c.doData(req, "b2_upload_file", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doData runs a data-plane request and decodes the JSON response, folding
// error bodies into *APIError exactly like the control plane.
func (c *Client) doData(req *http.Request, op string, out any) error {
	resp, err := c.data.Do(req)
	if err != nil {
		return fmt.Errorf("b2: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("b2: %s: read response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Op: op, Status: resp.StatusCode, Code: CodeUnknown}
		if jsonUnmarshal(body, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = CodeUnknown
			apiErr.Message = string(body)
		}
		apiErr.Op = op
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := jsonUnmarshal(body, out); err != nil {
		return fmt.Errorf("b2: %s: decode response: %w", op, err)
	}
	return nil
}

func setInfoHeader(h http.Header, name, value string) {
	if value != "" {
		h.Set("X-Bz-Info-"+name, escapeHeaderValue(value))
	}
}

func applySSEHeaders(h http.Header, sse *ServerSideEncryption) {
	if sse == nil || sse.Mode == "" {
		return
	}
	switch sse.Mode {
	case SSEModeB2:
		h.Set("X-Bz-Server-Side-Encryption", sse.Algorithm)
	case SSEModeC:
		h.Set("X-Bz-Server-Side-Encryption-Customer-Algorithm", sse.Algorithm)
		h.Set("X-Bz-Server-Side-Encryption-Customer-Key", sse.CustomerKey)
		h.Set("X-Bz-Server-Side-Encryption-Customer-Key-Md5", sse.CustomerKeyMD5)
	}
}

// escapeFileName percent-encodes a B2 file name for the X-Bz-File-Name
// header. Path separators stay literal; everything else follows RFC 3986.
// '+' is escaped too because some decoders on the service side read a
// literal '+' as a space.
func escapeFileName(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = escapeHeaderValue(s)
	}
	return strings.Join(segments, "/")
}

func escapeHeaderValue(v string) string {
	return strings.ReplaceAll(url.PathEscape(v), "+", "%2B")
}

// unescapeHeaderValue reverses the upload-side escaping. The service may
// also use '+' for spaces in these headers.
func unescapeHeaderValue(v string) string {
	decoded, err := url.PathUnescape(strings.ReplaceAll(v, "+", "%20"))
	if err != nil {
		return v
	}
	return decoded
}
