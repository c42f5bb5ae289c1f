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

// DownloadParams tunes a single download. The override fields rewrite the
// corresponding response headers without touching the stored metadata.
type DownloadParams struct {
	// Range is an RFC 7233 byte range, e.g. "bytes=0-99". When set the
	// service answers 206 with just that slice.
	Range string

	OverrideContentDisposition string
	OverrideContentLanguage    string
	OverrideExpires            string
	OverrideCacheControl       string
	OverrideContentEncoding    string
	OverrideContentType        string

	ServerSideEncryption *ServerSideEncryption
}

// FileDownloadDetails is the metadata the service reports alongside the
// downloaded bytes, decoded from the response headers.
type FileDownloadDetails struct {
	FileID          string
	FileName        string
	ContentLength   int64
	ContentType     string
	ContentSHA1     string
	UploadTimestamp Timestamp
	Info            map[string]string
}

// DownloadedFile is an open download. Callers own Body and must close it;
// the bytes are streamed, not buffered.
type DownloadedFile struct {
	Body    io.ReadCloser
	Details FileDownloadDetails

	// Status is 200 for whole files and 206 for range requests.
	Status  int
	Headers http.Header
}

// DownloadFileByName streams a file addressed by bucket and name. Reading
// a private bucket needs the readFiles capability; the account token is
// sent automatically.
func (c *Client) DownloadFileByName(ctx context.Context, bucketName, fileName string, params *DownloadParams) (*DownloadedFile, error) {
	if err := c.require(CapReadFiles); err != nil {
		return nil, err
	}
	build := func(auth AuthData) (*http.Request, error) {
		u := auth.StorageAPI().DownloadURL + "/file/" + url.PathEscape(bucketName) + "/" + escapeFileName(fileName)
		return c.downloadRequest(ctx, u, auth.AuthorizationToken, params)
	}
	return c.download(ctx, "b2_download_file_by_name", build)
}

// DownloadFileByID streams a file addressed by its fileId.
func (c *Client) DownloadFileByID(ctx context.Context, fileID string, params *DownloadParams) (*DownloadedFile, error) {
	if err := c.require(CapReadFiles); err != nil {
		return nil, err
	}
	build := func(auth AuthData) (*http.Request, error) {
		u := auth.StorageAPI().DownloadURL + apiPrefix + "b2_download_file_by_id?fileId=" + url.QueryEscape(fileID)
		return c.downloadRequest(ctx, u, auth.AuthorizationToken, params)
	}
	return c.download(ctx, "b2_download_file_by_id", build)
}

// download runs a data-plane GET, re-authorizing and retrying once when
// the account token has expired mid-flight.
func (c *Client) download(ctx context.Context, op string, build func(AuthData) (*http.Request, error)) (*DownloadedFile, error) {
	if c.Status() == StatusKeyExpired {
		return nil, ErrKeyExpired
	}
	out, err := c.downloadOnce(op, build)
	if err == nil || !IsAuthExpired(err) {
		return out, err
	}
	if _, err := c.AuthorizeAccount(ctx); err != nil {
		return nil, err
	}
	return c.downloadOnce(op, build)
}

func (c *Client) downloadOnce(op string, build func(AuthData) (*http.Request, error)) (*DownloadedFile, error) {
	req, err := build(c.Auth())
	if err != nil {
		return nil, fmt.Errorf("b2: %s: %w", op, err)
	}
	resp, err := c.data.Do(req)
	if err != nil {
		return nil, fmt.Errorf("b2: %s: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		apiErr := &APIError{Op: op, Status: resp.StatusCode, Code: CodeUnknown}
		if jsonUnmarshal(body, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = CodeUnknown
			apiErr.Message = string(body)
		}
		apiErr.Op = op
		apiErr.Status = resp.StatusCode
		return nil, apiErr
	}

	return &DownloadedFile{
		Body:    resp.Body,
		Details: decodeDownloadDetails(resp),
		Status:  resp.StatusCode,
		Headers: resp.Header,
	}, nil
}

func (c *Client) downloadRequest(ctx context.Context, rawURL, token string, params *DownloadParams) (*http.Request, error) {
	if params != nil {
		q := url.Values{}
		setOverride(q, "b2ContentDisposition", params.OverrideContentDisposition)
		setOverride(q, "b2ContentLanguage", params.OverrideContentLanguage)
		setOverride(q, "b2Expires", params.OverrideExpires)
		setOverride(q, "b2CacheControl", params.OverrideCacheControl)
		setOverride(q, "b2ContentEncoding", params.OverrideContentEncoding)
		setOverride(q, "b2ContentType", params.OverrideContentType)
		if len(q) > 0 {
			sep := "?"
			if strings.Contains(rawURL, "?") {
				sep = "&"
			}
			rawURL += sep + q.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)
	if params != nil {
		if params.Range != "" {
			req.Header.Set("Range", params.Range)
		}
		applySSEHeaders(req.Header, params.ServerSideEncryption)
	}
	return req, nil
}

func setOverride(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func decodeDownloadDetails(resp *http.Response) FileDownloadDetails {
	h := resp.Header
	d := FileDownloadDetails{
		FileID:        h.Get("X-Bz-File-Id"),
		FileName:      unescapeHeaderValue(h.Get("X-Bz-File-Name")),
		ContentLength: resp.ContentLength,
		ContentType:   h.Get("Content-Type"),
		ContentSHA1:   h.Get("X-Bz-Content-Sha1"),
	}
	if ts := h.Get("X-Bz-Upload-Timestamp"); ts != "" {
		if millis, err := strconv.ParseInt(ts, 10, 64); err == nil {
			d.UploadTimestamp = Timestamp(millis)
		}
	}
	for name, values := range h {
		if !strings.HasPrefix(name, "X-Bz-Info-") || len(values) == 0 {
			continue
		}
		if d.Info == nil {
			d.Info = make(map[string]string)
		}
		key := strings.ToLower(strings.TrimPrefix(name, "X-Bz-Info-"))
		d.Info[key] = unescapeHeaderValue(values[0])
	}
	return d
}

// DownloadAuthParams describes a b2_get_download_authorization call.
type DownloadAuthParams struct {
	BucketID               string `json:"bucketId"`
	FileNamePrefix         string `json:"fileNamePrefix"`
	ValidDurationInSeconds int    `json:"validDurationInSeconds"`

	B2ContentDisposition string `json:"b2ContentDisposition,omitempty"`
	B2ContentLanguage    string `json:"b2ContentLanguage,omitempty"`
	B2Expires            string `json:"b2Expires,omitempty"`
	B2CacheControl       string `json:"b2CacheControl,omitempty"`
	B2ContentEncoding    string `json:"b2ContentEncoding,omitempty"`
	B2ContentType        string `json:"b2ContentType,omitempty"`
}

// DownloadAuth is a scoped token for sharing downloads from a private
// bucket without handing out account credentials.
type DownloadAuth struct {
	BucketID           string `json:"bucketId"`
	FileNamePrefix     string `json:"fileNamePrefix"`
	AuthorizationToken string `json:"authorizationToken"`
}

func (c *Client) GetDownloadAuthorization(ctx context.Context, params *DownloadAuthParams) (*DownloadAuth, error) {
	var out DownloadAuth
	if err := c.api(ctx, "b2_get_download_authorization", params, &out, CapShareFiles); err != nil {
		return nil, err
	}
	return &out, nil
}
