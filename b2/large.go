package b2

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Part size limits enforced by the service. A large file has 2 to 10000
// parts; every part except the last must be at least MinPartSize.
const (
	MinPartSize = 5 * 1024 * 1024
	MaxPartSize = 5 * 1024 * 1024 * 1024
	MaxParts    = 10000
)

// StartLargeFileParams describes a b2_start_large_file call. The returned
// File carries the fileId every subsequent part and finish call needs.
type StartLargeFileParams struct {
	BucketID    string `json:"bucketId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`

	FileInfo              map[string]string     `json:"fileInfo,omitempty"`
	CustomUploadTimestamp *Timestamp            `json:"customUploadTimestamp,omitempty"`
	FileRetention         *RetentionSetting     `json:"fileRetention,omitempty"`
	LegalHold             string                `json:"legalHold,omitempty"`
	ServerSideEncryption  *ServerSideEncryption `json:"serverSideEncryption,omitempty"`
}

func (c *Client) StartLargeFile(ctx context.Context, params *StartLargeFileParams) (*File, error) {
	body := *params
	if body.ContentType == "" {
		body.ContentType = ContentTypeAuto
	}
	caps := []Capability{CapWriteFiles}
	if body.FileRetention != nil {
		caps = append(caps, CapWriteFileRetentions)
	}
	if body.LegalHold != "" {
		caps = append(caps, CapWriteFileLegalHolds)
	}
	var out File
	if err := c.api(ctx, "b2_start_large_file", &body, &out, caps...); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPartURL is a lease for uploading parts of one large file. Like
// UploadURL it is single-goroutine and carries its own token.
type UploadPartURL struct {
	FileID             string `json:"fileId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

func (c *Client) GetUploadPartURL(ctx context.Context, fileID string) (*UploadPartURL, error) {
	var out UploadPartURL
	if err := c.api(ctx, "b2_get_upload_part_url", &fileIDBody{FileID: fileID}, &out, CapWriteFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPartParams describes one b2_upload_part call. PartNumber starts
// at 1. ContentSHA1 must be the hex digest of exactly this part's bytes.
type UploadPartParams struct {
	PartNumber           int
	Body                 io.Reader
	ContentLength        int64
	ContentSHA1          string
	ServerSideEncryption *ServerSideEncryption
}

// UploadPart streams one part to a leased part upload URL. A 503 or 401
// means the lease is spent; lease again and resend the same part.
func (c *Client) UploadPart(ctx context.Context, lease *UploadPartURL, params *UploadPartParams) (*FilePart, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lease.UploadURL, params.Body)
	if err != nil {
		return nil, fmt.Errorf("b2: b2_upload_part: %w", err)
	}
	req.ContentLength = params.ContentLength

	h := req.Header
	h.Set("Authorization", lease.AuthorizationToken)
	h.Set("X-Bz-Part-Number", strconv.Itoa(params.PartNumber))
	h.Set("X-Bz-Content-Sha1", params.ContentSHA1)
	applySSEHeaders(h, params.ServerSideEncryption)

	var out FilePart
	if err := c.doData(req, "b2_upload_part", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type finishLargeFileBody struct {
	FileID        string   `json:"fileId"`
	PartSHA1Array []string `json:"partSha1Array"`
}

// FinishLargeFile assembles the uploaded parts. partSHA1s must be ordered
// by part number and cover every part, or the service rejects the call.
func (c *Client) FinishLargeFile(ctx context.Context, fileID string, partSHA1s []string) (*File, error) {
	var out File
	body := &finishLargeFileBody{FileID: fileID, PartSHA1Array: partSHA1s}
	if err := c.api(ctx, "b2_finish_large_file", body, &out, CapWriteFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelLargeFileResult identifies the abandoned large file.
type CancelLargeFileResult struct {
	FileID    string `json:"fileId"`
	AccountID string `json:"accountId"`
	BucketID  string `json:"bucketId"`
	FileName  string `json:"fileName"`
}

// CancelLargeFile abandons an unfinished large file and frees its parts.
func (c *Client) CancelLargeFile(ctx context.Context, fileID string) (*CancelLargeFileResult, error) {
	var out CancelLargeFileResult
	if err := c.api(ctx, "b2_cancel_large_file", &fileIDBody{FileID: fileID}, &out, CapWriteFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

type ListPartsParams struct {
	FileID          string `json:"fileId"`
	StartPartNumber int    `json:"startPartNumber,omitempty"`
	MaxPartCount    int    `json:"maxPartCount,omitempty"`
}

type ListPartsResult struct {
	Parts          []FilePart `json:"parts"`
	NextPartNumber *int       `json:"nextPartNumber"`
}

func (c *Client) ListParts(ctx context.Context, params *ListPartsParams) (*ListPartsResult, error) {
	var out ListPartsResult
	if err := c.api(ctx, "b2_list_parts", params, &out, CapWriteFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

type ListUnfinishedLargeFilesParams struct {
	BucketID     string `json:"bucketId"`
	NamePrefix   string `json:"namePrefix,omitempty"`
	StartFileID  string `json:"startFileId,omitempty"`
	MaxFileCount int    `json:"maxFileCount,omitempty"`
}

type ListUnfinishedLargeFilesResult struct {
	Files      []File  `json:"files"`
	NextFileID *string `json:"nextFileId"`
}

func (c *Client) ListUnfinishedLargeFiles(ctx context.Context, params *ListUnfinishedLargeFilesParams) (*ListUnfinishedLargeFilesResult, error) {
	var out ListUnfinishedLargeFilesResult
	if err := c.api(ctx, "b2_list_unfinished_large_files", params, &out, CapListFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

// CopyPartParams copies a byte range of an existing file into a part of a
// large file being assembled.
type CopyPartParams struct {
	SourceFileID string `json:"sourceFileId"`
	LargeFileID  string `json:"largeFileId"`
	PartNumber   int    `json:"partNumber"`
	Range        string `json:"range,omitempty"`

	SourceServerSideEncryption      *ServerSideEncryption `json:"sourceServerSideEncryption,omitempty"`
	DestinationServerSideEncryption *ServerSideEncryption `json:"destinationServerSideEncryption,omitempty"`
}

func (c *Client) CopyPart(ctx context.Context, params *CopyPartParams) (*FilePart, error) {
	var out FilePart
	if err := c.api(ctx, "b2_copy_part", params, &out, CapWriteFiles, CapReadFiles); err != nil {
		return nil, err
	}
	return &out, nil
}
