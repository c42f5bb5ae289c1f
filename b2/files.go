package b2

import "context"

// ListFileNamesParams configures b2_list_file_names pagination.
type ListFileNamesParams struct {
	BucketID      string `json:"bucketId"`
	StartFileName string `json:"startFileName,omitempty"`
	MaxFileCount  int    `json:"maxFileCount,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Delimiter     string `json:"delimiter,omitempty"`
}

// ListFileNamesResult is one page of file names. NextFileName is empty on
// the last page; otherwise pass it as StartFileName to continue.
type ListFileNamesResult struct {
	Files        []File  `json:"files"`
	NextFileName *string `json:"nextFileName"`
}

// ListFileNames lists file names in a bucket, most recent version only.
func (c *Client) ListFileNames(ctx context.Context, params *ListFileNamesParams) (*ListFileNamesResult, error) {
	var out ListFileNamesResult
	if err := c.api(ctx, "b2_list_file_names", params, &out, CapListFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFileVersionsParams configures b2_list_file_versions pagination.
type ListFileVersionsParams struct {
	BucketID      string `json:"bucketId"`
	StartFileName string `json:"startFileName,omitempty"`
	StartFileID   string `json:"startFileId,omitempty"`
	MaxFileCount  int    `json:"maxFileCount,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Delimiter     string `json:"delimiter,omitempty"`
}

// ListFileVersionsResult is one page of file versions.
type ListFileVersionsResult struct {
	Files        []File  `json:"files"`
	NextFileName *string `json:"nextFileName"`
	NextFileID   *string `json:"nextFileId"`
}

// ListFileVersions lists all versions of files in a bucket.
func (c *Client) ListFileVersions(ctx context.Context, params *ListFileVersionsParams) (*ListFileVersionsResult, error) {
	var out ListFileVersionsResult
	if err := c.api(ctx, "b2_list_file_versions", params, &out, CapListFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

type fileIDBody struct {
	FileID string `json:"fileId"`
}

// GetFileInfo fetches the metadata of one file version.
func (c *Client) GetFileInfo(ctx context.Context, fileID string) (*File, error) {
	var out File
	if err := c.api(ctx, "b2_get_file_info", &fileIDBody{FileID: fileID}, &out, CapReadFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

type deleteFileVersionBody struct {
	FileName         string `json:"fileName"`
	FileID           string `json:"fileId"`
	BypassGovernance bool   `json:"bypassGovernance,omitempty"`
}

// DeleteFileVersionResult identifies the deleted version.
type DeleteFileVersionResult struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

// DeleteFileVersion removes one version of a file.
func (c *Client) DeleteFileVersion(ctx context.Context, fileName, fileID string, bypassGovernance bool) (*DeleteFileVersionResult, error) {
	caps := []Capability{CapDeleteFiles}
	if bypassGovernance {
		caps = append(caps, CapBypassGovernance)
	}
	body := deleteFileVersionBody{FileName: fileName, FileID: fileID, BypassGovernance: bypassGovernance}
	var out DeleteFileVersionResult
	if err := c.api(ctx, "b2_delete_file_version", &body, &out, caps...); err != nil {
		return nil, err
	}
	return &out, nil
}

type hideFileBody struct {
	BucketID string `json:"bucketId"`
	FileName string `json:"fileName"`
}

// HideFile uploads a hide marker so the name stops appearing in
// ListFileNames without deleting older versions.
func (c *Client) HideFile(ctx context.Context, bucketID, fileName string) (*File, error) {
	var out File
	if err := c.api(ctx, "b2_hide_file", &hideFileBody{BucketID: bucketID, FileName: fileName}, &out, CapWriteFiles); err != nil {
		return nil, err
	}
	return &out, nil
}

// CopyFileParams configures b2_copy_file, a server-side copy.
type CopyFileParams struct {
	SourceFileID         string                `json:"sourceFileId"`
	DestinationBucketID  string                `json:"destinationBucketId,omitempty"`
	FileName             string                `json:"fileName"`
	Range                string                `json:"range,omitempty"`
	MetadataDirective    string                `json:"metadataDirective,omitempty"` // COPY or REPLACE
	ContentType          string                `json:"contentType,omitempty"`
	FileInfo             map[string]string     `json:"fileInfo,omitempty"`
	FileRetention        *RetentionSetting     `json:"fileRetention,omitempty"`
	LegalHold            string                `json:"legalHold,omitempty"`
	ServerSideEncryption *ServerSideEncryption `json:"destinationServerSideEncryption,omitempty"`
}

// CopyFile copies a file within the service without downloading it.
func (c *Client) CopyFile(ctx context.Context, params *CopyFileParams) (*File, error) {
	caps := []Capability{CapWriteFiles}
	if params.FileRetention != nil {
		caps = append(caps, CapWriteFileRetentions)
	}
	if params.LegalHold != "" {
		caps = append(caps, CapWriteFileLegalHolds)
	}
	var out File
	if err := c.api(ctx, "b2_copy_file", params, &out, caps...); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateFileRetentionParams configures b2_update_file_retention.
type UpdateFileRetentionParams struct {
	FileName         string           `json:"fileName"`
	FileID           string           `json:"fileId"`
	FileRetention    RetentionSetting `json:"fileRetention"`
	BypassGovernance bool             `json:"bypassGovernance,omitempty"`
}

// UpdateFileRetentionResult echoes the applied retention settings.
type UpdateFileRetentionResult struct {
	FileID        string           `json:"fileId"`
	FileName      string           `json:"fileName"`
	FileRetention RetentionSetting `json:"fileRetention"`
}

// UpdateFileRetention changes a file version's Object Lock retention.
func (c *Client) UpdateFileRetention(ctx context.Context, params *UpdateFileRetentionParams) (*UpdateFileRetentionResult, error) {
	var out UpdateFileRetentionResult
	if err := c.api(ctx, "b2_update_file_retention", params, &out, CapWriteFileRetentions); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateFileLegalHoldParams configures b2_update_file_legal_hold.
type UpdateFileLegalHoldParams struct {
	FileName  string `json:"fileName"`
	FileID    string `json:"fileId"`
	LegalHold string `json:"legalHold"` // "on" or "off"
}

// UpdateFileLegalHold toggles a file version's legal hold flag.
func (c *Client) UpdateFileLegalHold(ctx context.Context, params *UpdateFileLegalHoldParams) (*UpdateFileLegalHoldParams, error) {
	var out UpdateFileLegalHoldParams
	if err := c.api(ctx, "b2_update_file_legal_hold", params, &out, CapWriteFileLegalHolds); err != nil {
		return nil, err
	}
	return &out, nil
}
