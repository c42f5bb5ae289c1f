package b2

import "context"

// CreateKeyParams configures b2_create_key.
type CreateKeyParams struct {
	Capabilities           []Capability `json:"capabilities"`
	KeyName                string       `json:"keyName"`
	ValidDurationInSeconds int64        `json:"validDurationInSeconds,omitempty"`
	BucketID               string       `json:"bucketId,omitempty"`
	NamePrefix             string       `json:"namePrefix,omitempty"`
}

type createKeyBody struct {
	AccountID string `json:"accountId"`
	CreateKeyParams
}

// CreateKey creates a new application key. The secret is only present in
// this response and cannot be retrieved later.
func (c *Client) CreateKey(ctx context.Context, params *CreateKeyParams) (*AppKey, error) {
	body := createKeyBody{AccountID: c.AccountID(), CreateKeyParams: *params}
	var out AppKey
	if err := c.api(ctx, "b2_create_key", &body, &out, CapWriteKeys); err != nil {
		return nil, err
	}
	return &out, nil
}

type deleteKeyBody struct {
	ApplicationKeyID string `json:"applicationKeyId"`
}

// DeleteKey deletes an application key.
func (c *Client) DeleteKey(ctx context.Context, applicationKeyID string) (*AppKey, error) {
	var out AppKey
	if err := c.api(ctx, "b2_delete_key", &deleteKeyBody{ApplicationKeyID: applicationKeyID}, &out, CapDeleteKeys); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListKeysParams configures b2_list_keys pagination.
type ListKeysParams struct {
	MaxKeyCount           int    `json:"maxKeyCount,omitempty"`
	StartApplicationKeyID string `json:"startApplicationKeyId,omitempty"`
}

type listKeysBody struct {
	AccountID string `json:"accountId"`
	ListKeysParams
}

// ListKeysResult is one page of application keys.
type ListKeysResult struct {
	Keys                 []AppKey `json:"keys"`
	NextApplicationKeyID *string  `json:"nextApplicationKeyId"`
}

// ListKeys lists the account's application keys.
func (c *Client) ListKeys(ctx context.Context, params *ListKeysParams) (*ListKeysResult, error) {
	body := listKeysBody{AccountID: c.AccountID()}
	if params != nil {
		body.ListKeysParams = *params
	}
	var out ListKeysResult
	if err := c.api(ctx, "b2_list_keys", &body, &out, CapListKeys); err != nil {
		return nil, err
	}
	return &out, nil
}
