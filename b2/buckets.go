package b2

import (
	"context"
	"fmt"
)

// ListBucketsParams filters b2_list_buckets. All fields are optional.
type ListBucketsParams struct {
	BucketID    string       `json:"bucketId,omitempty"`
	BucketName  string       `json:"bucketName,omitempty"`
	BucketTypes []BucketType `json:"bucketTypes,omitempty"`
}

type listBucketsBody struct {
	AccountID string `json:"accountId"`
	ListBucketsParams
}

type listBucketsResponse struct {
	Buckets []Bucket `json:"buckets"`
}

// ListBuckets lists the buckets the key can see, optionally filtered.
func (c *Client) ListBuckets(ctx context.Context, params *ListBucketsParams) ([]Bucket, error) {
	body := listBucketsBody{AccountID: c.AccountID()}
	if params != nil {
		body.ListBucketsParams = *params
	}

	var out listBucketsResponse
	if err := c.api(ctx, "b2_list_buckets", &body, &out, CapListBuckets); err != nil {
		return nil, err
	}

	for i := range out.Buckets {
		c.bucketIDs.Add(out.Buckets[i].BucketName, out.Buckets[i].BucketID)
	}
	return out.Buckets, nil
}

// ResolveBucketID maps a bucket name to its id, consulting a small LRU
// before asking the service.
func (c *Client) ResolveBucketID(ctx context.Context, name string) (string, error) {
	if id, ok := c.bucketIDs.Get(name); ok {
		return id, nil
	}

	buckets, err := c.ListBuckets(ctx, &ListBucketsParams{BucketName: name})
	if err != nil {
		return "", err
	}
	for i := range buckets {
		if buckets[i].BucketName == name {
			return buckets[i].BucketID, nil
		}
	}
	return "", fmt.Errorf("b2: bucket %q not found", name)
}

// CreateBucketParams configures b2_create_bucket.
type CreateBucketParams struct {
	BucketName                  string                `json:"bucketName"`
	BucketType                  BucketType            `json:"bucketType"`
	BucketInfo                  map[string]string     `json:"bucketInfo,omitempty"`
	CORSRules                   []CORSRule            `json:"corsRules,omitempty"`
	LifecycleRules              []LifecycleRule       `json:"lifecycleRules,omitempty"`
	FileLockEnabled             bool                  `json:"fileLockEnabled,omitempty"`
	DefaultServerSideEncryption *ServerSideEncryption `json:"defaultServerSideEncryption,omitempty"`
}

type createBucketBody struct {
	AccountID string `json:"accountId"`
	CreateBucketParams
}

// CreateBucket creates a bucket owned by the authorized account.
func (c *Client) CreateBucket(ctx context.Context, params *CreateBucketParams) (*Bucket, error) {
	caps := []Capability{CapWriteBuckets}
	if params.FileLockEnabled {
		caps = append(caps, CapWriteBucketRetentions)
	}
	if params.DefaultServerSideEncryption != nil {
		caps = append(caps, CapWriteBucketEncryption)
	}

	body := createBucketBody{AccountID: c.AccountID(), CreateBucketParams: *params}
	var out Bucket
	if err := c.api(ctx, "b2_create_bucket", &body, &out, caps...); err != nil {
		return nil, err
	}
	c.bucketIDs.Add(out.BucketName, out.BucketID)
	return &out, nil
}

// UpdateBucketParams configures b2_update_bucket. IfRevisionIs guards
// against concurrent modification when non-zero.
type UpdateBucketParams struct {
	BucketID                    string                `json:"bucketId"`
	BucketType                  BucketType            `json:"bucketType,omitempty"`
	BucketInfo                  map[string]string     `json:"bucketInfo,omitempty"`
	CORSRules                   []CORSRule            `json:"corsRules,omitempty"`
	LifecycleRules              []LifecycleRule       `json:"lifecycleRules,omitempty"`
	DefaultServerSideEncryption *ServerSideEncryption `json:"defaultServerSideEncryption,omitempty"`
	DefaultRetention            *RetentionSetting     `json:"defaultRetention,omitempty"`
	IfRevisionIs                int64                 `json:"ifRevisionIs,omitempty"`
}

type updateBucketBody struct {
	AccountID string `json:"accountId"`
	UpdateBucketParams
}

// UpdateBucket updates bucket settings.
func (c *Client) UpdateBucket(ctx context.Context, params *UpdateBucketParams) (*Bucket, error) {
	body := updateBucketBody{AccountID: c.AccountID(), UpdateBucketParams: *params}
	var out Bucket
	if err := c.api(ctx, "b2_update_bucket", &body, &out, CapWriteBuckets); err != nil {
		return nil, err
	}
	return &out, nil
}

// Event types a bucket notification rule can subscribe to. A trailing
// wildcard covers every event in its class.
const (
	EventObjectCreatedUpload            = "b2:ObjectCreated:Upload"
	EventObjectCreatedMultipartUpload   = "b2:ObjectCreated:MultipartUpload"
	EventObjectCreatedCopy              = "b2:ObjectCreated:Copy"
	EventObjectCreatedReplica           = "b2:ObjectCreated:Replica"
	EventObjectCreatedMultipartReplica  = "b2:ObjectCreated:MultipartReplica"
	EventObjectCreatedAll               = "b2:ObjectCreated:*"
	EventObjectDeleted                  = "b2:ObjectDeleted:Delete"
	EventObjectDeletedLifecycleRule     = "b2:ObjectDeleted:LifecycleRule"
	EventObjectDeletedAll               = "b2:ObjectDeleted:*"
	EventHideMarkerCreated              = "b2:HideMarkerCreated:Hide"
	EventHideMarkerCreatedLifecycleRule = "b2:HideMarkerCreated:LifecycleRule"
	EventHideMarkerCreatedAll           = "b2:HideMarkerCreated:*"
)

// NotificationTargetWebhook is the only target type the service supports.
const NotificationTargetWebhook = "webhook"

// NotificationTarget says where a rule delivers its events.
type NotificationTarget struct {
	TargetType              string            `json:"targetType"`
	URL                     string            `json:"url"`
	HMACSHA256SigningSecret string            `json:"hmacSha256SigningSecret,omitempty"`
	CustomHeaders           map[string]string `json:"customHeaders,omitempty"`
}

// NotificationRule is one event notification rule on a bucket. Name must
// be unique within the bucket.
type NotificationRule struct {
	Name                string             `json:"name"`
	EventTypes          []string           `json:"eventTypes"`
	IsEnabled           bool               `json:"isEnabled"`
	ObjectNamePrefix    string             `json:"objectNamePrefix"`
	IsSuspended         *bool              `json:"isSuspended,omitempty"`
	MaxEventsPerBatch   int                `json:"maxEventsPerBatch,omitempty"`
	SuspensionReason    string             `json:"suspensionReason,omitempty"`
	TargetConfiguration NotificationTarget `json:"targetConfiguration"`
}

// BucketNotificationRules is the full rule set of one bucket. Setting it
// replaces the bucket's existing rules.
type BucketNotificationRules struct {
	BucketID               string             `json:"bucketId"`
	EventNotificationRules []NotificationRule `json:"eventNotificationRules"`
}

// GetBucketNotificationRules fetches the bucket's event notification rules.
func (c *Client) GetBucketNotificationRules(ctx context.Context, bucketID string) (*BucketNotificationRules, error) {
	var out BucketNotificationRules
	query := map[string]string{"bucketId": bucketID}
	if err := c.apiGet(ctx, "b2_get_bucket_notification_rules", query, &out, CapReadBucketNotifications); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetBucketNotificationRules replaces the bucket's event notification rules
// with the given set.
func (c *Client) SetBucketNotificationRules(ctx context.Context, rules *BucketNotificationRules) (*BucketNotificationRules, error) {
	var out BucketNotificationRules
	if err := c.api(ctx, "b2_set_bucket_notification_rules", rules, &out, CapWriteBucketNotifications); err != nil {
		return nil, err
	}
	return &out, nil
}

type deleteBucketBody struct {
	AccountID string `json:"accountId"`
	BucketID  string `json:"bucketId"`
}

// DeleteBucket deletes a bucket. The bucket must be empty.
func (c *Client) DeleteBucket(ctx context.Context, bucketID string) (*Bucket, error) {
	body := deleteBucketBody{AccountID: c.AccountID(), BucketID: bucketID}
	var out Bucket
	if err := c.api(ctx, "b2_delete_bucket", &body, &out, CapDeleteBuckets); err != nil {
		return nil, err
	}
	c.bucketIDs.Remove(out.BucketName)
	return &out, nil
}
