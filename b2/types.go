package b2

import "time"

// Timestamp is a B2 upload timestamp: milliseconds since the Unix epoch.
type Timestamp int64

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

// Action describes what a file version represents.
type Action string

const (
	ActionUpload Action = "upload" // a regular uploaded file
	ActionStart  Action = "start"  // a large file that was started but not finished
	ActionHide   Action = "hide"   // a hide marker
	ActionFolder Action = "folder" // a virtual folder in file listings
)

// BucketType is the access class of a bucket.
type BucketType string

const (
	BucketAllPublic  BucketType = "allPublic"
	BucketAllPrivate BucketType = "allPrivate"
	BucketRestricted BucketType = "restricted"
	BucketSnapshot   BucketType = "snapshot"
	BucketShared     BucketType = "shared"
)

// LifecycleRule controls automatic hiding and deletion of file versions.
type LifecycleRule struct {
	DaysFromHidingToDeleting  *int   `json:"daysFromHidingToDeleting"`
	DaysFromUploadingToHiding *int   `json:"daysFromUploadingToHiding"`
	FileNamePrefix            string `json:"fileNamePrefix"`
}

// CORSRule is one entry of a bucket's CORS configuration.
type CORSRule struct {
	CORSRuleName      string   `json:"corsRuleName"`
	AllowedOrigins    []string `json:"allowedOrigins"`
	AllowedOperations []string `json:"allowedOperations"`
	AllowedHeaders    []string `json:"allowedHeaders,omitempty"`
	ExposeHeaders     []string `json:"exposeHeaders,omitempty"`
	MaxAgeSeconds     int      `json:"maxAgeSeconds"`
}

// ServerSideEncryption mirrors the SSE object B2 attaches to files and
// buckets. Mode is empty when encryption is disabled.
type ServerSideEncryption struct {
	Mode           string `json:"mode,omitempty"`
	Algorithm      string `json:"algorithm,omitempty"`
	CustomerKey    string `json:"customerKey,omitempty"`
	CustomerKeyMD5 string `json:"customerKeyMd5,omitempty"`
}

const (
	SSEModeB2 = "SSE-B2"
	SSEModeC  = "SSE-C"

	SSEAlgorithmAES256 = "AES256"
)

// RetentionSetting is an Object Lock retention mode plus its expiry.
type RetentionSetting struct {
	Mode                 string     `json:"mode,omitempty"`
	RetainUntilTimestamp *Timestamp `json:"retainUntilTimestamp,omitempty"`
}

const (
	RetentionGovernance = "governance"
	RetentionCompliance = "compliance"
)

// FileRetention is the capability-filtered view of a file's retention
// settings: Value is nil when the key cannot read them.
type FileRetention struct {
	IsClientAuthorizedToRead bool              `json:"isClientAuthorizedToRead"`
	Value                    *RetentionSetting `json:"value"`
}

// LegalHold is the capability-filtered view of a file's legal hold status.
type LegalHold struct {
	IsClientAuthorizedToRead bool    `json:"isClientAuthorizedToRead"`
	Value                    *string `json:"value"`
}

// Bucket describes one bucket in the account.
type Bucket struct {
	AccountID                   string                `json:"accountId"`
	BucketID                    string                `json:"bucketId"`
	BucketName                  string                `json:"bucketName"`
	BucketType                  BucketType            `json:"bucketType"`
	BucketInfo                  map[string]string     `json:"bucketInfo"`
	CORSRules                   []CORSRule            `json:"corsRules"`
	LifecycleRules              []LifecycleRule       `json:"lifecycleRules"`
	DefaultServerSideEncryption *ServerSideEncryption `json:"defaultServerSideEncryption,omitempty"`
	Revision                    int64                 `json:"revision"`
	Options                     []string              `json:"options,omitempty"`
}

// File is one file version as reported by the B2 API.
type File struct {
	AccountID            string                `json:"accountId"`
	Action               Action                `json:"action"`
	BucketID             string                `json:"bucketId"`
	ContentLength        int64                 `json:"contentLength"`
	ContentSHA1          string                `json:"contentSha1,omitempty"`
	ContentMD5           string                `json:"contentMd5,omitempty"`
	ContentType          string                `json:"contentType,omitempty"`
	FileID               string                `json:"fileId"`
	FileInfo             map[string]string     `json:"fileInfo,omitempty"`
	FileName             string                `json:"fileName"`
	FileRetention        *FileRetention        `json:"fileRetention,omitempty"`
	LegalHold            *LegalHold            `json:"legalHold,omitempty"`
	ReplicationStatus    string                `json:"replicationStatus,omitempty"`
	ServerSideEncryption *ServerSideEncryption `json:"serverSideEncryption,omitempty"`
	UploadTimestamp      Timestamp             `json:"uploadTimestamp"`
}

// FilePart is one uploaded part of a large file.
type FilePart struct {
	FileID               string                `json:"fileId"`
	PartNumber           int                   `json:"partNumber"`
	ContentLength        int64                 `json:"contentLength"`
	ContentSHA1          string                `json:"contentSha1"`
	ContentMD5           string                `json:"contentMd5,omitempty"`
	ServerSideEncryption *ServerSideEncryption `json:"serverSideEncryption,omitempty"`
	UploadTimestamp      Timestamp             `json:"uploadTimestamp"`
}

// AppKey describes an application key. ApplicationKey (the secret) is only
// present in the response of CreateKey.
type AppKey struct {
	AccountID            string       `json:"accountId"`
	ApplicationKeyID     string       `json:"applicationKeyId"`
	ApplicationKey       string       `json:"applicationKey,omitempty"`
	BucketID             string       `json:"bucketId,omitempty"`
	Capabilities         []Capability `json:"capabilities"`
	ExpirationTimestamp  *Timestamp   `json:"expirationTimestamp,omitempty"`
	KeyName              string       `json:"keyName"`
	NamePrefix           string       `json:"namePrefix,omitempty"`
	Options              []string     `json:"options,omitempty"`
}
