package b2

import (
	"context"
	"time"
)

const (
	// DefaultAuthURL is the fixed entry point for b2_authorize_account.
	// Every other endpoint comes back in the authorization response.
	DefaultAuthURL = "https://api.backblazeb2.com"

	apiPrefix = "/b2api/v3/"
)

// StorageAPIInfo is the storage-API portion of an account authorization.
type StorageAPIInfo struct {
	AbsoluteMinimumPartSize int64        `json:"absoluteMinimumPartSize"`
	APIURL                  string       `json:"apiUrl"`
	BucketID                string       `json:"bucketId,omitempty"`
	BucketName              string       `json:"bucketName,omitempty"`
	Capabilities            []Capability `json:"capabilities"`
	DownloadURL             string       `json:"downloadUrl"`
	InfoType                string       `json:"infoType"`
	NamePrefix              string       `json:"namePrefix,omitempty"`
	RecommendedPartSize     int64        `json:"recommendedPartSize"`
	S3APIURL                string       `json:"s3ApiUrl"`
}

// APIInfo groups per-suite endpoint info in the authorization response.
type APIInfo struct {
	StorageAPI StorageAPIInfo `json:"storageApi"`
}

// AuthData is the result of b2_authorize_account. The authorization token
// is valid for at most 24 hours.
type AuthData struct {
	AccountID                         string     `json:"accountId"`
	APIInfo                           APIInfo    `json:"apiInfo"`
	AuthorizationToken                string     `json:"authorizationToken"`
	ApplicationKeyExpirationTimestamp *Timestamp `json:"applicationKeyExpirationTimestamp,omitempty"`
}

// StorageAPI is a shorthand for the storage-API endpoint info.
func (a AuthData) StorageAPI() StorageAPIInfo {
	return a.APIInfo.StorageAPI
}

// KeyExpiresAt returns the application key expiry, or the zero time when
// the key does not expire.
func (a AuthData) KeyExpiresAt() time.Time {
	if a.ApplicationKeyExpirationTimestamp == nil {
		return time.Time{}
	}
	return a.ApplicationKeyExpirationTimestamp.Time()
}

// AuthorizeAccount exchanges the key pair for fresh auth data and swaps it
// into the client. It is called by New and by the expiry refresher; callers
// normally never need it directly.
func (c *Client) AuthorizeAccount(ctx context.Context) (AuthData, error) {
	if c.Status() == StatusKeyExpired {
		return AuthData{}, ErrKeyExpired
	}

	var auth AuthData
	var apiErr APIError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.keyID, c.appKey).
		SetSuccessResult(&auth).
		SetErrorResult(&apiErr).
		Get(c.authURL + apiPrefix + "b2_authorize_account")

	if err := wrapResponse(resp, err, "b2_authorize_account", &apiErr); err != nil {
		return AuthData{}, err
	}

	c.mu.Lock()
	c.auth = auth
	c.status = StatusAuthed
	c.mu.Unlock()

	return auth, nil
}

// Auth returns a snapshot of the current auth data.
func (c *Client) Auth() AuthData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// AccountID returns the authorized account id.
func (c *Client) AccountID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth.AccountID
}

// Token returns the current account authorization token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth.AuthorizationToken
}
