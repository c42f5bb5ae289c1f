package b2

// Capability is a named permission attached to a B2 application key.
// The set is defined by the service; unknown values round-trip untouched.
type Capability string

const (
	CapListKeys                 Capability = "listKeys"
	CapWriteKeys                Capability = "writeKeys"
	CapDeleteKeys               Capability = "deleteKeys"
	CapListBuckets              Capability = "listBuckets"
	CapListAllBucketNames       Capability = "listAllBucketNames"
	CapReadBuckets              Capability = "readBuckets"
	CapWriteBuckets             Capability = "writeBuckets"
	CapDeleteBuckets            Capability = "deleteBuckets"
	CapReadBucketRetentions     Capability = "readBucketRetentions"
	CapWriteBucketRetentions    Capability = "writeBucketRetentions"
	CapReadBucketEncryption     Capability = "readBucketEncryption"
	CapWriteBucketEncryption    Capability = "writeBucketEncryption"
	CapListFiles                Capability = "listFiles"
	CapReadFiles                Capability = "readFiles"
	CapShareFiles               Capability = "shareFiles"
	CapWriteFiles               Capability = "writeFiles"
	CapDeleteFiles              Capability = "deleteFiles"
	CapReadFileLegalHolds       Capability = "readFileLegalHolds"
	CapWriteFileLegalHolds      Capability = "writeFileLegalHolds"
	CapReadFileRetentions       Capability = "readFileRetentions"
	CapWriteFileRetentions      Capability = "writeFileRetentions"
	CapBypassGovernance         Capability = "bypassGovernance"
	CapReadBucketReplications   Capability = "readBucketReplications"
	CapWriteBucketReplications  Capability = "writeBucketReplications"
	CapReadBucketNotifications  Capability = "readBucketNotifications"
	CapWriteBucketNotifications Capability = "writeBucketNotifications"
)

// HasCapability reports whether the authorized key carries cap.
func (a *AuthData) HasCapability(cap Capability) bool {
	for _, c := range a.APIInfo.StorageAPI.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

func (c *Client) require(caps ...Capability) error {
	auth := c.Auth()
	for _, cap := range caps {
		if !auth.HasCapability(cap) {
			return &CapabilityError{Capability: cap}
		}
	}
	return nil
}
