package entities

// ArchiveLocation is the result of one archive attempt. Failed attempts are
// returned as data too: Success is false and Err says why.
type ArchiveLocation struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	ETag    string `json:"etag,omitempty"`
	URL     string `json:"url,omitempty"`
	Success bool   `json:"success"`

	Err error `json:"-"`
}
