package notification

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// s3Event S3 / MinIO bucket notification envelope
type s3Event struct {
	Event   string     `json:"Event"`
	Records []s3Record `json:"Records"`
}

type s3Record struct {
	EventName string `json:"eventName"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`
}

// ObjectKeys object keys created by the event in body. Test events and non-create records yield
// no keys. Keys arrive url-encoded and are decoded here.
func ObjectKeys(body []byte) ([]string, error) {
	var ev s3Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode bucket event: %w", err)
	}
	if ev.Event == "s3:TestEvent" {
		return nil, nil
	}

	keys := make([]string, 0, len(ev.Records))
	for _, r := range ev.Records {
		if r.EventName != "" && !strings.Contains(r.EventName, "ObjectCreated") {
			continue
		}
		if r.S3.Object.Key == "" {
			continue
		}
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decode object key %q: %w", r.S3.Object.Key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
