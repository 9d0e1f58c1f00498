package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// Status definition video lifecycle status
type Status string

const (
	// StatusUploaded raw object is in the store, nothing queued yet
	StatusUploaded Status = "uploaded"
	// StatusQueued a transcode job was submitted
	StatusQueued Status = "queued"
	// StatusProcessing a worker picked the job up, stays here across retries
	StatusProcessing Status = "processing"
	// StatusProcessed finalized with variants, playable
	StatusProcessed Status = "processed"
	// StatusFailed attempts exhausted, needs an operator retry
	StatusFailed Status = "failed"
)

// transitions 影片狀態機, key is the current status
var transitions = map[Status][]Status{
	StatusUploaded:   {StatusQueued},
	StatusQueued:     {StatusProcessing},
	StatusProcessing: {StatusProcessed, StatusFailed},
	StatusFailed:     {StatusProcessing},
	StatusProcessed:  {},
}

// Valid report whether s is a known status
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition report whether from -> to is allowed. from == to is a guarded field update and is
// allowed for every known status.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Resolution closed set of rendition heights
type Resolution string

const (
	// Resolution480p baseline rendition, always produced
	Resolution480p Resolution = "480p"
	// Resolution720p produced when the source is tall enough
	Resolution720p Resolution = "720p"
)

// Height vertical pixels for the rendition
func (r Resolution) Height() int {
	switch r {
	case Resolution480p:
		return 480
	case Resolution720p:
		return 720
	}
	return 0
}

// ParseResolution map a stored string back to a Resolution
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case Resolution480p, Resolution720p:
		return Resolution(s), nil
	}
	return "", fmt.Errorf("unknown resolution %q", s)
}

// Variant one transcoded rendition
type Variant struct {
	Resolution Resolution `json:"resolution"`
	Key        string     `json:"key"`
}

// Variants ordered rendition list, stored as jsonb
type Variants []Variant

// Value implements driver.Valuer
func (v Variants) Value() (driver.Value, error) {
	if v == nil {
		v = Variants{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (v *Variants) Scan(src interface{}) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = Variants{}
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("variants: unsupported type %T", src)
	}
	var out Variants
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	for _, item := range out {
		if _, err := ParseResolution(string(item.Resolution)); err != nil {
			return err
		}
	}
	*v = out
	return nil
}

// Preferred pick the baseline rendition, else the first listed
func (v Variants) Preferred() (Variant, bool) {
	if len(v) == 0 {
		return Variant{}, false
	}
	for _, item := range v {
		if item.Resolution == Resolution480p {
			return item, true
		}
	}
	return v[0], true
}

// Has report whether a rendition of r is attached
func (v Variants) Has(r Resolution) bool {
	for _, item := range v {
		if item.Resolution == r {
			return true
		}
	}
	return false
}

// Video 定義影片模型
type Video struct {
	ID                  string     `gorm:"primaryKey;type:text" json:"id"`
	Title               string     `gorm:"not null;default:''" json:"title"`
	Status              Status     `gorm:"type:text;not null;index" json:"status"`
	RawKey              string     `gorm:"not null" json:"rawKey"`
	ThumbKey            *string    `json:"thumbKey,omitempty"`
	Variants            Variants   `gorm:"type:jsonb;not null;default:'[]'" json:"variants"`
	FailCount           int        `gorm:"not null;default:0" json:"failCount"`
	LastError           *string    `json:"lastError,omitempty"`
	CreatedAt           time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	ThumbGeneratedAt    *time.Time `json:"thumbGeneratedAt,omitempty"`
	TranscodedAt        *time.Time `json:"transcodedAt,omitempty"`
}

// TableName gorm table
func (Video) TableName() string {
	return "videos"
}

// Playable status is processed and a rendition exists
func (v *Video) Playable() bool {
	return v.Status == StatusProcessed && len(v.Variants) > 0
}

// Fields columns written together with a transition
type Fields struct {
	ThumbKey            *string
	Variants            Variants
	LastError           *string
	ClearLastError      bool
	IncrementFailCount  bool
	ProcessingStartedAt *time.Time
	ThumbGeneratedAt    *time.Time
	TranscodedAt        *time.Time
}

const (
	keyPrefix = "videos"
	rawBase   = "raw"
)

// RawKey object key for the uploaded source, ext includes the dot. An empty or bare "." ext means .mp4
func RawKey(videoID, ext string) string {
	if len(ext) <= 1 {
		ext = ".mp4"
	}
	return path.Join(keyPrefix, videoID, rawBase+ext)
}

// ThumbKey object key for the thumbnail
func ThumbKey(videoID string) string {
	return path.Join(keyPrefix, videoID, "thumb.jpg")
}

// VariantKey object key for a rendition
func VariantKey(videoID string, r Resolution) string {
	return path.Join(keyPrefix, videoID, string(r)+".mp4")
}

// ParseRawKey derive the video id from videos/<id>/raw.<ext>
func ParseRawKey(key string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	if len(parts) != 3 || parts[0] != keyPrefix || parts[1] == "" {
		return "", false
	}
	ext := path.Ext(parts[2])
	if ext == "" || len(ext) == 1 || strings.TrimSuffix(parts[2], ext) != rawBase {
		return "", false
	}
	return parts[1], true
}

// Validate check the fields against the target status: variants are written only when finalizing,
// and finalizing always carries at least one variant.
func (f Fields) Validate(next Status) error {
	if next == StatusProcessed && len(f.Variants) == 0 {
		return fmt.Errorf("%w: processed requires variants", ErrInvalidTransition)
	}
	if next != StatusProcessed && len(f.Variants) > 0 {
		return fmt.Errorf("%w: variants only attach on processed", ErrInvalidTransition)
	}
	if f.LastError != nil && f.ClearLastError {
		return fmt.Errorf("%w: lastError both set and cleared", ErrInvalidTransition)
	}
	return nil
}
