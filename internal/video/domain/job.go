package domain

import "time"

const (
	// QueueName definition queue name
	QueueName = "transcode"
)

// TranscodeJob 定義轉碼工作訊息, the queue payload
type TranscodeJob struct {
	VideoID string `json:"videoId"`
	RawKey  string `json:"rawKey"`
}

// DeadLetterRecord a job that exhausted its attempts
type DeadLetterRecord struct {
	ID       string    `bson:"_id" json:"id"`
	VideoID  string    `bson:"videoId" json:"videoId"`
	JobID    string    `bson:"jobId" json:"jobId"`
	Error    string    `bson:"error" json:"error"`
	Attempts int       `bson:"attempts" json:"attempts"`
	FailedAt time.Time `bson:"failedAt" json:"failedAt"`
}

// PlaybackRef time-limited reference to a rendition
type PlaybackRef struct {
	URL        string     `json:"playbackUrl"`
	Resolution Resolution `json:"variant"`
	ExpiresIn  int        `json:"expiresIn"`
}

// UploadSlot presigned PUT handed to the client
type UploadSlot struct {
	VideoID   string `json:"videoId"`
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	ExpiresIn int    `json:"expiresIn"`
}
