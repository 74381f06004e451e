package queue

import "encoding/json"

const (
	EventFileStored  = "file.stored"
	EventFileDeleted = "file.deleted"

	eventVersion = 1
)

// Event tells downstream record keepers that a stored file appeared or went
// away, so they can reconcile their own references.
type Event struct {
	Type       string `json:"type"`
	FilePath   string `json:"filePath"`
	Category   string `json:"category,omitempty"`
	FileSize   int64  `json:"fileSize,omitempty"`
	FileType   string `json:"fileType,omitempty"`
	UploadedBy string `json:"uploadedBy,omitempty"`
	OccurredAt string `json:"occurredAt"`
	Version    int    `json:"version"`
}

// EncodeEvent returns the JSON representation of an event, stamping the
// current schema version when unset.
func EncodeEvent(evt Event) ([]byte, error) {
	if evt.Version == 0 {
		evt.Version = eventVersion
	}
	return json.Marshal(evt)
}

// DecodeEvent parses a JSON payload into an Event.
func DecodeEvent(payload []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, err
	}
	return evt, nil
}
