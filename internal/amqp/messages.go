package amqp

import (
	"encoding/json"
	"time"
)

// RecordChangedMessage tells the worker that a financial record was written
// and its yearly series need a refresh. It carries identifiers only; the
// worker reads the full record from storage.
type RecordChangedMessage struct {
	RecordKind string    `json:"record_kind"`
	RecordID   string    `json:"record_id"`
	ActivityID string    `json:"activity_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecordChangedMessage(recordKind, recordID, activityID string) *RecordChangedMessage {
	return &RecordChangedMessage{
		RecordKind: recordKind,
		RecordID:   recordID,
		ActivityID: activityID,
		Timestamp:  time.Now(),
	}
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
