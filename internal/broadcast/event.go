package broadcast

import (
	"encoding/json"

	"github.com/zulandar/netlog/internal/models"
)

// Event types carried over a subscription channel.
const (
	TypeConnected     = "connected"
	TypeRecordAdded   = "record_added"
	TypeRecordUpdated = "record_updated"
	TypeRecordDeleted = "record_deleted"
)

// Event is one change notification. Record is set for added/updated events,
// RecordID for deletes.
type Event struct {
	Type     string         `json:"type"`
	Record   *models.Record `json:"record,omitempty"`
	RecordID string         `json:"recordId,omitempty"`
}

// Connected is the acknowledgment sent once when a channel opens.
func Connected() Event {
	return Event{Type: TypeConnected}
}

// RecordAdded carries a newly persisted record.
func RecordAdded(r models.Record) Event {
	return Event{Type: TypeRecordAdded, Record: &r}
}

// RecordUpdated carries the full record after an update.
func RecordUpdated(r models.Record) Event {
	return Event{Type: TypeRecordUpdated, Record: &r}
}

// RecordDeleted carries only the removed record's id.
func RecordDeleted(id string) Event {
	return Event{Type: TypeRecordDeleted, RecordID: id}
}

// MarshalJSON pins the wire shape per type so a stray field never leaks into
// an event that does not define it.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeRecordAdded, TypeRecordUpdated:
		return json.Marshal(struct {
			Type   string         `json:"type"`
			Record *models.Record `json:"record"`
		}{e.Type, e.Record})
	case TypeRecordDeleted:
		return json.Marshal(struct {
			Type     string `json:"type"`
			RecordID string `json:"recordId"`
		}{e.Type, e.RecordID})
	}
	return json.Marshal(struct {
		Type string `json:"type"`
	}{e.Type})
}
