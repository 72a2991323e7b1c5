package models

import "time"

// Record is one logged contact within a session. SessionID never changes
// after the row is created.
type Record struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID string    `gorm:"size:36;not null;index:idx_session_created" json:"sessionId"`
	Callsign  string    `gorm:"size:32;not null" json:"callsign"`
	QTH       *string   `gorm:"column:qth;size:256" json:"qth"`
	Equipment *string   `gorm:"size:256" json:"equipment"`
	Antenna   *string   `gorm:"size:256" json:"antenna"`
	Power     *string   `gorm:"size:64" json:"power"`
	Signal    *string   `gorm:"size:64" json:"signal"`
	Report    *string   `gorm:"size:64" json:"report"`
	Remarks   *string   `gorm:"type:text" json:"remarks"`
	CreatedAt time.Time `gorm:"index:idx_session_created" json:"createdAt"`
}
