package models

import "time"

// Session is one net: a time-bounded logging window opened by a controller.
// Expiry is always computed from SessionTime, never from CreatedAt.
type Session struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	ControllerID        string    `gorm:"size:64;not null;index" json:"controllerId"`
	ControllerName      string    `gorm:"size:128;not null" json:"controllerName"`
	ControllerEquipment *string   `gorm:"size:256" json:"controllerEquipment"`
	ControllerAntenna   *string   `gorm:"size:256" json:"controllerAntenna"`
	ControllerQTH       *string   `gorm:"column:controller_qth;size:256" json:"controllerQth"`
	SessionTime         time.Time `gorm:"not null;index" json:"sessionTime"`
	CreatedAt           time.Time `json:"createdAt"`

	Records []Record `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}
