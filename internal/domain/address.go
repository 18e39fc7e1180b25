package domain

import "time"

type Address struct {
	ID           int64     `db:"id" json:"address_id"`
	UserID       int64     `db:"user_id" json:"-"`
	Street       string    `db:"street" json:"street"`
	BuildingName string    `db:"building_name" json:"building_name"`
	City         string    `db:"city" json:"city"`
	State        string    `db:"state" json:"state"`
	Country      string    `db:"country" json:"country"`
	Pincode      string    `db:"pincode" json:"pincode"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
