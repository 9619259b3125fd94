package model

import "time"

// MaxPeople is the upper bound offered by clients for NumPeople.  It is not
// enforced by validation.
const MaxPeople = 500

// Reservation is a booking of the shared space for one time slot on one
// date.  Dates are stored as "YYYY-MM-DD" and times as "HH:MM" or
// "HH:MM:SS"; both compare correctly as strings once normalised.
//
// Fields:
//  ID              – 16 lowercase hex characters, assigned at creation.
//  UserID          – owner of the reservation.
//  UserEmail       – owner's email captured at creation, never re-synced.
//  Area            – requesting area or department.
//  Responsible     – person in charge of the booking.
//  NumPeople       – expected attendance, always > 0.
//  ReservationDate – calendar date of the slot.
//  StartTime       – inclusive start of the slot.
//  EndTime         – exclusive end of the slot.
//  Comment         – optional free text.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              string    `json:"id"`               // reservations.id
	UserID          uint64    `json:"user_id"`          // reservations.user_id
	UserEmail       string    `json:"user_email"`       // reservations.user_email
	Area            string    `json:"area"`             // reservations.area
	Responsible     string    `json:"responsible"`      // reservations.responsible
	NumPeople       int       `json:"num_people"`       // reservations.num_people
	ReservationDate string    `json:"reservation_date"` // reservations.reservation_date
	StartTime       string    `json:"start_time"`       // reservations.start_time
	EndTime         string    `json:"end_time"`         // reservations.end_time
	Comment         string    `json:"comment"`          // reservations.comment
	CreatedAt       time.Time `json:"created_at"`       // reservations.created_at
	UpdatedAt       time.Time `json:"updated_at"`       // reservations.updated_at
}

// Stats summarises the reservations visible to an identity.
type Stats struct {
	Total    int `json:"total"`
	Today    int `json:"today"`
	Upcoming int `json:"upcoming"`
}
