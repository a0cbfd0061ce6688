package models

import "time"

// Event is the normalized event record stored in the events table
type Event struct {
	ID       *int64        `json:"id"`
	Name     *string       `json:"name"`
	Venue    *string       `json:"venue"`
	Date     EventDates    `json:"date"`
	Season   *int64        `json:"season"`
	Type     *string       `json:"type"`
	Location EventLocation `json:"location"`
}

// EventDates is the start/end window of an event
type EventDates struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// EventLocation is the postal address of an event
type EventLocation struct {
	Street     *string `json:"street"`
	PostalCode *string `json:"postalCode"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	Country    *string `json:"country"`
}

// Kind implements Record
func (e *Event) Kind() Kind { return KindEvent }

// RecordID implements Record
func (e *Event) RecordID() string { return idString(e.ID) }

// EventSource is an event document as returned by the search index
type EventSource struct {
	ID          sourceInt    `json:"id"`
	EventName   sourceString `json:"event_name"`
	EventCode   sourceString `json:"event_code"`
	DateStart   sourceTime   `json:"date_start"`
	DateEnd     sourceTime   `json:"date_end"`
	EventSeason sourceInt    `json:"event_season"`
	EventType   sourceString `json:"event_subtype"`
	Address1    sourceString `json:"event_address1"`
	PostalCode  sourceString `json:"event_postalcode"`
	City        sourceString `json:"event_city"`
	StateProv   sourceString `json:"event_stateprov"`
	CountryCode sourceString `json:"countryCode"`
}

// ToEvent converts EventSource (from the index) to the Event model
func (es *EventSource) ToEvent() *Event {
	return &Event{
		ID:    es.ID.ptr(),
		Name:  es.EventName.ptr(),
		Venue: es.EventCode.ptr(),
		Date: EventDates{
			Start: es.DateStart.ptr(),
			End:   es.DateEnd.ptr(),
		},
		Season: es.EventSeason.ptr(),
		Type:   es.EventType.ptr(),
		Location: EventLocation{
			Street:     es.Address1.ptr(),
			PostalCode: es.PostalCode.ptr(),
			City:       es.City.ptr(),
			State:      es.StateProv.ptr(),
			Country:    es.CountryCode.ptr(),
		},
	}
}
