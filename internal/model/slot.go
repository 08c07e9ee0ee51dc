package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// SlotDateLayout is the canonical date key of the ledger, e.g. "10_05_2024".
	SlotDateLayout = "02_01_2006"
	// SlotTimeLayout is the canonical time label of the ledger, e.g. "10:00 AM".
	SlotTimeLayout = "03:04 PM"

	slotDateInput = "2_1_2006"
	slotTimeInput = "3:04 PM"
)

// Slot identifies one bookable window of a doctor.
type Slot struct {
	Date string `json:"slot_date"`
	Time string `json:"slot_time"`
}

func (s Slot) String() string {
	return s.Date + " " + s.Time
}

// NormalizeSlotDate accepts D_M_YYYY or DD_MM_YYYY and returns the canonical key.
func NormalizeSlotDate(date string) (string, error) {
	t, err := time.Parse(slotDateInput, strings.TrimSpace(date))
	if err != nil {
		return "", fmt.Errorf("invalid slot date %q: expected DD_MM_YYYY", date)
	}
	return t.Format(SlotDateLayout), nil
}

// NormalizeSlotTime accepts h:mm AM or hh:mm AM (any meridiem case) and returns the canonical label.
func NormalizeSlotTime(label string) (string, error) {
	t, err := time.Parse(slotTimeInput, strings.ToUpper(strings.TrimSpace(label)))
	if err != nil {
		return "", fmt.Errorf("invalid slot time %q: expected hh:mm AM", label)
	}
	return t.Format(SlotTimeLayout), nil
}

// NormalizeSlot canonicalises both halves of a slot.
func NormalizeSlot(date, label string) (Slot, error) {
	d, err := NormalizeSlotDate(date)
	if err != nil {
		return Slot{}, err
	}
	t, err := NormalizeSlotTime(label)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: t}, nil
}

// SlotLedger maps a date key to the time labels already reserved on that date.
// A missing date key is an empty set. Labels within a date are unique.
type SlotLedger map[string][]string

// Has reports whether the slot is reserved.
func (l SlotLedger) Has(date, label string) bool {
	for _, t := range l[date] {
		if t == label {
			return true
		}
	}
	return false
}

// Add reserves the slot. It returns false when the label is already present.
func (l SlotLedger) Add(date, label string) bool {
	if l.Has(date, label) {
		return false
	}
	l[date] = append(l[date], label)
	return true
}

// Remove releases the slot. It returns false when the label was absent.
// The date key is kept with an empty set so callers see {"date": []}.
func (l SlotLedger) Remove(date, label string) bool {
	times, ok := l[date]
	if !ok {
		return false
	}
	for i, t := range times {
		if t == label {
			kept := make([]string, 0, len(times)-1)
			kept = append(kept, times[:i]...)
			l[date] = append(kept, times[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (l SlotLedger) Clone() SlotLedger {
	out := make(SlotLedger, len(l))
	for date, times := range l {
		out[date] = append([]string{}, times...)
	}
	return out
}

// Slots returns every reserved slot sorted by date key then label.
func (l SlotLedger) Slots() []Slot {
	var slots []Slot
	for date, times := range l {
		for _, t := range times {
			slots = append(slots, Slot{Date: date, Time: t})
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].Time < slots[j].Time
	})
	return slots
}

// Len returns the number of reserved slots.
func (l SlotLedger) Len() int {
	n := 0
	for _, times := range l {
		n += len(times)
	}
	return n
}

func (l SlotLedger) Value() (driver.Value, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l)
}

func (l *SlotLedger) Scan(src interface{}) error {
	*l = SlotLedger{}
	return scanJSON(src, l)
}
