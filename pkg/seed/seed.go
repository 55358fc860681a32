// Package seed loads staff and shifts from YAML roster files and builds the
// demo week used for local development.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/roster"
	"gopkg.in/yaml.v3"
)

// DemoCapacity is the headcount of every generated demo shift
const DemoCapacity = 2

// Roster is the content of a seed file
type Roster struct {
	Staff  []models.NewStaff `yaml:"staff" json:"staff"`
	Shifts []models.NewShift `yaml:"shifts" json:"shifts"`
}

// Target is where a roster gets written
type Target interface {
	CreateStaff(ctx context.Context, in models.NewStaff) (models.Staff, error)
	ListStaff(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error)
	CreateShift(ctx context.Context, in models.NewShift) (models.Shift, error)
	ListShifts(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error)
}

// Stats counts what Apply created and skipped
type Stats struct {
	StaffCreated  int `json:"staffCreated"`
	StaffSkipped  int `json:"staffSkipped"`
	ShiftsCreated int `json:"shiftsCreated"`
	ShiftsSkipped int `json:"shiftsSkipped"`
}

// Parse decodes a YAML roster. Unknown keys are rejected so typos surface.
func Parse(data []byte) (Roster, error) {
	var r Roster
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return Roster{}, nil
		}
		return Roster{}, fmt.Errorf("parse roster: %w", err)
	}
	return r, nil
}

// LoadFile reads and parses a roster file
func LoadFile(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read roster %s: %w", path, err)
	}
	return Parse(data)
}

// Validate returns one message per problem found. An empty result means
// every entry would be accepted by the stores.
func (r Roster) Validate() []string {
	var problems []string

	codes := make(map[string]bool)
	for i, in := range r.Staff {
		norm, err := roster.NormalizeStaff(in)
		if err != nil {
			problems = append(problems, fmt.Sprintf("staff[%d]: %v", i, err))
			continue
		}
		if norm.Code == "" {
			continue
		}
		if codes[norm.Code] {
			problems = append(problems, fmt.Sprintf("staff[%d]: duplicate code %s", i, norm.Code))
		}
		codes[norm.Code] = true
	}

	slots := make(map[string]bool)
	for i, in := range r.Shifts {
		norm, err := roster.NormalizeShift(in)
		if err != nil {
			problems = append(problems, fmt.Sprintf("shifts[%d]: %v", i, err))
			continue
		}
		key := shiftKey(norm)
		if slots[key] {
			problems = append(problems, fmt.Sprintf("shifts[%d]: duplicate %s %s shift", i, norm.Date, norm.TimeSlot))
		}
		slots[key] = true
	}
	return problems
}

// Apply writes the roster to target. Staff whose code already exists and
// shifts matching an existing date, slot and ward are skipped, so applying
// the same file twice is harmless.
func Apply(ctx context.Context, target Target, r Roster) (Stats, error) {
	var stats Stats
	if problems := r.Validate(); len(problems) > 0 {
		return stats, fmt.Errorf("invalid roster: %s", strings.Join(problems, "; "))
	}

	existing, err := target.ListStaff(ctx, models.StaffFilter{})
	if err != nil {
		return stats, err
	}
	codes := make(map[string]bool, len(existing))
	for _, s := range existing {
		codes[s.Code] = true
	}
	for _, in := range r.Staff {
		code := strings.TrimSpace(in.Code)
		if code != "" && codes[code] {
			stats.StaffSkipped++
			continue
		}
		if _, err := target.CreateStaff(ctx, in); err != nil {
			return stats, err
		}
		stats.StaffCreated++
	}

	shifts, err := target.ListShifts(ctx, models.ShiftFilter{})
	if err != nil {
		return stats, err
	}
	slots := make(map[string]bool, len(shifts))
	for _, sh := range shifts {
		slots[shiftKey(models.NewShift{Date: sh.Date, TimeSlot: sh.TimeSlot, Ward: sh.Ward})] = true
	}
	for _, in := range r.Shifts {
		norm, _ := roster.NormalizeShift(in)
		if slots[shiftKey(norm)] {
			stats.ShiftsSkipped++
			continue
		}
		if _, err := target.CreateShift(ctx, in); err != nil {
			return stats, err
		}
		slots[shiftKey(norm)] = true
		stats.ShiftsCreated++
	}
	return stats, nil
}

// DemoShifts returns every slot of each day from start for the given
// number of days, each with DemoCapacity seats.
func DemoShifts(start time.Time, days int) []models.NewShift {
	out := make([]models.NewShift, 0, days*len(models.TimeSlots()))
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(models.DateLayout)
		for _, slot := range models.TimeSlots() {
			out = append(out, models.NewShift{Date: date, TimeSlot: slot, Capacity: DemoCapacity})
		}
	}
	return out
}

func shiftKey(in models.NewShift) string {
	return in.Date + "|" + string(in.TimeSlot) + "|" + in.Ward
}
