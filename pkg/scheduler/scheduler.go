// Package scheduler fills open shift capacity for a day. It never writes
// placements itself: every pick goes through the ledger, so the ledger's
// rules decide whether a candidate fits.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/roster"
)

// Catalog lists shifts
type Catalog interface {
	ListShifts(ctx context.Context, filter models.ShiftFilter) ([]models.Shift, error)
}

// Directory lists staff
type Directory interface {
	ListStaff(ctx context.Context, filter models.StaffFilter) ([]models.Staff, error)
}

// Placer creates and reads placements
type Placer interface {
	Assign(ctx context.Context, staffID, shiftID string) (models.Assignment, error)
	ListAssignments(ctx context.Context, shiftID string) ([]models.Assignment, error)
}

// Unfilled describes capacity the planner could not fill
type Unfilled struct {
	ShiftID  string          `json:"shiftId"`
	TimeSlot models.TimeSlot `json:"timeSlot"`
	Open     int             `json:"open"`
	Reasons  []string        `json:"reasons"`
}

// Result is the outcome of one autofill run
type Result struct {
	Date          string              `json:"date"`
	Assignments   []models.Assignment `json:"assignments"`
	Unfilled      []Unfilled          `json:"unfilled"`
	Hours         map[string]int      `json:"hours"`
	FairnessScore float64             `json:"fairnessScore"`
}

// Planner assigns active staff to open shifts on a date
type Planner struct {
	catalog   Catalog
	directory Directory
	placer    Placer
	logger    *slog.Logger
}

// NewPlanner creates a planner
func NewPlanner(catalog Catalog, directory Directory, placer Placer, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{catalog: catalog, directory: directory, placer: placer, logger: logger}
}

// Autofill walks the date's shifts in slot order and fills each open seat
// with the active staff member holding the fewest hours that day, preferring
// staff whose preferred slot matches. Candidates the ledger rejects are
// skipped; seats nobody fits are reported with the rejection counts.
func (p *Planner) Autofill(ctx context.Context, date string) (Result, error) {
	if !roster.ValidDate(date) {
		return Result{}, ledger.Invalid("date", "must be YYYY-MM-DD")
	}

	shifts, err := p.catalog.ListShifts(ctx, models.ShiftFilter{Date: date})
	if err != nil {
		return Result{}, err
	}
	roster.SortShifts(shifts)

	all, err := p.directory.ListStaff(ctx, models.StaffFilter{})
	if err != nil {
		return Result{}, err
	}
	staff := make([]models.Staff, 0, len(all))
	for _, s := range all {
		if s.Active {
			staff = append(staff, s)
		}
	}

	hours := make(map[string]int, len(staff))
	for _, s := range staff {
		hours[s.ID] = 0
	}
	onShift := make(map[string]map[string]bool, len(shifts))
	for _, sh := range shifts {
		existing, err := p.placer.ListAssignments(ctx, sh.ID)
		if err != nil {
			return Result{}, err
		}
		onShift[sh.ID] = make(map[string]bool, len(existing))
		for _, a := range existing {
			onShift[sh.ID][a.StaffID] = true
			if _, ok := hours[a.StaffID]; ok {
				hours[a.StaffID] += sh.Hours()
			}
		}
	}

	res := Result{Date: date, Assignments: []models.Assignment{}, Unfilled: []Unfilled{}, Hours: hours}
	for _, sh := range shifts {
		open := sh.Capacity - len(onShift[sh.ID])
		for open > 0 {
			placed, rejections, full, err := p.fillSeat(ctx, sh, staff, hours, onShift[sh.ID])
			if err != nil {
				return Result{}, err
			}
			if full {
				break
			}
			if placed == nil {
				res.Unfilled = append(res.Unfilled, Unfilled{
					ShiftID:  sh.ID,
					TimeSlot: sh.TimeSlot,
					Open:     open,
					Reasons:  rejections.reasons(),
				})
				break
			}
			res.Assignments = append(res.Assignments, *placed)
			open--
		}
	}

	res.FairnessScore = CalculateFairnessScore(hours)
	p.logger.Info("autofill finished",
		"date", date,
		"placed", len(res.Assignments),
		"unfilled", len(res.Unfilled),
		"fairness", res.FairnessScore,
	)
	return res, nil
}

// fillSeat tries candidates in order until the ledger accepts one. full is
// set when the shift ran out of capacity underneath us.
func (p *Planner) fillSeat(ctx context.Context, sh models.Shift, staff []models.Staff, hours map[string]int, taken map[string]bool) (*models.Assignment, rejectionCounts, bool, error) {
	counts := rejectionCounts{}
	for _, candidate := range candidates(sh, staff, hours, taken) {
		a, err := p.placer.Assign(ctx, candidate.ID, sh.ID)
		if err == nil {
			taken[candidate.ID] = true
			hours[candidate.ID] += sh.Hours()
			return &a, counts, false, nil
		}
		var conflict *ledger.ConflictError
		switch {
		case errors.As(err, &conflict) && conflict.Reason == ledger.ReasonShiftFull:
			return nil, counts, true, nil
		case errors.As(err, &conflict):
			counts[conflict.Reason]++
		case ledger.IsNotFound(err, ledger.EntityStaff):
			counts[reasonInactive]++
		default:
			return nil, counts, false, err
		}
	}
	return nil, counts, false, nil
}

func candidates(sh models.Shift, staff []models.Staff, hours map[string]int, taken map[string]bool) []models.Staff {
	out := make([]models.Staff, 0, len(staff))
	for _, s := range staff {
		if !taken[s.ID] {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if hours[out[i].ID] != hours[out[j].ID] {
			return hours[out[i].ID] < hours[out[j].ID]
		}
		pi := out[i].PreferredSlot == sh.TimeSlot
		pj := out[j].PreferredSlot == sh.TimeSlot
		if pi != pj {
			return pi
		}
		return out[i].Code < out[j].Code
	})
	return out
}

const reasonInactive ledger.ConflictReason = "inactive"

type rejectionCounts map[ledger.ConflictReason]int

var reasonText = []struct {
	reason ledger.ConflictReason
	text   string
}{
	{ledger.ReasonOneShiftPerDay, "%d staff already had a shift that day"},
	{ledger.ReasonDailyHourCap, "%d staff were at the daily hour cap"},
	{ledger.ReasonAlreadyAssigned, "%d staff were already assigned"},
	{reasonInactive, "%d staff were deactivated"},
}

func (c rejectionCounts) reasons() []string {
	var out []string
	for _, rt := range reasonText {
		if n := c[rt.reason]; n > 0 {
			out = append(out, fmt.Sprintf(rt.text, n))
		}
	}
	if len(out) == 0 {
		out = append(out, "no active staff available")
	}
	return out
}

// CalculateFairnessScore returns a percentage (0-100) representing how evenly
// hours are distributed. 100% is perfectly fair (standard deviation 0).
func CalculateFairnessScore(hours map[string]int) float64 {
	if len(hours) == 0 {
		return 100.0
	}

	var sum float64
	for _, h := range hours {
		sum += float64(h)
	}

	if sum == 0 {
		return 100.0 // Everyone having 0 hours is perfectly fair
	}

	mean := sum / float64(len(hours))

	var varianceSum float64
	for _, h := range hours {
		diff := float64(h) - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(hours)))

	// 100% means SD is 0. 0% means SD is >= mean.
	score := (1.0 - (stdDev / mean)) * 100.0
	if score < 0 {
		return 0.0
	}
	return math.Round(score*100) / 100
}
