package ledger_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/store/memory"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// ledgerHolds reports whether every shift's count matches its assignments,
// stays within capacity, and no staff member exceeds the rules on any date.
func ledgerHolds(ctx context.Context, store *memory.Store, l *ledger.Ledger) error {
	shifts, err := store.ListShifts(ctx, models.ShiftFilter{})
	if err != nil {
		return err
	}
	hours := map[string]int{}
	perDay := map[string]int{}
	for _, sh := range shifts {
		items, err := l.ListAssignments(ctx, sh.ID)
		if err != nil {
			return err
		}
		if len(items) != sh.AssignedCount {
			return fmt.Errorf("shift %s: count %d, assignments %d", sh.ID, sh.AssignedCount, len(items))
		}
		if sh.AssignedCount > sh.Capacity {
			return fmt.Errorf("shift %s over capacity", sh.ID)
		}
		seen := map[string]bool{}
		for _, a := range items {
			if seen[a.StaffID] {
				return fmt.Errorf("shift %s: staff %s booked twice", sh.ID, a.StaffID)
			}
			seen[a.StaffID] = true
			key := a.StaffID + "|" + sh.Date
			hours[key] += sh.Hours()
			perDay[key]++
		}
	}
	rules := l.Rules()
	for key, h := range hours {
		if h > rules.DailyHourCap {
			return fmt.Errorf("%s: %d hours", key, h)
		}
		if rules.OneShiftPerDay && perDay[key] > 1 {
			return fmt.Errorf("%s: %d shifts", key, perDay[key])
		}
	}
	return nil
}

func TestLedgerInvariantsUnderRandomOperations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for _, rules := range []ledger.Rules{
		ledger.DefaultRules(),
		{DailyHourCap: 8, OneShiftPerDay: false},
	} {
		rules := rules
		name := fmt.Sprintf("invariants hold (cap=%d, oneShiftPerDay=%v)", rules.DailyHourCap, rules.OneShiftPerDay)
		properties.Property(name, prop.ForAll(
			func(ops []int) bool {
				ctx := context.Background()
				store := memory.NewStore()
				for i := 0; i < 4; i++ {
					store.PutStaff(newStaff(fmt.Sprint(i)))
				}
				dates := []string{"2024-01-10", "2024-01-11"}
				var shiftIDs []string
				for _, date := range dates {
					for i, slot := range models.TimeSlots() {
						id := date + "-" + string(slot)
						store.PutShift(newShift(id, date, slot, 1+i%2))
						shiftIDs = append(shiftIDs, id)
					}
				}
				l := ledger.New(store, ledger.WithRules(rules))

				var made []string
				for _, op := range ops {
					staff := fmt.Sprint((op / 3) % 4)
					shift := shiftIDs[(op/12)%len(shiftIDs)]
					if op%3 == 2 && len(made) > 0 {
						idx := (op / 7) % len(made)
						if _, err := l.Unassign(ctx, made[idx]); err != nil {
							t.Logf("unassign: %v", err)
							return false
						}
						made = append(made[:idx], made[idx+1:]...)
					} else {
						a, err := l.Assign(ctx, staff, shift)
						if err == nil {
							made = append(made, a.ID)
						} else if !ledgerConflict(err) {
							t.Logf("assign: %v", err)
							return false
						}
					}
					if err := ledgerHolds(ctx, store, l); err != nil {
						t.Logf("after op %d: %v", op, err)
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.IntRange(0, 999)),
		))
	}

	properties.TestingRun(t)
}

func ledgerConflict(err error) bool {
	for _, r := range []ledger.ConflictReason{
		ledger.ReasonAlreadyAssigned,
		ledger.ReasonShiftFull,
		ledger.ReasonOneShiftPerDay,
		ledger.ReasonDailyHourCap,
	} {
		if ledger.IsConflict(err, r) {
			return true
		}
	}
	return false
}
