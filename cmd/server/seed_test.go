package main

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/model"
)

func TestBuildDemoStateStaysInRange(t *testing.T) {
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	defaults := model.DefaultConfig()

	state := buildDemoState(defaults, now, 30, rand.New(rand.NewPCG(7, 3)))

	window := make(map[string]struct{}, 30)
	for _, date := range calendar.PastNDateStrings(now, 30) {
		window[date] = struct{}{}
	}

	if countRecords(state.Records) == 0 {
		t.Fatalf("expected generated records")
	}
	for date, ids := range state.Records {
		if _, ok := window[date]; !ok {
			t.Fatalf("record date %s outside generated window", date)
		}
		for _, id := range ids {
			if model.FindHabit(state.Habits, id) < 0 {
				t.Fatalf("record references unknown habit %s", id)
			}
		}
	}

	for date, levels := range state.WorkLogs {
		for tagID, level := range levels {
			if level < 1 || level > 3 {
				t.Fatalf("work log %s/%s has invalid level %d", date, tagID, level)
			}
		}
	}

	for _, entry := range state.ReadingLogs {
		if !state.Records.Completed(entry.Date, defaults.ReadingHabitID) {
			t.Fatalf("reading log on %s without a reading record", entry.Date)
		}
		if (entry.Genre == model.GenreManga) != (entry.Count != nil) {
			t.Fatalf("count must be present only for manga: %+v", entry)
		}
	}
}

func TestBuildDemoStateIsDeterministic(t *testing.T) {
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	defaults := model.DefaultConfig()

	a := buildDemoState(defaults, now, 14, rand.New(rand.NewPCG(1, 2)))
	b := buildDemoState(defaults, now, 14, rand.New(rand.NewPCG(1, 2)))

	if countRecords(a.Records) != countRecords(b.Records) || len(a.ReadingLogs) != len(b.ReadingLogs) {
		t.Fatalf("expected identical output for identical seeds")
	}
}

func TestBuildDemoStateWithoutDays(t *testing.T) {
	state := buildDemoState(model.DefaultConfig(), time.Now(), 0, rand.New(rand.NewPCG(1, 1)))
	if len(state.Records) != 0 || len(state.ReadingLogs) != 0 {
		t.Fatalf("expected empty demo state, got %+v", state)
	}
}
