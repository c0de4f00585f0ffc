package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/model"
	"github.com/habitlog/internal/store"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	User     string
	Password string
	Days     int
	Seed     uint64
}

var demoTitles = map[model.BookGenre][]string{
	model.GenreNovel:     {"ノルウェイの森", "コンビニ人間", "博士の愛した数式", "火花"},
	model.GenrePractical: {"リーダブルコード", "Go言語による並行処理", "エッセンシャル思考"},
	model.GenreManga:     {"ハイキュー!!", "スラムダンク", "鋼の錬金術師"},
}

func newSeedCommand() *cobra.Command {
	so := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Overwrite an account with generated demo data",
		Example: `
habitlog seed --user demo --password demo123
habitlog seed --user demo --days 60 --seed 42
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := openDatabase()
			if err != nil {
				return err
			}
			if err := db.EnsureUser(db.DB, so.User, so.Password); err != nil {
				return err
			}

			seed := so.Seed
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			state := buildDemoState(appDefaults(cfg), time.Now(), so.Days, rand.New(rand.NewPCG(seed, seed>>1)))

			doc := model.DocumentFrom(state, model.AllFields...)
			if err := store.NewGormDocuments(db.DB).Overwrite(cmd.Context(), so.User, doc); err != nil {
				return fmt.Errorf("write demo document: %w", err)
			}

			_, _ = fmt.Fprintf(color.Output, "%s seeded %d days for %s (%d records, %d reading logs)\n",
				color.GreenString("✓"), so.Days, so.User, countRecords(state.Records), len(state.ReadingLogs))
			return nil
		},
	}

	cmd.Flags().StringVar(&so.User, "user", "demo", "account name")
	cmd.Flags().StringVar(&so.Password, "password", "", "create the account with this password when it does not exist")
	cmd.Flags().IntVar(&so.Days, "days", 90, "number of days to generate, ending today")
	cmd.Flags().Uint64Var(&so.Seed, "seed", 0, "random seed, 0 picks one from the clock")
	return cmd
}

// buildDemoState 生成最近 days 天的打卡、作业与读书记录。
// 每个习惯有固定的完成概率，读书习惯完成的日子会附带一条读书记录。
func buildDemoState(defaults model.Defaults, now time.Time, days int, rng *rand.Rand) model.State {
	state := defaults.State()
	if days <= 0 {
		return state
	}

	rates := make(map[string]float64, len(state.Habits))
	for _, habit := range state.Habits {
		rates[habit.ID] = 0.3 + rng.Float64()*0.55
	}
	tags := model.ActiveSortedTags(state.WorkTags)
	genres := []model.BookGenre{model.GenreNovel, model.GenrePractical, model.GenreManga}

	for _, date := range calendar.PastNDateStrings(now, days) {
		for _, habit := range state.Habits {
			if rng.Float64() < rates[habit.ID] {
				state.Records.Toggle(date, habit.ID)
			}
		}

		for _, tag := range tags {
			level := model.WorkLevel(rng.IntN(4))
			if level == 0 {
				continue
			}
			if state.WorkLogs[date] == nil {
				state.WorkLogs[date] = make(map[string]model.WorkLevel)
			}
			state.WorkLogs[date][tag.ID] = level
		}

		if !state.Records.Completed(date, defaults.ReadingHabitID) {
			continue
		}
		genre := genres[rng.IntN(len(genres))]
		titles := demoTitles[genre]
		entry := model.ReadingLog{
			ID:      uuid.NewString(),
			HabitID: defaults.ReadingHabitID,
			Date:    date,
			Genre:   genre,
			Status:  model.StatusReading,
			Title:   titles[rng.IntN(len(titles))],
		}
		if rng.IntN(5) == 0 {
			entry.Status = model.StatusFinished
		}
		if genre == model.GenreManga {
			count := 1 + rng.IntN(3)
			entry.Count = &count
		}
		state.ReadingLogs = append(state.ReadingLogs, entry)
	}

	return state
}

func countRecords(records model.RecordMap) int {
	total := 0
	for _, ids := range records {
		total += len(ids)
	}
	return total
}
