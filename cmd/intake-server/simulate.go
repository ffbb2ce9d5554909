package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehr/intake/internal/domain/history"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/simulation"
	"github.com/ehr/intake/internal/domain/timeline"
	"github.com/ehr/intake/internal/platform/clock"
	"github.com/ehr/intake/internal/platform/storage"
	"github.com/ehr/intake/internal/platform/telemetry"
)

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted visit and print the saved past history",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetString("patient")
			modeFlag, _ := cmd.Flags().GetString("mode")
			persist, _ := cmd.Flags().GetBool("persist")

			mode, err := simulation.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)
			fixtures, err := simulation.LoadFixtures(cfg.FixturesFile)
			if err != nil {
				return err
			}

			ctx := context.Background()
			var st storage.Store = storage.NewMemory()
			if persist {
				if st, err = openStorage(ctx, cfg, logger); err != nil {
					return err
				}
			}
			defer st.Close()

			opts := registryOptions(cfg, st, fixtures, telemetry.New(), clock.Real{}, logger)
			return runScenario(ctx, opts, patient, mode, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("patient", "demo", "Patient id")
	cmd.Flags().String("mode", string(simulation.ModeFirstVisit), "first_visit or has_previous_visit")
	cmd.Flags().Bool("persist", false, "Write to the configured storage instead of memory")
	return cmd
}

// runScenario drives one visit through the session API. In first_visit the
// first default condition is marked active since 2020; in
// has_previous_visit every section copies the previous visit. The past
// history section is then answered, saved and printed as persisted.
func runScenario(ctx context.Context, opts intake.Options, patientID string, mode simulation.Mode, out io.Writer) error {
	reg := intake.NewRegistry(opts)
	defer reg.Close()

	s, release, err := reg.Acquire(ctx, patientID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.SetMode(mode); err != nil {
		return err
	}
	past, err := s.HistorySection("past_history")
	if err != nil {
		return err
	}

	switch mode {
	case simulation.ModeFirstVisit:
		items := past.Store().List()
		if len(items) == 0 {
			return fmt.Errorf("no default conditions to mark")
		}
		first := items[0]
		if _, err := s.UpdateItem("past_history", first.ID, &history.Item{
			Name: first.Name, Status: history.StatusActive, Since: "2020",
		}); err != nil {
			return err
		}
	case simulation.ModeHasPreviousVisit:
		if err := past.CopyPrevious(); err != nil {
			return err
		}
	}

	if err := past.SetAnswer(timeline.AnswerYes); err != nil {
		return err
	}
	if _, err := past.Save(ctx); err != nil {
		return err
	}

	data, ok, err := opts.Storage.Get(ctx, intake.PatientKey(patientID, "past_history_2_visits"))
	if err != nil {
		return fmt.Errorf("read back visits: %w", err)
	}
	if !ok {
		return fmt.Errorf("visits were not persisted")
	}
	var pretty any
	if err := json.Unmarshal(data, &pretty); err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}
