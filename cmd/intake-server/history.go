package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ehr/intake/internal/domain/history"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/obstetrics"
	"github.com/ehr/intake/internal/domain/reconcile"
	"github.com/ehr/intake/internal/domain/timeline"
	"github.com/ehr/intake/internal/platform/storage"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the saved visits of a section",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetString("patient")
			name, _ := cmd.Flags().GetString("section")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)
			ctx := context.Background()
			st, err := openStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			return printHistory(ctx, st, patient, name, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("patient", "demo", "Patient id")
	cmd.Flags().String("section", "past_history", "Section name")
	return cmd
}

func printHistory(ctx context.Context, st storage.Store, patientID, name string, out io.Writer) error {
	info, err := intake.LookupSection(name)
	if err != nil {
		return err
	}
	data, ok, err := st.Get(ctx, intake.PatientKey(patientID, info.StorageKey))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "No saved visits for %s/%s.\n", patientID, name)
		return nil
	}
	if info.Kind == "" {
		return printVisits[*obstetrics.PregnancyRecord](out, data, info.ItemsField)
	}
	return printVisits[*history.Item](out, data, info.ItemsField)
}

func printVisits[T reconcile.Item[T]](out io.Writer, data []byte, field string) error {
	snaps, err := timeline.Codec[T]{ItemsField: field}.Unmarshal(data)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tANSWER\tITEMS")
	for _, s := range snaps {
		names := make([]string, len(s.Items))
		for i, it := range s.Items {
			names[i] = it.DisplayName()
		}
		answer := string(s.Answer)
		if answer == "" {
			answer = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Date, answer, strings.Join(names, ", "))
	}
	return w.Flush()
}
