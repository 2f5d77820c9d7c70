package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/protolog"
)

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect serial protocol capture files (.rtlog)",
	}

	var direction, category, session string
	view := &cobra.Command{
		Use:   "view <file.rtlog>",
		Short: "Print capture events in human-readable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := protolog.Filter{SessionID: session}
			if direction != "" {
				d, err := protolog.ParseDirection(direction)
				if err != nil {
					return err
				}
				filter.Direction = &d
			}
			if category != "" {
				c, err := protolog.ParseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = &c
			}
			return runView(afero.NewOsFs(), args[0], filter, cmd.OutOrStdout())
		},
	}
	view.Flags().StringVar(&direction, "direction", "", "Filter by direction (in, out, internal)")
	view.Flags().StringVar(&category, "category", "", "Filter by category (line, control, state, error)")
	view.Flags().StringVar(&session, "session", "", "Filter by session id")

	stats := &cobra.Command{
		Use:   "stats <file.rtlog>",
		Short: "Summarize a capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(afero.NewOsFs(), args[0], cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(view, stats)
	return cmd
}

func runView(fs afero.Fs, path string, filter protolog.Filter, w io.Writer) error {
	reader, err := protolog.NewFilteredReader(fs, path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

func formatEvent(w io.Writer, event protolog.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	port := event.Port
	if port == "" {
		port = "-"
	}
	fmt.Fprintf(w, "%s [%s] [session:%s] %-8s %s\n",
		ts, port, shortID(event.SessionID), event.Direction, event.Category)

	switch {
	case event.Line != nil:
		fmt.Fprintf(w, "  %q (%d bytes)\n", event.Line.Text, event.Line.Size)
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(w, "  %s: %s -> %s", sc.Entity, dash(sc.OldState), sc.NewState)
		if sc.Reason != "" {
			fmt.Fprintf(w, " (%s)", sc.Reason)
		}
		fmt.Fprintln(w)
	case event.Error != nil:
		fmt.Fprintf(w, "  error: %s", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, " [%s]", event.Error.Context)
		}
		fmt.Fprintln(w)
	}
}

func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type logStats struct {
	total       int
	byDirection map[protolog.Direction]int
	byCategory  map[protolog.Category]int
	sessions    map[string]*sessionStats
	ports       map[string]int
	errors      int
	start, end  time.Time
}

type sessionStats struct {
	port        string
	first, last time.Time
	events      int
}

func runStats(fs afero.Fs, path string, w io.Writer) error {
	reader, err := protolog.NewReader(fs, path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	st := &logStats{
		byDirection: make(map[protolog.Direction]int),
		byCategory:  make(map[protolog.Category]int),
		sessions:    make(map[string]*sessionStats),
		ports:       make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		st.total++
		st.byDirection[event.Direction]++
		st.byCategory[event.Category]++
		if event.Port != "" {
			st.ports[event.Port]++
		}
		if event.Error != nil {
			st.errors++
		}
		if st.start.IsZero() || event.Timestamp.Before(st.start) {
			st.start = event.Timestamp
		}
		if event.Timestamp.After(st.end) {
			st.end = event.Timestamp
		}

		if event.SessionID == "" {
			continue
		}
		ss, ok := st.sessions[event.SessionID]
		if !ok {
			ss = &sessionStats{port: event.Port, first: event.Timestamp, last: event.Timestamp}
			st.sessions[event.SessionID] = ss
		}
		ss.events++
		if event.Timestamp.After(ss.last) {
			ss.last = event.Timestamp
		}
	}

	printStats(w, st)
	return nil
}

func printStats(w io.Writer, st *logStats) {
	fmt.Fprintln(w, "=== Race Timer Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if st.total > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", st.start.Format(time.RFC3339), st.end.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", st.end.Sub(st.start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", st.total)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, d := range []protolog.Direction{protolog.DirectionIn, protolog.DirectionOut, protolog.DirectionInternal} {
		if n := st.byDirection[d]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", d.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, c := range []protolog.Category{protolog.CategoryLine, protolog.CategoryControl, protolog.CategoryState, protolog.CategoryError} {
		if n := st.byCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	if len(st.ports) > 0 {
		names := make([]string, 0, len(st.ports))
		for p := range st.ports {
			names = append(names, p)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "Ports:")
		for _, p := range names {
			fmt.Fprintf(w, "  %-20s %d\n", p, st.ports[p])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(st.sessions))
	if len(st.sessions) > 0 {
		type entry struct {
			id string
			s  *sessionStats
		}
		list := make([]entry, 0, len(st.sessions))
		for id, s := range st.sessions {
			list = append(list, entry{id, s})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].s.first.Before(list[j].s.first) })
		for _, e := range list {
			fmt.Fprintf(w, "  [%s] %s: %d events, duration %s\n",
				shortID(e.id), dash(e.s.port), e.s.events, e.s.last.Sub(e.s.first).Round(time.Millisecond))
		}
	}

	if st.errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", st.errors)
	}
}
