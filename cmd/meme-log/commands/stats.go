package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/meme-go/meme/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Tables            map[string]*TableStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Role      log.Role
	Models    map[string]bool
}

// TableStats holds statistics for a single table path.
type TableStats struct {
	Requests     int
	Failures     int
	Replacements int
	LastRows     int
	TotalTime    time.Duration
	Timed        int
}

// MeanTime returns the mean processing time of timed responses.
func (t *TableStats) MeanTime() time.Duration {
	if t.Timed == 0 {
		return 0
	}
	return t.TotalTime / time.Duration(t.Timed)
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Tables:            make(map[string]*TableStats),
	}
}

func (s *Stats) table(path string) *TableStats {
	t, ok := s.Tables[path]
	if !ok {
		t = &TableStats{}
		s.Tables[path] = t
	}
	return t
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.ConnectionID != "" {
		conn, ok := s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Role:      event.LocalRole,
				Models:    make(map[string]bool),
			}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.Model != "" {
			conn.Models[event.Model] = true
		}
	}

	if m := event.Message; m != nil && event.Path != "" {
		t := s.table(event.Path)
		switch m.Type {
		case log.MessageTypeRequest:
			t.Requests++
		case log.MessageTypeResponse:
			if m.Status != nil && !m.Status.IsSuccess() {
				t.Failures++
			}
			if m.Rows != nil {
				t.LastRows = *m.Rows
			}
			if m.ProcessingTime != nil {
				t.TotalTime += *m.ProcessingTime
				t.Timed++
			}
		}
	}

	if sc := event.StateChange; sc != nil && sc.Entity == log.StateEntityTable && event.Path != "" {
		if sc.OldState != "" && sc.OldState != sc.NewState {
			s.table(event.Path).Replacements++
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Model Service Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s, %d events, duration %s\n",
				shortenConnID(c.id), c.stats.Role.String(), c.stats.Events, duration)
			if len(c.stats.Models) > 0 {
				models := make([]string, 0, len(c.stats.Models))
				for m := range c.stats.Models {
					models = append(models, m)
				}
				sort.Strings(models)
				fmt.Fprintf(w, "           Models: %v\n", models)
			}
		}
	}

	if len(stats.Tables) > 0 {
		paths := make([]string, 0, len(stats.Tables))
		for p := range stats.Tables {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		fmt.Fprintln(w)
		fmt.Fprintf(w, "Tables: %d\n", len(paths))
		for _, p := range paths {
			t := stats.Tables[p]
			fmt.Fprintf(w, "  %s\n", p)
			fmt.Fprintf(w, "           Requests: %d, failures: %d, replacements: %d\n",
				t.Requests, t.Failures, t.Replacements)
			if t.LastRows > 0 {
				fmt.Fprintf(w, "           Rows: %d\n", t.LastRows)
			}
			if t.Timed > 0 {
				fmt.Fprintf(w, "           Mean time: %s\n", formatDuration(t.MeanTime()))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
