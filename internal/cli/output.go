package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/hako/durafmt"

	"github.com/mcoot/playerwatch/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	out    io.Writer
	errOut io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, out, errOut io.Writer) *Output {
	return &Output{format: format, out: out, errOut: errOut}
}

// StatsResult combines the polling summary with the cycles it covers
type StatsResult struct {
	Summary response.PollingSummary `json:"summary"`
	Cycles  []response.PollingCycle `json:"cycles"`
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		_, _ = fmt.Fprintln(o.errOut, string(data))
	} else {
		_, _ = fmt.Fprintf(o.errOut, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.out, string(data))
	} else {
		_, _ = fmt.Fprintln(o.out, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Player:
		o.printPlayer(v)
	case []response.PlayerStatus:
		o.printPlayers(v)
	case []response.NameChange:
		o.printNames(v)
	case response.Activity:
		o.printActivity(v)
	case response.PollingCycle:
		o.printCycle(v)
	case StatsResult:
		o.printStats(v)
	case response.SchedulerStatus:
		o.printStatus(v)
	case response.Health:
		o.printHealth(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.out, format, args...)
}

func (o *Output) printPlayer(p response.Player) {
	o.printf("Player: %s (%d)\n", p.CurrentName, p.ID)
	o.printf("BattleMetrics ID: %s\n", p.UpstreamID)
	o.printf("Server: %s\n", p.ServerID)
	o.printf("Tracked since: %s\n", humanize.Time(p.CreatedAt))
}

func (o *Output) printPlayers(players []response.PlayerStatus) {
	if len(players) == 0 {
		o.printf("No players tracked\n")
		return
	}

	tw := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSESSION\tLAST POLLED")
	for _, p := range players {
		status, session, polled := "unknown", "-", "never"
		if s := p.LatestSnapshot; s != nil {
			polled = humanize.Time(s.Timestamp)
			status = "offline"
			if s.IsOnline {
				status = "online"
			}
			session = describeSession(*s)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.Player.ID, p.Player.CurrentName, status, session, polled)
	}
	_ = tw.Flush()
}

// describeSession summarises the session a snapshot reports
func describeSession(s response.Snapshot) string {
	switch {
	case s.IsOnline && s.DurationSec != nil:
		return "online for " + formatSeconds(*s.DurationSec)
	case s.IsOnline:
		return "online"
	case s.SessionEnd != nil:
		return "last seen " + humanize.Time(*s.SessionEnd)
	default:
		return "-"
	}
}

func (o *Output) printNames(names []response.NameChange) {
	if len(names) == 0 {
		o.printf("No name changes recorded\n")
		return
	}
	for _, n := range names {
		o.printf("%s  %s (%s)\n", n.ChangedAt.Format(time.RFC3339), n.Name, humanize.Time(n.ChangedAt))
	}
}

func (o *Output) printActivity(a response.Activity) {
	o.printf("Player: %d (last %d hours)\n", a.PlayerID, a.Hours)
	o.printf("Snapshots: %s (%s online, %.1f%%)\n",
		humanize.Comma(int64(a.SnapshotCount)), humanize.Comma(int64(a.OnlineCount)), a.OnlineRatio*100)
	o.printf("Sessions: %d\n", a.Sessions)
	if a.LongestSession != nil {
		o.printf("Longest session: %s\n", formatSeconds(*a.LongestSession))
	}
	if a.LastSeenOnline != nil {
		o.printf("Last seen online: %s\n", humanize.Time(*a.LastSeenOnline))
	}
}

func (o *Output) printCycle(c response.PollingCycle) {
	o.printf("Cycle %s\n", c.RunID)
	o.printf("Players: %d polled, %d ok, %d failed\n", c.PlayersCount, c.SuccessCount, c.ErrorCount)
	o.printf("Duration: %s\n", formatDuration(time.Duration(c.DurationMs)*time.Millisecond))
	for _, e := range c.Errors {
		o.printf("  - %s\n", e)
	}
}

func (o *Output) printStats(s StatsResult) {
	o.printf("Last %d hours\n", s.Summary.Hours)
	o.printf("Polls: %s (%s fully successful, %.1f%%)\n",
		humanize.Comma(int64(s.Summary.TotalPolls)), humanize.Comma(int64(s.Summary.SuccessfulPolls)), s.Summary.SuccessRate)
	o.printf("Average duration: %s\n", formatDuration(time.Duration(s.Summary.AvgDurationMs*float64(time.Millisecond))))
	o.printf("Player errors: %s\n", humanize.Comma(int64(s.Summary.TotalErrors)))

	if len(s.Cycles) == 0 {
		return
	}
	o.printf("\nRecent cycles:\n")
	tw := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "WHEN\tPLAYERS\tOK\tFAILED\tDURATION")
	for _, c := range s.Cycles {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n",
			humanize.Time(c.Timestamp), c.PlayersCount, c.SuccessCount, c.ErrorCount,
			formatDuration(time.Duration(c.DurationMs)*time.Millisecond))
	}
	_ = tw.Flush()
}

func (o *Output) printStatus(s response.SchedulerStatus) {
	o.printf("State: %s\n", s.State)
	o.printf("Scheduled: %s\n", yesNo(s.IsScheduled))
	o.printf("Running: %s\n", yesNo(s.IsRunning))
	o.printf("Interval: %s\n", formatDuration(time.Duration(s.IntervalMinutes*float64(time.Minute))))
	if s.LastRunAt != nil {
		o.printf("Last run: %s\n", humanize.Time(*s.LastRunAt))
	}
	if s.NextRunAt != nil {
		o.printf("Next run: %s\n", humanize.Time(*s.NextRunAt))
	}
	o.printf("Cycles: %d run, %d skipped\n", s.CyclesRun, s.CyclesSkipped)
	if s.LastError != "" {
		o.printf("Last error: %s\n", s.LastError)
	}
}

func (o *Output) printHealth(h response.Health) {
	o.printf("Status: %s\n", h.Status)
}

func formatSeconds(sec int64) string {
	return formatDuration(time.Duration(sec) * time.Second)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return strings.TrimSpace(durafmt.Parse(d).LimitFirstN(2).String())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
