package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mutewatch/internal/platform"
	"github.com/jmylchreest/mutewatch/internal/strategy"
)

var probeOpts struct {
	json    bool
	timeout time.Duration
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run every detection strategy once and show the results",
	Long: `Run each volume and media detection strategy once, without muting, and
show what each one reported. The verdict is what the watchdog would decide
on its next poll.

Use this to find out why mutewatch does or does not mute on a machine.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().BoolVar(&probeOpts.json, "json", false, "Output JSON")
	probeCmd.Flags().DurationVar(&probeOpts.timeout, "timeout", 15*time.Second,
		"Overall time limit for the probe")
}

// ProbeReport is the probe command output.
type ProbeReport struct {
	Volume       ChainReport `json:"volume"`
	Media        ChainReport `json:"media"`
	WouldMute    bool        `json:"would_mute"`
	RestoreLevel *float64    `json:"restore_level,omitempty"`
}

// ChainReport is one chain's outcomes and verdict.
type ChainReport struct {
	Verdict  bool               `json:"verdict"`
	Outcomes []strategy.Outcome `json:"outcomes"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), probeOpts.timeout)
	defer cancel()

	comp, err := build(cfg, platform.Native(cfg.Commands.Timeout.Duration()), false, logger)
	if err != nil {
		return err
	}
	defer comp.close()

	var r ProbeReport
	r.Volume.Outcomes, r.Volume.Verdict = comp.volume.Explain(ctx)
	r.Media.Outcomes, r.Media.Verdict = comp.media.Explain(ctx)
	r.WouldMute = r.Volume.Verdict && r.Media.Verdict
	if level, ok := comp.volume.Level(ctx); ok {
		r.RestoreLevel = &level
	}

	if probeOpts.json {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	}
	printProbe(os.Stdout, r)
	return nil
}

func printProbe(w io.Writer, r ProbeReport) {
	printChain(w, "volume", "audible", r.Volume)
	fmt.Fprintln(w)
	printChain(w, "media", "active", r.Media)
	fmt.Fprintln(w)
	if r.RestoreLevel != nil {
		fmt.Fprintf(w, "master level: %.0f%%\n", *r.RestoreLevel*100)
	}
	fmt.Fprintf(w, "would mute:   %s\n", yesNo(r.WouldMute))
}

func printChain(w io.Writer, name, verdictLabel string, c ChainReport) {
	fmt.Fprintf(w, "%s (%s: %s)\n", name, verdictLabel, yesNo(c.Verdict))
	for _, o := range c.Outcomes {
		result := yesNo(o.Value)
		if !o.Definitive() {
			result = "inconclusive: " + o.Error
		}
		fmt.Fprintf(w, "  %-10s %-8s %s\n", o.Strategy, o.Elapsed.Round(time.Millisecond), result)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
