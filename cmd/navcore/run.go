package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagewatch/navcore/internal/navjob"
	"github.com/pagewatch/navcore/internal/recorder"
)

var runFlags struct {
	endpoint     string
	url          string
	dir          string
	prefix       string
	videoSubdir  string
	trace        bool
	timeline     bool
	video        bool
	bodies       bool
	noopt        bool
	logData      bool
	stopAtOnload bool
	timeLimit    time.Duration
	activityTime time.Duration
	minDuration  time.Duration
	connectWait  time.Duration
	userAgent    string
	imageQuality int
}

// newRunCmd drives one measurement task against an already-running
// Chromium instance exposing remote debugging at --endpoint (the browser
// launcher that would get a browser to that state is an external
// collaborator per spec.md §1 — this command discovers a page tab and
// speaks the protocol once a debug port is reachable).
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Measure one page load and write its artifact bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runFlags.url = args[0]
			return runMeasurement()
		},
	}

	f := cmd.Flags()
	f.StringVar(&runFlags.endpoint, "endpoint", "http://localhost:9222", "Chromium remote-debugging endpoint")
	f.StringVar(&runFlags.dir, "dir", ".", "Output directory for artifacts")
	f.StringVar(&runFlags.prefix, "prefix", "run", "Artifact filename prefix")
	f.StringVar(&runFlags.videoSubdir, "video-dir", "video", "Subdirectory (under --dir) for screenshots")
	f.BoolVar(&runFlags.trace, "trace", false, "Capture a CPU profiler trace")
	f.BoolVar(&runFlags.timeline, "timeline", false, "Capture devtools timeline categories")
	f.BoolVar(&runFlags.video, "video", false, "Capture a screenshot filmstrip")
	f.BoolVar(&runFlags.bodies, "bodies", false, "Collect a zip of text response bodies")
	f.BoolVar(&runFlags.noopt, "noopt", false, "Disable optimization checks (bodies are then collected only with --bodies)")
	f.BoolVar(&runFlags.logData, "log-data", true, "Enable devtools event log, tracing, and body collection")
	f.BoolVar(&runFlags.stopAtOnload, "stop-at-onload", false, "Freeze activity tracking once load fires")
	f.DurationVar(&runFlags.timeLimit, "time-limit", 30*time.Second, "Hard timeout for the page load")
	f.DurationVar(&runFlags.activityTime, "activity-time", 2*time.Second, "Required network-quiet window before settling")
	f.DurationVar(&runFlags.minDuration, "min-duration", 0, "Minimum elapsed time before settle-checking applies")
	f.DurationVar(&runFlags.connectWait, "connect-timeout", 10*time.Second, "Timeout for discovery + dial")
	f.StringVar(&runFlags.userAgent, "user-agent", "", "User-agent override")
	f.IntVar(&runFlags.imageQuality, "image-quality", 85, "JPEG quality for screenshot artifacts")

	return cmd
}

func runMeasurement() error {
	job := navjob.Job{
		Trace:                      runFlags.trace,
		Timeline:                   runFlags.timeline,
		Video:                      runFlags.video,
		Bodies:                     runFlags.bodies,
		NoOptimizationChecks:       runFlags.noopt,
		UserAgent:                  runFlags.userAgent,
		ImageQuality:               runFlags.imageQuality,
		MinActivityGapBeforeSettle: runFlags.minDuration,
	}
	task := navjob.Task{
		ID:                navjob.NewID(),
		Dir:               runFlags.dir,
		Prefix:            runFlags.prefix,
		VideoSubdirectory: runFlags.videoSubdir,
		LogData:           runFlags.logData,
		StopAtOnload:      runFlags.stopAtOnload,
		TimeLimit:         runFlags.timeLimit,
		ActivityTime:      runFlags.activityTime,
	}

	rec, err := recorder.Connect(runFlags.endpoint, job, task, nil, runFlags.connectWait)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer rec.Close()

	if err := rec.Prepare(); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if err := rec.StartRecording(); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	if err := rec.Navigate(runFlags.url, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "navigate: %v\n", err)
	}

	reason, waitErr := rec.Session.WaitForPageLoad(task.TimeLimit, job.MinActivityGapBeforeSettle, task.ActivityTime)
	rec.StopRecording()

	if waitErr != nil {
		return fmt.Errorf("wait for page load (%s): %w", reason, waitErr)
	}
	if taskErr := rec.Session.Err(); taskErr != nil {
		return fmt.Errorf("task error: %w", taskErr)
	}
	fmt.Printf("done: %s (%s)\n", reason, rec.PathBase())
	return nil
}
