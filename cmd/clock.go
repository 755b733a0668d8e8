package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/staff-clock/internal/attendance"
	"github.com/kozaktomas/staff-clock/internal/backend"
	"github.com/kozaktomas/staff-clock/internal/biometric"
	"github.com/kozaktomas/staff-clock/internal/capture"
	"github.com/kozaktomas/staff-clock/internal/config"
	"github.com/kozaktomas/staff-clock/internal/location"
	"github.com/kozaktomas/staff-clock/internal/recorder"
	"github.com/kozaktomas/staff-clock/internal/verify"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Verify location and face, then record a clock event",
	Long: `Record a time-clock event for the employee owning BACKEND_TOKEN.

The position comes from --lat/--lng and frames are read from the --frames
directory in name order, one per capture. The event is submitted only when
the position is inside the school radius and a frame matches the enrolled
face descriptor.

Event types: ARRIVAL, LUNCH_OUT, LUNCH_RETURN, DEPARTURE.`,
	RunE: runClock,
}

func init() {
	rootCmd.AddCommand(clockCmd)

	clockCmd.Flags().String("type", "", "Event type (required)")
	clockCmd.Flags().Float64("lat", 0, "Current latitude (required)")
	clockCmd.Flags().Float64("lng", 0, "Current longitude (required)")
	clockCmd.Flags().Float64("accuracy", 10, "Reported position accuracy in meters")
	clockCmd.Flags().String("frames", "", "Directory with camera frames (required)")
	clockCmd.Flags().Int("attempts", 3, "Captures to try before giving up")
	clockCmd.Flags().Duration("wait", 2*time.Minute, "Maximum time to wait for the whole verification")
	clockCmd.Flags().Bool("quiet", false, "Hide the progress spinner")

	_ = clockCmd.MarkFlagRequired("type")
	_ = clockCmd.MarkFlagRequired("lat")
	_ = clockCmd.MarkFlagRequired("lng")
	_ = clockCmd.MarkFlagRequired("frames")
}

func runClock(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	eventType, err := attendance.ParseEventType(mustGetString(cmd, "type"))
	if err != nil {
		return err
	}
	metric, err := biometric.ParseMetric(cfg.Embedding.Metric)
	if err != nil {
		return err
	}
	attempts := mustGetInt(cmd, "attempts")
	if attempts < 1 {
		return errors.New("--attempts must be at least 1")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, mustGetDuration(cmd, "wait"))
	defer cancel()

	client, err := backend.NewClient(cfg.Backend.URL, cfg.Backend.Token)
	if err != nil {
		return err
	}
	profile, err := client.FetchProfile(ctx, cfg.Embedding.Dim)
	if err != nil {
		return fmt.Errorf("fetching employee profile: %w", err)
	}
	fmt.Printf("Employee: %s (%s)\n", profile.Name, profile.SchoolName)

	pos := location.Coordinate{Lat: mustGetFloat64(cmd, "lat"), Lng: mustGetFloat64(cmd, "lng")}
	engine, err := verify.New(*profile, verify.Options{
		RadiusMeters:   cfg.Proximity.RadiusMeters,
		MatchThreshold: cfg.Match.Threshold,
		Sensor: location.SensorOptions{
			HighAccuracy: cfg.Location.HighAccuracy,
			MaxFixAge:    cfg.Location.MaxFixAge,
			FixTimeout:   cfg.Location.FixTimeout,
		},
		AttemptTimeout: cfg.Attempt.Timeout,
		Printer:        verify.NewPrinter(cfg.Lang),
	}, verify.Dependencies{
		Locator:   location.NewMonitor(location.NewStaticSensor(pos, mustGetFloat64(cmd, "accuracy"), time.Second)),
		Camera:    capture.NewCamera(capture.NewDirectoryDevice(mustGetString(cmd, "frames"))),
		Matcher:   biometric.NewFaceClient(cfg.Embedding.URL, cfg.Embedding.Dim, metric),
		Submitter: recorder.New(client, profile.ID, recorder.Options{MaxSize: cfg.Snapshot.MaxSize, Quality: cfg.Snapshot.Quality}),
	})
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()
	defer func() {
		cancel()
		<-engine.Done()
	}()

	status, err := engine.WaitFor(ctx, func(s verify.Status) bool {
		return s.State == verify.StateReady || s.State == verify.StateBlocked || s.Fatal
	})
	if err != nil {
		return clockError(status, err, runErr)
	}
	fmt.Printf("Distance to school: %.0fm (limit %.0fm)\n", status.Proximity.DistanceMeters, cfg.Proximity.RadiusMeters)
	if status.State != verify.StateReady {
		return errors.New(status.Message)
	}

	if err := engine.Begin(ctx, eventType); err != nil {
		return err
	}

	quiet := mustGetBool(cmd, "quiet")
	for try := 1; try <= attempts; try++ {
		if err := engine.Capture(ctx); err != nil {
			return err
		}
		status, err = waitVerified(ctx, engine, quiet)
		if err != nil {
			return clockError(status, err, runErr)
		}

		switch {
		case status.State == verify.StateCompleted:
			fmt.Printf("%s\n", status.Message)
			if status.Ack != nil {
				fmt.Printf("  Event ID:  %d\n", status.Ack.ID)
				fmt.Printf("  Type:      %s\n", status.Ack.Event.EventType)
				fmt.Printf("  Attempt:   %s\n", status.Ack.Event.AttemptID)
			}
			return nil
		case status.SessionOpen && try < attempts:
			fmt.Printf("Attempt %d/%d: %s\n", try, attempts, status.Message)
		default:
			return errors.New(status.Message)
		}
	}
	return errors.New(status.Message)
}

// waitVerified blocks until the current capture settles in Completed or Failed.
func waitVerified(ctx context.Context, engine *verify.Engine, quiet bool) (verify.Status, error) {
	if quiet {
		return engine.WaitFor(ctx, settled)
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Verifying"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	for {
		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		status, err := engine.WaitFor(waitCtx, settled)
		cancel()
		if err == nil || ctx.Err() != nil || errors.Is(err, verify.ErrEngineStopped) {
			return status, err
		}
		bar.Describe(status.Message)
		_ = bar.Add(1)
	}
}

func settled(s verify.Status) bool {
	return s.State == verify.StateCompleted || s.State == verify.StateFailed
}

// clockError prefers the engine's own explanation over a bare context error.
func clockError(status verify.Status, err error, runErr <-chan error) error {
	select {
	case rerr := <-runErr:
		if rerr != nil {
			return rerr
		}
	default:
	}
	if status.Message != "" {
		return fmt.Errorf("%w: %s", err, status.Message)
	}
	return err
}
