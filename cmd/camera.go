package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/staff-clock/internal/capture"
	"github.com/kozaktomas/staff-clock/internal/config"
	"github.com/kozaktomas/staff-clock/internal/recorder"
	"github.com/spf13/cobra"
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Camera source utilities",
}

var cameraSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Take one frame and write it as the JPEG that clock would submit",
	RunE:  runCameraSnapshot,
}

func init() {
	rootCmd.AddCommand(cameraCmd)
	cameraCmd.AddCommand(cameraSnapshotCmd)

	cameraSnapshotCmd.Flags().String("frames", "", "Directory with camera frames (required)")
	cameraSnapshotCmd.Flags().String("out", "snapshot.jpg", "Output file")
	_ = cameraSnapshotCmd.MarkFlagRequired("frames")
}

func runCameraSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cam := capture.NewCamera(capture.NewDirectoryDevice(mustGetString(cmd, "frames")))
	var frame capture.Frame
	err = capture.WithSession(ctx, cam, func(s *capture.Session) error {
		var err error
		frame, err = s.Capture(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("capturing frame: %w", err)
	}

	jpegData, err := recorder.EncodeSnapshot(frame.Data, cfg.Snapshot.MaxSize, cfg.Snapshot.Quality)
	if err != nil {
		return err
	}
	out := mustGetString(cmd, "out")
	if err := os.WriteFile(out, jpegData, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	fmt.Printf("Wrote %s (%d bytes, max %dpx, quality %d)\n", out, len(jpegData), cfg.Snapshot.MaxSize, cfg.Snapshot.Quality)
	return nil
}
