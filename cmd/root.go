package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "staff-clock",
	Short: "Location and face verified time clock for school staff",
	Long: `Staff Clock records arrival, lunch and departure events for school staff.
An event is accepted only when the employee is within the allowed radius of
their school and a live photo matches the enrolled face descriptor.

The serve command runs the backend API. The clock, history and camera
commands act as the employee client against that API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
