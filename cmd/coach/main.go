package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/andywang514/violin-coach/pkg/coach"
)

var (
	dbPath   string
	refPitch float64
)

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "Violin practice coach",
	Long:  `Grades violin performances against a score, beat by beat, and keeps a practice history.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db",
		getEnvOrDefault("COACH_DB_PATH", "violin-coach.sqlite3"),
		"path to the practice history database")
	rootCmd.PersistentFlags().Float64Var(&refPitch, "a4",
		coach.DefaultReferencePitch, "reference pitch for A4 in Hz")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService() (coach.Service, error) {
	return coach.NewService(
		coach.WithDBPath(dbPath),
		coach.WithReferencePitch(refPitch),
	)
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
