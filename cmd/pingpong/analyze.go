package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emmett/pingpong/internal/app"
	"github.com/emmett/pingpong/internal/audio"
	"github.com/emmett/pingpong/internal/segment"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <recording.wav>",
	Short: "List the hits found in a recording",
	Long: `Run a two-channel recording through filtering, segmentation and direction
estimation without playing a game. Every capture is listed with its energy
and estimated side, which helps tune detect.mean_energy_min and polarity.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := app.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}

		source, err := audio.NewWavSource(args[0], false)
		if err != nil {
			return err
		}
		defer source.Close()

		result, err := app.Analyze(source, opts, float64(source.SampleRate()))
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("captures"); path != "" {
			if err := segment.SaveCaptures(path, result.Captures); err != nil {
				return err
			}
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("%d frames, %d captures\n\n", result.Frames, len(result.Hits))
		fmt.Printf("%-4s %9s %10s %6s %8s %-6s %s\n", "#", "time (s)", "mean rms", "delay", "angle", "side", "accepted")
		for i, h := range result.Hits {
			fmt.Printf("%-4d %9.3f %10.1f %6d %8.1f %-6s %v\n", i+1, h.Seconds, h.MeanRMS, h.Delay, h.Angle, h.Side, h.Accepted)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "print hits as JSON")
	analyzeCmd.Flags().String("captures", "", "save the raw captures to this JSON file")
}
