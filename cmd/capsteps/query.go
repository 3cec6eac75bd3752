package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	capsteps "github.com/yelzgniq/cap-android-steps"
)

var stepsCmd = &cobra.Command{
	Use:   "steps [hour|day|all]",
	Short: "Ask a running bridge for the step count of a period",
	Long: `Calls getStepsForPeriod on a running bridge. The period defaults to day.

Examples:
  capsteps steps
  capsteps steps hour --addr http://phone.local:8080
  capsteps steps all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := map[string]string{}
		if len(args) == 1 {
			opts["period"] = args[0]
		}

		var res capsteps.StepCountResult
		if err := clientFromFlags(cmd).call(cmd.Context(), "getStepsForPeriod", opts, &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %d\n", keyColor.Sprintf("%-6s", string(res.Period)+":"), res.Count)
		if res.StartTime != nil {
			fmt.Fprintf(out, "%s %s\n", keyColor.Sprintf("%-6s", "from:"), formatMillis(*res.StartTime))
		}
		fmt.Fprintf(out, "%s %s\n", keyColor.Sprintf("%-6s", "to:"), formatMillis(res.EndTime))
		return nil
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Show the latest raw reading of the step sensor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var res capsteps.SensorValuesResult
		if err := clientFromFlags(cmd).call(cmd.Context(), "getRawSensorValues", nil, &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s (%s, v%d)\n", keyColor.Sprint("sensor:"), res.SensorName, res.SensorVendor, res.SensorVersion)
		fmt.Fprintf(out, "%s %g\n", keyColor.Sprint("steps:"), res.StepCount)
		if res.Values != nil {
			for pair := res.Values.Oldest(); pair != nil; pair = pair.Next() {
				fmt.Fprintf(out, "  %s %g\n", keyColor.Sprintf("values[%s]", pair.Key), pair.Value)
			}
		}
		return nil
	},
}

var callCmd = &cobra.Command{
	Use:   "call <method> [options-json]",
	Short: "Invoke any plugin method and print the resolved data",
	Long: `Invokes a plugin method with an optional JSON options object and prints the
data the call resolved with.

Examples:
  capsteps call invertString '{"value":"hello"}'
  capsteps call requestActivityRecognitionPermission`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var body []byte
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("options must be valid JSON")
			}
			body = []byte(args[1])
		}

		var data json.RawMessage
		if err := clientFromFlags(cmd).callRaw(cmd.Context(), args[0], body, &data); err != nil {
			return err
		}
		pretty, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
		return nil
	},
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC3339)
}
