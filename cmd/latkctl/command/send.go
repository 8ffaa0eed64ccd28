package command

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"latksync/internal/bridge"
	"latksync/internal/drawing"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one stroke to the server",
	Example: `  latkctl send --points "0,0,1;0.5,0.5,1;1,0,1" --frame 2 --color 1,0,0
  latkctl send --host localhost --room studio --points "0,0,0;1,1,1"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawPoints, _ := cmd.Flags().GetString("points")
		frame, _ := cmd.Flags().GetInt("frame")
		rawColor, _ := cmd.Flags().GetString("color")

		points, err := parsePoints(rawPoints)
		if err != nil {
			return err
		}
		brush, err := parseColor(rawColor)
		if err != nil {
			return err
		}

		canvas := drawing.NewCanvas(brush)
		if err := canvas.SetCurrentFrame(frame); err != nil {
			return err
		}

		opts := cfg.SocketOptions(logger)
		opts.Reconnect = false
		b, err := bridge.Open(cmd.Context(), socketAddress(), canvas, canvas, cfg.BridgeOptions(logger), opts)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.SendStroke(points); err != nil {
			return fmt.Errorf("send stroke: %w", err)
		}
		color.Green("✅ Sent %d points on frame %d", len(points), frame)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringP("points", "p", "", `points as "x,y,z;x,y,z;..." (required)`)
	sendCmd.Flags().IntP("frame", "f", 0, "frame index")
	sendCmd.Flags().StringP("color", "c", "1,1,1", "brush color as r,g,b")
	sendCmd.MarkFlagRequired("points")
}
