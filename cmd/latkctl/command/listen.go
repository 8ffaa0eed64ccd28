package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"latksync/internal/bridge"
	"latksync/internal/drawing"
	"latksync/internal/stroke"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print every stroke the server pushes",
	Long:  `Connects a bridge and prints each stroke of every newFrameFromServer batch until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		canvas := drawing.NewCanvas(stroke.Color{R: 1, G: 1, B: 1})
		sink := stroke.SinkFunc(func(s stroke.Stroke, opts stroke.CurveOptions) {
			printStroke(s)
			canvas.MakeCurve(s, opts)
		})

		addr := socketAddress()
		fmt.Printf("\n🔌 Connecting to %s...\n", addr)
		b, err := bridge.Open(ctx, addr, canvas, sink, cfg.BridgeOptions(logger), cfg.SocketOptions(logger))
		if err != nil {
			return err
		}
		defer b.Close()
		color.Green("✅ Connected! Waiting for frames (Ctrl+C to quit)")

		if cfg.KillStrokes {
			go canvas.RunSweeper(ctx, cfg.StrokeLife/2)
		}

		<-ctx.Done()
		fmt.Println("\n👋 Disconnecting...")
		return nil
	},
}

func printStroke(s stroke.Stroke) {
	color.Cyan("[frame %d] %d points, color (%g, %g, %g)", s.Index, s.Len(), s.Color.R, s.Color.G, s.Color.B)
	if len(s.Points) > 0 {
		first, last := s.Points[0], s.Points[len(s.Points)-1]
		color.HiBlack("  from (%g, %g, %g) to (%g, %g, %g)", first.X, first.Y, first.Z, last.X, last.Y, last.Z)
	}
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
