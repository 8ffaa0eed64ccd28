package command

// root.go defines the latkctl root command and the flags shared by every
// subcommand. Flags override the values loaded from .env and the environment.

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"latksync/internal/config"
)

var (
	host  string // drawing server host
	port  int    // drawing server port
	token string // CONNECT auth token (jwt)
	room  string // relay room, empty for the server default

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "latkctl",
	Short: "latkctl - Lightning Artist Kit stroke sync tool",
	Long: `latkctl talks to a Lightning Artist Kit drawing server or a latksync relay.
It can:
- print the socket address the bridge connects to
- listen for frames pushed by the server
- send a stroke from the command line
- mint relay access tokens

Settings come from .env and LATK_* environment variables; flags win.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		flags := cmd.Flags()
		if flags.Changed("host") {
			loaded.ServerAddress = host
		}
		if flags.Changed("port") {
			loaded.ServerPort = port
		}
		if flags.Changed("token") {
			loaded.AuthToken = token
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		logger = config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command. Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "vr.fox-gieg.com", "drawing server host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 8080, "drawing server port")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "auth token sent with CONNECT")
	rootCmd.PersistentFlags().StringVar(&room, "room", "", "relay room to join")
}

// socketAddress is the configured address plus the room query.
func socketAddress() string {
	addr := cfg.SocketAddress()
	if room == "" {
		return addr
	}
	return addr + "?" + url.Values{"room": {room}}.Encode()
}
