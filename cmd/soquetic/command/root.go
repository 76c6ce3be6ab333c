package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	serverURL   string
	port        int
	logLevel    string
	dumpMetrics bool
)

var rootCmd = &cobra.Command{
	Use:   "soquetic",
	Short: "soquetic - request/response and real-time events over Socket.IO",
	Long: `soquetic talks to a Socket.IO backend that follows the GET:/POST:/RT: event
convention. Settings come from soquetic.yaml, .env and SOQUETIC_* variables;
flags override them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute запускает CLI; Ctrl+C отменяет контекст команды.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default: $SOQUETIC_CONFIG or ./soquetic.yaml)")
	pf.StringVarP(&serverURL, "url", "u", "", "backend URL, overrides --port")
	pf.IntVarP(&port, "port", "p", 0, "backend port on localhost (default 3000)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&dumpMetrics, "metrics", false, "print transport counters as JSON to stderr on exit")
}
