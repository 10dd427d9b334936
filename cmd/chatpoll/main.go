// Command chatpoll tails a chat group from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"campushub/server/internal/client"
	"campushub/server/internal/logger"
	"campushub/server/internal/models"

	"github.com/spf13/cobra"
)

var (
	baseURL  string
	token    string
	groupID  string
	interval time.Duration
	fromNow  bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "chatpoll",
	Short: "Print new messages of a campushub chat group",
	Long: `chatpoll polls a group the same way the web client does and prints
every new message once. It exits when the server refuses access.

Example usage:
  chatpoll --url http://localhost:8080 --token $TOKEN --group default
  chatpoll --group 4f0c... --from-now`,
	RunE: run,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "API base URL")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("CAMPUSHUB_TOKEN"), "bearer token (default $CAMPUSHUB_TOKEN)")
	rootCmd.Flags().StringVar(&groupID, "group", models.DefaultGroupID, "group to follow")
	rootCmd.Flags().DurationVar(&interval, "interval", 4*time.Second, "poll interval")
	rootCmd.Flags().BoolVar(&fromNow, "from-now", false, "skip history and only print new messages")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log retries and failures")
}

func run(cmd *cobra.Command, args []string) error {
	if token == "" {
		return fmt.Errorf("a token is required (--token or CAMPUSHUB_TOKEN)")
	}

	level := "error"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(true, level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := client.NewPoller(client.Config{
		BaseURL:  baseURL,
		Token:    token,
		GroupID:  groupID,
		Interval: interval,
	}, log)
	if fromNow {
		p.StartFrom(time.Now().UTC())
	}

	out := cmd.OutOrStdout()
	err = p.Run(ctx, func(m models.Message) {
		fmt.Fprintln(out, format(m))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func format(m models.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", m.CreatedAt.Local().Format("15:04:05"), m.AuthorDisplayName)
	if m.ReplyTo != nil {
		fmt.Fprintf(&b, " (re %s: %q)", m.ReplyTo.AuthorDisplayName, m.ReplyTo.TextExcerpt)
	}
	b.WriteString(":")
	if m.Text != nil {
		b.WriteString(" " + *m.Text)
	}
	for _, a := range m.Attachments {
		fmt.Fprintf(&b, " [%s]", a.OriginalName)
	}
	return b.String()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
