package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/config"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/message"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/resolver"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "resolver [text]",
	Short:   "Resolve media share links from chat messages into downloadable replies",
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			return
		}
		if err := runResolve(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var musicCmd = &cobra.Command{
	Use:   "music <BV id> [part]",
	Short: "Extract the audio track of a bilibili video part",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		part := 1
		if len(args) == 2 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				part = n
			}
		}
		if err := runBiliMusic(args[0], part); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(musicCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func newResolver() (*resolver.Resolver, *config.Config, error) {
	cfg := config.LoadOrDefault()
	if !config.Exists() {
		color.Yellow("No config file found, using defaults. Run 'resolver config init'.")
	}
	r, err := resolver.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return r, cfg, nil
}

func runResolve(text string) error {
	r, _, err := newResolver()
	if err != nil {
		return err
	}

	reply, err := runResolveWithProgress(context.Background(), r, text)
	if err != nil {
		return err
	}
	if reply == nil {
		color.Yellow("No platform matched the given text.")
		return nil
	}
	printReply(reply)
	return nil
}

func runBiliMusic(bvid string, part int) error {
	r, _, err := newResolver()
	if err != nil {
		return err
	}
	reply, err := r.ResolveBiliMusic(context.Background(), bvid, part)
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func printReply(reply *message.Reply) {
	green := color.New(color.FgGreen)
	for _, seg := range reply.Segments {
		switch seg.Kind {
		case message.KindText:
			fmt.Println(seg.Text)
		case message.KindImage:
			green.Printf("  [image] %s\n", seg.Path)
		case message.KindVideo:
			green.Printf("  [video] %s\n", seg.Path)
		case message.KindRecord:
			green.Printf("  [audio] %s\n", seg.Path)
		case message.KindFile:
			green.Printf("  [file]  %s (%s)\n", seg.Path, seg.Name)
		}
	}
	if reply.Forward {
		fmt.Println("  (delivered as a forwarded bundle)")
	}
}
