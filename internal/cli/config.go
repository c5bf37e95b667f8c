package cli

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage resolver configuration",
	Long:  "View and modify resolver settings, including platform cookies",
}

// resolver config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadOrDefault()

		fmt.Println("Current configuration:")
		fmt.Printf("  Nickname:      %s\n", cfg.Nickname)
		fmt.Printf("  Proxy:         %s\n", orDefault(cfg.Proxy, "(none)"))
		fmt.Printf("  Oversea:       %v\n", cfg.Oversea)
		fmt.Printf("  DurationLimit: %ds\n", cfg.DurationLimit)
		fmt.Printf("  VideoMaxMB:    %d\n", cfg.VideoMaxMB)
		fmt.Printf("  NeedUpload:    %v\n", cfg.NeedUpload)
		fmt.Printf("  CacheDir:      %s\n", cfg.CacheDir)
		fmt.Printf("  Listen:        %s\n", cfg.Listen)
		fmt.Printf("  Config:        %s\n", config.SavePath())

		if len(cfg.DisabledPlatforms) > 0 {
			fmt.Printf("\nDisabled platforms: %s\n", strings.Join(cfg.DisabledPlatforms, ", "))
		}

		printCookie("bili_cookie", cfg.BiliCookie)
		printCookie("xhs_cookie", cfg.XhsCookie)
		printCookie("ytb_cookie", cfg.YtbCookie)
	},
}

func printCookie(name, value string) {
	if value == "" {
		return
	}
	if len(value) > 8 {
		fmt.Printf("  %s: %s...%s\n", name, value[:4], value[len(value)-4:])
	} else {
		fmt.Printf("  %s: %s\n", name, strings.Repeat("*", len(value)))
	}
}

// resolver config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

// resolver config init - write a default config file
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Run: func(cmd *cobra.Command, args []string) {
		if config.Exists() {
			fmt.Fprintf(os.Stderr, "Config already exists at %s\n", config.SavePath())
			os.Exit(1)
		}
		cfg := config.Default()
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", config.SavePath())
	},
}

// resolver config set-cookie <platform> - store a login cookie
var configSetCookieCmd = &cobra.Command{
	Use:   "set-cookie <bilibili|xiaohongshu|youtube>",
	Short: "Set a platform login cookie",
	Long: `Store a login cookie for platforms that gate content behind an account.

To get the cookie:
  1. Open the site in your browser and log in
  2. Open DevTools (F12) and copy the Cookie request header

Example:
  resolver config set-cookie bilibili`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		platform := args[0]
		cfg := config.LoadOrDefault()

		fmt.Print("Cookie (input hidden): ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read cookie: %v\n", err)
			os.Exit(1)
		}
		cookie := strings.TrimSpace(string(raw))
		if cookie == "" {
			fmt.Fprintln(os.Stderr, "Cookie is required")
			os.Exit(1)
		}

		switch platform {
		case "bilibili":
			cfg.BiliCookie = cookie
		case "xiaohongshu", "xhs":
			cfg.XhsCookie = cookie
		case "youtube", "ytb":
			cfg.YtbCookie = cookie
		default:
			fmt.Fprintf(os.Stderr, "Unknown platform '%s'. Use bilibili, xiaohongshu or youtube.\n", platform)
			os.Exit(1)
		}

		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Cookie for '%s' saved.\n", platform)
	},
}

// resolver config clear-cookie <platform> - remove a stored cookie
var configClearCookieCmd = &cobra.Command{
	Use:   "clear-cookie <bilibili|xiaohongshu|youtube>",
	Short: "Remove a stored platform cookie",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		platform := args[0]
		cfg := config.LoadOrDefault()

		switch platform {
		case "bilibili":
			cfg.BiliCookie = ""
		case "xiaohongshu", "xhs":
			cfg.XhsCookie = ""
		case "youtube", "ytb":
			cfg.YtbCookie = ""
		default:
			fmt.Fprintf(os.Stderr, "Unknown platform '%s'.\n", platform)
			os.Exit(1)
		}

		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Cookie for '%s' cleared.\n", platform)
	},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCookieCmd)
	configCmd.AddCommand(configClearCookieCmd)

	rootCmd.AddCommand(configCmd)
}
