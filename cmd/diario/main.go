package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pbaille/diario/internal/api"
	"github.com/pbaille/diario/internal/assistant"
	"github.com/pbaille/diario/internal/classifier"
	"github.com/pbaille/diario/internal/config"
	"github.com/pbaille/diario/internal/domain"
	"github.com/pbaille/diario/internal/speech"
	"github.com/pbaille/diario/internal/store"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	userID     string

	cfg config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "diario",
		Short: "Voice diary with Spanish spoken commands",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.diario/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "journal owner id (overrides config)")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(sayCmd())
	rootCmd.AddCommand(listenCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func owner() string {
	if userID != "" {
		return userID
	}
	return cfg.UserID()
}

func getStore(ctx context.Context) (*store.Store, error) {
	path := dbPath
	if path == "" {
		p, err := cfg.DBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
		path = p
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	s, err := store.New(path)
	if err != nil {
		return nil, err
	}

	if _, err := s.EnsureUser(ctx, owner(), cfg.User.Name, cfg.User.Email); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func voiceOptions() assistant.Options {
	return assistant.Options{
		InactivityTimeout: cfg.InactivityTimeout(),
		PlaybackPause:     cfg.PlaybackPause(),
		GreetingDelay:     cfg.GreetingDelay(),
		Classifier:        classifier.New(nil),
		Logger:            slog.Default(),
	}
}

func addCmd() *cobra.Command {
	var audio, image string

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a new entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")

			s, err := getStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			entry, err := s.Journal(owner()).CreateEntry(cmd.Context(), content,
				domain.StringPtr(audio), domain.StringPtr(image))
			if err != nil {
				return err
			}

			fmt.Printf("Added entry: %s\n", entry.ID[:8])
			fmt.Printf("Content: %s\n", summary(*entry, 80))
			return nil
		},
	}

	cmd.Flags().StringVar(&audio, "audio", "", "recorded audio reference")
	cmd.Flags().StringVar(&image, "image", "", "image reference")
	return cmd
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.ListEntries(cmd.Context(), owner(), limit, 0)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No entries yet. Use 'diario add' to create one.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %s  %s\n", e.ID[:8], e.CreatedAt.Local().Format("2006-01-02 15:04"), summary(e, 60))
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show entry details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			// Find entry by prefix
			id, err := s.ResolveID(ctx, owner(), args[0])
			if err != nil {
				return err
			}

			entry, err := s.GetEntry(ctx, owner(), id)
			if err != nil {
				return err
			}

			fmt.Printf("ID:      %s\n", entry.ID)
			fmt.Printf("Created: %s\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if entry.Audio != nil {
				fmt.Printf("Audio:   %s\n", *entry.Audio)
			}
			if entry.Image != nil {
				fmt.Printf("Image:   %s\n", *entry.Image)
			}
			fmt.Printf("Content:\n%s\n", entry.Text())

			return nil
		},
	}
}

func editCmd() *cobra.Command {
	var appendMode bool

	cmd := &cobra.Command{
		Use:   "edit [id] [content]",
		Short: "Replace or append to an entry's content",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.ResolveID(ctx, owner(), args[0])
			if err != nil {
				return err
			}

			mode := domain.UpdateReplace
			if appendMode {
				mode = domain.UpdateAppend
			}
			entry, err := s.UpdateEntry(ctx, owner(), id, strings.Join(args[1:], " "), mode)
			if err != nil {
				return err
			}

			fmt.Printf("Updated entry: %s\n", entry.ID[:8])
			fmt.Printf("Content: %s\n", summary(*entry, 80))
			return nil
		},
	}

	cmd.Flags().BoolVar(&appendMode, "append", false, "append instead of replacing")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.ResolveID(ctx, owner(), args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteEntry(ctx, owner(), id); err != nil {
				return err
			}

			fmt.Printf("Deleted entry: %s\n", id[:8])
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.SearchEntries(cmd.Context(), owner(), args[0])
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No matching entries found.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %s\n", e.ID[:8], summary(e, 60))
			}

			return nil
		},
	}
}

func sayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say [utterance]",
		Short: "Interpret one spoken command and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			j := s.Journal(owner())
			entries, err := j.CurrentEntries(ctx)
			if err != nil {
				return err
			}

			command := classifier.New(nil).Classify(strings.Join(args, " "))
			slog.Debug("diario: classified", "kind", command.Kind, "content", command.Content)

			out, err := assistant.Execute(ctx, command, entries, j)
			for _, p := range out.Script() {
				if p.Audio != "" {
					fmt.Printf("♪ %s\n", p.Audio)
					continue
				}
				fmt.Printf("» %s\n", p.Text)
			}
			return err
		},
	}
}

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Start a spoken session; each line typed is one utterance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			adapter := speech.NewAdapter(
				speech.NewLineRecognizer(os.Stdin, os.Stdout),
				speech.NewConsoleSynthesizer(os.Stdout, cfg.Voice.TTSCommand),
				speech.NewCommandPlayer(os.Stdout, cfg.Voice.PlayerCommand),
				slog.Default(),
			)
			defer adapter.Close()

			// The terminal session ends once the dialogue returns to idle
			sessionCtx, end := context.WithCancel(ctx)
			defer end()

			opts := voiceOptions()
			opts.Notify = func(msg string) { fmt.Fprintln(os.Stderr, msg) }
			opts.OnPhase = func(p assistant.Phase) {
				if p == assistant.PhaseIdle {
					end()
				}
			}

			j := s.Journal(owner())
			ctrl := assistant.New(adapter, j, j, opts)
			ctrl.Start()
			return ctrl.Run(sessionCtx)
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API and voice websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if addr == "" {
				addr = cfg.ServerAddress()
			}
			server := api.New(s, addr, api.Options{
				Owner:             owner(),
				RequestsPerSecond: cfg.Server.RequestsPerSecond,
				Burst:             cfg.Server.Burst,
				Voice:             voiceOptions(),
				Logger:            slog.Default(),
			})
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}

func userCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user [display name]",
		Short: "Show or set the journal owner's display name",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := getStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := s.EnsureUser(ctx, owner(), strings.Join(args, " "), "")
			if err != nil {
				return err
			}

			name := u.Name()
			if name == "" {
				name = "(no name)"
			}
			fmt.Printf("%s  %s\n", u.ID, name)
			return nil
		},
	}
}

// summary is a one-line preview of an entry
func summary(e domain.Entry, max int) string {
	text := e.Text()
	if text == "" {
		switch {
		case e.HasAudio():
			return "[audio] " + *e.Audio
		case e.Image != nil:
			return "[image] " + *e.Image
		}
	}
	return truncate(text, max)
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
