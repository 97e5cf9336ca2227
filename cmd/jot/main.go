package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbaille/jot/internal/api"
	"github.com/pbaille/jot/internal/assistant"
	"github.com/pbaille/jot/internal/config"
	"github.com/pbaille/jot/internal/domain"
	"github.com/pbaille/jot/internal/fetcher"
	"github.com/pbaille/jot/internal/journal"
	"github.com/pbaille/jot/internal/logger"
	"github.com/pbaille/jot/internal/secret"
	"github.com/pbaille/jot/internal/session"
	"github.com/pbaille/jot/internal/store"
)

var (
	cfg *config.Config
	log *zap.Logger

	dbPath   string
	document string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "jot",
		Short:         "Plain-text journal with categories and an assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(config.DefaultDir()); err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if document != "" {
				cfg.Document = document
			}
			log, err = logger.New(cfg.LogLevel)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default ~/.jot/jot.db)")
	rootCmd.PersistentFlags().StringVarP(&document, "document", "d", "", "journal document name")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(linesCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(keyCmd())
	rootCmd.AddCommand(serveCmd())

	if err := execute(rootCmd); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs root and flushes the logger whether or not a command failed
func execute(root *cobra.Command) error {
	defer func() {
		if log != nil {
			_ = log.Sync()
		}
	}()
	return root.Execute()
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.DBPath)
}

func getCredentials() (secret.Source, error) {
	s, err := secret.New(cfg.SecretsDir)
	if err != nil {
		return nil, err
	}
	return secret.WithEnvFallback(s), nil
}

// openSession opens the configured document. The caller closes the store.
func openSession(ctx context.Context) (*session.Session, *store.Store, error) {
	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}

	opts := []session.Option{session.WithLogger(log)}
	if creds, err := getCredentials(); err != nil {
		log.Warn("assistant disabled", zap.Error(err))
	} else {
		opts = append(opts, session.WithAssistant(assistant.New(creds, assistant.WithModel(cfg.Model))))
	}

	return session.Open(ctx, s, cfg.Document, opts...), s, nil
}

func addCmd() *cobra.Command {
	var (
		categories []string
		body       string
		url        string
	)

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a new entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			title := strings.Join(args, " ")

			if url == "" && fetcher.IsURL(title) {
				url, title = title, ""
			}
			if url != "" {
				page, err := fetcher.New().Fetch(ctx, url)
				if err != nil {
					return err
				}
				if title == "" {
					title = page.Title
				}
				if title == "" {
					title = page.URL
				}
				body = strings.TrimSpace(body + "\n" + page.URL + "\n" + pageBody(page.Text))
			}

			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("a title is required")
			}

			sess, s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := sess.AddEntry(domain.Entry{Title: title, Categories: categories, Body: body}); err != nil {
				return err
			}
			if err := sess.Save(ctx); err != nil {
				return err
			}

			e := sess.Entries()[sess.Find(title)]
			fmt.Printf("Added entry: %s\n", e.Title)
			if len(e.Categories) > 0 {
				fmt.Printf("Categories: %s\n", strings.Join(e.Categories, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "entry categories")
	cmd.Flags().StringVarP(&body, "body", "b", "", "entry body")
	cmd.Flags().StringVar(&url, "url", "", "fetch a web page into the entry body")
	return cmd
}

// pageBody keeps fetched text from reading as category lines
func pageBody(text string) string {
	lines := journal.SplitLines(text)
	for i, line := range lines {
		if journal.IsCategoryLine(line) {
			lines[i] = strings.TrimLeft(strings.TrimSpace(line), "# ")
		}
	}
	return strings.Join(lines, "\n")
}

func listCmd() *cobra.Command {
	var (
		limit  int
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			entries := sess.Entries()
			if limit > 0 && limit < len(entries) {
				entries = entries[:limit]
			}

			if asYAML {
				return printYAML(os.Stdout, entries)
			}
			if len(entries) == 0 {
				fmt.Println("No entries yet. Use 'jot add' to create one.")
				return nil
			}
			printEntries(entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print entries as YAML")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [title]",
		Short: "Show entry details",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			i, err := findEntry(sess, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printEntry(sess.Entries()[i])
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [title]",
		Short: "Delete an entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			i, err := findEntry(sess, strings.Join(args, " "))
			if err != nil {
				return err
			}
			title := sess.Entries()[i].Title
			if err := sess.DeleteEntry(i); err != nil {
				return err
			}
			if err := sess.Save(ctx); err != nil {
				return err
			}
			fmt.Printf("Deleted entry: %s\n", title)
			return nil
		},
	}
}

// findEntry matches a title exactly, then by unique case-insensitive prefix
func findEntry(sess *session.Session, title string) (int, error) {
	if i := sess.Find(title); i >= 0 {
		return i, nil
	}

	found := -1
	prefix := strings.ToLower(strings.TrimSpace(title))
	for i, e := range sess.Entries() {
		if strings.HasPrefix(strings.ToLower(e.Title), prefix) {
			if found >= 0 {
				return -1, fmt.Errorf("%q matches more than one entry", title)
			}
			found = i
		}
	}
	if found < 0 {
		return -1, fmt.Errorf("entry not found: %s", title)
	}
	return found, nil
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the whole journal in $EDITOR",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := os.CreateTemp("", "jot-*.txt")
			if err != nil {
				return fmt.Errorf("create temp file: %w", err)
			}
			defer os.Remove(f.Name())

			if _, err := f.WriteString(sess.Text()); err != nil {
				f.Close()
				return fmt.Errorf("write temp file: %w", err)
			}
			f.Close()

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			c := exec.Command(editor, f.Name())
			c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("run %s: %w", editor, err)
			}

			edited, err := os.ReadFile(f.Name())
			if err != nil {
				return fmt.Errorf("read temp file: %w", err)
			}

			before := len(sess.Entries())
			sess.SetText(strings.TrimRight(string(edited), "\n"))
			if !sess.Dirty() {
				fmt.Println("No changes.")
				return nil
			}
			if err := sess.Save(ctx); err != nil {
				return err
			}
			fmt.Printf("Saved %d entries (was %d)\n", len(sess.Entries()), before)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import journal text from a file, or stdin with '-'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := readInput(args[0])
			if err != nil {
				return err
			}

			sess, s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if !replace && strings.TrimSpace(sess.Text()) != "" {
				text = strings.TrimRight(sess.Text(), "\n") + "\n\n" + text
			}
			sess.SetText(text)
			if err := sess.Save(ctx); err != nil {
				return err
			}
			fmt.Printf("Journal now has %d entries\n", len(sess.Entries()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace the journal instead of appending")
	return cmd
}

func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func exportCmd() *cobra.Command {
	var (
		output string
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the journal text",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			w := io.Writer(os.Stdout)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if asYAML {
				return printYAML(w, sess.Entries())
			}
			_, err = fmt.Fprintln(w, journal.Serialize(sess.Entries()))
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "export entries as YAML")
	return cmd
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories [query]",
		Short: "List categories, or suggest categories matching a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) > 0 {
				for _, name := range sess.Suggest(strings.Join(args, " ")) {
					fmt.Println(name)
				}
				return nil
			}

			vocab := sess.Vocabulary()
			if len(vocab) == 0 {
				fmt.Println("No categories yet. Add '#category' lines under entry titles.")
				return nil
			}
			printCategories(vocab)
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Fuzzy search entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			matches := searchEntries(sess.Entries(), strings.Join(args, " "))
			if len(matches) == 0 {
				fmt.Println("No matching entries found.")
				return nil
			}
			printEntries(matches)
			return nil
		},
	}
}

func linesCmd() *cobra.Command {
	var (
		cursor    int
		titleMode bool
	)

	cmd := &cobra.Command{
		Use:   "lines [file]",
		Short: "Show how each line of a journal text is classified",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				var err error
				if text, err = readInput(args[0]); err != nil {
					return err
				}
			} else {
				sess, s, err := openSession(cmd.Context())
				if err != nil {
					return err
				}
				text = sess.Text()
				s.Close()
			}

			lines := journal.SplitLines(text)
			printRoles(lines, journal.Classify(lines, cursor, titleMode))
			return nil
		},
	}

	cmd.Flags().IntVar(&cursor, "cursor", 0, "cursor byte offset")
	cmd.Flags().BoolVar(&titleMode, "title-mode", false, "classify as if a new entry was just started")
	return cmd
}

func askCmd() *cobra.Command {
	var entries int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant about recent entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			n := entries
			if n <= 0 {
				n = cfg.ContextEntries
			}
			reply, err := sess.Ask(cmd.Context(), strings.Join(args, " "), n)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().IntVarP(&entries, "entries", "n", 0, "number of recent entries to share (default from config)")
	return cmd
}

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the assistant API key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 1 {
				value = args[0]
			} else {
				fmt.Fprint(os.Stderr, "API key: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("read key: %w", err)
				}
				value = line
			}

			s, err := secret.New(cfg.SecretsDir)
			if err != nil {
				return err
			}
			if err := s.Set(value); err != nil {
				return err
			}
			fmt.Println("API key saved.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := secret.New(cfg.SecretsDir)
			if err != nil {
				return err
			}
			if err := s.Delete(); err != nil {
				return err
			}
			fmt.Println("API key removed.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether an API key is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := getCredentials()
			if err != nil {
				return err
			}
			if _, err := creds.Get(); err != nil {
				fmt.Printf("No API key (%v). Use 'jot key set' or %s.\n", err, secret.EnvKey)
				return nil
			}
			fmt.Println("API key available.")
			return nil
		},
	})

	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := getCredentials()
			if err != nil {
				return err
			}
			asst := assistant.New(creds, assistant.WithModel(cfg.Model))

			s, err := getStore()
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			sess := session.Open(cmd.Context(), s, cfg.Document, session.WithLogger(log))
			if addr == "" {
				addr = cfg.Addr
			}
			server := api.New(sess, asst, log, addr, cfg.ContextEntries)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default from config, :8080)")
	return cmd
}
