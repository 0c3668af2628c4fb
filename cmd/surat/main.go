package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"text/tabwriter"

	"go.uber.org/zap"

	"suratadmin/internal/core"
	"suratadmin/internal/logging"
	"suratadmin/internal/server/config"
	"suratadmin/internal/server/service"
	"suratadmin/internal/server/session"
	"suratadmin/internal/server/storage"
)

func main() {
	cmd, err := core.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s\n", err, core.Usage)
		os.Exit(2)
	}

	cfg := config.Load()
	level := os.Getenv("SURAT_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger, err := logging.New(logging.Options{Level: level, UseStderr: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	monthName, err := service.MonthNames(cfg.StatsLocale)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	console := service.NewConsole(service.Options{
		Store: storage.NewHTTPStore(storage.Config{
			BaseURL: cfg.StoreBaseURL,
			Timeout: cfg.StoreTimeout,
		}),
		Session:      session.Unverified(os.Getenv("SURAT_TOKEN")),
		Notifier:     printer{w: os.Stdout},
		Logger:       logger,
		MonthName:    monthName,
		TrackTimeout: cfg.TrackTimeout,
	})
	defer console.Close()

	active, err := console.Activate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !active {
		fmt.Fprintln(os.Stderr, "Error: an ADMIN session token is required (set SURAT_TOKEN)")
		os.Exit(1)
	}

	if err := run(ctx, console, cmd, logger); err != nil {
		var verrs core.ValidationErrors
		if errors.As(err, &verrs) {
			for field, msg := range verrs.Fields() {
				fmt.Fprintf(os.Stderr, "✗ %s: %s\n", field, msg)
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, console *service.Console, cmd *core.Command, logger *zap.Logger) error {
	switch cmd.Kind {
	case core.CommandList:
		if err := console.SetQuery(cmd.Query); err != nil {
			return err
		}
		printList(os.Stdout, console.View())
		return nil

	case core.CommandUpload:
		file, err := core.InspectFile(cmd.Path)
		if err != nil {
			return err
		}
		created, err := console.SubmitUpload(ctx, core.UploadCandidate{Name: cmd.Name, File: file})
		if err != nil {
			return err
		}
		if created != nil {
			fmt.Printf("  id: %s\n", created.ID)
		}
		return nil

	case core.CommandDelete:
		return console.Delete(ctx, cmd.ID)

	case core.CommandStats:
		if err := console.ShowStats(ctx, cmd.ID); err != nil {
			return err
		}
		printStats(os.Stdout, console.AnalyticsView())
		return nil

	case core.CommandDownload:
		t, err := console.Lookup(cmd.ID)
		if err != nil {
			return err
		}
		saver := &fileSaver{dir: cmd.Dest, fallback: t.ID, client: http.DefaultClient}
		if err := console.Download(ctx, t, saver); err != nil {
			return err
		}
		logger.Debug("template saved", zap.String("id", t.ID), zap.String("path", saver.saved))
		fmt.Printf("✓ Saved %s\n", saver.saved)
		return nil
	}
	return fmt.Errorf("unhandled command %d", cmd.Kind)
}

// printer writes notifications to the terminal.
type printer struct {
	w io.Writer
}

func (p printer) Notify(kind service.NotificationKind, title, message string) {
	mark := "✓"
	if kind == service.NotifyFailure {
		mark = "✗"
	}
	if message == "" {
		fmt.Fprintf(p.w, "%s %s\n", mark, title)
		return
	}
	fmt.Fprintf(p.w, "%s %s: %s\n", mark, title, message)
}

func printList(w io.Writer, v service.View) {
	if len(v.Rows) == 0 {
		fmt.Fprintln(w, v.EmptyMessage)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAMA\tUNDUHAN\tDIPERBARUI")
	for _, r := range v.Rows {
		updated := "-"
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Name, r.TotalDownloads, updated)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d of %d templates\n", len(v.Rows), v.Total)
}

func printStats(w io.Writer, a service.AnalyticsView) {
	if a.Name != "" {
		fmt.Fprintf(w, "%s\n\n", a.Name)
	}
	if len(a.Points) == 0 {
		fmt.Fprintln(w, a.EmptyMessage)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BULAN\tTAHUN\tUNDUHAN")
	for _, p := range a.Points {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", p.Month, p.Year, p.DownloadCount)
	}
	tw.Flush()
}

// fileSaver opens a template by fetching it into dir.
type fileSaver struct {
	dir      string
	fallback string
	client   *http.Client
	saved    string
}

func (s *fileSaver) Open(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	dest := filepath.Join(s.dir, fileNameFor(rawURL, s.fallback))
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.saved = dest
	return nil
}

func fileNameFor(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return fallback
	}
	return name
}
