package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"

	"github.com/satchelworks/satchel/internal/ai"
	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/events"
	"github.com/satchelworks/satchel/internal/logging"
	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/profile"
	"github.com/satchelworks/satchel/internal/server"
	"github.com/satchelworks/satchel/internal/stages"
)

var (
	stageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func main() {
	var (
		profileName = flag.String("profile", "", "profile name or path (default from config)")
		output      = flag.String("output", "", "destination: -, clipboard, a file, or an archive path")
		format      = flag.String("format", "", "artifact format: markdown, xml, json, plain")
		clip        = flag.Bool("clip", false, "shorthand for -output clipboard")
		archive     = flag.String("archive", "", "write the artifact into an archive (.tar.gz, .tar.zst, .zip)")
		summarize   = flag.Bool("summarize", false, "attach AI summaries to included files")
		contOnErr   = flag.Bool("continue-on-error", false, "carry on past recoverable stage failures")
		lenient     = flag.Bool("lenient", false, "degrade filter pattern failures instead of aborting")
		quiet       = flag.Bool("quiet", false, "suppress progress output, leaving only the artifact on stdout")
		statsOut    = flag.String("stats-out", "", "write run statistics JSON to a file ('-' for stderr)")
		serve       = flag.Bool("serve", false, "run the HTTP server instead of a one-shot pack")
		addr        = flag.String("addr", "", "serve address (default from config)")
	)
	flag.Parse()

	cfg := config.LoadOrDefault("")

	if *serve {
		runServe(cfg, *addr)
		return
	}

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	if err := runPack(cfg, root, packFlags{
		profile:   *profileName,
		output:    *output,
		format:    *format,
		clip:      *clip,
		archive:   *archive,
		summarize: *summarize,
		contOnErr: *contOnErr,
		lenient:   *lenient,
		quiet:     *quiet,
		statsOut:  *statsOut,
	}); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

type packFlags struct {
	profile   string
	output    string
	format    string
	clip      bool
	archive   string
	summarize bool
	contOnErr bool
	lenient   bool
	quiet     bool
	statsOut  string
}

func runPack(cfg *config.Config, root string, flags packFlags) error {
	logger := logging.NewNop()
	if !flags.quiet && cfg.Logging.Development {
		logger = logging.NewDevelopment()
	}

	name := flags.profile
	if name == "" {
		name = cfg.Pack.Profile
	}
	resolver := profile.NewResolver(filepath.Join(root, cfg.Profiles.Dir))
	prof, err := resolver.Resolve(name)
	if err != nil {
		return err
	}

	// Flags override the resolved profile.
	if flags.format != "" {
		prof.Format = flags.format
	} else if prof.Format == "" {
		prof.Format = cfg.Pack.Format
	}
	switch {
	case flags.clip:
		prof.Output = "clipboard"
	case flags.archive != "":
		prof.Output = flags.archive
	case flags.output != "":
		prof.Output = flags.output
	}
	prof.Summarize = prof.Summarize || flags.summarize
	if prof.TokenBudget == 0 {
		prof.TokenBudget = cfg.Pack.TokenBudget
	}

	var summarizer *ai.Client
	if prof.Summarize {
		summarizer = ai.NewClient(cfg.AI, logger)
	}

	bus := events.NewBus()
	if !flags.quiet {
		attachProgress(bus)
	}

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithBus(bus),
		pipeline.WithConfig(cfg),
		pipeline.ContinueOnError(flags.contOnErr || cfg.Pack.ContinueOnErr),
		pipeline.MaxConcurrency(cfg.Pack.MaxConcurrency),
	).Through(stages.Pack(stages.Deps{Summarizer: summarizer, Lenient: flags.lenient})...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, runErr := p.Process(ctx, bundle.New(root, prof))
	stats := p.Stats()

	if flags.statsOut != "" {
		if werr := writeStats(flags.statsOut, stats); werr != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render("stats: ")+werr.Error())
		}
	}
	if runErr != nil {
		return runErr
	}

	if !flags.quiet {
		printSummary(out.(*bundle.Bundle), stats)
	}
	return nil
}

// attachProgress renders stage lifecycle events on stderr, keeping stdout
// clean for the artifact.
func attachProgress(bus *events.Bus) {
	bus.Subscribe("stage:start", func(ev events.Event) {
		if p, ok := ev.Payload.(pipeline.StagePayload); ok {
			fmt.Fprintf(os.Stderr, "%s %s\n", stageStyle.Render("▸"), p.Stage)
		}
	})
	bus.Subscribe("stage:progress", func(ev events.Event) {
		if p, ok := ev.Payload.(pipeline.ProgressPayload); ok {
			fmt.Fprintf(os.Stderr, "  %s\n", subtleStyle.Render(fmt.Sprintf("%3.0f%% %s", p.Percent, p.Message)))
		}
	})
	bus.Subscribe("stage:recover", func(ev events.Event) {
		if p, ok := ev.Payload.(pipeline.RecoverPayload); ok {
			fmt.Fprintf(os.Stderr, "  %s %s: %v\n", warnStyle.Render("recovered"), p.Stage, p.Err)
		}
	})
	bus.Subscribe("stage:error", func(ev events.Event) {
		if p, ok := ev.Payload.(pipeline.ErrorPayload); ok {
			fmt.Fprintf(os.Stderr, "  %s %s: %v\n", errStyle.Render("failed"), p.Stage, p.Err)
		}
	})
}

func printSummary(b *bundle.Bundle, stats pipeline.Statistics) {
	lines := fmt.Sprintf("%s\n%s\n%s\n%s",
		okStyle.Render(fmt.Sprintf("✓ packed %d files (%d skipped)", len(b.Included()), len(b.SkippedFiles()))),
		fmt.Sprintf("artifact  %s → %s", b.ArtifactID, b.Destination),
		fmt.Sprintf("checksum  %s", b.Checksum),
		subtleStyle.Render(fmt.Sprintf("run %s in %s (%d/%d stages)",
			stats.RunID, stats.TotalDuration.Round(time.Millisecond),
			stats.StagesCompleted, stats.StagesCompleted+stats.StagesFailed)),
	)
	fmt.Fprintln(os.Stderr, summaryStyle.Render(lines))
}

func writeStats(dest string, stats pipeline.Statistics) error {
	data, err := sonic.ConfigDefault.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if dest == "-" {
		_, err = os.Stderr.Write(data)
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func runServe(cfg *config.Config, addr string) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	if addr == "" {
		addr = cfg.Server.Host + ":" + cfg.Server.Port
	}

	srv := server.NewServer(cfg, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown: "+err.Error())
		}
	case err := <-errChan:
		fmt.Fprintln(os.Stderr, errStyle.Render("server: ")+err.Error())
		os.Exit(1)
	}
}
