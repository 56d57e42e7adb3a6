package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/env"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/parser"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcontract/packages/executor"
	"github.com/abdul-hamid-achik/hitcontract/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitcontract/packages/history"
	hchttp "github.com/abdul-hamid-achik/hitcontract/packages/http"
	"github.com/abdul-hamid-achik/hitcontract/packages/logging"
	"github.com/abdul-hamid-achik/hitcontract/packages/notify"
	"github.com/abdul-hamid-achik/hitcontract/packages/output"
	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run contract suites",
	Long: `Run contract suites against a service.

Directories are searched recursively for .yaml and .yml suites. Config files
(.hitcontract.yaml, hitcontract.yaml) are never treated as suites.

Examples:
  hitcontract run company.yaml
  hitcontract run ./contracts/ --base-url http://localhost:8080
  hitcontract run ./contracts/ --tags smoke --output junit --output-file report.xml
  hitcontract run ./contracts/ --var companyId=23 --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// VariableEnvPrefix marks environment variables that become suite variables
	VariableEnvPrefix = "HITCONTRACT_VAR_"
)

var (
	configFlag       string
	baseURLFlag      string
	timeoutFlag      string
	outputFlag       string
	outputFileFlag   string
	concurrencyFlag  int
	rateFlag         float64
	nameFlag         string
	tagsFlag         string
	bailFlag         bool
	watchFlag        bool
	historyDBFlag    string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	noColorFlag      bool
	logLevelFlag     string
	varFlags         []string
	verboseFlag      int
	proxyFlag        string
	insecureFlag     bool
	requestIDFlag    string
	metricsFileFlag  string
)

func init() {
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("HITCONTRACT_CONFIG", ""), "Path to config file (env: HITCONTRACT_CONFIG)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("HITCONTRACT_BASE_URL", ""), "Base URL overriding every suite's baseUrl (env: HITCONTRACT_BASE_URL)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only cases matching name pattern (dependencies are included)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("HITCONTRACT_TAGS", ""), "Run only cases with specified tags (comma-separated) (env: HITCONTRACT_TAGS)")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a suite variable (key=value, repeatable)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITCONTRACT_NO_COLOR", false), "Disable colored output (env: HITCONTRACT_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITCONTRACT_OUTPUT", ""), "Output formats, comma-separated: console, json, junit, tap (env: HITCONTRACT_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITCONTRACT_OUTPUT_FILE", ""), "Write non-console output to file (default: stdout) (env: HITCONTRACT_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("HITCONTRACT_METRICS_FILE", ""), "Write Prometheus metrics of each run to file (env: HITCONTRACT_METRICS_FILE)")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", getEnvString("HITCONTRACT_LOG_LEVEL", ""), "Log level: debug, info, warn, error, disabled (env: HITCONTRACT_LOG_LEVEL)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITCONTRACT_BAIL", false), "Stop a suite on its first failure (env: HITCONTRACT_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITCONTRACT_TIMEOUT", ""), "Default request timeout (e.g., 5s, 1m) (env: HITCONTRACT_TIMEOUT)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("HITCONTRACT_CONCURRENCY", 0), "Cases run at once when a suite has no dependencies (env: HITCONTRACT_CONCURRENCY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("HITCONTRACT_RATE", 0), "Maximum cases started per second, 0 for unlimited (env: HITCONTRACT_RATE)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run suites")
	runCmd.Flags().StringVar(&requestIDFlag, "request-id-header", getEnvString("HITCONTRACT_REQUEST_ID_HEADER", ""), "Tag every request with a UUID under this header (env: HITCONTRACT_REQUEST_ID_HEADER)")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITCONTRACT_PROXY", ""), "Proxy URL for HTTP requests (env: HITCONTRACT_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITCONTRACT_INSECURE", false), "Disable SSL certificate validation (env: HITCONTRACT_INSECURE)")

	// History and notification flags
	runCmd.Flags().StringVar(&historyDBFlag, "history-db", getEnvString("HITCONTRACT_HISTORY_DB", ""), "SQLite file that keeps every run (env: HITCONTRACT_HISTORY_DB)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("HITCONTRACT_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: HITCONTRACT_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// session holds what outlives a single run in watch mode.
type session struct {
	cfg         *config.Config
	files       []string
	suiteName   string
	metricsFile string
	variables   map[string]string
	log         zerolog.Logger
	exec        *executor.Executor
	notifier    *notify.Manager
	stdout      io.Writer
	stderr      io.Writer
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	variables, err := parseVars(varFlags)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	files, err := collectFiles(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	if len(files) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	suites, err := parseSuites(files)
	if err != nil {
		return exitWith(ExitParseError, err)
	}

	s := &session{
		cfg:         cfg,
		files:       files,
		suiteName:   "hitcontract",
		metricsFile: metricsFileFlag,
		variables:   env.MergeVariables(env.LoadSystemEnv(VariableEnvPrefix), variables),
		log:         logging.New(cmd.ErrOrStderr(), cfg.LogLevel, true),
		stdout:      cmd.OutOrStdout(),
		stderr:      cmd.ErrOrStderr(),
	}
	if len(suites) == 1 {
		s.suiteName = suites[0].Name
	}

	s.exec = executor.New(
		executor.WithTransport(newHTTPClient(cfg)),
		executor.WithRequestIDHeader(cfg.RequestIDHeader),
		executor.WithLogger(s.log.With().Str("component", "executor").Logger()),
	)

	if cfg.SlackWebhook != "" {
		on, err := notify.ParseNotifyOn(cfg.NotifyOn)
		if err != nil {
			return exitWith(ExitConfigError, err)
		}
		var slackOpts []notify.SlackOption
		if slackChannelFlag != "" {
			slackOpts = append(slackOpts, notify.WithSlackChannel(slackChannelFlag))
		}
		s.notifier = notify.NewManager(on, notify.NewSlackNotifier(cfg.SlackWebhook, slackOpts...))
		s.notifier.SetSuite(s.suiteName)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	code, err := s.run(ctx)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	if !watchFlag {
		if code != ExitSuccess {
			return exitWith(code, nil)
		}
		return nil
	}

	return s.watch(ctx, args)
}

// loadRunConfig reads the config file and applies flag overrides.
func loadRunConfig() (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	overrides := &config.Config{
		BaseURL:         baseURLFlag,
		OutputFile:      outputFileFlag,
		Concurrency:     concurrencyFlag,
		Rate:            rateFlag,
		RequestIDHeader: requestIDFlag,
		LogLevel:        logLevelFlag,
		HistoryDB:       historyDBFlag,
		NotifyOn:        notifyOnFlag,
		SlackWebhook:    slackWebhookFlag,
		Proxy:           proxyFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", timeoutFlag, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("timeout must be positive, got %s", d)
		}
		overrides.Timeout = int(d.Milliseconds())
	}
	if outputFlag != "" {
		overrides.Reporters = splitList(outputFlag)
	}
	if noColorFlag {
		overrides.NoColor = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		overrides.Verbose = config.BoolPtr(true)
	}
	if insecureFlag {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if rateFlag < 0 || concurrencyFlag < 0 {
		return nil, fmt.Errorf("rate and concurrency must not be negative")
	}

	cfg := fileConfig.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, format := range cfg.Reporters {
		if !isFormat(format) {
			return nil, fmt.Errorf("unknown output format %q (supported: %s)", format, strings.Join(output.Formats, ", "))
		}
	}
	return cfg, nil
}

func newHTTPClient(cfg *config.Config) *hchttp.Client {
	opts := []hchttp.ClientOption{
		// each request carries its own deadline
		hchttp.WithTimeout(0),
		hchttp.WithFollowRedirects(cfg.GetFollowRedirects()),
		hchttp.WithValidateSSL(cfg.GetValidateSSL()),
		hchttp.WithDefaultHeader("User-Agent", "hitcontract/"+version),
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, hchttp.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, hchttp.WithProxy(cfg.Proxy))
	}
	return hchttp.NewClient(opts...)
}

// run executes every suite once under a fresh reporter and returns the
// exit code the results call for. The error is reserved for output,
// history and notification setup failures.
func (s *session) run(ctx context.Context) (int, error) {
	rep := reporter.New(reporter.WithLogger(s.log.With().Str("component", "reporter").Logger()))

	closers, err := s.addObservers(rep)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		return ExitConfigError, err
	}

	var final *reporter.Run
	if err := rep.Add(reporter.ObserverFunc(func(run *reporter.Run) error {
		final = run
		return nil
	})); err != nil {
		return ExitConfigError, err
	}

	r := runner.New(&runner.Config{
		BaseURL:     s.cfg.BaseURL,
		Timeout:     s.cfg.TimeoutDuration(),
		Headers:     s.cfg.Headers,
		Variables:   s.variables,
		NameFilter:  nameFlag,
		TagsFilter:  splitList(tagsFlag),
		Concurrency: s.cfg.Concurrency,
		Rate:        s.cfg.Rate,
		Bail:        bailFlag,
	},
		runner.WithExecutor(s.exec),
		runner.WithReporter(rep),
		runner.WithLogger(s.log.With().Str("component", "runner").Logger()),
	)

	var runErrs []error
	for _, file := range s.files {
		if ctx.Err() != nil {
			break
		}
		if _, err := r.RunFile(ctx, file); err != nil {
			runErrs = append(runErrs, fmt.Errorf("%s: %w", file, err))
			fmt.Fprintf(s.stderr, "Error in %s: %v\n", file, err)
		}
	}

	if err := rep.End(); err != nil {
		fmt.Fprintf(s.stderr, "warning: %v\n", err)
	}

	return exitCode(final, runErrs), nil
}

// addObservers registers the output formats, the history store and the
// notifier. The returned closers must be closed after End.
func (s *session) addObservers(rep *reporter.Reporter) ([]io.Closer, error) {
	var closers []io.Closer

	var fileFormats int
	for _, format := range s.cfg.Reporters {
		if format != "console" {
			fileFormats++
		}
	}
	if fileFormats > 1 && s.cfg.OutputFile != "" {
		return nil, fmt.Errorf("output file %s cannot hold %d formats", s.cfg.OutputFile, fileFormats)
	}

	for _, format := range s.cfg.Reporters {
		w := s.stdout
		if format != "console" && s.cfg.OutputFile != "" {
			f, err := os.Create(s.cfg.OutputFile)
			if err != nil {
				return closers, fmt.Errorf("cannot create output file: %w", err)
			}
			closers = append(closers, f)
			w = f
		}
		obs, err := output.New(format, output.Options{
			Writer:    w,
			Verbose:   s.cfg.GetVerbose(),
			NoColor:   s.cfg.GetNoColor(),
			SuiteName: s.suiteName,
		})
		if err != nil {
			return closers, err
		}
		if err := rep.Add(obs); err != nil {
			return closers, err
		}
	}

	if s.cfg.HistoryDB != "" {
		store, err := history.Open(s.cfg.HistoryDB)
		if err != nil {
			return closers, fmt.Errorf("opening history: %w", err)
		}
		closers = append(closers, store)
		if err := rep.Add(store); err != nil {
			return closers, err
		}
	}

	if s.metricsFile != "" {
		exp := metrics.NewPrometheusExporter(
			metrics.WithPrometheusFile(s.metricsFile),
			metrics.WithPrometheusLabel("suite", s.suiteName),
		)
		if err := rep.Add(exp); err != nil {
			return closers, err
		}
	}

	if s.notifier != nil {
		if err := rep.Add(s.notifier); err != nil {
			return closers, err
		}
	}

	return closers, nil
}

// exitCode maps a finalized run to a process exit code. A run whose only
// failures are timeouts or transport errors exits with ExitNetworkError.
func exitCode(run *reporter.Run, runErrs []error) int {
	if len(runErrs) > 0 {
		for _, err := range runErrs {
			var parseErr *parser.ParseError
			if errors.As(err, &parseErr) {
				return ExitParseError
			}
		}
		return ExitTestFailure
	}
	if run == nil || !run.Failed() {
		return ExitSuccess
	}

	networkOnly := true
	for _, e := range run.Entries {
		if e.Passed {
			continue
		}
		if e.Category != reporter.CategoryError ||
			(e.ErrorKind != executor.KindTimeout && e.ErrorKind != executor.KindTransport) {
			networkOnly = false
			break
		}
	}
	if networkOnly {
		return ExitNetworkError
	}
	return ExitTestFailure
}

func (s *session) watch(ctx context.Context, args []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range s.files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(s.stderr, "warning: failed to watch %s: %v\n", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	// Also watch the original args if they're directories
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(s.stdout, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isSuiteFile(event.Name) && !isDotEnvFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(s.stdout, "\n\nFile changed: %s\nRe-running suites...\n\n", name)
			files, err := collectFiles(args)
			if err != nil {
				fmt.Fprintf(s.stderr, "Error: %v\n", err)
				continue
			}
			if _, err := parseSuites(files); err != nil {
				fmt.Fprintf(s.stderr, "Error: %v\n", err)
				continue
			}
			s.files = files
			if _, err := s.run(ctx); err != nil {
				fmt.Fprintf(s.stderr, "Error: %v\n", err)
			}
			fmt.Fprintf(s.stdout, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(s.stderr, "watcher error: %v\n", err)
		}
	}
}

// parseSuites parses every file, reporting all parse errors at once.
func parseSuites(files []string) ([]*parser.Suite, error) {
	var suites []*parser.Suite
	var errs []error
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		suites = append(suites, suite)
	}
	return suites, errors.Join(errs...)
}

// parseVars turns key=value flags into a variable map.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

func isFormat(name string) bool {
	for _, f := range output.Formats {
		if f == name {
			return true
		}
	}
	return false
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isSuiteFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			if isSuiteFile(arg) {
				files = append(files, arg)
			}
		}
	}

	return files, nil
}

func isSuiteFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range config.ConfigFilenames {
		if base == name {
			return false
		}
	}
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

func isDotEnvFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range env.DotEnvFiles {
		if base == name {
			return true
		}
	}
	return false
}
