package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	awslib "github.com/eculver/connect-flows/pkg/aws"
	"github.com/eculver/connect-flows/pkg/config"
	"github.com/eculver/connect-flows/pkg/connect"
)

// Executor abstracts command execution for easier testing.
type Executor interface {
	Run(name string, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error
	Start(name string, args []string) error
}

type osExecutor struct{}

func (osExecutor) Run(name string, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	cliCmd := exec.Command(name, args...)
	cliCmd.Stdin = stdin
	cliCmd.Stdout = stdout
	cliCmd.Stderr = stderr
	return cliCmd.Run()
}

func (osExecutor) Start(name string, args []string) error {
	return exec.Command(name, args...).Start()
}

// flowClient is the part of *connect.Client the commands use.
type flowClient interface {
	Session() connect.Session
	ListFlows(ctx context.Context, filter string) ([]connect.FlowSummary, error)
	GetFlow(ctx context.Context, flowARN, status string) (*connect.Flow, error)
	UploadFlow(ctx context.Context, flowARN string, content map[string]any, opts connect.UploadOptions) error
}

type runDeps struct {
	awsService awslib.Service
	probe      func(ctx context.Context, instance string) (connect.AuthStrategy, error)
	newClient  func(ctx context.Context, instance string, cfg connect.Config) (flowClient, error)
	login      func(string) error
	open       func(string) error
	executor   Executor
	goos       string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

// credentialError marks a federation token failure, which usually means the
// AWS profile's session has expired and an SSO login can fix it.
type credentialError struct {
	err error
}

func (e *credentialError) Error() string {
	return e.err.Error()
}

func (e *credentialError) Unwrap() error {
	return e.err
}

// credentialIssuer tags errors from the AWS service so login can tell them
// apart from instance or configuration failures.
type credentialIssuer struct {
	service awslib.Service
}

func (i credentialIssuer) GetFederationToken(ctx context.Context, target awslib.Target, instanceID string) (string, error) {
	token, err := i.service.GetFederationToken(ctx, target, instanceID)
	if err != nil && ctx.Err() == nil && !errors.Is(err, awslib.ErrEmptyFederationToken) {
		return "", &credentialError{err: err}
	}
	return token, err
}

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath     string
	instance       string
	instanceID     string
	username       string
	password       string
	profile        string
	region         string
	chromiumPath   string
	headful        bool
	elementTimeout time.Duration
	loginTimeout   time.Duration
	verbose        bool
}

// NewRootCmd creates the root CLI command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultRunDeps())
}

func newRootCmd(deps runDeps) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "connect-flows",
		Short: "List, export and upload Amazon Connect contact flows",
		Long: `Logs in to an Amazon Connect instance and manages its contact flows through
the instance's web API. Instances with local users are logged in through the
login form in a headless browser; federated instances use a federation token
issued with your AWS credentials. If those credentials are expired, it will
attempt to run 'aws sso login' to refresh them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			logger := log.NewWithOptions(deps.stderr, log.Options{Level: level})
			cmd.SetContext(log.WithContext(cmd.Context(), logger))
		},
	}

	flagSet(rootCmd.PersistentFlags(), opts)

	rootCmd.AddCommand(
		newProbeCmd(opts, deps),
		newWhoamiCmd(opts, deps),
		newListCmd(opts, deps),
		newGetCmd(opts, deps),
		newUploadCmd(opts, deps),
		newOpenCmd(opts, deps),
	)

	return rootCmd
}

func flagSet(fs *pflag.FlagSet, opts *globalOptions) {
	fs.StringVarP(&opts.configPath, "config", "c", "", "config file path")
	fs.StringVarP(&opts.instance, "instance", "i", "", "Amazon Connect instance alias")
	fs.StringVar(&opts.instanceID, "instance-id", "", "Amazon Connect instance id (federated instances)")
	fs.StringVar(&opts.username, "username", "", "login username (form-based instances)")
	fs.StringVar(&opts.password, "password", "", "login password (defaults to CONNECT_PASSWORD env var)")
	fs.StringVarP(&opts.profile, "profile", "p", "", "AWS profile to use (defaults to AWS_PROFILE env var)")
	fs.StringVar(&opts.region, "region", "", "AWS region of the instance")
	fs.StringVar(&opts.chromiumPath, "chromium-path", "", "path to the Chromium binary used for form-based login")
	fs.BoolVar(&opts.headful, "headful", false, "show the browser window during form-based login")
	fs.DurationVar(&opts.elementTimeout, "element-timeout", 0, "maximum wait for the login form (0 waits forever)")
	fs.DurationVar(&opts.loginTimeout, "login-timeout", 0, "maximum wait for the login outcome (0 waits forever)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. An interrupt cancels in-flight logins and
// requests.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return NewRootCmd().ExecuteContext(ctx)
}

func defaultRunDeps() runDeps {
	deps := runDeps{
		awsService: awslib.NewService(),
		probe: func(ctx context.Context, instance string) (connect.AuthStrategy, error) {
			return connect.NewProber(nil, nil).Classify(ctx, instance)
		},
		executor: osExecutor{},
		goos:     runtime.GOOS,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}

	deps.newClient = func(ctx context.Context, instance string, cfg connect.Config) (flowClient, error) {
		client, err := connect.New(ctx, instance, cfg, connect.WithFederationTokenIssuer(credentialIssuer{service: deps.awsService}))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	deps.login = func(profile string) error {
		return ssoLogin(profile, deps)
	}
	deps.open = func(targetURL string) error {
		return openBrowser(targetURL, deps)
	}

	return deps
}

// loadConfig layers flags over the config file, then fills the password and
// profile from the environment when neither set them.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	file, err := config.New(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	override := func(dst *string, name, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}

	override(&file.Instance, "instance", opts.instance)
	override(&file.InstanceID, "instance-id", opts.instanceID)
	override(&file.Username, "username", opts.username)
	override(&file.Password, "password", opts.password)
	override(&file.AWS.Profile, "profile", opts.profile)
	override(&file.AWS.Region, "region", opts.region)
	override(&file.Browser.ChromiumPath, "chromium-path", opts.chromiumPath)
	if flags.Changed("headful") {
		file.Browser.Headless = !opts.headful
	}
	if flags.Changed("element-timeout") {
		file.Browser.ElementTimeout = opts.elementTimeout
	}
	if flags.Changed("login-timeout") {
		file.Browser.LoginTimeout = opts.loginTimeout
	}

	if file.Password == "" {
		file.Password = os.Getenv("CONNECT_PASSWORD")
	}
	if file.AWS.Profile == "" {
		file.AWS.Profile = os.Getenv("AWS_PROFILE")
	}

	return file, nil
}

// resolveConfig returns the instance alias and the login configuration.
func resolveConfig(cmd *cobra.Command, opts *globalOptions) (string, connect.Config, error) {
	file, err := loadConfig(cmd, opts)
	if err != nil {
		return "", connect.Config{}, err
	}

	if file.Instance == "" {
		return "", connect.Config{}, fmt.Errorf("%w: instance alias (--instance or config file)", connect.ErrMissingConfig)
	}

	return file.Instance, connect.Config{
		Username:   file.Username,
		Password:   file.Password,
		InstanceID: file.InstanceID,
		AWS:        awslib.Target{Profile: file.AWS.Profile, Region: file.AWS.Region},
		Browser:    file.Browser,
	}, nil
}

// login resolves configuration and returns a client bound to a fresh session.
// A federated login that fails on AWS credentials is retried once after an
// SSO login.
func login(cmd *cobra.Command, opts *globalOptions, deps runDeps) (flowClient, error) {
	instance, cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	isCredentialError := func(err error) bool {
		var credErr *credentialError
		return errors.As(err, &credErr)
	}

	var client flowClient
	err = refreshOnce(ctx, cfg.AWS.Profile, deps, isCredentialError, func() error {
		var newErr error
		client, newErr = deps.newClient(ctx, instance, cfg)
		return newErr
	})
	if err != nil {
		return nil, err
	}

	log.FromContext(ctx).Info("Logged in", "instance", instance, "strategy", client.Session().Strategy)
	return client, nil
}

// refreshOnce runs attempt. When it fails with an error shouldRefresh accepts,
// it runs the SSO login for profile and runs attempt exactly once more.
func refreshOnce(ctx context.Context, profile string, deps runDeps, shouldRefresh func(error) bool, attempt func() error) error {
	err := attempt()
	if err == nil || ctx.Err() != nil || !shouldRefresh(err) {
		return err
	}

	log.FromContext(ctx).Debug("AWS credentials rejected", "profile", profile, "error", err)
	fmt.Fprintln(deps.stderr, "Credentials are not valid, attempting SSO login...")
	if loginErr := deps.login(profile); loginErr != nil {
		return fmt.Errorf("SSO login failed: %w", loginErr)
	}

	if err := attempt(); err != nil {
		return fmt.Errorf("credentials still invalid after SSO login: %w", err)
	}
	return nil
}

func newProbeCmd(opts *globalOptions, deps runDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print which login strategy the instance uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, _, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}

			strategy, err := deps.probe(cmd.Context(), instance)
			if err != nil {
				return err
			}

			fmt.Fprintln(deps.stdout, strategy)
			return nil
		},
	}
}

func newWhoamiCmd(opts *globalOptions, deps runDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the AWS identity used for federated logins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			target := awslib.Target{Profile: file.AWS.Profile, Region: file.AWS.Region}
			always := func(error) bool { return true }

			var identity awslib.Identity
			err = refreshOnce(cmd.Context(), target.Profile, deps, always, func() error {
				var idErr error
				identity, idErr = deps.awsService.GetCallerIdentity(cmd.Context(), target)
				if idErr != nil {
					return fmt.Errorf("failed to get caller identity: %w", idErr)
				}
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(deps.stdout, "Authenticated as: %s\n", identity.Arn)
			return nil
		},
	}
}

// ssoLogin shells out to the AWS CLI to perform an SSO login. The CLI's output
// goes to stderr so stdout only carries command results.
func ssoLogin(profile string, deps runDeps) error {
	args := []string{"sso", "login"}
	if profile != "" {
		args = append(args, "--profile", profile)
	}

	return deps.executor.Run("aws", args, deps.stdin, deps.stderr, deps.stderr)
}

// openBrowser opens the given URL in the user's default browser.
func openBrowser(targetURL string, deps runDeps) error {
	var command string
	var args []string

	switch deps.goos {
	case "darwin":
		command = "open"
	case "linux":
		command = "xdg-open"
	case "windows":
		command = "rundll32"
		args = []string{"url.dll,FileProtocolHandler"}
	default:
		return fmt.Errorf("unsupported platform: %s", deps.goos)
	}

	args = append(args, targetURL)
	return deps.executor.Start(command, args)
}
