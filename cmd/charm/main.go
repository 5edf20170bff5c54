// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// The charm command is run by the Juju unit agent, through the charm's
// dispatch script, once for every hook.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/proxy"
	"golang.org/x/net/http/httpproxy"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/assets"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/charm"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/downloader"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/exporter"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/hook"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/jujuc"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/operator"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/packaging/apt"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/relation/cosagent"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/relation/prometheus"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/runner"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/service"
)

var logger = loggo.GetLogger("ipmiexporter.cmd.charm")

const (
	// exitFailure is returned when the hook failed; Juju retries it.
	exitFailure = 1
	// exitErr is returned when the charm has been run in an invalid way.
	exitErr = 2
	// exitPanic is returned when we exit due to an unhandled panic.
	exitPanic = 3

	defaultLogConfig = "<root>=INFO"
	healthTimeout    = 10 * time.Second
)

func main() {
	os.Exit(Main(os.Args))
}

// Main is not redundant with main(), because it provides an entry point
// for testing with arbitrary command line arguments.
func Main(args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Criticalf("Unhandled panic: \n%v\n%s", r, buf)
			code = exitPanic
		}
	}()
	return run(args, os.Getenv, os.Stderr)
}

type options struct {
	charmDir  string
	logConfig string
	// invokedAs is the base name of argv[0].
	invokedAs string
	hookName  string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	opts := options{invokedAs: "charm"}
	if len(args) > 0 {
		opts.invokedAs = filepath.Base(args[0])
		args = args[1:]
	}
	fs := gnuflag.NewFlagSet(opts.invokedAs, gnuflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.charmDir, "charm-dir", "", "charm directory (defaults to $JUJU_CHARM_DIR)")
	fs.StringVar(&opts.logConfig, "log-config", defaultLogConfig, "loggo logging configuration")
	if err := fs.Parse(true, args); err != nil {
		return options{}, err
	}
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		opts.hookName = rest[0]
	default:
		return options{}, errors.Errorf("unrecognized args: %q", rest[1:])
	}
	return opts, nil
}

// resolveHook picks the hook to run: JUJU_DISPATCH_PATH first, then the
// name the binary was invoked as, then the positional argument.
func resolveHook(env hook.Environment, opts options) (hook.Info, error) {
	name := env.HookName()
	if name == "" {
		// Legacy hooks are symlinks to the binary named after the hook.
		if _, err := hook.Parse(opts.invokedAs); err == nil {
			name = opts.invokedAs
		}
	}
	if name == "" {
		name = opts.hookName
	}
	if name == "" {
		return hook.Info{}, errors.New("no hook to run: JUJU_DISPATCH_PATH not set")
	}
	return env.Info(name)
}

func run(args []string, getenv hook.Getenv, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if err == gnuflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return exitErr
	}
	if err := loggo.ConfigureLoggers(opts.logConfig); err != nil {
		fmt.Fprintf(stderr, "ERROR invalid --log-config: %v\n", err)
		return exitErr
	}
	env, err := hook.ReadEnvironment(getenv)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return exitErr
	}
	if opts.charmDir != "" {
		env.CharmDir = opts.charmDir
	}
	info, err := resolveHook(env, opts)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return exitErr
	}

	toolsCtx := newHookContext(env)
	restore, err := jujuc.ForwardLogs(toolsCtx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return exitErr
	}
	defer restore()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()
	op, err := newOperator(env, toolsCtx)
	if err != nil {
		logger.Errorf("cannot start charm: %v", err)
		return exitFailure
	}
	if err := op.Run(ctx, info); err != nil {
		logger.Errorf("%v", err)
		return exitFailure
	}
	return 0
}

// hookRunner runs the charm's hooks.
type hookRunner interface {
	Run(ctx context.Context, info hook.Info) error
}

var newHookContext = func(env hook.Environment) jujuc.Context {
	return jujuc.NewToolsContext(env.UnitName, runner.ShellRunner{Dir: env.CharmDir}, "")
}

// hostRunner runs host commands with the model's proxy settings and
// without apt prompts.
func hostRunner(env hook.Environment) runner.ShellRunner {
	return runner.ShellRunner{
		Dir: env.CharmDir,
		Env: append(env.Proxy.AsEnvironmentValues(), apt.EnvOptions...),
	}
}

// proxyFunc selects a proxy for each request from the model's proxy
// settings.
func proxyFunc(settings proxy.Settings) func(*http.Request) (*url.URL, error) {
	config := httpproxy.Config{
		HTTPProxy:  settings.Http,
		HTTPSProxy: settings.Https,
		NoProxy:    settings.FullNoProxy(),
	}
	forURL := config.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return forURL(req.URL)
	}
}

// downloadClient returns the client release archives are fetched with.
func downloadClient(settings proxy.Settings) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFunc(settings)
	return &http.Client{Transport: transport}
}

var newOperator = func(env hook.Environment, ctx jujuc.Context) (hookRunner, error) {
	meta, err := readMeta(env.CharmDir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	charmConfig, err := readConfig(env.CharmDir)
	if err != nil {
		return nil, errors.Trace(err)
	}

	r := hostRunner(env)
	layout := exporter.DefaultLayout
	svc, err := service.DiscoverService(exporter.ServiceName, layout.ServiceConf(), layout.UnitDir())
	if err != nil {
		return nil, errors.Trace(err)
	}
	dl := downloader.New(downloader.Config{
		Client: downloadClient(env.Proxy),
		Clock:  clock.WallClock,
	})
	exp, err := exporter.New(exporter.Config{
		Layout:     layout,
		Runner:     r,
		Packages:   apt.NewPackageManager(r, clock.WallClock),
		Service:    svc,
		Downloader: dl,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	cos, err := cosagent.NewProvider(ctx, cosagent.Config{
		Topology: cosagent.Topology{
			Model:       env.ModelName,
			ModelUUID:   env.ModelUUID,
			Application: env.ApplicationName(),
			Unit:        env.UnitName,
			CharmName:   meta.Name,
		},
		Assets:          assets.FS,
		DashboardsDir:   assets.DashboardsDir,
		MetricsRulesDir: assets.MetricsRulesDir,
		LogRulesDir:     assets.LogRulesDir,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	client := &http.Client{Timeout: healthTimeout}
	op, err := operator.New(operator.Config{
		Context:    ctx,
		Options:    charmConfig,
		Exporter:   exp,
		Prometheus: prometheus.NewProvider(ctx, exporter.MetricsPath),
		COSAgent:   cos,
		CheckHealth: func(ctx context.Context, listenAddress string) (exporter.Health, error) {
			return exporter.CheckHealth(ctx, client, listenAddress)
		},
		Arch: exporter.HostArch(),
	})
	return op, errors.Trace(err)
}

func readMeta(charmDir string) (*charm.Meta, error) {
	f, err := os.Open(filepath.Join(charmDir, "metadata.yaml"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	meta, err := charm.ReadMeta(f)
	return meta, errors.Annotate(err, "reading metadata.yaml")
}

func readConfig(charmDir string) (*charm.Config, error) {
	f, err := os.Open(filepath.Join(charmDir, "config.yaml"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	config, err := charm.ReadConfig(f)
	return config, errors.Annotate(err, "reading config.yaml")
}
