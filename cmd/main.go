package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/app"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/config"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/logging"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := newCLI(ctx, os.Stdout, os.Stderr, app.Options{})
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "postsiva:", err)
		stop()
		os.Exit(1)
	}
}

// runner carries what every command needs to build the client stack.
type runner struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	opts   app.Options
}

func newCLI(ctx context.Context, stdout, stderr io.Writer, opts app.Options) *cli.App {
	r := &runner{ctx: ctx, stdout: stdout, stderr: stderr, opts: opts}

	cliApp := cli.NewApp()
	cliApp.Name = "postsiva"
	cliApp.Usage = "manage facebook pages, posts and schedules from the terminal"
	cliApp.Version = version
	cliApp.Writer = stdout
	cliApp.ErrWriter = stderr
	cliApp.Flags = []cli.Flag{configFlag, envPrefixFlag, filterFlag, templateFlag}
	cliApp.Commands = []cli.Command{
		r.loginCmd(),
		r.signupCmd(),
		r.logoutCmd(),
		r.whoamiCmd(),
		r.personaCmd(),
		r.mediaCmd(),
		r.postsCmd(),
		r.scheduleCmd(),
		r.tiersCmd(),
		r.pagesCmd(),
		r.watchCmd(),
	}
	return cliApp
}

func (r *runner) load(c *cli.Context) (config.Config, *config.Loader, error) {
	prefix := c.GlobalString(flagEnvPrefix)
	if prefix == "" {
		prefix = envPrefixDefault
	}
	loader := config.NewLoader(prefix, c.GlobalString(flagConfig))
	cfg, err := loader.Load(r.ctx)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, loader, nil
}

func (r *runner) build(cfg config.Config) (*app.App, error) {
	logger, err := logging.New(cfg.Logging, r.stderr)
	if err != nil {
		return nil, err
	}
	return app.New(r.ctx, cfg, logger, r.opts)
}

// with adapts a command body into a cli action that loads configuration,
// wires the client and releases storage afterwards.
func (r *runner) with(fn func(c *cli.Context, a *app.App, out *printer) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		out, err := newPrinter(r.stdout, c.GlobalString(flagFilter), c.GlobalString(flagTemplate))
		if err != nil {
			return err
		}
		cfg, _, err := r.load(c)
		if err != nil {
			return err
		}
		application, err := r.build(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = application.Close() }()
		return fn(c, application, out)
	}
}

func readOptions(c *cli.Context) resources.ReadOptions {
	return resources.ReadOptions{ForceRefresh: c.Bool(flagRefresh)}
}

func required(c *cli.Context, names ...string) error {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(c.String(name)) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing %s", c.Command.FullName(), strings.Join(missing, ", "))
	}
	return nil
}

// readUpload loads a file for multipart upload and guesses its content type.
func readUpload(path string) (name, contentType string, data []byte, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", nil, fmt.Errorf("file %s not found", path)
		}
		return "", "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	name = filepath.Base(path)
	contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return name, contentType, data, nil
}
