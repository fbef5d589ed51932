// Command framevk opens a window and renders a lit, textured cube with the
// framevk frame engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/andewx/framevk"
	"github.com/andewx/framevk/glfwdisplay"
	"github.com/andewx/framevk/scene"
	"github.com/andewx/framevk/vkdriver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	// GLFW and the presentation engine want the main thread.
	runtime.LockOSThread()
}

type flags struct {
	config      string
	validation  bool
	presentMode string
	msaa        int
	frames      int
	texture     string
	shaders     string
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "framevk",
		Short:         "Render an orbiting textured cube with Vulkan",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	f.bind(cmd)
	return cmd
}

func (f *flags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "TOML config file")
	fs.BoolVar(&f.validation, "validation", false, "enable the Khronos validation layer")
	fs.StringVar(&f.presentMode, "present-mode", "", "mailbox, fifo, fifo_relaxed or immediate")
	fs.IntVar(&f.msaa, "msaa", 0, "MSAA sample count, clamped to the device maximum")
	fs.IntVar(&f.frames, "frames", 0, "frames in flight")
	fs.StringVar(&f.texture, "texture", "", "texture image (png, jpeg, bmp or webp)")
	fs.StringVar(&f.shaders, "shaders", "", "directory holding vert.spv and frag.spv")
}

// resolve layers explicitly set flags over the config file over defaults.
func (f *flags) resolve(cmd *cobra.Command) (framevk.Config, error) {
	cfg := framevk.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = framevk.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	}
	fs := cmd.Flags()
	if fs.Changed("validation") {
		cfg.EnableValidation = f.validation
	}
	if fs.Changed("present-mode") {
		cfg.PreferredPresentMode = f.presentMode
	}
	if fs.Changed("msaa") {
		cfg.MSAASamples = f.msaa
	}
	if fs.Changed("frames") {
		cfg.FramesInFlight = f.frames
	}
	if fs.Changed("texture") {
		cfg.Texture = f.texture
	}
	if fs.Changed("shaders") {
		cfg.Shaders = f.shaders
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg framevk.Config) (err error) {
	logs := framevk.NewLogs(os.Stderr)
	if cfg.LogDir != "" {
		fileLogs, err := framevk.NewFileLogs(cfg.LogDir)
		if err != nil {
			logs.Error.Print(err)
			return err
		}
		logs = fileLogs
		defer logs.Close()
	}
	defer func() {
		if err != nil {
			logs.Error.Printf("%+v", err)
		}
	}()

	if err := glfwdisplay.Init(); err != nil {
		return err
	}
	defer glfwdisplay.Terminate()

	events := framevk.NewEventQueue()
	display, err := glfwdisplay.New(cfg.Width, cfg.Height, cfg.AppName, events)
	if err != nil {
		return err
	}
	defer display.Destroy()

	platform, err := vkdriver.NewPlatform(vkdriver.Options{
		AppName:            cfg.AppName,
		Validation:         cfg.EnableValidation,
		InstanceExtensions: display.RequiredInstanceExtensions(),
		Surface:            display.CreateSurface,
		Logs:               logs,
	})
	if err != nil {
		return err
	}
	defer platform.Destroy()

	samples := cfg.MSAASamples
	if limit := platform.MaxSamples(); samples > limit {
		logs.Warn.Printf("msaa %d not supported, using %d", samples, limit)
		samples = limit
	}

	sc := scene.New()
	renderer, err := framevk.NewRenderer(platform, display, cfg, framevk.RendererOptions{
		RenderPass: platform.RenderPass,
		Source:     sc,
		Handler:    sc,
		Events:     events,
		Logs:       logs,
		Samples:    samples,
	})
	if err != nil {
		return err
	}
	defer func() {
		if derr := renderer.Destroy(); derr != nil && err == nil {
			err = derr
		}
	}()
	renderer.Status().Subscribe(func(s framevk.Status) {
		logs.Info.Printf("renderer status: %s", s)
	})

	if err := setupScene(platform, renderer, cfg, samples); err != nil {
		return errors.Wrap(err, "scene setup")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := renderer.Run(ctx, display.ShouldClose); err != nil {
		return err
	}
	stats := renderer.Engine().Stats()
	logs.Info.Printf("shutdown after %d frames, %d swapchain rebuilds", stats.Presented, stats.Rebuilds)
	return nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "framevk:", err)
		os.Exit(1)
	}
}
