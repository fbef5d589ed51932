package framevk

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
)

// Logs bundles the info, warn and error loggers shared by every component.
type Logs struct {
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger

	closers []io.Closer
}

const logFlags = log.Ldate | log.Ltime | log.Lshortfile

func NewLogs(w io.Writer) *Logs {
	return &Logs{
		Info:  log.New(w, "INFO: ", logFlags),
		Warn:  log.New(w, "WARNING: ", logFlags),
		Error: log.New(w, "ERROR: ", logFlags),
	}
}

// NewFileLogs appends to info_log.txt, warn_log.txt and error_log.txt in dir.
func NewFileLogs(dir string) (*Logs, error) {
	logs := &Logs{}
	open := func(name, prefix string) (*log.Logger, error) {
		file, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", name)
		}
		logs.closers = append(logs.closers, file)
		return log.New(file, prefix, logFlags), nil
	}
	var err error
	if logs.Info, err = open("info_log.txt", "INFO: "); err != nil {
		logs.Close()
		return nil, err
	}
	if logs.Warn, err = open("warn_log.txt", "WARNING: "); err != nil {
		logs.Close()
		return nil, err
	}
	if logs.Error, err = open("error_log.txt", "ERROR: "); err != nil {
		logs.Close()
		return nil, err
	}
	return logs, nil
}

func (l *Logs) orDefault() *Logs {
	if l == nil {
		return NewLogs(os.Stderr)
	}
	return l
}

func (l *Logs) Close() {
	for _, c := range l.closers {
		c.Close()
	}
	l.closers = nil
}

// Renderer wires the queue registry, the upload pipeline, the surface manager
// and the frame engine over one driver, and owns everything created for the
// scene through its arena.
type Renderer struct {
	cfg      Config
	drv      gpu.Driver
	win      Window
	log      *Logs
	arena    *Arena
	status   *StatusNotifier
	queues   *Queues
	uploader *Uploader
	surfaces *SurfaceManager
	engine   *Engine
}

// RendererOptions carries the collaborators NewRenderer wires into its components.
type RendererOptions struct {
	RenderPass RenderPassProvider
	Source     FrameSource
	Handler    EventHandler
	Events     *EventQueue
	Logs       *Logs
	// Samples overrides the configured sample count, typically after
	// clamping it to what the device supports.
	Samples int
}

func NewRenderer(drv gpu.Driver, win Window, cfg Config, opts RendererOptions) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		cfg:    cfg,
		drv:    drv,
		win:    win,
		log:    opts.Logs.orDefault(),
		arena:  NewArena(),
		status: &StatusNotifier{},
	}
	samples := cfg.SampleCount()
	if opts.Samples > 0 {
		c := cfg
		c.MSAASamples = opts.Samples
		samples = c.SampleCount()
	}

	var err error
	if r.queues, err = NewQueues(drv); err != nil {
		return nil, err
	}
	r.log.Info.Printf("queue families graphics=%d present=%d transfer=%d",
		r.queues.Families.Graphics(), r.queues.Families.Present(), r.queues.Families.Transfer())

	if r.uploader, err = NewUploader(drv, r.queues, r.log); err != nil {
		return nil, err
	}
	r.surfaces = NewSurfaceManager(drv, win, r.queues, SurfaceOptions{
		PresentMode: cfg.PresentMode(),
		Samples:     samples,
		RenderPass:  opts.RenderPass,
		Status:      r.status,
		Logs:        r.log,
	})
	if err := r.surfaces.CreateSwapchainSet(); err != nil {
		r.uploader.Destroy()
		return nil, err
	}
	r.engine, err = NewEngine(drv, r.surfaces, r.queues, EngineOptions{
		FramesInFlight: cfg.framesInFlight(),
		Events:         opts.Events,
		Handler:        opts.Handler,
		Source:         opts.Source,
		Status:         r.status,
		Logs:           r.log,
	})
	if err != nil {
		r.surfaces.DestroySwapchainSet()
		r.uploader.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Config() Config            { return r.cfg }
func (r *Renderer) Uploader() *Uploader       { return r.uploader }
func (r *Renderer) Engine() *Engine           { return r.engine }
func (r *Renderer) Surfaces() *SurfaceManager { return r.surfaces }
func (r *Renderer) Queues() *Queues           { return r.queues }
func (r *Renderer) Arena() *Arena             { return r.arena }
func (r *Renderer) Status() *StatusNotifier   { return r.status }
func (r *Renderer) Logs() *Logs               { return r.log }

// RenderPass is the render pass of the current swapchain set. Pipelines built
// against it stay compatible across rebuilds while the surface format holds.
func (r *Renderer) RenderPass() gpu.RenderPass {
	if set := r.surfaces.Current(); set != nil {
		return set.RenderPass
	}
	return 0
}

// Run drives DrawFrame until ctx is done, shouldClose reports true or a frame
// fails. It always leaves the device idle. A frame error is returned, not
// logged; the caller reports it.
func (r *Renderer) Run(ctx context.Context, shouldClose func() bool) (err error) {
	defer func() {
		if werr := r.engine.WaitIdle(); werr != nil && err == nil {
			err = werr
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if shouldClose != nil && shouldClose() {
			return nil
		}
		r.win.PollEvents()
		if err := r.engine.DrawFrame(); err != nil {
			return err
		}
		r.status.Notify()
	}
}

// Destroy waits for the GPU, then releases the frame slots, the scene objects
// tracked in the arena, the swapchain set and the upload pools, in that order.
func (r *Renderer) Destroy() error {
	r.engine.Destroy()
	err := r.arena.ReleaseAll()
	if derr := r.surfaces.DestroySwapchainSet(); err == nil {
		err = derr
	}
	r.uploader.Destroy()
	return err
}
