package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/liteviz/internal/config"
	"github.com/Faultbox/liteviz/internal/engine/framebuffer"
	"github.com/Faultbox/liteviz/internal/engine/renderer"
	"github.com/Faultbox/liteviz/internal/engine/ui"
	"github.com/Faultbox/liteviz/internal/loader"
	"github.com/Faultbox/liteviz/internal/logger"
	"github.com/Faultbox/liteviz/internal/stream"
	"github.com/Faultbox/liteviz/internal/viewer"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// app wires the GUI frontend around a viewer.
type app struct {
	cfg *config.Config
	log *zap.Logger

	backend *ui.Backend
	gpu     *renderer.Renderer
	fb      *framebuffer.Framebuffer
	v       *viewer.Viewer
	panel   *ui.Panel
	view    *ui.SceneView

	cancel context.CancelFunc
	group  *errgroup.Group
}

func newApp(ctx context.Context, cfg *config.Config, files []string) (*app, error) {
	a := &app{cfg: cfg, log: logger.Named("app")}

	var err error
	a.backend, err = ui.NewBackend(cfg.Window, viewer.Color(cfg.Render.Background))
	if err != nil {
		return nil, err
	}

	a.gpu, err = renderer.New(renderer.Config{PointSize: float32(cfg.Render.PointSize)})
	if err != nil {
		return nil, err
	}
	a.fb, err = framebuffer.New(int32(cfg.Window.Width), int32(cfg.Window.Height))
	if err != nil {
		a.gpu.Close()
		return nil, err
	}

	a.v, err = viewer.New(cfg)
	if err != nil {
		a.fb.Destroy()
		a.gpu.Close()
		return nil, err
	}
	a.v.AddCloser(closerFunc(func() error { a.gpu.Close(); return nil }))
	a.v.AddCloser(closerFunc(func() error { a.fb.Destroy(); return nil }))

	ld := loader.New(loader.OptionsFromConfig(cfg))
	a.v.SetLoader(ld.Load)
	a.v.SetFrameSource(a.fb)
	a.v.Viewport().SetDepthSampler(a.fb)
	a.v.AttachGPU(a.gpu)

	a.panel = ui.NewPanel(a.v, a.gpu)
	a.v.AddGUI(a.panel)
	a.v.AddCloser(a.panel)
	a.v.Controls().Captured = a.panel.Captured
	a.view = ui.NewSceneView(a.v.Controls())
	a.backend.OnDrop(a.panel.Queue)

	if len(files) == 0 {
		viewer.DemoScene(a.v.Scene(), cfg)
	} else {
		if err := a.v.OpenAll(files); err != nil {
			a.log.Warn("some files failed to load", zap.Error(err))
		}
		a.v.FrameScene()
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.group, ctx = errgroup.WithContext(ctx)
	if err := a.startBackground(ctx, ld, files); err != nil {
		a.cancel()
		return nil, multierr.Append(err, a.v.Close())
	}
	return a, nil
}

// startBackground launches the file watcher and the stream server. Both
// write to the scene and stop when ctx is done.
func (a *app) startBackground(ctx context.Context, ld *loader.Loader, files []string) error {
	if len(files) > 0 {
		w, err := loader.NewWatcher(a.v.Scene(), a.v.Notifier(), ld.Load)
		if err != nil {
			return err
		}
		a.v.AddCloser(w)
		for _, f := range files {
			if err := w.Add(f); err != nil {
				a.log.Warn("not watching file", zap.String("path", f), zap.Error(err))
			}
		}
		a.group.Go(func() error { return ignoreCanceled(w.Run(ctx)) })
	}

	if a.cfg.Stream.Enabled {
		srv := stream.New(a.cfg.Stream, a.v.Scene(), a.v.Notifier(), stream.Options{
			FrustumColor: viewer.Color(a.cfg.Render.FrustumColor),
			PointColor:   viewer.Color(a.cfg.Render.PointColor),
		})
		a.group.Go(func() error {
			err := srv.ListenAndServe(ctx)
			if err != nil {
				a.log.Error("stream server stopped", zap.Error(err))
			}
			return err
		})
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) run() {
	a.backend.Run(a.frame)
}

// frame renders the scene offscreen, then draws it behind the panel.
func (a *app) frame() {
	a.panel.ProcessPending()

	pos, size := ui.WorkArea()
	scale := ui.FramebufferScale()
	winW, winH := int(size.X), int(size.Y)
	fbW, fbH := int(size.X*scale.X), int(size.Y*scale.Y)
	if winW > 0 && winH > 0 {
		a.fb.Resize(int32(fbW), int32(fbH))
		a.fb.SetWindowSize(winW, winH)
		a.v.Resize(winW, winH, fbW, fbH)
	}

	a.v.Update()

	restore := a.fb.BindWithViewport()
	a.gpu.Begin(a.panel.Background())
	a.v.Render()
	restore()

	a.view.Render(a.fb.ColorTexture(), pos, size)
	a.v.RenderGUI()

	a.v.Limiter().Wait()
}

func (a *app) close() error {
	a.cancel()
	err := a.group.Wait()
	if err != nil {
		err = fmt.Errorf("background task: %w", err)
	}
	return multierr.Append(err, a.v.Close())
}
