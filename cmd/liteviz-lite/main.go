// Package main is a LiteViz viewer that drives a raw SDL window without the
// configuration panel. Keyboard shortcuts replace the panel controls.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/liteviz/internal/config"
	"github.com/Faultbox/liteviz/internal/engine/framebuffer"
	"github.com/Faultbox/liteviz/internal/engine/input"
	"github.com/Faultbox/liteviz/internal/engine/renderer"
	"github.com/Faultbox/liteviz/internal/engine/window"
	"github.com/Faultbox/liteviz/internal/loader"
	"github.com/Faultbox/liteviz/internal/logger"
	"github.com/Faultbox/liteviz/internal/stream"
	"github.com/Faultbox/liteviz/internal/viewer"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// surface keeps the framebuffer in step with the window.
type surface struct {
	*viewer.Viewer
	fb *framebuffer.Framebuffer
}

func (s surface) Resize(winW, winH, fbW, fbH int) {
	s.fb.Resize(int32(fbW), int32(fbH))
	s.fb.SetWindowSize(winW, winH)
	s.Viewer.Resize(winW, winH, fbW, fbH)
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, config.Args()); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("viewer closed normally")
}

func run(cfg *config.Config, files []string) (err error) {
	win, err := window.New(window.FromConfig(cfg.Window))
	if err != nil {
		return err
	}
	defer win.Close()

	gpu, err := renderer.New(renderer.Config{PointSize: float32(cfg.Render.PointSize)})
	if err != nil {
		return err
	}

	winW, winH := win.Size()
	fbW, fbH := win.DrawableSize()
	fb, err := framebuffer.New(int32(fbW), int32(fbH))
	if err != nil {
		gpu.Close()
		return err
	}

	v, err := viewer.New(cfg)
	if err != nil {
		fb.Destroy()
		gpu.Close()
		return err
	}
	v.AddCloser(closerFunc(func() error { gpu.Close(); return nil }))
	v.AddCloser(closerFunc(func() error { fb.Destroy(); return nil }))
	defer func() {
		if err := v.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	ld := loader.New(loader.OptionsFromConfig(cfg))
	v.SetLoader(ld.Load)
	v.SetFrameSource(fb)
	v.Viewport().SetDepthSampler(fb)
	v.AttachGPU(gpu)

	surf := surface{Viewer: v, fb: fb}
	surf.Resize(winW, winH, fbW, fbH)

	if len(files) == 0 {
		viewer.DemoScene(v.Scene(), cfg)
	} else {
		if err := v.OpenAll(files); err != nil {
			logger.Warn("some files failed to load", zap.Error(err))
		}
		v.FrameScene()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	// The server must be gone before the deferred Close tears down the scene.
	defer func() {
		cancel()
		if werr := group.Wait(); werr != nil && err == nil {
			err = werr
		}
	}()
	if cfg.Stream.Enabled {
		srv := stream.New(cfg.Stream, v.Scene(), v.Notifier(), stream.Options{
			FrustumColor: viewer.Color(cfg.Render.FrustumColor),
			PointColor:   viewer.Color(cfg.Render.PointColor),
		})
		group.Go(func() error {
			err := srv.ListenAndServe(ctx)
			if err != nil {
				logger.Error("stream server stopped", zap.Error(err))
			}
			return err
		})
	}

	bg := viewer.Color(cfg.Render.Background)
	in := input.New()
	status := ""
	for ctx.Err() == nil {
		if in.Update() {
			break
		}
		input.Dispatch(in.Events(), v.Controls(), surf, win.DrawableSize)
		v.Update()

		restore := fb.BindWithViewport()
		gpu.Begin(bg)
		v.Render()
		restore()

		w, h := win.DrawableSize()
		fb.Blit(int32(w), int32(h))
		win.SwapBuffers()

		if s := v.Status(); s != status {
			status = s
			win.SetTitle(cfg.Window.Title + " - " + s)
		}
		v.Limiter().Wait()
	}
	return nil
}
