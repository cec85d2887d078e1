package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"device-sync/internal/config"
	"device-sync/internal/devicelist"
	"device-sync/internal/domain"
	"device-sync/internal/gateway"
	"device-sync/internal/notify"
	"device-sync/internal/push"

	"go.uber.org/zap"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	outMu  sync.Mutex
}

func newApp(cfg *config.Config, logger *zap.Logger, out io.Writer) *app {
	return &app{cfg: cfg, logger: logger, out: out}
}

func (a *app) gateway() *gateway.Client {
	return gateway.NewClient(a.cfg.API.BaseURL, a.cfg.API.Timeout)
}

func (a *app) list(ctx context.Context) error {
	c := devicelist.New(a.gateway(), nil, devicelist.WithLogger(a.logger))
	if !c.Fetch(ctx) {
		return errors.New(c.Err())
	}
	a.render(c.Devices(), nil)
	return nil
}

func (a *app) create(ctx context.Context, name, mac string) error {
	c := devicelist.New(a.gateway(), nil, devicelist.WithLogger(a.logger))
	if !c.Create(ctx, domain.CreateDeviceRequest{Name: name, MAC: mac}) {
		return errors.New(c.Err())
	}
	a.render(c.Devices(), nil)
	return nil
}

// toggle loads the list first; the controller only toggles devices it knows.
func (a *app) toggle(ctx context.Context, id string) error {
	c := devicelist.New(a.gateway(), nil, devicelist.WithLogger(a.logger))
	if !c.Fetch(ctx) {
		return errors.New(c.Err())
	}
	if !c.ToggleStatus(ctx, id) {
		if msg := c.Err(); msg != "" {
			return errors.New(msg)
		}
		return fmt.Errorf("device %s not found", id)
	}

	for _, d := range c.Devices() {
		if d.ID == id {
			a.render([]domain.Device{d}, nil)
		}
	}
	return nil
}

// watch keeps the list mounted and re-renders it on every change until ctx ends.
func (a *app) watch(ctx context.Context) error {
	var (
		c      *devicelist.Controller
		toasts *notify.Queue
	)
	redraw := func() {
		if c == nil || toasts == nil {
			return
		}
		a.render(c.Devices(), toasts.List())
	}

	toasts = notify.NewQueue(a.cfg.Toast.Duration,
		notify.WithLogger(a.logger),
		notify.WithOnChange(redraw))
	defer toasts.Close()

	channel, err := push.New(push.Options{
		URL:               a.cfg.Socket.URL,
		ReconnectDelay:    a.cfg.Socket.ReconnectDelay,
		ReconnectAttempts: a.cfg.Socket.ReconnectAttempts,
		PongWait:          a.cfg.WebSocket.PongWait,
		Logger:            a.logger,
		OnStateChange: func(s push.State) {
			a.logger.Debug("push channel state", zap.Stringer("state", s))
		},
	})
	if err != nil {
		return err
	}

	c = devicelist.New(a.gateway(), channel,
		devicelist.WithLogger(a.logger),
		devicelist.WithNotifier(toasts),
		devicelist.OnChange(redraw))

	unmount, err := c.Mount(ctx)
	if err != nil {
		return err
	}
	defer unmount()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := channel.WaitConnected(connectCtx); err != nil && ctx.Err() == nil {
		toasts.Info("Aguardando conexão em tempo real")
	}

	<-ctx.Done()
	return nil
}

func (a *app) render(devices []domain.Device, toasts []notify.Toast) {
	a.outMu.Lock()
	defer a.outMu.Unlock()

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMAC\tSTATUS\tUPDATED")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Name, d.MAC, d.Status, d.UpdatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()

	for _, t := range toasts {
		fmt.Fprintf(a.out, "[%s] %s\n", t.Level, t.Message)
	}
}
