package system

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/habitual/internal/api"
	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/jobs"
	"github.com/julianstephens/habitual/internal/realtime"
	"github.com/julianstephens/habitual/internal/service"
)

// ServeCmd runs the HTTP API together with milestone delivery and the
// scheduled streak recalculation until interrupted.
type ServeCmd struct {
	Listen         string `help:"Address to listen on." default:"${listen_addr}" env:"HABITUAL_LISTEN"`
	RecalcSchedule string `help:"Cron schedule of the streak recalculation." default:"${recalc_schedule}" env:"HABITUAL_RECALC_SCHEDULE"`
	RecalcOnStart  bool   `help:"Run a recalculation pass at startup."`
	Desktop        bool   `help:"Forward milestones to the tray app." default:"true" negatable:""`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	issuer, err := ctx.Issuer()
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	bus := events.NewBus(constants.EventBufferSize)
	services := service.New(ctx.Store, bus, issuer)

	bus.Register(events.LogSink{}, &events.NotificationSink{Store: services.Notifications, Pusher: hub})
	if c.Desktop {
		bus.Register(&events.DesktopSink{Desktop: newDesktop()})
	}

	scheduler, err := jobs.NewScheduler(c.RecalcSchedule, services.Streaks)
	if err != nil {
		return err
	}
	server := api.NewServer(api.Config{Services: services, Issuer: issuer, Hub: hub})

	g, gctx := errgroup.WithContext(ctx.Context())
	g.Go(func() error { return bus.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, c.Listen) })
	if c.RecalcOnStart {
		g.Go(func() error {
			// Failures are logged by the scheduler and retried on schedule.
			_, _ = scheduler.RunOnce(gctx)
			return nil
		})
	}

	fmt.Printf("✓ Serving %s API on http://%s (recalculation %s)\n", constants.AppName, c.Listen, c.RecalcSchedule)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	fmt.Println("✓ Server stopped")
	return nil
}
