package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"studydeck/bot"
	"studydeck/command"
	"studydeck/config"
	"studydeck/database"
	"studydeck/forum"
	forumgrpc "studydeck/grpc"
	"studydeck/handlers"
	"studydeck/listing"
	"studydeck/models"
	"studydeck/moderation"
	"studydeck/notify"
	"studydeck/search"
	"studydeck/trigram"
	"studydeck/utils"
	"studydeck/votes"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

func main() {
	check := flag.String("healthcheck", "", "query the health endpoint at this address and exit")
	flag.Parse()
	if *check != "" {
		os.Exit(healthcheck(*check))
	}

	if err := config.LoadConfig(); err != nil {
		utils.Logger().Fatalf("failed to load configuration: %v", err)
	}
	cfg, err := config.Settings(viper.GetViper())
	if err != nil {
		utils.Logger().Fatalf("invalid configuration: %v", err)
	}
	utils.SetLevel(cfg.Log.Level)

	app, err := start(cfg)
	if err != nil {
		utils.Logger().Fatalf("failed to start: %v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	if err := app.stop(); err != nil {
		utils.Error("main", "shutdown", err.Error())
		os.Exit(1)
	}
	utils.Info("main", "shutdown", "stopped gracefully")
}

func healthcheck(addr string) int {
	c, err := forumgrpc.NewClient(addr, 3*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer c.Close()
	if err := c.Check(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type app struct {
	db        *database.DB
	scheduler *bot.Scheduler
	bot       *bot.Bot
	health    *forumgrpc.HealthServer
	cancel    context.CancelFunc
}

func start(cfg models.Config) (*app, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &app{cancel: cancel}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		cancel()
		return nil, err
	}
	a.db = db

	index := trigram.NewIndex(db)
	if err := index.Load(ctx, db); err != nil {
		a.stop()
		return nil, err
	}
	shingles, threads := index.Stats()
	utils.Info("main", "load_index", fmt.Sprintf("loaded %d shingles for %d threads", shingles, threads))

	var source search.ShingleSource = index
	if cfg.Search.Backend == "sqlite" {
		source = db
	}
	engine := search.NewEngine(source, cfg.Search.MinScore)

	notifiers := notify.Multi{notify.LogNotifier{}}
	if cfg.Bot.Token != "" {
		b, err := bot.NewBot(cfg.Bot)
		if err != nil {
			a.stop()
			return nil, err
		}
		a.bot = b
		utils.InitLogger(b.Session, cfg.Bot.AdminChannelID)
		if cfg.Bot.ModerationChannelID != "" {
			notifiers = append(notifiers, notify.NewDiscordNotifier(b.Session, cfg.Bot.ModerationChannelID))
		}
	} else {
		utils.Warn("main", "start", "no bot token provided, Discord integration disabled")
	}

	mod := moderation.NewService(db, notifiers, moderation.Options{
		ReportLimit:    cfg.Moderation.ReportLimit,
		ReportWindow:   cfg.Moderation.ReportWindow,
		StaffRecipient: cfg.Moderation.StaffRecipient,
	})
	f := forum.New(db, index, listing.NewPipeline(db, engine), votes.NewCounter(db), mod)

	a.scheduler, err = bot.NewScheduler(cfg.Scheduler.IndexRebuild, cfg.Scheduler.OrphanPurge, index, db, runtime.NumCPU())
	if err != nil {
		a.stop()
		return nil, err
	}
	a.scheduler.Start()

	if a.bot != nil {
		a.bot.RegisterCommands(command.AllCommands)
		h := handlers.NewHandler(utils.NewAuth(cfg.Commands.Auth), f)
		if err := a.bot.Start(handlers.Register(h)); err != nil {
			a.stop()
			return nil, err
		}
	}

	if cfg.GRPC.HealthAddr != "" {
		hs, err := forumgrpc.NewHealthServer(cfg.GRPC.HealthAddr)
		if err != nil {
			a.stop()
			return nil, err
		}
		a.health = hs
		go func() {
			if err := hs.Serve(); err != nil {
				utils.Error("grpc", "serve", err.Error())
			}
		}()
		go hs.Watch(ctx, db.Ping, 15*time.Second)
	}

	utils.Info("main", "start", fmt.Sprintf("forum engine running on %s", db.Path()))
	return a, nil
}

// stop tears down in reverse start order and reports every failure.
func (a *app) stop() error {
	a.cancel()
	var result *multierror.Error
	if a.health != nil {
		a.health.Stop()
	}
	if a.bot != nil {
		if err := a.bot.Stop(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close database: %w", err))
		}
	}
	return result.ErrorOrNil()
}
