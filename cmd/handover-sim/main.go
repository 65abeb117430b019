package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/handover-engine/core"
	"github.com/signalsfoundry/handover-engine/internal/config"
	"github.com/signalsfoundry/handover-engine/internal/logging"
	"github.com/signalsfoundry/handover-engine/internal/observability"
	"github.com/signalsfoundry/handover-engine/internal/orbit"
	"github.com/signalsfoundry/handover-engine/model"
	"github.com/signalsfoundry/handover-engine/timectrl"
)

func main() {
	tlePath := flag.String("tles", "configs/constellation.tle", "path to a 3-line-element TLE file")
	serving := flag.String("serving", "", "initially serving satellite ID (default: first TLE)")
	duration := flag.Duration("duration", 2*time.Hour, "total evaluation duration in simulation time")
	tick := flag.Duration("tick", time.Minute, "orchestration tick interval")
	horizon := flag.Duration("horizon", 15*time.Minute, "per-tick evaluation horizon")
	sampleStep := flag.Duration("sample-step", time.Minute, "position sampling step within the horizon")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for /metrics (empty to disable)")
	obsLat := flag.Float64("observer-lat", 24.9441, "observer latitude, degrees")
	obsLon := flag.Float64("observer-lon", 121.3714, "observer longitude, degrees")
	obsAlt := flag.Float64("observer-alt", 0.024, "observer altitude, km")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "configuration invalid", logging.Err(err))
		os.Exit(1)
	}

	tles, err := orbit.LoadTLEFile(*tlePath)
	if err != nil {
		log.Error(ctx, "TLE load failed", logging.Err(err))
		os.Exit(1)
	}
	propagator, err := orbit.NewPropagator(tles)
	if err != nil {
		log.Error(ctx, "propagator init failed", logging.Err(err))
		os.Exit(1)
	}

	servingID := *serving
	if servingID == "" {
		servingID = tles[0].ID
	}

	metrics, err := observability.NewBatchCollector(nil)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.Err(err))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn(ctx, "metrics server stopped", logging.Err(err))
			}
		}()
	}

	observer := model.Observer{
		Name:     "ground-observer",
		Geodetic: model.Geodetic{LatDeg: *obsLat, LonDeg: *obsLon, AltKm: *obsAlt},
	}
	pipeline, err := core.NewPipeline(cfg, observer,
		core.WithLogger(log), core.WithMetrics(metrics))
	if err != nil {
		log.Error(ctx, "pipeline init failed", logging.Err(err))
		os.Exit(1)
	}

	samplesPerTick := int(*horizon / *sampleStep)
	if samplesPerTick < 2 {
		samplesPerTick = 2
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	controller := timectrl.NewTickController(time.Now().UTC(), *tick, mode)

	var handovers int
	controller.AddListener(func(simTime time.Time) {
		series := propagator.Series(simTime, *sampleStep, samplesPerTick)
		result := pipeline.RunTick(ctx, core.BatchInput{
			Timestamp: simTime,
			ServingID: servingID,
			Series:    series,
		})
		if result.Decision.Action == model.ActionHandoverTo {
			handovers++
			log.Info(ctx, "handover",
				logging.String("from", servingID),
				logging.String("to", result.Decision.TargetID),
				logging.String("reason", result.Decision.Reason))
			servingID = result.Decision.TargetID
		}
	})

	log.Info(ctx, "starting evaluation loop",
		logging.Int("satellites", len(tles)),
		logging.String("serving", servingID),
		logging.String("observer", fmt.Sprintf("%.4f,%.4f", *obsLat, *obsLon)),
	)

	controller.Run(ctx, *duration)

	log.Info(ctx, "evaluation finished",
		logging.Int("handovers", handovers),
		logging.Int("threshold_epoch", pipeline.Thresholds().Current().Epoch),
	)
}
