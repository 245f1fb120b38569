// cmd/soarnav/main.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// soarnav runs the thermal-hunting navigation engine against a
// simulated glider: the engine's scheduler loop in one goroutine, the
// telemetry server in another.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avsoar/soarnav/gcs"
	"github.com/avsoar/soarnav/log"
	"github.com/avsoar/soarnav/math"
	"github.com/avsoar/soarnav/rand"
	"github.com/avsoar/soarnav/server"
	"github.com/avsoar/soarnav/soar"
	"github.com/avsoar/soarnav/vehicle"
	"github.com/avsoar/soarnav/vehicle/simvehicle"
)

var (
	addr      = flag.String("addr", "localhost:8448", "telemetry address (empty to disable)")
	logLevel  = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir    = flag.String("logdir", "", "log directory (defaults to user config dir)")
	seed      = flag.Int64("seed", 0, "RNG seed for reproducible runs (0: time-based)")
	radiusM   = flag.Float64("radius", 600, "operational area radius in meters (0: polygon mode)")
	polygon   = flag.String("polygon", "", "polygon file for radius 0")
	windE     = flag.Float64("wind-east", 3, "wind east component, m/s")
	windN     = flag.Float64("wind-north", 0, "wind north component, m/s")
	nThermals = flag.Int("thermals", 6, "simulated thermals scattered in the area")
	realtime  = flag.Bool("realtime", false, "run at wall-clock speed instead of as fast as possible")
	runFor    = flag.Duration("duration", 0, "simulated time to run (0: until interrupted)")
	dump      = flag.Bool("dump", false, "print the final engine status as JSON on exit")
)

func main() {
	flag.Parse()

	lg := log.New(*logLevel, *logDir)

	r := rand.New()
	if *seed != 0 {
		r.Seed(*seed)
	} else {
		r.Seed(time.Now().UnixNano())
	}

	home := math.Point2LL{-119.5, 44.25}
	wind := [2]float32{float32(*windE), float32(*windN)}

	sim := simvehicle.New(simvehicle.Options{
		Home:     home,
		AltM:     250,
		Wind:     wind,
		Thermals: scatterThermals(r, home, float32(*radiusM), *nThermals),
	})

	params := vehicle.DefaultParams()
	params[vehicle.ParamRadius] = float32(*radiusM)

	eng := soar.New(soar.Options{
		Backend:     sim,
		RC:          sim,
		Params:      params,
		Log:         lg,
		GCS:         gcs.NewDeduping(&gcs.LoggerSink{Logger: lg}, 30*time.Second),
		Rand:        r,
		PolygonPath: *polygon,
	})
	eng.RestoreMemory()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := server.New(lg)
	eg, ctx := errgroup.WithContext(ctx)

	if *addr != "" {
		eg.Go(func() error {
			defer log.CatchAndRecover(lg, nil)
			return srv.ListenAndServe(ctx, *addr)
		})
	}

	eg.Go(func() error {
		defer eng.Shutdown()
		var simulated time.Duration
		for {
			delay := eng.Update()
			srv.Publish(eng.Status())
			sim.Step(delay.Milliseconds())

			simulated += delay
			if *runFor > 0 && simulated >= *runFor {
				lg.Infof("finished after %s simulated", simulated)
				stop() // shut the telemetry server down too
				return nil
			}

			if *realtime {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
			} else if ctx.Err() != nil {
				return nil
			}
		}
	})

	if err := eg.Wait(); err != nil {
		lg.Errorf("exiting: %v", err)
		fmt.Fprintf(os.Stderr, "soarnav: %v\n", err)
		os.Exit(1)
	}

	if *dump {
		json.NewEncoder(os.Stdout).Encode(eng.Status())
	}
}

// scatterThermals places n thermals uniformly inside the inner 80% of
// the area so the engine has something to find.
func scatterThermals(r *rand.Rand, center math.Point2LL, radiusM float32, n int) []simvehicle.Thermal {
	if radiusM <= 0 {
		radiusM = 600
	}
	ths := make([]simvehicle.Thermal, 0, n)
	for i := 0; i < n; i++ {
		d := 0.8 * radiusM * math.Sqrt(r.Float32())
		hdg := r.Float32() * 360
		ths = append(ths, simvehicle.Thermal{
			Position: math.Offset2LL(center, hdg, d),
			RadiusM:  80 + r.Float32()*120,
			Strength: 1.5 + r.Float32()*2.5,
		})
	}
	return ths
}
