package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/esrecorder/esrecorder/recorder/cluster"
	"github.com/esrecorder/esrecorder/recorder/config"
	"github.com/esrecorder/esrecorder/recorder/dyno"
	"github.com/esrecorder/esrecorder/recorder/esclient"
	"github.com/esrecorder/esrecorder/recorder/history"
	"github.com/esrecorder/esrecorder/recorder/live"
	"github.com/esrecorder/esrecorder/recorder/sweep"
	"github.com/esrecorder/esrecorder/recorder/trace"
)

const statusInterval = 500 * time.Millisecond

var (
	serviceURL   string // Base URL of the engine-simulation service
	assetPath    string // Engine definition compiled by every instance
	capacity     int    // Instances created
	usable       int    // Instances driven by the sweep
	sampleLength int    // Seconds per sample
	prerunCount  int    // Warm-up iterations before each sample
	rpmRange     string // min:max:step, overrides the configured grid
	frequency    int    // Sample rate for --rpms
	throttles    []int  // Throttle positions, percent
	liveAddr     string // Address of the live dyno feed; empty disables
	traceLevel   string // Sweep trace verbosity
	noHistory    bool   // Skip the history database
	showStatus   bool   // Redraw the instance panel on stderr
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a sweep across the RPM x throttle grid",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := applyRecordFlags(cmd, cfg); err != nil {
			logrus.Fatalf("Invalid flag: %v", err)
		}
		mustValidate(cfg)
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Unknown trace level %q. Valid: none, samples", traceLevel)
		}

		client := esclient.New(cfg.Service.URL, time.Duration(cfg.Service.TimeoutSeconds)*time.Second)
		store := dyno.NewStore()

		var feed *live.Server
		if liveAddr != "" {
			feed = live.NewServer(store)
			bound, err := feed.Start(liveAddr)
			if err != nil {
				logrus.Fatalf("Failed to start live feed: %v", err)
			}
			logrus.Infof("Live dyno feed on ws://%s/ws", bound)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = feed.Close(ctx)
			}()
		}

		pool, err := cluster.Start(context.Background(), client, store, cluster.Config{
			Capacity:  cfg.Instances.Capacity,
			Usable:    cfg.Instances.Usable,
			AssetPath: cfg.Service.Asset,
			Observer: func(ev cluster.Event) {
				logrus.Debugf("instance %d: %s (%s)", ev.InstanceID, ev.Phase, ev.Status)
			},
		})
		if err != nil {
			logrus.Fatalf("Failed to start instances: %v", err)
		}
		defer pool.Shutdown()

		sched := sweep.NewScheduler(pool, store)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			if sched.Recording() {
				logrus.Warn("Interrupted, finishing in-flight samples")
				sched.Abort()
			}
		}()

		statusDone := make(chan struct{})
		go reportStatus(pool, feed, statusDone)

		var st *trace.SweepTrace
		if level := trace.TraceLevel(traceLevel); level != trace.TraceLevelNone {
			st = trace.NewSweepTrace(level)
		}
		res, err := sched.RunSweep(ctx, sweep.Request{
			Grid:         cfg.Recording.Grid(),
			PrerunCount:  cfg.Recording.PrerunCount,
			SampleLength: cfg.Recording.SampleLength,
			Usable:       cfg.Instances.Usable,
			EnginesDir:   cfg.Paths.Engines,
			Trace:        st,
		})
		close(statusDone)
		if err != nil {
			pool.Shutdown()
			logrus.Fatalf("Sweep failed: %v", err)
		}

		fmt.Println(renderResult(res))
		if st != nil {
			logTraceSummary(trace.Summarize(st))
		}
		if !noHistory && cfg.Paths.History != "" {
			saveHistory(cfg.Paths.History, res)
		}
	},
}

// applyRecordFlags overrides cfg with every flag the user set explicitly.
func applyRecordFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("service-url") {
		cfg.Service.URL = serviceURL
	}
	if flags.Changed("asset") {
		cfg.Service.Asset = assetPath
	}
	if flags.Changed("instances") {
		cfg.Instances.Capacity = capacity
	}
	if flags.Changed("usable") {
		cfg.Instances.Usable = usable
	}
	if flags.Changed("sample-length") {
		cfg.Recording.SampleLength = sampleLength
	}
	if flags.Changed("prerun") {
		cfg.Recording.PrerunCount = prerunCount
	}
	if flags.Changed("rpms") {
		gen, err := parseRPMRange(rpmRange)
		if err != nil {
			return err
		}
		if flags.Changed("frequency") {
			gen.Frequency = frequency
		} else if cfg.Recording.Generate != nil {
			gen.Frequency = cfg.Recording.Generate.Frequency
		} else {
			gen.Frequency = config.Default().Recording.Generate.Frequency
		}
		cfg.Recording.RPMs = nil
		cfg.Recording.Generate = gen
	} else if flags.Changed("frequency") {
		if cfg.Recording.Generate != nil {
			cfg.Recording.Generate.Frequency = frequency
		}
		for i := range cfg.Recording.RPMs {
			cfg.Recording.RPMs[i].Frequency = frequency
		}
	}
	if flags.Changed("throttles") {
		cfg.Recording.Throttles = append([]int(nil), throttles...)
	}
	return nil
}

// parseRPMRange parses "min:max:step".
func parseRPMRange(s string) (*config.RPMGenerator, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, &config.FieldError{Field: "rpms", Value: s, Reason: "expected min:max:step"}
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, &config.FieldError{Field: "rpms", Value: s, Reason: fmt.Sprintf("%q is not an integer", p)}
		}
		vals[i] = v
	}
	return &config.RPMGenerator{Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}

// reportStatus publishes instance states until done is closed.
func reportStatus(pool *cluster.Pool, feed *live.Server, done <-chan struct{}) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-pool.Done():
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), statusInterval)
		views := pool.States(ctx)
		cancel()
		if feed != nil {
			feed.PublishInstances(views)
		}
		if showStatus {
			fmt.Fprintln(os.Stderr, renderInstances(views))
		}
	}
}

func logTraceSummary(s *trace.TraceSummary) {
	logrus.WithFields(logrus.Fields{
		"dispatches":    s.TotalDispatches,
		"published":     s.PublishedCount,
		"failed":        s.FailedCount,
		"duplicates":    s.DuplicateCount,
		"missed":        s.MissCount,
		"load_failures": s.LoadFailureCount,
		"mean_ms":       s.MeanElapsedMillis,
		"max_ms":        s.MaxElapsedMillis,
		"instances":     s.UniqueInstances,
	}).Info("Sweep trace")
	ids := make([]int, 0, len(s.InstanceDistribution))
	for id := range s.InstanceDistribution {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		logrus.Debugf("instance %d: %d dispatches", id, s.InstanceDistribution[id])
	}
}

func saveHistory(path string, res *sweep.Result) {
	db, err := history.Open(path)
	if err != nil {
		logrus.Warnf("History not saved: %v", err)
		return
	}
	defer func() { _ = db.Close() }()
	if err := db.Save(history.FromResult(res)); err != nil {
		logrus.Warnf("History not saved: %v", err)
		return
	}
	logrus.Debugf("Saved sweep %s to %s", res.RunID, path)
}

// bindRecordFlags registers the flags of recordCmd on cmd.
func bindRecordFlags(cmd *cobra.Command) {
	def := config.Default()
	cmd.Flags().StringVar(&serviceURL, "service-url", def.Service.URL, "Base URL of the engine-simulation service")
	cmd.Flags().StringVar(&assetPath, "asset", def.Service.Asset, "Engine definition compiled by every instance")
	cmd.Flags().IntVar(&capacity, "instances", def.Instances.Capacity, "Number of instances to create")
	cmd.Flags().IntVar(&usable, "usable", def.Instances.Usable, "Number of instances the sweep drives")
	cmd.Flags().IntVar(&sampleLength, "sample-length", def.Recording.SampleLength, "Seconds recorded per sample")
	cmd.Flags().IntVar(&prerunCount, "prerun", def.Recording.PrerunCount, "Warm-up iterations before each sample")
	cmd.Flags().StringVar(&rpmRange, "rpms", "", "RPM grid as min:max:step (overrides the configured grid)")
	cmd.Flags().IntVar(&frequency, "frequency", def.Recording.Generate.Frequency, "Sample rate of every RPM point")
	cmd.Flags().IntSliceVar(&throttles, "throttles", def.Recording.Throttles, "Throttle positions in percent")
	cmd.Flags().StringVar(&liveAddr, "live-addr", "", "Serve the live dyno feed on this address (e.g. :8090)")
	cmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Sweep trace level (none, samples)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the sweep in the history database")
	cmd.Flags().BoolVar(&showStatus, "status", false, "Print the instance panel to stderr while recording")
}

func init() {
	bindRecordFlags(recordCmd)
}
