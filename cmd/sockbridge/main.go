package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/robotalks/sockbridge/pkg/backoff"
	"github.com/robotalks/sockbridge/pkg/bridge"
	"github.com/robotalks/sockbridge/pkg/config"
	"github.com/robotalks/sockbridge/pkg/console"
	"github.com/robotalks/sockbridge/pkg/framework"
	"github.com/robotalks/sockbridge/pkg/netwait"
	"github.com/robotalks/sockbridge/pkg/serial"
	"github.com/robotalks/sockbridge/pkg/sock"
	"github.com/robotalks/sockbridge/pkg/stats"
	"github.com/robotalks/sockbridge/pkg/status"
	"github.com/robotalks/sockbridge/pkg/status/mqtt"
)

const startupLoadTimeout = 5 * time.Second

var (
	configFile    string
	redisAddr     string
	redisPassword string
	redisDB       int
	redisKey      = config.DefaultRedisKey
	proxyURL      string
	mqttURL       string
	mqttClientID  string
	metricsAddr   string
	statsInterval = stats.DefaultReportInterval
	enableConsole bool
	waitNetwork   bool
	echoEvents    = true
)

func init() {
	if val := os.Getenv("SOCKBRIDGE_CONFIG"); val != "" {
		configFile = val
	}
	if val := os.Getenv("SOCKBRIDGE_REDIS"); val != "" {
		redisAddr = val
	}
	redisPassword = os.Getenv("SOCKBRIDGE_REDIS_PASSWORD")
	if val := os.Getenv("SOCKBRIDGE_PROXY"); val != "" {
		proxyURL = val
	}
	if val := os.Getenv("SOCKBRIDGE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	if val := os.Getenv("SOCKBRIDGE_METRICS"); val != "" {
		metricsAddr = val
	}
	if val, err := strconv.ParseBool(os.Getenv("SOCKBRIDGE_WAIT_NETWORK")); err == nil {
		waitNetwork = val
	}

	config.SetupFlags()
	bridge.SetupFlags()
	backoff.SetupFlags()
	serial.SetupFlags()

	flag.StringVar(&configFile, "config", configFile, "TOML configuration file, re-read before every connection attempt.")
	flag.StringVar(&redisAddr, "redis", redisAddr, "Redis address to read the configuration hash from.")
	flag.StringVar(&redisPassword, "redis-password", redisPassword, "Redis password.")
	flag.IntVar(&redisDB, "redis-db", redisDB, "Redis database.")
	flag.StringVar(&redisKey, "redis-key", redisKey, "Redis hash holding the configuration.")
	flag.StringVar(&proxyURL, "proxy", proxyURL, "Dial the remote endpoint through a proxy, e.g. socks5://host:1080.")
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL to publish connection events to, e.g. mqtt://localhost:1883/sockbridge/.")
	flag.StringVar(&mqttClientID, "mqtt-id", mqttClientID, "MQTT client ID and topic namespace, derived from the machine ID when empty.")
	flag.StringVar(&metricsAddr, "metrics", metricsAddr, "Listen address of the metrics and health endpoints, e.g. :9100.")
	flag.DurationVar(&statsInterval, "stats-interval", statsInterval, "Period of the traffic summary in the log.")
	flag.BoolVar(&enableConsole, "console", enableConsole, "Run an interactive console on the terminal.")
	flag.BoolVar(&waitNetwork, "wait-network", waitNetwork, "Wait for a routable address before every connection attempt.")
	flag.BoolVar(&echoEvents, "echo-events", echoEvents, "Write connection event sentences back to the serial device.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Flush()
		glog.Exitf("sockbridge: %v", err)
	}
}

func run() error {
	source, static, err := newSource()
	if err != nil {
		return err
	}
	if closer, ok := source.(io.Closer); ok {
		defer closer.Close()
	}

	port, err := serial.NewConfig().Open()
	if err != nil {
		return err
	}
	defer port.Close()

	policy, err := backoff.NewConfig().NewPolicy()
	if err != nil {
		return err
	}

	conf := bridge.NewConfig()
	color := startupColor(source)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := stats.NewMetrics(reg)
	counters := &stats.Counters{}

	sinks := status.Sinks{status.LogSink{}}
	if echoEvents {
		sinks = append(sinks, &status.SentenceSink{W: port, Marker: conf.Marker})
	}
	var indicators status.Indicators
	if color != 0 {
		indicators = append(indicators, metrics.RegisterIndicator(reg))
	}

	if mqttURL != "" {
		q, reporter, err := newMQTT(color, conf.Marker)
		if err != nil {
			return err
		}
		defer q.Close()
		sinks = append(sinks, reporter)
		if color != 0 {
			indicators = append(indicators, reporter)
		}
	}

	dialer := sock.NewTCPDialer()
	dialer.ProxyURL = proxyURL

	deps := bridge.Deps{
		Source:  source,
		Dialer:  dialer,
		Sink:    sinks,
		Stats:   stats.Collectors{counters, metrics},
		Backoff: policy,
		Notifier: bridge.StateChangedFunc(func(ctx context.Context, state bridge.State) {
			glog.V(1).Infof("bridge %s", state)
		}),
	}
	if len(indicators) > 0 {
		deps.Indicator = indicators
	}
	if waitNetwork {
		deps.Waiter = &netwait.InterfaceWaiter{}
	}
	b := bridge.New(conf, deps)

	runner := framework.NewRunner().HandleSignals()
	runner.StopOnError = true
	runner.Go(
		b,
		serial.NewReader(port, b),
		framework.NamedRun("stats", &stats.Reporter{Counters: counters, Interval: statsInterval}),
	)
	if metricsAddr != "" {
		glog.Infof("serving metrics on %s", metricsAddr)
		runner.Go(framework.NamedRun("metrics", &stats.Server{
			Addr:     metricsAddr,
			Gatherer: reg,
			Ready:    counters.IsConnected,
		}))
	}
	if enableConsole {
		runner.Go(console.New(b, counters, static))
	}
	return runner.Wait()
}

// newSource picks the configuration source from the flags. static is
// non-nil only when the configuration lives in memory and can be changed
// from the console.
func newSource() (source config.Source, static *config.Static, err error) {
	switch {
	case configFile != "":
		glog.Infof("configuration from file %s", configFile)
		return config.NewFile(configFile), nil, nil
	case redisAddr != "":
		glog.Infof("configuration from redis %s key %s", redisAddr, redisKey)
		return config.NewRedis(redisAddr, redisPassword, redisDB, redisKey), nil, nil
	}
	static, err = config.NewStatic()
	if err != nil {
		return nil, nil, err
	}
	return static, static, nil
}

// startupColor reads the indicator color once. The indicator is only
// created when a color is configured at startup.
func startupColor(source config.Source) config.Color {
	ctx, cancel := context.WithTimeout(context.Background(), startupLoadTimeout)
	defer cancel()
	snap, err := source.Load(ctx)
	if err != nil {
		glog.Warningf("load configuration: %v", err)
		return 0
	}
	return snap.Color
}

func newMQTT(color config.Color, marker string) (*mqtt.Queue, *mqtt.Reporter, error) {
	id := mqttClientID
	if id == "" {
		id = mqtt.DefaultClientID()
	}
	opts, prefix, err := mqtt.ClientOptionsFromURL(mqttURL, id)
	if err != nil {
		return nil, nil, err
	}
	reporter := mqtt.NewReporter(nil, id, color)
	reporter.Marker = marker
	if color != 0 {
		reporter.SetupWill(opts, prefix)
	}
	q := mqtt.NewQueue(opts, prefix)
	reporter.Publisher = q
	if color != 0 {
		q.OnConnect = func(*mqtt.Queue) { reporter.Republish() }
	}
	token := q.Connect()
	if !token.WaitTimeout(startupLoadTimeout) {
		glog.Warningf("MQTT %s: connect timed out", mqttURL)
	} else if err := token.Error(); err != nil {
		glog.Warningf("MQTT %s: %v", mqttURL, err)
	}
	return q, reporter, nil
}
