package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/taskmesh/backend/internal/db"
	taskclient "github.com/ichigozero/taskmesh/backend/tasksvc/client"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/taskmesh/backend/usersvc"
	"github.com/ichigozero/taskmesh/backend/usersvc/db/gorm"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userendpoint"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userservice"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/usertransport"
	"github.com/joho/godotenv"
	"github.com/oklog/oklog/pkg/group"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/twinj/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "usersvc"

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("usersvc", flag.ExitOnError)
	var (
		httpAddr = fs.String(
			"http.addr",
			getEnv("HTTP_ADDR", ":8081"),
			"HTTP listen address",
		)
		grpcAddr = fs.String(
			"grpc.addr",
			getEnv("GRPC_ADDR", ":9081"),
			"gRPC health listen address",
		)
		consulAddr = fs.String(
			"consul.addr",
			getEnv("CONSUL_ADDR", ""),
			"Consul agent address",
		)
		databaseURL = fs.String(
			"database.url",
			getEnv("DATABASE_URL", "usersvc.db"),
			"Database URL (postgres://, mysql:// or a SQLite file)",
		)
		tasksURL = fs.String(
			"tasks.url",
			getEnv("TASKS_URL", ""),
			"Task service address, bypassing Consul discovery",
		)
		retryMax = fs.Int(
			"retry.max",
			getEnvAsInt("RETRY_MAX", 1),
			"attempts per task service call",
		)
		retryTimeout = fs.Duration(
			"retry.timeout",
			time.Duration(getEnvAsInt("RETRY_TIMEOUT", 2000))*time.Millisecond,
			"per-request timeout for task service calls, including retries",
		)
		authSecret = fs.String(
			"auth.secret",
			getEnv("ACCESS_SECRET", ""),
			"HS256 secret required on /api requests; empty disables auth",
		)
	)

	fs.Usage = usageFor(fs, os.Args[0]+" [flags]")
	fs.Parse(os.Args[1:])

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	conn, err := db.Open(*databaseURL)
	if err != nil {
		logger.Log("during", "Open", "err", err)
		os.Exit(1)
	}
	if err := conn.AutoMigrate(&usersvc.User{}); err != nil {
		logger.Log("during", "AutoMigrate", "err", err)
		os.Exit(1)
	}

	var (
		client    consulsd.Client
		registrar *consulsd.Registrar
	)
	if *consulAddr != "" || *tasksURL == "" {
		consulConfig := api.DefaultConfig()
		if len(*consulAddr) > 0 {
			consulConfig.Address = *consulAddr
		}
		consulClient, err := api.NewClient(consulConfig)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}

		asr, err := registration(*httpAddr, *grpcAddr)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}

		client = consulsd.NewClient(consulClient)
		registrar = consulsd.NewRegistrar(client, asr, logger)
		registrar.Register()
		defer registrar.Deregister()
	}

	var taskEndpoints taskendpoint.Set
	if *tasksURL != "" {
		taskEndpoints, err = taskclient.NewWithInstancer(sd.FixedInstancer{*tasksURL}, logger, *retryMax, *retryTimeout)
	} else {
		taskEndpoints, err = taskclient.New(client, logger, *retryMax, *retryTimeout)
	}
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}

	var service userservice.Service
	{
		fieldKeys := []string{"method"}
		requestCount := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "taskmesh",
			Subsystem: serviceName,
			Name:      "request_count",
			Help:      "Number of requests received.",
		}, fieldKeys)
		requestLatency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: "taskmesh",
			Subsystem: serviceName,
			Name:      "request_latency_seconds",
			Help:      "Total duration of requests in seconds.",
		}, fieldKeys)

		service = userservice.New(
			gorm.NewUserRepository(conn),
			taskclient.NewTaskCounter(taskEndpoints, logger),
			logger,
		)
		service = userservice.InstrumentingMiddleware(requestCount, requestLatency)(service)
	}

	var (
		endpoints   = userendpoint.New(service, logger)
		httpHandler = usertransport.NewHTTPHandler(endpoints, []byte(*authSecret), logger)
	)

	var g group.Group
	{
		httpListener, err := net.Listen("tcp", *httpAddr)
		if err != nil {
			logger.Log("transport", "HTTP", "during", "Listen", "err", err)
			deregister(registrar)
			os.Exit(1)
		}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", *httpAddr)
			return http.Serve(httpListener, httpHandler)
		}, func(error) {
			httpListener.Close()
		})
	}
	{
		// The gRPC listener only serves health checks for Consul.
		grpcListener, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			logger.Log("transport", "gRPC", "during", "Listen", "err", err)
			deregister(registrar)
			os.Exit(1)
		}
		baseServer := grpc.NewServer()
		g.Add(func() error {
			logger.Log("transport", "gRPC", "addr", *grpcAddr)
			hs := health.NewServer()
			hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
			healthpb.RegisterHealthServer(baseServer, hs)
			return baseServer.Serve(grpcListener)
		}, func(error) {
			baseServer.Stop()
		})
	}
	{
		// This function just sits and waits for ctrl-C.
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	logger.Log("exit", g.Run())
}

// registration advertises the HTTP address and lets Consul probe the gRPC
// health server.
func registration(httpAddr, grpcAddr string) (*api.AgentServiceRegistration, error) {
	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = "localhost"
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, err
	}

	grpcHost, grpcPort, err := net.SplitHostPort(grpcAddr)
	if err != nil {
		return nil, err
	}
	if grpcHost == "" {
		grpcHost = host
	}

	return &api.AgentServiceRegistration{
		ID:      uuid.NewV4().String(),
		Name:    serviceName,
		Address: host,
		Port:    p,
		Check: &api.AgentServiceCheck{
			GRPC:                           net.JoinHostPort(grpcHost, grpcPort) + "/" + serviceName,
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}, nil
}

func deregister(r *consulsd.Registrar) {
	if r != nil {
		r.Deregister()
	}
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
