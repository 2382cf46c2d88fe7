package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/gorilla/mux"
	"github.com/hashicorp/consul/api"
	taskclient "github.com/ichigozero/taskmesh/backend/tasksvc/client"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/tasktransport"
	userclient "github.com/ichigozero/taskmesh/backend/usersvc/client"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userendpoint"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/usertransport"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type config struct {
	httpAddr     string
	consulAddr   string
	usersURL     string
	tasksURL     string
	retryMax     int
	retryTimeout time.Duration
	authSecret   string
}

// parseConfig reads the gateway flags. Writes reach the services through
// the same balancer, so retries stay off unless asked for.
func parseConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("apigateway", flag.ContinueOnError)
	fs.StringVar(&cfg.httpAddr, "http.addr", ":8000", "Address for HTTP (JSON) server")
	fs.StringVar(&cfg.consulAddr, "consul.addr", "", "Consul agent address")
	fs.StringVar(&cfg.usersURL, "users.url", "", "User service address, bypassing Consul discovery")
	fs.StringVar(&cfg.tasksURL, "tasks.url", "", "Task service address, bypassing Consul discovery")
	fs.IntVar(&cfg.retryMax, "retry.max", 1, "per-request attempts across instances, including the first")
	fs.DurationVar(&cfg.retryTimeout, "retry.timeout", 2*time.Second, "per-request timeout, including retries")
	fs.StringVar(&cfg.authSecret, "auth.secret", os.Getenv("ACCESS_SECRET"), "HS256 secret required on /api requests; empty disables auth")
	err := fs.Parse(args)
	return cfg, err
}

func main() {
	_ = godotenv.Load()

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	var client consulsd.Client
	if cfg.usersURL == "" || cfg.tasksURL == "" {
		consulConfig := api.DefaultConfig()
		if len(cfg.consulAddr) > 0 {
			consulConfig.Address = cfg.consulAddr
		}

		consulClient, err := api.NewClient(consulConfig)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}

		client = consulsd.NewClient(consulClient)
	}

	var (
		userEndpoints userendpoint.Set
		taskEndpoints taskendpoint.Set
	)
	if cfg.usersURL != "" {
		userEndpoints, err = userclient.NewWithInstancer(sd.FixedInstancer{cfg.usersURL}, logger, cfg.retryMax, cfg.retryTimeout)
	} else {
		userEndpoints, err = userclient.New(client, logger, cfg.retryMax, cfg.retryTimeout)
	}
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	if cfg.tasksURL != "" {
		taskEndpoints, err = taskclient.NewWithInstancer(sd.FixedInstancer{cfg.tasksURL}, logger, cfg.retryMax, cfg.retryTimeout)
	} else {
		taskEndpoints, err = taskclient.New(client, logger, cfg.retryMax, cfg.retryTimeout)
	}
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}

	r := newRouter(userEndpoints, taskEndpoints, []byte(cfg.authSecret), logger)

	// Interrupt handler.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// HTTP transport.
	go func() {
		logger.Log("transport", "HTTP", "addr", cfg.httpAddr)
		errc <- http.ListenAndServe(cfg.httpAddr, r)
	}()

	// Run!
	logger.Log("exit", <-errc)
}

// newRouter exposes both services behind one address. The caller's bearer
// token is checked here when secret is set and always forwarded.
func newRouter(users userendpoint.Set, tasks taskendpoint.Set, secret []byte, logger log.Logger) *mux.Router {
	r := mux.NewRouter()
	{
		userHTTPHandler := usertransport.NewHTTPHandler(users, secret, log.With(logger, "upstream", "usersvc"))
		r.PathPrefix("/api/users").Handler(userHTTPHandler)
	}
	{
		taskHTTPHandler := tasktransport.NewHTTPHandler(tasks, secret, log.With(logger, "upstream", "tasksvc"))
		r.PathPrefix("/api/tasks").Handler(taskHTTPHandler)
	}
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
	return r
}
