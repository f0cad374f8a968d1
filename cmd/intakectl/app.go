package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"loan-intake/internal/catalog"
	"loan-intake/internal/common/camunda"
	"loan-intake/internal/common/config"
	"loan-intake/internal/common/database"
	"loan-intake/internal/common/httpclient"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/staffapi"
)

// app holds the loaded configuration and the clients built from it. Clients
// are created on first use so that commands only need the services they
// touch.
type app struct {
	configFile string
	output     string
	logLevel   string

	cfg *config.Config
	log logger.Logger

	staff   *staffapi.Client
	rdb     *database.RedisClient
	zeebe   *camunda.Client
	catalog *catalog.Service
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	switch a.output {
	case "yaml", "json":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}

	var err error
	if a.configFile != "" {
		a.cfg, err = config.LoadFileLenient(a.configFile)
	} else {
		a.cfg, err = config.LoadLenient()
	}
	if err != nil {
		return err
	}

	zl, err := logger.Build(logger.Options{Level: a.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}
	a.log = logger.NewZapAdapter(zl)
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.zeebe != nil {
		_ = a.zeebe.Close()
	}
}

func (a *app) staffClient() (*staffapi.Client, error) {
	if a.staff != nil {
		return a.staff, nil
	}
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = config.GetDuration(a.cfg.StaffAPI.Timeout)

	c, err := staffapi.NewClient(staffapi.Config{
		BaseURL:     a.cfg.StaffAPI.BaseURL,
		BearerToken: a.cfg.StaffAPI.BearerToken,
		HTTPClient:  httpclient.New(httpCfg),
	})
	if err != nil {
		return nil, err
	}
	a.staff = c
	return c, nil
}

// redisClient returns nil without error when no address is configured.
func (a *app) redisClient() *redis.Client {
	if a.rdb == nil {
		rdb, err := database.NewRedis(a.cfg.Database.Redis)
		if err != nil {
			a.log.Debug("redis not configured", map[string]interface{}{"error": err.Error()})
			return nil
		}
		a.rdb = rdb
	}
	return a.rdb.Client
}

func (a *app) requireRedis() (*redis.Client, error) {
	rdb := a.redisClient()
	if rdb == nil {
		return nil, fmt.Errorf("database.redis.address is required for this command")
	}
	return rdb, nil
}

func (a *app) catalogService() (*catalog.Service, error) {
	if a.catalog != nil {
		return a.catalog, nil
	}
	staff, err := a.staffClient()
	if err != nil {
		return nil, err
	}

	var es *database.ElasticsearchClient
	if a.cfg.Database.Elasticsearch.GetURL() != "" {
		if es, err = database.NewElasticsearch(a.cfg.Database.Elasticsearch); err != nil {
			return nil, err
		}
	}
	cfg := catalog.Config{
		CacheKey:      a.cfg.Catalog.CacheKey,
		CacheTTL:      config.GetDuration(a.cfg.Catalog.CacheTTL),
		SnapshotIndex: a.cfg.Catalog.SnapshotIndex,
	}
	if es != nil {
		a.catalog = catalog.New(cfg, staff, a.redisClient(), es.Client, a.log)
	} else {
		a.catalog = catalog.New(cfg, staff, a.redisClient(), nil, a.log)
	}
	return a.catalog, nil
}

func (a *app) zeebeClient() (*camunda.Client, error) {
	if a.zeebe != nil {
		return a.zeebe, nil
	}
	if a.cfg.Camunda.BrokerAddress == "" {
		return nil, fmt.Errorf("camunda.broker_address is required for this command")
	}
	c, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         a.cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         config.GetDuration(a.cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		return nil, err
	}
	a.zeebe = c
	return c, nil
}

// render writes v to w in the selected output format.
func (a *app) render(w io.Writer, v interface{}) error {
	return render(w, a.output, v)
}

func render(w io.Writer, format string, v interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	// Round-trip through JSON so YAML output uses the same field names and
	// custom marshalers as the job variables.
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var plain interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plain); err != nil {
		return err
	}
	return enc.Close()
}
