package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type Application struct {
	Server    Server    `koanf:"server"`
	Storage   Storage   `koanf:"storage"`
	Database  Database  `koanf:"db"`
	Redis     Redis     `koanf:"redis"`
	Reminders Reminders `koanf:"reminders"`
	SMTP      SMTP      `koanf:"smtp"`
	Metrics   Metrics   `koanf:"metrics"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

type Storage struct {
	// Driver is one of "file", "postgres" or "redis".
	Driver string `koanf:"driver"`
	File   string `koanf:"file"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Key      string `koanf:"key"`
}

type Reminders struct {
	Enabled bool `koanf:"enabled"`
	// Schedule is a robfig/cron spec, e.g. "@every 1m" or "* * * * *".
	Schedule string        `koanf:"schedule"`
	Window   time.Duration `koanf:"window"`
}

// SMTP settings for reminder emails. Reminders are only logged when Host is empty.
type SMTP struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	User string `koanf:"user"`
	Pass string `koanf:"pass"`
	From string `koanf:"from"`
}

type Metrics struct {
	Enabled bool `koanf:"enabled"`
}

func Defaults() Application {
	return Application{
		Server: Server{
			Addr: ":8181",
		},
		Storage: Storage{
			Driver: StorageFile,
			File:   "events.json",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "eventcal",
			Pass:   "",
			Name:   "eventcal",
			Schema: "eventcal",
		},
		Redis: Redis{
			Addr: "localhost:6379",
			DB:   0,
			Key:  "eventcal:events",
		},
		Reminders: Reminders{
			Enabled:  true,
			Schedule: "@every 1m",
			Window:   time.Hour,
		},
		SMTP: SMTP{
			Port: 587,
		},
		Metrics: Metrics{
			Enabled: true,
		},
	}
}

// Load layers the defaults, the YAML file at path (if present) and EVENTCAL_*
// environment variables, in that order.
func Load(path string) (Application, error) {
	var k = koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: "EVENTCAL_",
		TransformFunc: func(k, v string) (string, any) {
			// EVENTCAL_STORAGE_DRIVER -> storage.driver
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "EVENTCAL_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
