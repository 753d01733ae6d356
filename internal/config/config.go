package config

import (
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type DB struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"database"`
}

type MQ struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	User  string `yaml:"user"`
	Pass  string `yaml:"password"`
	VHost string `yaml:"vhost"`
}

type HTTP struct {
	Port int `yaml:"port"`
}

type App struct {
	Database DB   `yaml:"database"`
	Rabbit   MQ   `yaml:"rabbitmq"`
	HTTP     HTTP `yaml:"http"`

	// JWTSecret is never read from the file, only from the environment.
	JWTSecret string `yaml:"-"`
}

func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	var a App
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if a.Database.Host == "" || a.Rabbit.Host == "" {
		return App{}, fmt.Errorf("invalid config %s: missing database/rabbitmq host", path)
	}
	if a.Rabbit.VHost == "" {
		a.Rabbit.VHost = "/"
	}
	if a.HTTP.Port == 0 {
		a.HTTP.Port = 3000
	}
	a.JWTSecret = os.Getenv("JWT_SECRET")
	return a, nil
}

func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Pass, d.Host, d.Port, d.Name)
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
