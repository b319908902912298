// Package config loads a Context's settings from a YAML file with
// environment-variable overrides: a file-size guard, and KSI_*_FILE
// secret indirection so a password can be mounted as a file instead of
// landing in the process environment. An INI loader is kept alongside
// the YAML one for config files written against the flat options struct
// this package exposes.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/gravwell/gcfg"
	"gopkg.in/yaml.v3"
)

const maxConfigSize int64 = 4 * 1024 * 1024

var (
	ErrConfigFileTooLarge = errors.New("config file is too large")
	ErrFailedFileRead     = errors.New("failed to read entire config file")
)

// Config is the on-disk/env-var shape of a Context's settings: transport
// endpoints and credentials, PDU versions, timeouts, cache/dispatch
// sizing, and logging.
type Config struct {
	AggregatorURI string `yaml:"aggregator-uri"`
	ExtenderURI   string `yaml:"extender-uri"`

	AggregatorUser string `yaml:"aggregator-user"`
	AggregatorPass string `yaml:"aggregator-pass"`
	ExtenderUser   string `yaml:"extender-user"`
	ExtenderPass   string `yaml:"extender-pass"`

	PublicationsURL        string `yaml:"publications-url"`
	PublicationsFileTTLSec int64  `yaml:"publications-file-ttl-seconds"`

	AggrPDUVersion int `yaml:"aggr-pdu-version"`
	ExtPDUVersion  int `yaml:"ext-pdu-version"`

	ConnectTimeoutMs int64 `yaml:"connect-timeout-ms"`
	SendTimeoutMs    int64 `yaml:"send-timeout-ms"`
	RecvTimeoutMs    int64 `yaml:"recv-timeout-ms"`

	MaxRequestCount int `yaml:"max-request-count"`
	CacheSize       int `yaml:"cache-size"`

	LogLevel string `yaml:"log-level"`
	LogFile  string `yaml:"log-file"`
}

// iniConfig is the gcfg section shape for LoadFileINI: a single [Global]
// section, since this library's option set is flat rather than organized
// by subsystem.
type iniConfig struct {
	Global struct {
		AggregatorURI          string
		ExtenderURI            string
		AggregatorUser         string
		AggregatorPass         string
		ExtenderUser           string
		ExtenderPass           string
		PublicationsURL        string
		PublicationsFileTTLSec int64
		AggrPDUVersion         int
		ExtPDUVersion          int
		ConnectTimeoutMs       int64
		SendTimeoutMs          int64
		RecvTimeoutMs          int64
		MaxRequestCount        int
		CacheSize              int
		LogLevel               string
		LogFile                string
	}
}

// LoadFileINI reads a gcfg/.ini-style config as an alternative to
// LoadFile's YAML.
func LoadFileINI(p string) (*Config, error) {
	var ini iniConfig
	if err := gcfg.ReadFileInto(&ini, p); err != nil {
		return nil, err
	}
	cfg := &Config{
		AggregatorURI:          ini.Global.AggregatorURI,
		ExtenderURI:            ini.Global.ExtenderURI,
		AggregatorUser:         ini.Global.AggregatorUser,
		AggregatorPass:         ini.Global.AggregatorPass,
		ExtenderUser:           ini.Global.ExtenderUser,
		ExtenderPass:           ini.Global.ExtenderPass,
		PublicationsURL:        ini.Global.PublicationsURL,
		PublicationsFileTTLSec: ini.Global.PublicationsFileTTLSec,
		AggrPDUVersion:         ini.Global.AggrPDUVersion,
		ExtPDUVersion:          ini.Global.ExtPDUVersion,
		ConnectTimeoutMs:       ini.Global.ConnectTimeoutMs,
		SendTimeoutMs:          ini.Global.SendTimeoutMs,
		RecvTimeoutMs:          ini.Global.RecvTimeoutMs,
		MaxRequestCount:        ini.Global.MaxRequestCount,
		CacheSize:              ini.Global.CacheSize,
		LogLevel:               ini.Global.LogLevel,
		LogFile:                ini.Global.LogFile,
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses the YAML config at p, then applies
// KSI_*-prefixed environment overrides.
func LoadFile(p string) (*Config, error) {
	fin, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}

	bb := bytes.NewBuffer(nil)
	n, err := io.Copy(bb, fin)
	if err != nil {
		return nil, err
	}
	if n != fi.Size() {
		return nil, ErrFailedFileRead
	}

	var cfg Config
	if err := yaml.Unmarshal(bb.Bytes(), &cfg); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with this library's documented option
// defaults (AGGR_PDU_VER=2, EXT_PDU_VER=2, max-request-count=1,
// cache-size=1), then applies environment overrides.
func Default() (*Config, error) {
	cfg := &Config{
		AggrPDUVersion:         2,
		ExtPDUVersion:          2,
		MaxRequestCount:        1,
		CacheSize:              1,
		ConnectTimeoutMs:       10000,
		SendTimeoutMs:          10000,
		RecvTimeoutMs:          10000,
		PublicationsFileTTLSec: 3600,
		LogLevel:               "INFO",
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := overrideString(&cfg.AggregatorURI, "KSI_AGGREGATOR_URI"); err != nil {
		return err
	}
	if err := overrideString(&cfg.ExtenderURI, "KSI_EXTENDER_URI"); err != nil {
		return err
	}
	if err := overrideString(&cfg.AggregatorUser, "KSI_AGGREGATOR_USER"); err != nil {
		return err
	}
	if err := overrideSecret(&cfg.AggregatorPass, "KSI_AGGREGATOR_PASS"); err != nil {
		return err
	}
	if err := overrideString(&cfg.ExtenderUser, "KSI_EXTENDER_USER"); err != nil {
		return err
	}
	if err := overrideSecret(&cfg.ExtenderPass, "KSI_EXTENDER_PASS"); err != nil {
		return err
	}
	if err := overrideString(&cfg.PublicationsURL, "KSI_PUBLICATIONS_URL"); err != nil {
		return err
	}
	if err := overrideString(&cfg.LogLevel, "KSI_LOG_LEVEL"); err != nil {
		return err
	}
	if err := overrideString(&cfg.LogFile, "KSI_LOG_FILE"); err != nil {
		return err
	}
	return nil
}

// overrideString sets *dst from envName if set and *dst is currently
// empty; an already-configured value always wins over the environment.
func overrideString(dst *string, envName string) error {
	if *dst != "" {
		return nil
	}
	if v, ok := os.LookupEnv(envName); ok {
		*dst = v
	}
	return nil
}

// overrideSecret behaves like overrideString but also honors an
// envName+"_FILE" indirection, so a password can be mounted as a file
// (e.g. a Kubernetes secret) instead of landing in the process environment.
func overrideSecret(dst *string, envName string) error {
	if *dst != "" {
		return nil
	}
	if v, ok := os.LookupEnv(envName); ok {
		*dst = v
		return nil
	}
	if fp, ok := os.LookupEnv(envName + "_FILE"); ok {
		b, err := os.ReadFile(fp)
		if err != nil {
			return err
		}
		*dst = string(bytes.TrimRight(b, "\n\r"))
	}
	return nil
}

// ParseInt64 is a strict base-10 integer parser.
func ParseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
