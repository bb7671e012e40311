package models

import (
	"fmt"
	"time"
)

// Options for the CLI.
// Every field is also read from a SERVICE_* environment variable.
type Options struct {
	Debug          bool   `doc:"Enable debug logging" short:"d" default:"false"`
	Host           string `doc:"Hostname to listen on" default:"localhost"`
	Port           int    `doc:"Port to listen on" short:"p" default:"8888"`
	LLMConfig      string `doc:"Path to the JSON file holding api_key, base_url and model" default:"model.json"`
	Converter      string `doc:"Conversion backend (local or docling)" default:"local"`
	DoclingURL     string `doc:"Base URL of the docling-serve instance used by the docling backend"`
	DoclingKey     string `doc:"API key sent to docling-serve"`
	UploadDir      string `doc:"Directory for temporary upload files, system temp dir if empty"`
	MaxUploadMB    int    `doc:"Maximum size of an uploaded or downloaded document in MiB" default:"64"`
	ConvertTimeout int    `doc:"Conversion timeout in seconds" default:"120"`
	LLMTimeout     int    `doc:"Language model timeout in seconds" default:"120"`
	MaxConcurrent  int    `doc:"Maximum number of conversions running at the same time" default:"4"`
	SweepSchedule  string `doc:"Cron schedule for removing leftover uploads" default:"@every 10m"`
	UploadMaxAge   int    `doc:"Age in minutes after which leftover uploads are removed" default:"60"`
	APIKey         string `doc:"Service API key. When set, requests must send it as a bearer token"`
}

// Converter backends
const (
	ConverterLocal   = "local"
	ConverterDocling = "docling"
)

// Validate checks the values the flag parser cannot.
func (o *Options) Validate() error {
	switch o.Converter {
	case ConverterLocal:
	case ConverterDocling:
		if o.DoclingURL == "" {
			return fmt.Errorf("converter %q needs --docling-url", o.Converter)
		}
	default:
		return fmt.Errorf("unknown converter %q, expected %q or %q", o.Converter, ConverterLocal, ConverterDocling)
	}
	if o.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", o.MaxUploadMB)
	}
	if o.UploadMaxAge <= 0 {
		return fmt.Errorf("upload max age must be positive, got %d", o.UploadMaxAge)
	}
	if o.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent conversions must be positive, got %d", o.MaxConcurrent)
	}
	return nil
}

func (o *Options) MaxUploadBytes() int64 {
	return int64(o.MaxUploadMB) << 20
}

func (o *Options) ConvertTimeoutDuration() time.Duration {
	return time.Duration(o.ConvertTimeout) * time.Second
}

func (o *Options) LLMTimeoutDuration() time.Duration {
	return time.Duration(o.LLMTimeout) * time.Second
}

func (o *Options) UploadMaxAgeDuration() time.Duration {
	return time.Duration(o.UploadMaxAge) * time.Minute
}
