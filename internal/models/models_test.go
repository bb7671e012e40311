package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validOptions() Options {
	return Options{
		Host:           "localhost",
		Port:           8888,
		LLMConfig:      "model.json",
		Converter:      ConverterLocal,
		MaxUploadMB:    64,
		ConvertTimeout: 120,
		LLMTimeout:     90,
		MaxConcurrent:  4,
		UploadMaxAge:   60,
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(o *Options)
		wantErr string
	}{
		{name: "local backend", modify: func(o *Options) {}},
		{name: "docling backend with url", modify: func(o *Options) {
			o.Converter = ConverterDocling
			o.DoclingURL = "http://docling:5001"
		}},
		{name: "docling backend without url", modify: func(o *Options) {
			o.Converter = ConverterDocling
		}, wantErr: "docling-url"},
		{name: "unknown backend", modify: func(o *Options) {
			o.Converter = "pandoc"
		}, wantErr: "unknown converter"},
		{name: "zero upload size", modify: func(o *Options) {
			o.MaxUploadMB = 0
		}, wantErr: "max upload size"},
		{name: "zero upload max age", modify: func(o *Options) {
			o.UploadMaxAge = 0
		}, wantErr: "upload max age"},
		{name: "negative upload max age", modify: func(o *Options) {
			o.UploadMaxAge = -5
		}, wantErr: "upload max age"},
		{name: "zero concurrency", modify: func(o *Options) {
			o.MaxConcurrent = 0
		}, wantErr: "max concurrent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.modify(&o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestOptionsDurations(t *testing.T) {
	o := validOptions()
	assert.Equal(t, int64(64<<20), o.MaxUploadBytes())
	assert.Equal(t, 2*time.Minute, o.ConvertTimeoutDuration())
	assert.Equal(t, 90*time.Second, o.LLMTimeoutDuration())
	assert.Equal(t, time.Hour, o.UploadMaxAgeDuration())
}
