// Copyright 2024 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config binds the core's tunables and validates them
// synchronously at construction, per spec.md §6/§7.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable spec.md §6 enumerates: dispatch timing, ring
// sizes, the identifier extension tag, and the pass-through engine bounds.
type Config struct {
	LookaheadSeconds           float64 `yaml:"lookaheadSeconds"`
	DispatchLeadSeconds        float64 `yaml:"dispatchLeadSeconds"`
	PreschedulerPollIntervalMs int     `yaml:"preschedulerPollIntervalMs"`
	PreschedulerCapacity       int     `yaml:"preschedulerCapacity"`
	EngineSchedulerCapacity    int     `yaml:"engineSchedulerCapacity"`
	EngineSchedulerSlotBytes   int     `yaml:"engineSchedulerSlotBytes"`

	InboundRingBytes  uint32 `yaml:"inboundRingBytes"`
	OutboundRingBytes uint32 `yaml:"outboundRingBytes"`
	DebugRingBytes    uint32 `yaml:"debugRingBytes"`

	NTPIdentifierType string `yaml:"ntpIdentifierType"`

	Engine EngineOptions `yaml:"engine"`
}

// EngineOptions are passed through to the DSP engine unchanged; the core
// validates only finiteness and the sane bounds spec.md §6 enumerates, not
// the engine's own interpretation of them.
type EngineOptions struct {
	NumBuffers           int     `yaml:"numBuffers"`
	MaxNodes             int     `yaml:"maxNodes"`
	NumAudioBusChannels  int     `yaml:"numAudioBusChannels"`
	NumControlBusChannels int    `yaml:"numControlBusChannels"`
	RealTimeMemoryKB     int     `yaml:"realTimeMemoryKb"`
	BlockSize            int     `yaml:"blockSize"`
	PreferredSampleRate  int     `yaml:"preferredSampleRate"`
	LoadGraphDefs        bool    `yaml:"loadGraphDefs"`
}

// Default returns the spec's documented defaults.
func Default() *Config {
	return &Config{
		LookaheadSeconds:           0.5,
		DispatchLeadSeconds:        0.1,
		PreschedulerPollIntervalMs: 25,
		PreschedulerCapacity:       65536,
		EngineSchedulerCapacity:    128,
		EngineSchedulerSlotBytes:   16384,
		InboundRingBytes:           1 << 20,
		OutboundRingBytes:          1 << 18,
		DebugRingBytes:             1 << 16,
		NTPIdentifierType:          "u",
		Engine: EngineOptions{
			NumBuffers:           1024,
			MaxNodes:             1024,
			NumAudioBusChannels:  128,
			NumControlBusChannels: 4096,
			RealTimeMemoryKB:     8192,
			BlockSize:            128,
			PreferredSampleRate:  0,
			LoadGraphDefs:        true,
		},
	}
}

// Load parses YAML bytes over Default(), so a partial document only
// overrides the fields it names, then validates the result.
func Load(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads and parses a YAML config file from path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Load(data)
}

// IdentifierTag returns the configured identifier extension tag character,
// defaulting to 'u' if unset or malformed.
func (c *Config) IdentifierTag() byte {
	if len(c.NTPIdentifierType) != 1 {
		return 'u'
	}
	return c.NTPIdentifierType[0]
}
