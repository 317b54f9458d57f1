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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	c, err := Load([]byte("lookaheadSeconds: 1.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1.5, c.LookaheadSeconds)
	assert.Equal(t, Default().DispatchLeadSeconds, c.DispatchLeadSeconds)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	_, err := Load([]byte("not: [valid"))
	require.Error(t, err)
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/scosc.yaml")
	require.Error(t, err)
}

func TestValidateRejectsNegativeLookahead(t *testing.T) {
	c := Default()
	c.LookaheadSeconds = -1
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidateRejectsMultiCharIdentifierTag(t *testing.T) {
	c := Default()
	c.NTPIdentifierType = "uu"
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestValidateRejectsUndersizedRing(t *testing.T) {
	c := Default()
	c.InboundRingBytes = 8
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestIdentifierTagDefaultsOnEmpty(t *testing.T) {
	c := &Config{}
	assert.Equal(t, byte('u'), c.IdentifierTag())
}

func TestValidateEngineOptionsBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*EngineOptions)
	}{
		{"numBuffers too low", func(e *EngineOptions) { e.NumBuffers = 0 }},
		{"numBuffers too high", func(e *EngineOptions) { e.NumBuffers = 70000 }},
		{"maxNodes too high", func(e *EngineOptions) { e.MaxNodes = 100000 }},
		{"audioBus too high", func(e *EngineOptions) { e.NumAudioBusChannels = 5000 }},
		{"controlBus too low", func(e *EngineOptions) { e.NumControlBusChannels = 0 }},
		{"memory too high", func(e *EngineOptions) { e.RealTimeMemoryKB = 2000000 }},
		{"blockSize zero", func(e *EngineOptions) { e.BlockSize = 0 }},
		{"sampleRate out of range", func(e *EngineOptions) { e.PreferredSampleRate = 1000 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := Default().Engine
			tc.mutate(&e)
			assert.ErrorIs(t, ValidateEngineOptions(&e), ErrInvalid)
		})
	}
}

func TestValidateEngineOptionsAllowsZeroSampleRate(t *testing.T) {
	e := Default().Engine
	e.PreferredSampleRate = 0
	assert.NoError(t, ValidateEngineOptions(&e))
}
