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
	"errors"
	"fmt"
	"math"
)

// ErrInvalid wraps every synchronous configuration rejection, so callers
// can errors.Is(err, config.ErrInvalid) without string matching.
var ErrInvalid = errors.New("config: invalid")

// Validate checks the core's own tunables and delegates engine bounds to
// ValidateEngineOptions. Invalid values fail synchronously, per spec.md §7.
func (c *Config) Validate() error {
	if c.LookaheadSeconds < 0 || math.IsNaN(c.LookaheadSeconds) || math.IsInf(c.LookaheadSeconds, 0) {
		return fmt.Errorf("%w: lookaheadSeconds must be finite and >= 0, got %v", ErrInvalid, c.LookaheadSeconds)
	}
	if c.DispatchLeadSeconds < 0 || math.IsNaN(c.DispatchLeadSeconds) || math.IsInf(c.DispatchLeadSeconds, 0) {
		return fmt.Errorf("%w: dispatchLeadSeconds must be finite and >= 0, got %v", ErrInvalid, c.DispatchLeadSeconds)
	}
	if c.PreschedulerPollIntervalMs <= 0 {
		return fmt.Errorf("%w: preschedulerPollIntervalMs must be > 0, got %d", ErrInvalid, c.PreschedulerPollIntervalMs)
	}
	if c.PreschedulerCapacity <= 0 {
		return fmt.Errorf("%w: preschedulerCapacity must be > 0, got %d", ErrInvalid, c.PreschedulerCapacity)
	}
	if c.EngineSchedulerCapacity <= 0 {
		return fmt.Errorf("%w: engineSchedulerCapacity must be > 0, got %d", ErrInvalid, c.EngineSchedulerCapacity)
	}
	if c.EngineSchedulerSlotBytes <= 0 {
		return fmt.Errorf("%w: engineSchedulerSlotBytes must be > 0, got %d", ErrInvalid, c.EngineSchedulerSlotBytes)
	}
	for name, v := range map[string]uint32{
		"inboundRingBytes":  c.InboundRingBytes,
		"outboundRingBytes": c.OutboundRingBytes,
		"debugRingBytes":    c.DebugRingBytes,
	} {
		if v < 64 {
			return fmt.Errorf("%w: %s must be >= 64, got %d", ErrInvalid, name, v)
		}
	}
	if len(c.NTPIdentifierType) != 1 {
		return fmt.Errorf("%w: ntpIdentifierType must be exactly one character, got %q", ErrInvalid, c.NTPIdentifierType)
	}
	return ValidateEngineOptions(&c.Engine)
}

// ValidateEngineOptions checks the pass-through engine configuration bounds
// spec.md §6 enumerates. It does not validate the engine's own
// interpretation of these values, only that they are in-range for the core
// to forward them at all.
func ValidateEngineOptions(e *EngineOptions) error {
	if e.NumBuffers < 1 || e.NumBuffers > 65535 {
		return fmt.Errorf("%w: numBuffers must be in [1, 65535], got %d", ErrInvalid, e.NumBuffers)
	}
	if e.MaxNodes < 1 || e.MaxNodes > 65535 {
		return fmt.Errorf("%w: maxNodes must be in [1, 65535], got %d", ErrInvalid, e.MaxNodes)
	}
	if e.NumAudioBusChannels < 1 || e.NumAudioBusChannels > 4096 {
		return fmt.Errorf("%w: numAudioBusChannels must be in [1, 4096], got %d", ErrInvalid, e.NumAudioBusChannels)
	}
	if e.NumControlBusChannels < 1 || e.NumControlBusChannels > 65535 {
		return fmt.Errorf("%w: numControlBusChannels must be in [1, 65535], got %d", ErrInvalid, e.NumControlBusChannels)
	}
	if e.RealTimeMemoryKB < 1 || e.RealTimeMemoryKB > 1048576 {
		return fmt.Errorf("%w: realTimeMemoryKb must be in [1, 1048576], got %d", ErrInvalid, e.RealTimeMemoryKB)
	}
	if e.BlockSize <= 0 {
		return fmt.Errorf("%w: blockSize must be > 0, got %d", ErrInvalid, e.BlockSize)
	}
	if e.PreferredSampleRate != 0 && (e.PreferredSampleRate < 8000 || e.PreferredSampleRate > 192000) {
		return fmt.Errorf("%w: preferredSampleRate must be 0 or in [8000, 192000], got %d", ErrInvalid, e.PreferredSampleRate)
	}
	return nil
}
