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

package cache

import "sync"

// SynthDef is a named synth-def load, cached verbatim so recover's
// full-reload path can resubmit it without re-reading from disk.
type SynthDef struct {
	Name  string
	Bytes []byte
}

// Sample is a single buffer-load, cached the same way. Exactly one of Bytes
// or Path is populated, mirroring the two load entry points the facade
// exposes (raw bytes vs. a sanitized on-disk path).
type Sample struct {
	BufferID   int32
	Bytes      []byte
	Path       string
	StartFrame int
	NumFrames  int
}

// Cache remembers every synth-def and sample load the facade has accepted,
// keyed by the identifier the caller addresses it by, so Engine.recover's
// full-reload path (spec.md §4.K) can replay them after a reset.
type Cache struct {
	mu        sync.RWMutex
	synthDefs map[string]SynthDef
	samples   map[int32]Sample
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		synthDefs: make(map[string]SynthDef),
		samples:   make(map[int32]Sample),
	}
}

// PutSynthDef records or overwrites a synth-def load.
func (c *Cache) PutSynthDef(def SynthDef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synthDefs[def.Name] = def
}

// PutSample records or overwrites a sample load.
func (c *Cache) PutSample(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[s.BufferID] = s
}

// Replay calls loadSynthDef and loadSample for every cached entry, stopping
// at the first error. Iteration order is unspecified; the facade's recover
// path does not depend on relative ordering between synth-defs and samples.
func (c *Cache) Replay(loadSynthDef func(SynthDef) error, loadSample func(Sample) error) error {
	c.mu.RLock()
	defs := make([]SynthDef, 0, len(c.synthDefs))
	for _, d := range c.synthDefs {
		defs = append(defs, d)
	}
	samples := make([]Sample, 0, len(c.samples))
	for _, s := range c.samples {
		samples = append(samples, s)
	}
	c.mu.RUnlock()

	for _, d := range defs {
		if err := loadSynthDef(d); err != nil {
			return err
		}
	}
	for _, s := range samples {
		if err := loadSample(s); err != nil {
			return err
		}
	}
	return nil
}
