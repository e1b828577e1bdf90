// Package pipeline evaluates memoised generation stages. A stage is a pure
// function of its input: its output is stored under a hash of the stage
// identity and the encoded input, and served from the store on a later call
// with an identical input.
package pipeline

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	tgerrors "github.com/toyz/tracegen/internal/errors"
	"github.com/toyz/tracegen/internal/store"
)

// cacheVersion is part of every key; bump it when stored encodings change
const cacheVersion = 1

// Stage is one named, versioned computation
type Stage[In, Out any] struct {
	Name    string
	Version int
	// Key returns the bytes identifying an input; the msgpack encoding of
	// the input when nil
	Key func(In) ([]byte, error)
	Run func(In) (Out, error)
}

// StageStats counts cache outcomes of one stage
type StageStats struct {
	Hits   int
	Misses int
}

// Stats maps stage names to their counters
type Stats map[string]StageStats

// String renders the counters sorted by stage name
func (s Stats) String() string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %d/%d", name, s[name].Hits, s[name].Hits+s[name].Misses)
	}
	return strings.Join(parts, ", ")
}

// Graph evaluates stages against a store. A nil store disables memoisation.
type Graph struct {
	store store.Storage

	mu    sync.Mutex
	stats Stats
}

// NewGraph creates a graph memoising into s
func NewGraph(s store.Storage) *Graph {
	return &Graph{store: s, stats: make(Stats)}
}

// Stats returns a copy of the counters collected so far
func (g *Graph) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(Stats, len(g.stats))
	for k, v := range g.stats {
		out[k] = v
	}
	return out
}

// ResetStats clears the counters
func (g *Graph) ResetStats() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats = make(Stats)
}

func (g *Graph) record(name string, hit bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.stats[name]
	if hit {
		s.Hits++
	} else {
		s.Misses++
	}
	g.stats[name] = s
}

// Eval returns the output of stage for in, running it only when the store
// holds no output for an identical input. The returned value is always
// owned by the caller.
func Eval[In, Out any](g *Graph, stage Stage[In, Out], in In) (Out, error) {
	var zero Out

	keyBytes, err := stageKey(stage, in)
	if err != nil {
		return zero, fmt.Errorf("stage %s: failed to key input: %w", stage.Name, err)
	}
	key := Key(stage.Name, stage.Version, keyBytes)

	if g.store != nil {
		blob, ok, err := g.store.Load(key)
		if err != nil {
			return zero, tgerrors.WrapCacheError("load", key, err).WithContext("stage", stage.Name)
		}
		if ok {
			var out Out
			if err := Decode(blob, &out); err == nil {
				g.record(stage.Name, true)
				return out, nil
			}
			// undecodable entries are recomputed and overwritten
		}
	}

	g.record(stage.Name, false)
	out, err := stage.Run(in)
	if err != nil {
		return zero, err
	}
	if g.store == nil {
		return out, nil
	}

	blob, err := Encode(out)
	if err != nil {
		return zero, fmt.Errorf("stage %s: failed to encode output: %w", stage.Name, err)
	}
	if err := g.store.Save(key, blob); err != nil {
		return zero, tgerrors.WrapCacheError("save", key, err).WithContext("stage", stage.Name)
	}
	// hand out a decoded copy so hits and misses return equal values
	var fresh Out
	if err := Decode(blob, &fresh); err != nil {
		return zero, fmt.Errorf("stage %s: failed to decode output: %w", stage.Name, err)
	}
	return fresh, nil
}

func stageKey[In, Out any](stage Stage[In, Out], in In) ([]byte, error) {
	if stage.Key != nil {
		return stage.Key(in)
	}
	return Encode(in)
}

// Key hashes a stage identity and its key bytes into a store key
func Key(name string, version int, keyBytes []byte) string {
	d := xxhash.New()
	_, _ = d.WriteString(name)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(strconv.Itoa(version))
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(strconv.Itoa(cacheVersion))
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(keyBytes)
	return fmt.Sprintf("%s:%016x", name, d.Sum64())
}

// Encode serialises v with msgpack, sorting map keys so equal values encode
// to equal bytes
func Encode(v any) ([]byte, error) {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserialises a value produced by Encode
func Decode(blob []byte, v any) error {
	return msgpack.Unmarshal(blob, v)
}
