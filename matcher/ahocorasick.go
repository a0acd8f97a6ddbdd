// Caninana
// Copyright (c) 2026, Caninana contributors

// Package matcher implements a streaming, multi-pattern Aho-Corasick
// substring matcher over bounded memory, with a coarse-grained deadline
// check suitable for very large inputs. The automaton construction mirrors
// the original engine's node/failure-link/output-propagation design
// one-for-one, translated into idiomatic Go.
package matcher

import (
	"io"
	"time"

	"github.com/caninana/caninana/monitor"
	"github.com/caninana/caninana/signature"
)

const (
	chunkSize          = 8192
	timeoutCheckPeriod = 16 // check the deadline every 16th chunk
)

type node struct {
	transitions map[byte]int
	failure     int
	outputs     []string // patterns terminating at, or reachable via failure from, this node
}

func newNode() *node {
	return &node{transitions: make(map[byte]int)}
}

// AhoCorasick is a keyword automaton built over a fixed set of signatures.
// A new AhoCorasick must be built for each distinct candidate set; it holds
// no scan-specific state, so the same instance may be reused across
// sequential scans against the same candidate set.
type AhoCorasick struct {
	nodes      []*node
	patternMap map[string]*signature.Signature // last-wins on pattern collisions, by build order
}

// Build constructs the automaton over the given signatures' patterns. Empty
// patterns are not expected (the signature.Store already drops them at load
// time), but Build tolerates them defensively by skipping.
func Build(signatures []*signature.Signature) *AhoCorasick {
	m := &AhoCorasick{
		nodes:      []*node{newNode()},
		patternMap: make(map[string]*signature.Signature),
	}
	for _, sig := range signatures {
		if len(sig.Pattern) == 0 {
			continue
		}
		m.addPattern(sig)
		m.patternMap[string(sig.Pattern)] = sig
	}
	m.computeFailureLinks()
	return m
}

func (m *AhoCorasick) addPattern(sig *signature.Signature) {
	cur := 0
	for _, c := range sig.Pattern {
		next, ok := m.nodes[cur].transitions[c]
		if !ok {
			next = len(m.nodes)
			m.nodes[cur].transitions[c] = next
			m.nodes = append(m.nodes, newNode())
		}
		cur = next
	}
	m.nodes[cur].outputs = append(m.nodes[cur].outputs, string(sig.Pattern))
}

// computeFailureLinks walks the trie breadth-first, assigning each node's
// failure link and propagating output patterns along it, so that scanning
// needs only a single climb per byte.
func (m *AhoCorasick) computeFailureLinks() {
	root := m.nodes[0]
	queue := make([]int, 0, len(m.nodes))
	for _, next := range root.transitions {
		m.nodes[next].failure = 0
		queue = append(queue, next)
	}

	for len(queue) > 0 {
		curIdx := queue[0]
		queue = queue[1:]
		cur := m.nodes[curIdx]

		for c, nextIdx := range cur.transitions {
			queue = append(queue, nextIdx)

			failIdx := cur.failure
			for failIdx != 0 {
				if _, ok := m.nodes[failIdx].transitions[c]; ok {
					break
				}
				failIdx = m.nodes[failIdx].failure
			}
			if target, ok := m.nodes[failIdx].transitions[c]; ok {
				m.nodes[nextIdx].failure = target
			} else {
				m.nodes[nextIdx].failure = 0
			}

			inherited := m.nodes[nextIdx].failure
			if len(m.nodes[inherited].outputs) > 0 {
				m.nodes[nextIdx].outputs = append(m.nodes[nextIdx].outputs, m.nodes[inherited].outputs...)
			}
		}
	}
}

func (m *AhoCorasick) step(cur int, c byte) int {
	for cur != 0 {
		if next, ok := m.nodes[cur].transitions[c]; ok {
			return next
		}
		cur = m.nodes[cur].failure
	}
	if next, ok := m.nodes[0].transitions[c]; ok {
		return next
	}
	return 0
}

// Scan reads r in 8 KiB chunks, feeding every byte through the automaton.
// The monitor's deadline is consulted every 16th chunk boundary (at least
// once per 128 KiB); if it has fired, Scan returns immediately with
// timedOut=true and no matches, regardless of how much of the stream
// remains.
//
// Matched signatures are resolved against the pointers passed to Build,
// deduplicated by pattern (if two signatures share a pattern, the one
// later in build order wins), in no particular order; callers that need a
// stable ordering re-derive it from their own candidate list.
func (m *AhoCorasick) Scan(r io.Reader, mon *monitor.Monitor, timeout time.Duration) (timedOut bool, matched []*signature.Signature, err error) {
	detected := make(map[string]struct{})
	cur := 0
	buf := make([]byte, chunkSize)
	chunkCount := 0

	for {
		chunkCount++
		if chunkCount%timeoutCheckPeriod == 0 && mon.HasTimedOut(timeout) {
			return true, nil, nil
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			for _, c := range buf[:n] {
				cur = m.step(cur, c)
				for walk := cur; walk != 0; walk = m.nodes[walk].failure {
					for _, p := range m.nodes[walk].outputs {
						detected[p] = struct{}{}
					}
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return false, nil, rerr
		}
	}

	for pattern := range detected {
		if sig, ok := m.patternMap[pattern]; ok {
			matched = append(matched, sig)
		}
	}
	return false, matched, nil
}
