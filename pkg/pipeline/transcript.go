// Package pipeline implements the transcript processing pipeline: fetch the
// raw transcript, parse it, resolve speaker identities, summarize with the
// language model, and persist the result. Jobs arrive from the durable
// queue and every step failure is categorized so the worker can retry or
// dead-letter.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// TranscriptItem is one utterance from the call transcript. Transcripts
// arrive as JSONL, one item per line.
type TranscriptItem struct {
	SpeakerID string `json:"speaker_id"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	StartTS   int64  `json:"start_ts"`
	StopTS    int64  `json:"stop_ts"`
}

// SpeakerInfo is the resolved identity attached to an utterance before
// summarization.
type SpeakerInfo struct {
	Name string `json:"name"`
}

// EnrichedItem is a transcript item with its speaker resolved.
type EnrichedItem struct {
	TranscriptItem
	User SpeakerInfo `json:"user"`
}

// Grow the scanner buffer past the default; single utterances can be long.
const maxTranscriptLine = 1024 * 1024

// ParseTranscript reads a JSONL transcript. Blank lines are skipped; a line
// that is not valid JSON fails the whole parse, since a partially parsed
// transcript would produce a silently wrong summary.
func ParseTranscript(r io.Reader) ([]TranscriptItem, error) {
	var items []TranscriptItem

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTranscriptLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item TranscriptItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("malformed transcript line %d: %w", lineNo, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	return items, nil
}

// SpeakerIDs returns the distinct speaker identifiers, in first-seen order.
func SpeakerIDs(items []TranscriptItem) []string {
	seen := make(map[string]struct{}, len(items))
	var ids []string
	for _, item := range items {
		if item.SpeakerID == "" {
			continue
		}
		if _, ok := seen[item.SpeakerID]; ok {
			continue
		}
		seen[item.SpeakerID] = struct{}{}
		ids = append(ids, item.SpeakerID)
	}
	return ids
}

// Enrich attaches resolved speaker names to transcript items. A speaker with
// no matching user or agent row becomes "Unknown" rather than failing the
// pipeline.
func Enrich(items []TranscriptItem, names map[string]string) []EnrichedItem {
	enriched := make([]EnrichedItem, 0, len(items))
	for _, item := range items {
		name, ok := names[item.SpeakerID]
		if !ok || name == "" {
			name = "Unknown"
		}
		enriched = append(enriched, EnrichedItem{
			TranscriptItem: item,
			User:           SpeakerInfo{Name: name},
		})
	}
	return enriched
}
