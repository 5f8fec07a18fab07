package events

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"yieldswap/internal/model"
)

const defaultStreamBatch = 500

// StreamSink receives decoded events and rejected lines in batches.
type StreamSink interface {
	PutTypedEvents(events []model.TypedEvent) error
	PutDecodeErrors(errs []model.DecodeError) error
}

// StreamStats counts what DecodeStream did with the input.
type StreamStats struct {
	Total   int
	Decoded int
	Skipped int
	Failed  int
}

// DecodeStream reads LogRecord JSONL from r. Logs of unknown events, and of
// events not listed in only when it is non-empty, are skipped. Lines that
// cannot be decoded are passed to the sink with their line number.
func (d *Decoder) DecodeStream(ctx context.Context, r io.Reader, only []common.Hash, batchSize int, sink StreamSink) (StreamStats, error) {
	var stats StreamStats
	if sink == nil {
		return stats, fmt.Errorf("decode sink is nil")
	}
	if batchSize <= 0 {
		batchSize = defaultStreamBatch
	}
	var keep map[string]struct{}
	if len(only) > 0 {
		keep = make(map[string]struct{}, len(only))
		for _, topic := range only {
			keep[strings.ToLower(topic.Hex())] = struct{}{}
		}
	}

	decoded := make([]model.TypedEvent, 0, batchSize)
	var rejected []model.DecodeError
	flush := func() error {
		if err := sink.PutTypedEvents(decoded); err != nil {
			return fmt.Errorf("store typed events: %w", err)
		}
		if err := sink.PutDecodeErrors(rejected); err != nil {
			return fmt.Errorf("store decode errors: %w", err)
		}
		decoded, rejected = decoded[:0], rejected[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			rejected = append(rejected, model.DecodeError{Line: lineNo, Error: err.Error()})
			continue
		}
		topic0 := ""
		if len(record.Topics) > 0 {
			topic0 = record.Topics[0]
		}
		// a missing topic0 falls through to Decode and is reported
		if topic0 != "" && !d.wanted(topic0, keep) {
			stats.Skipped++
			continue
		}

		event, err := d.Decode(record)
		if err != nil {
			stats.Failed++
			rejected = append(rejected, model.DecodeError{
				Line:        lineNo,
				BlockNumber: record.BlockNumber,
				TxHash:      record.TxHash,
				LogIndex:    record.LogIndex,
				Address:     record.Address,
				Topic0:      topic0,
				Error:       err.Error(),
			})
			continue
		}
		decoded = append(decoded, *event)
		stats.Decoded++

		if len(decoded) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, flush()
}

func (d *Decoder) wanted(topic0 string, keep map[string]struct{}) bool {
	if !d.CanDecode(topic0) {
		return false
	}
	if keep == nil {
		return true
	}
	_, ok := keep[strings.ToLower(topic0)]
	return ok
}
