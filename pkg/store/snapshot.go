package store

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

const (
	// DataShards is the number of data shards per snapshot.
	DataShards = 10
	// ParityShards is the number of parity shards per snapshot.
	ParityShards = 5
	// TotalShards is the total number of shards.
	TotalShards = DataShards + ParityShards
	// MinShardsForRecovery is the minimum number of shards that can still
	// reconstruct the snapshot.
	MinShardsForRecovery = DataShards
)

// Snapshot is a topic's archived history, erasure-coded into shards so it
// can be spread across store nodes and survive partial loss. Any 10 of the
// 15 shards reconstruct the history; missing shards are nil.
type Snapshot struct {
	Topic        string
	Shards       [][]byte
	ShardSize    int
	OriginalSize int
}

// ExportSnapshot serializes the topic's records and erasure-codes them.
func (a *Archive) ExportSnapshot(topic string) (*Snapshot, error) {
	recs, err := a.records(topic)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no records to snapshot for topic %s", topic)
	}

	blob := packRecords(recs)

	enc, err := reedsolomon.New(DataShards, ParityShards)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	shards, err := enc.Split(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to split snapshot: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("failed to encode parity: %w", err)
	}

	return &Snapshot{
		Topic:        topic,
		Shards:       shards,
		ShardSize:    len(shards[0]),
		OriginalSize: len(blob),
	}, nil
}

// ImportSnapshot reconstructs a snapshot, tolerating up to 5 missing
// shards, and appends its records to the archive.
func (a *Archive) ImportSnapshot(snap *Snapshot) (int, error) {
	if snap == nil || len(snap.Shards) != TotalShards {
		return 0, fmt.Errorf("invalid snapshot: expected %d shards", TotalShards)
	}

	available := 0
	for _, s := range snap.Shards {
		if s != nil {
			available++
		}
	}
	if available < MinShardsForRecovery {
		return 0, fmt.Errorf("insufficient shards for recovery: have %d, need %d", available, MinShardsForRecovery)
	}

	enc, err := reedsolomon.New(DataShards, ParityShards)
	if err != nil {
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	shards := make([][]byte, TotalShards)
	copy(shards, snap.Shards)

	if err := enc.Reconstruct(shards); err != nil {
		return 0, fmt.Errorf("failed to reconstruct shards: %w", err)
	}

	ok, err := enc.Verify(shards)
	if err != nil {
		return 0, fmt.Errorf("failed to verify shards: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("shard verification failed")
	}

	blob := make([]byte, 0, snap.OriginalSize)
	for i := 0; i < DataShards; i++ {
		blob = append(blob, shards[i]...)
	}
	if len(blob) > snap.OriginalSize {
		blob = blob[:snap.OriginalSize]
	}

	recs, err := unpackRecords(blob)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack snapshot: %w", err)
	}

	for _, r := range recs {
		if err := a.Append(snap.Topic, r.payload, r.receivedAt); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}

// packRecords serializes records as repeated
// [received_at (8 bytes)] + [payload length (4 bytes)] + [payload].
func packRecords(recs []record) []byte {
	size := 0
	for _, r := range recs {
		size += 12 + len(r.payload)
	}

	buf := make([]byte, size)
	offset := 0
	for _, r := range recs {
		binary.BigEndian.PutUint64(buf[offset:], uint64(r.receivedAt))
		offset += 8

		binary.BigEndian.PutUint32(buf[offset:], uint32(len(r.payload)))
		offset += 4

		copy(buf[offset:], r.payload)
		offset += len(r.payload)
	}
	return buf
}

// unpackRecords parses the packed record stream.
func unpackRecords(buf []byte) ([]record, error) {
	var recs []record
	offset := 0

	for offset < len(buf) {
		if len(buf)-offset < 12 {
			return nil, fmt.Errorf("truncated record header at offset %d", offset)
		}

		receivedAt := int64(binary.BigEndian.Uint64(buf[offset:]))
		offset += 8

		payloadLen := int(binary.BigEndian.Uint32(buf[offset:]))
		offset += 4

		if len(buf)-offset < payloadLen {
			return nil, fmt.Errorf("truncated record payload at offset %d", offset)
		}

		payload := make([]byte, payloadLen)
		copy(payload, buf[offset:offset+payloadLen])
		offset += payloadLen

		recs = append(recs, record{receivedAt: receivedAt, payload: payload})
	}
	return recs, nil
}
