// Package codec serializes command records to the self-delimiting textual
// form used both on disk and on the wire, and decodes concatenated streams
// of them while reporting byte offsets so that positions can be recorded in
// the index.
//
// The encoding is compact JSON with a fixed field order, which makes it
// stable: the same record always encodes to the same bytes. The index
// depends on that stability because it refers to records by byte range.
package codec

import (
	"encoding/json"
	"errors"
	"io"

	emberrors "github.com/iamNilotpal/ember/pkg/errors"
)

// CommandType tags the variant of a command record.
type CommandType string

const (
	// CommandSet upserts a key. Persisted.
	CommandSet CommandType = "set"
	// CommandRemove tombstones a key. Persisted.
	CommandRemove CommandType = "rm"
	// CommandGet reads a key. Appears only in the network protocol, never
	// in segment files.
	CommandGet CommandType = "get"
)

// Command is the record written to segment files and carried inside network
// requests. Value is only meaningful for set commands.
type Command struct {
	Type  CommandType `json:"type"`
	Key   string      `json:"key"`
	Value string      `json:"value,omitempty"`
}

// Set builds an upsert record.
func Set(key, value string) Command {
	return Command{Type: CommandSet, Key: key, Value: value}
}

// Remove builds a tombstone record.
func Remove(key string) Command {
	return Command{Type: CommandRemove, Key: key}
}

// Get builds a read command for the network protocol.
func Get(key string) Command {
	return Command{Type: CommandGet, Key: key}
}

// Encode serializes a command to its stable byte form.
func Encode(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, emberrors.NewSerdeError(err, "failed to encode command record")
	}
	return data, nil
}

// Decode parses exactly one command from buf. Trailing garbage after the
// record is an error; the engine reads records by their exact byte range,
// so a well-formed lookup never has trailing bytes.
func Decode(buf []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(buf, &cmd); err != nil {
		return Command{}, emberrors.NewSerdeError(err, "failed to decode command record")
	}
	return cmd, nil
}

// StreamDecoder reads a concatenation of encoded commands without
// delimiters between them. After every decoded record it reports the byte
// offset at which parsing resumed, relative to the start of decoding.
type StreamDecoder struct {
	dec *json.Decoder
}

// NewStreamDecoder wraps r for sequential record decoding.
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{dec: json.NewDecoder(r)}
}

// Next decodes the next record and returns it together with the offset
// immediately after its last byte. It returns io.EOF once the stream is
// exhausted cleanly; any other failure to parse a prefix is a serde error.
func (s *StreamDecoder) Next() (Command, int64, error) {
	var cmd Command
	if err := s.dec.Decode(&cmd); err != nil {
		if errors.Is(err, io.EOF) {
			return Command{}, s.dec.InputOffset(), io.EOF
		}
		return Command{}, s.dec.InputOffset(), emberrors.NewSerdeError(
			err, "failed to decode command record from stream",
		)
	}
	return cmd, s.dec.InputOffset(), nil
}
