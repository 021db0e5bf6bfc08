package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds one framed envelope line on the wire.
const MaxMessageSize = 128 * 1024

// WriteCommand frames one command envelope as a JSON line.
func WriteCommand(w io.Writer, env CommandEnv) error {
	if err := env.Validate(); err != nil {
		return err
	}
	return writeLine(w, env)
}

// ReadCommand reads one framed command envelope. Transport errors pass
// through untouched; malformed payloads wrap ErrDecode.
func ReadCommand(r *bufio.Reader) (CommandEnv, error) {
	line, err := readLine(r)
	if err != nil {
		return CommandEnv{}, err
	}
	var env CommandEnv
	if err := json.Unmarshal(line, &env); err != nil {
		return CommandEnv{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := env.Validate(); err != nil {
		return CommandEnv{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return env, nil
}

// WriteResponse frames one response envelope as a JSON line.
func WriteResponse(w io.Writer, env ResponseEnv) error {
	if err := env.Validate(); err != nil {
		return err
	}
	return writeLine(w, env)
}

// ReadResponse reads one framed response envelope.
func ReadResponse(r *bufio.Reader) (ResponseEnv, error) {
	line, err := readLine(r)
	if err != nil {
		return ResponseEnv{}, err
	}
	var env ResponseEnv
	if err := json.Unmarshal(line, &env); err != nil {
		return ResponseEnv{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := env.Validate(); err != nil {
		return ResponseEnv{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return env, nil
}

func writeLine(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(payload) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// readLine accumulates one line, enforcing the size bound as bytes
// arrive so a peer that never sends '\n' cannot force unbounded
// buffering.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxMessageSize {
			return nil, ErrMessageTooLarge
		}
		if err == nil {
			return line, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
}
