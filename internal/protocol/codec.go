package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Sentinel terminates every message in both directions.
const Sentinel byte = 0x00

// EncodeRequest serializes req and writes it to w, sentinel-terminated.
func EncodeRequest(w io.Writer, req *Request) error {
	if req.Action == "" {
		return fmt.Errorf("request missing required field: action")
	}
	if req.PythonPath == "" {
		return fmt.Errorf("request missing required field: pythonPath")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	data = append(data, Sentinel)

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}
	return nil
}

// DecodeResponse reads one sentinel-terminated response from r.
// Returns an error on a missing sentinel or invalid JSON — a malformed
// acknowledgement must surface as a notification failure, not be guessed at.
// Fields beyond the known three are ignored: the extension is owned and
// versioned separately, and a newer one may acknowledge with extras.
func DecodeResponse(r io.Reader) (*Response, error) {
	br := bufio.NewReader(r)
	data, err := br.ReadBytes(Sentinel)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(data) == 0 {
				return nil, fmt.Errorf("connection closed before any response")
			}
			return nil, fmt.Errorf("response not sentinel-terminated (%d bytes read)", len(data))
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	data = data[:len(data)-1] // strip sentinel

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &resp, nil
}
