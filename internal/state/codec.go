// internal/state/codec.go
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/user/gules/internal/activity"
	"github.com/user/gules/internal/types"
)

const (
	SessionSchema = "gules/session-cache/v1"
	IndexSchema   = "gules/cache-index/v1"
)

var errSchema = errors.New("unsupported schema")

// zstdMagic is the frame header that marks a compressed session file.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("state: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("state: zstd decoder initialization failed: " + err.Error())
	}
}

// sessionFile is the on-disk format of a session cache. Activities are kept
// as the payloads received from the API.
type sessionFile struct {
	Schema        string            `json:"schema"`
	SessionID     types.SessionID   `json:"session_id"`
	NextPageToken string            `json:"next_page_token,omitempty"`
	LastSyncedAt  time.Time         `json:"last_synced_at"`
	CreatedAt     time.Time         `json:"created_at"`
	Divergences   []Divergence      `json:"divergences,omitempty"`
	Activities    []json.RawMessage `json:"activities"`
}

func marshalSession(c *SessionCache, compress bool) ([]byte, error) {
	f := sessionFile{
		Schema:        SessionSchema,
		SessionID:     c.SessionID,
		NextPageToken: c.NextPageToken,
		LastSyncedAt:  c.LastSyncedAt,
		CreatedAt:     c.CreatedAt,
		Divergences:   c.Divergences,
		Activities:    make([]json.RawMessage, 0, len(c.Activities)),
	}
	for _, a := range c.Activities {
		payload, err := a.Payload()
		if err != nil {
			return nil, fmt.Errorf("encode activity %s: %w", a.Key(), err)
		}
		f.Activities = append(f.Activities, payload)
	}

	// HTML escaping would rewrite stored payloads.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("marshal session cache: %w", err)
	}
	data := buf.Bytes()
	if compress {
		return zstdEncoder.EncodeAll(data, nil), nil
	}
	return data, nil
}

func unmarshalSession(data []byte) (*SessionCache, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress session cache: %w", err)
		}
		data = plain
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal session cache: %w", err)
	}
	if f.Schema != SessionSchema {
		return nil, fmt.Errorf("%w %q", errSchema, f.Schema)
	}
	if _, err := types.ParseSessionID(string(f.SessionID)); err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}

	c := &SessionCache{
		SessionID:     f.SessionID,
		NextPageToken: f.NextPageToken,
		LastSyncedAt:  f.LastSyncedAt,
		CreatedAt:     f.CreatedAt,
		Divergences:   f.Divergences,
		Activities:    make([]*activity.Activity, 0, len(f.Activities)),
	}
	for _, raw := range f.Activities {
		c.Activities = append(c.Activities, activity.Decode(raw, f.SessionID))
	}
	return c, nil
}
