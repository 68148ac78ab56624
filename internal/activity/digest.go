package activity

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// payloadKey separates activity payload digests from any other BLAKE3 use.
var payloadKey = [32]byte{'g', 'u', 'l', 'e', 's', '.', 'a', 'c', 't', 'i', 'v', 'i', 't', 'y'}

// Digest is a BLAKE3 hash of an activity's canonical payload.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Digest hashes the payload after canonicalising it (sorted keys, no
// insignificant whitespace), so two payloads that differ only in key order
// share a digest.
func (a *Activity) Digest() Digest {
	payload, err := a.Payload()
	if err != nil {
		payload = a.raw
	}
	return digestOf(canonical(payload))
}

func digestOf(data []byte) Digest {
	h, err := blake3.NewKeyed(payloadKey[:])
	if err != nil {
		panic("activity: blake3 keyed hasher: " + err.Error())
	}
	h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func canonical(raw []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return out
}
